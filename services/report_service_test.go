package services

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizmaster/mailer"
)

// memCache is a map-backed Cache for tests that need to observe what
// was stored, which NoopCache cannot provide.
type memCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{items: map[string][]byte{}}
}

func (c *memCache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.items[key]
	return data, ok
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
}

func (c *memCache) Delete(ctx context.Context, keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.items, key)
	}
}

func (c *memCache) DeletePattern(ctx context.Context, pattern string) {
	prefix := strings.TrimSuffix(pattern, "*")
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
		}
	}
}

func (c *memCache) Ping(ctx context.Context) error { return nil }

func TestScoreExportLifecycle(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()
	user := createTestUser(t, db, "alice")
	subject := createTestSubject(t, db, "Math")
	chapter := createTestChapter(t, db, subject.ID, "Algebra")
	quiz := createTestQuiz(t, db, chapter.ID, "Export Me", now, 0)
	seedScore(t, db, user.ID, quiz.ID, 1, 75, true, now.Add(-time.Hour))
	seedScore(t, db, user.ID, quiz.ID, 2, 90, true, now)

	mail := mailer.NewConsoleService(testLogger())
	exportDir := t.TempDir()
	reports := NewReportService(db, mail, newMemCache(), testLogger(), exportDir)

	taskID, err := reports.StartScoreExport(user.ID)
	require.NoError(t, err)
	require.NotEmpty(t, taskID)

	var status *ExportStatus
	require.Eventually(t, func() bool {
		status, err = reports.GetExportStatus(taskID)
		return err == nil && status.Status != "pending"
	}, 5*time.Second, 10*time.Millisecond)

	require.Equal(t, "completed", status.Status)
	assert.Equal(t, 2, status.Rows)

	file, err := os.Open(filepath.Join(exportDir, status.Filename))
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3, "header plus one row per score")
	assert.Equal(t, "Quiz Title", records[0][1])
	assert.Equal(t, "Export Me", records[1][1])

	// Completion email went out.
	require.Eventually(t, func() bool {
		return len(mail.Sent()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, mail.Sent()[0].Subject, "Export Completed")
}

func TestGetExportStatusUnknownTask(t *testing.T) {
	db := newTestDB(t)
	reports := NewReportService(db, mailer.NewConsoleService(testLogger()), newMemCache(), testLogger(), t.TempDir())

	_, err := reports.GetExportStatus("no-such-task")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStartScoreExportUnknownUser(t *testing.T) {
	db := newTestDB(t)
	reports := NewReportService(db, mailer.NewConsoleService(testLogger()), newMemCache(), testLogger(), t.TempDir())

	_, err := reports.StartScoreExport(9999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSendMonthlyReports(t *testing.T) {
	db := newTestDB(t)
	// Reports for June 2025 are sent at the start of July.
	now := time.Date(2025, 7, 1, 6, 0, 0, 0, time.UTC)
	lastMonth := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	active := createTestUser(t, db, "active")
	createTestUser(t, db, "idle")

	subject := createTestSubject(t, db, "History")
	chapter := createTestChapter(t, db, subject.ID, "Medieval")
	quiz := createTestQuiz(t, db, chapter.ID, "Castles", lastMonth, 0)
	seedScore(t, db, active.ID, quiz.ID, 1, 85, true, lastMonth)
	seedScore(t, db, active.ID, quiz.ID, 2, 65, true, lastMonth.Add(24*time.Hour))

	mail := mailer.NewConsoleService(testLogger())
	reports := NewReportService(db, mail, newMemCache(), testLogger(), t.TempDir())

	sent, err := reports.SendMonthlyReports(now)
	require.NoError(t, err)
	assert.Equal(t, 1, sent, "only users with activity last month get a report")

	messages := mail.Sent()
	require.Len(t, messages, 1)
	assert.Equal(t, active.Email, messages[0].To)
	assert.Contains(t, messages[0].Subject, "June 2025")
	assert.Contains(t, messages[0].HTMLBody, "History")
	assert.Contains(t, messages[0].HTMLBody, "Castles")
}

func TestSendMonthlyReportsExcludesThisMonth(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 7, 1, 6, 0, 0, 0, time.UTC)

	user := createTestUser(t, db, "recent")
	subject := createTestSubject(t, db, "Art")
	chapter := createTestChapter(t, db, subject.ID, "Color")
	quiz := createTestQuiz(t, db, chapter.ID, "Hues", now, 0)

	// Activity in the current month only.
	seedScore(t, db, user.ID, quiz.ID, 1, 80, true, now.Add(-time.Hour))

	mail := mailer.NewConsoleService(testLogger())
	reports := NewReportService(db, mail, newMemCache(), testLogger(), t.TempDir())

	sent, err := reports.SendMonthlyReports(now)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Empty(t, mail.Sent())
}

func TestSendMonthlyReportsHonorsOptOut(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 7, 1, 6, 0, 0, 0, time.UTC)
	lastMonth := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	optedOut := createTestUser(t, db, "optedout")
	require.NoError(t, db.Model(optedOut).Update("monthly_reports", false).Error)

	subject := createTestSubject(t, db, "History")
	chapter := createTestChapter(t, db, subject.ID, "Medieval")
	quiz := createTestQuiz(t, db, chapter.ID, "Castles", lastMonth, 0)
	seedScore(t, db, optedOut.ID, quiz.ID, 1, 85, true, lastMonth)

	mail := mailer.NewConsoleService(testLogger())
	reports := NewReportService(db, mail, newMemCache(), testLogger(), t.TempDir())

	sent, err := reports.SendMonthlyReports(now)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Empty(t, mail.Sent())
}

func TestScoreExportSkipsEmailWhenOptedOut(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()
	user := createTestUser(t, db, "quiet")
	require.NoError(t, db.Model(user).Update("email_notifications", false).Error)

	subject := createTestSubject(t, db, "Math")
	chapter := createTestChapter(t, db, subject.ID, "Algebra")
	quiz := createTestQuiz(t, db, chapter.ID, "Silent Export", now, 0)
	seedScore(t, db, user.ID, quiz.ID, 1, 75, true, now)

	mail := mailer.NewConsoleService(testLogger())
	reports := NewReportService(db, mail, newMemCache(), testLogger(), t.TempDir())

	taskID, err := reports.StartScoreExport(user.ID)
	require.NoError(t, err)

	var status *ExportStatus
	require.Eventually(t, func() bool {
		status, err = reports.GetExportStatus(taskID)
		return err == nil && status.Status != "pending"
	}, 5*time.Second, 10*time.Millisecond)

	// The export itself finishes; only the notification is suppressed.
	require.Equal(t, "completed", status.Status)
	// Give the worker goroutine time to send a mail it should not.
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, mail.Sent())
}
