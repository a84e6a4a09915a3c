package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizmaster/models"
)

func TestUserListWithSearchAndCounts(t *testing.T) {
	db := newTestDB(t)
	users := NewUserService(db, NewNoopCache())

	alice := createTestUser(t, db, "alice")
	createTestUser(t, db, "bob")

	subject := createTestSubject(t, db, "Math")
	chapter := createTestChapter(t, db, subject.ID, "Algebra")
	quiz := createTestQuiz(t, db, chapter.ID, "Quiz", time.Now().UTC(), 0)
	seedScore(t, db, alice.ID, quiz.ID, 1, 80, true, time.Now().UTC())

	all, err := users.List("")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	matched, err := users.List("alice")
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, alice.ID, matched[0].ID)
	assert.Equal(t, int64(1), matched[0].AttemptCount)
}

func TestToggleActive(t *testing.T) {
	db := newTestDB(t)
	users := NewUserService(db, NewNoopCache())
	user := createTestUser(t, db, "carol")

	toggled, err := users.ToggleActive(user.ID)
	require.NoError(t, err)
	assert.False(t, toggled.IsActive)

	toggled, err = users.ToggleActive(user.ID)
	require.NoError(t, err)
	assert.True(t, toggled.IsActive)

	_, err = users.ToggleActive(9999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteUserRemovesDependents(t *testing.T) {
	db := newTestDB(t)
	users := NewUserService(db, NewNoopCache())

	user := createTestUser(t, db, "dave")
	keep := createTestUser(t, db, "erin")

	subject := createTestSubject(t, db, "Math")
	chapter := createTestChapter(t, db, subject.ID, "Algebra")
	quiz := createTestQuiz(t, db, chapter.ID, "Quiz", time.Now().UTC(), 0)
	seedScore(t, db, user.ID, quiz.ID, 1, 70, true, time.Now().UTC())
	seedScore(t, db, keep.ID, quiz.ID, 1, 90, true, time.Now().UTC())

	reminder := models.Reminder{UserID: user.ID, Message: "hi", ReminderType: models.ReminderTypeGeneral}
	require.NoError(t, db.Create(&reminder).Error)

	require.NoError(t, users.Delete(user.ID))

	_, err := users.Get(user.ID)
	require.ErrorIs(t, err, ErrNotFound)

	var scoreCount, reminderCount int64
	db.Model(&models.Score{}).Where("user_id = ?", user.ID).Count(&scoreCount)
	db.Model(&models.Reminder{}).Where("user_id = ?", user.ID).Count(&reminderCount)
	assert.Zero(t, scoreCount)
	assert.Zero(t, reminderCount)

	// Other users' data is untouched.
	db.Model(&models.Score{}).Where("user_id = ?", keep.ID).Count(&scoreCount)
	assert.Equal(t, int64(1), scoreCount)
}

func TestPreferencesDefaultOnAndPartialUpdate(t *testing.T) {
	db := newTestDB(t)
	users := NewUserService(db, NewNoopCache())
	user := createTestUser(t, db, "frank")

	prefs, err := users.GetPreferences(user.ID)
	require.NoError(t, err)
	assert.True(t, prefs.EmailNotifications)
	assert.True(t, prefs.ReminderEmails)
	assert.True(t, prefs.MonthlyReports)

	off := false
	updated, err := users.UpdatePreferences(user.ID, &UpdatePreferencesRequest{MonthlyReports: &off})
	require.NoError(t, err)
	assert.False(t, updated.MonthlyReports)
	// Fields absent from the request stay as they were.
	assert.True(t, updated.EmailNotifications)
	assert.True(t, updated.ReminderEmails)

	prefs, err = users.GetPreferences(user.ID)
	require.NoError(t, err)
	assert.False(t, prefs.MonthlyReports)

	_, err = users.GetPreferences(9999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAdminDashboardStats(t *testing.T) {
	db := newTestDB(t)
	users := NewUserService(db, newMemCache())
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	require.NoError(t, db.Model(bob).Update("is_active", false).Error)

	subject := createTestSubject(t, db, "Math")
	chapter := createTestChapter(t, db, subject.ID, "Algebra")
	current := createTestQuiz(t, db, chapter.ID, "Current", now, 0)
	createTestQuiz(t, db, chapter.ID, "Expired", now.Add(-3*time.Hour), 0)
	createTestQuestion(t, db, current.ID, "1+1?", models.QuestionTypeMultipleChoice, "0", []string{"2", "3"}, 1, 1)

	seedScore(t, db, alice.ID, current.ID, 1, 80, true, now)
	seedScore(t, db, alice.ID, current.ID, 2, 90, true, now.AddDate(0, 0, -2))

	stats, err := users.AdminDashboardStats(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalUsers)
	assert.Equal(t, int64(1), stats.ActiveUsers)
	assert.Equal(t, int64(1), stats.TotalSubjects)
	assert.Equal(t, int64(2), stats.TotalQuizzes)
	assert.Equal(t, int64(1), stats.ActiveQuizzes, "a quiz outside its window is not active")
	assert.Equal(t, int64(1), stats.TotalQuestions)

	assert.Equal(t, []string{"Math"}, stats.QuizDistribution.Labels)
	assert.Equal(t, []int{2}, stats.QuizDistribution.Data)

	require.Len(t, stats.ActivityTrend.Labels, 7)
	require.Len(t, stats.ActivityTrend.Data, 7)
	total := 0
	for _, n := range stats.ActivityTrend.Data {
		total += n
	}
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, stats.ActivityTrend.Data[6], "today's attempt lands in the last bucket")

	// The second read is served from cache.
	createTestUser(t, db, "carol")
	cached, err := users.AdminDashboardStats(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cached.TotalUsers)
}

func TestExportUsersCSV(t *testing.T) {
	db := newTestDB(t)
	users := NewUserService(db, NewNoopCache())

	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	require.NoError(t, db.Model(bob).Update("is_active", false).Error)

	rows, err := users.ExportCSV()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, "Last Login", rows[0][7])
	assert.Equal(t, alice.Username, rows[1][1])
	assert.Equal(t, "Active", rows[1][5])
	assert.Equal(t, "Inactive", rows[2][5])
	// No login recorded yet.
	assert.Equal(t, "", rows[1][7])
}
