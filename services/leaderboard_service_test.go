package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"quizmaster/models"
)

func seedScore(t *testing.T, db *gorm.DB, userID, quizID uint, attempt int, percentage float64, passed bool, createdAt time.Time) {
	t.Helper()
	score := models.Score{
		UserID:        userID,
		QuizID:        quizID,
		Score:         int(percentage),
		MaxScore:      100,
		Percentage:    percentage,
		Passed:        passed,
		StartedAt:     createdAt,
		CompletedAt:   createdAt,
		AttemptNumber: attempt,
		CreatedAt:     createdAt,
	}
	require.NoError(t, db.Create(&score).Error)
}

func TestGlobalLeaderboardOrdering(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()
	subject := createTestSubject(t, db, "History")
	chapter := createTestChapter(t, db, subject.ID, "Antiquity")
	quiz := createTestQuiz(t, db, chapter.ID, "Rome", now, 0)

	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	carol := createTestUser(t, db, "carol")

	seedScore(t, db, alice.ID, quiz.ID, 1, 90, true, now.Add(-time.Hour))
	seedScore(t, db, alice.ID, quiz.ID, 2, 70, true, now)
	seedScore(t, db, bob.ID, quiz.ID, 1, 60, true, now)
	seedScore(t, db, carol.ID, quiz.ID, 1, 95, true, now)

	lb := NewLeaderboardService(db, NewNoopCache(), 1, 10)
	entries, err := lb.Global(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// carol 95, alice avg 80, bob 60
	assert.Equal(t, carol.ID, entries[0].UserID)
	assert.Equal(t, alice.ID, entries[1].UserID)
	assert.Equal(t, bob.ID, entries[2].UserID)
	assert.Equal(t, 80.0, entries[1].AverageScore)
	assert.Equal(t, 2, entries[1].TotalAttempts)

	for i := 1; i < len(entries); i++ {
		assert.GreaterOrEqual(t, entries[i-1].AverageScore, entries[i].AverageScore)
	}
}

func TestLeaderboardMinAttemptsFilter(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()
	subject := createTestSubject(t, db, "Biology")
	chapter := createTestChapter(t, db, subject.ID, "Cells")
	quiz := createTestQuiz(t, db, chapter.ID, "Mitosis", now, 0)

	active := createTestUser(t, db, "active")
	casual := createTestUser(t, db, "casual")

	seedScore(t, db, active.ID, quiz.ID, 1, 80, true, now)
	seedScore(t, db, active.ID, quiz.ID, 2, 80, true, now)
	seedScore(t, db, casual.ID, quiz.ID, 1, 100, true, now)

	lb := NewLeaderboardService(db, NewNoopCache(), 2, 10)
	entries, err := lb.Global(context.Background())
	require.NoError(t, err)

	require.Len(t, entries, 1, "users below the attempt threshold are excluded")
	assert.Equal(t, active.ID, entries[0].UserID)
	assert.Equal(t, 1, entries[0].Rank)
}

func TestLeaderboardDenseRanksAndTieBreak(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()
	subject := createTestSubject(t, db, "Chemistry")
	chapter := createTestChapter(t, db, subject.ID, "Acids")
	quiz := createTestQuiz(t, db, chapter.ID, "PH Scale", now, 0)

	early := createTestUser(t, db, "early")
	late := createTestUser(t, db, "late")
	third := createTestUser(t, db, "third")

	seedScore(t, db, late.ID, quiz.ID, 1, 90, true, now)
	seedScore(t, db, early.ID, quiz.ID, 1, 90, true, now.Add(-2*time.Hour))
	seedScore(t, db, third.ID, quiz.ID, 1, 50, false, now)

	lb := NewLeaderboardService(db, NewNoopCache(), 1, 10)
	entries, err := lb.Global(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Tied averages share a rank; the earlier first attempt lists first.
	assert.Equal(t, early.ID, entries[0].UserID)
	assert.Equal(t, late.ID, entries[1].UserID)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, 1, entries[1].Rank)
	assert.Equal(t, 2, entries[2].Rank)
}

func TestLeaderboardLimitTruncates(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()
	subject := createTestSubject(t, db, "Geography")
	chapter := createTestChapter(t, db, subject.ID, "Maps")
	quiz := createTestQuiz(t, db, chapter.ID, "Capitals", now, 0)

	for i := 0; i < 5; i++ {
		user := createTestUser(t, db, "user"+string(rune('a'+i)))
		seedScore(t, db, user.ID, quiz.ID, 1, float64(50+i*10), true, now)
	}

	lb := NewLeaderboardService(db, NewNoopCache(), 1, 3)
	entries, err := lb.Global(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	assert.Equal(t, 90.0, entries[0].AverageScore)
}

func TestQuizAndSubjectLeaderboardsScopeScores(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()

	mathSubject := createTestSubject(t, db, "Math")
	mathChapter := createTestChapter(t, db, mathSubject.ID, "Numbers")
	mathQuiz := createTestQuiz(t, db, mathChapter.ID, "Counting", now, 0)

	artSubject := createTestSubject(t, db, "Art")
	artChapter := createTestChapter(t, db, artSubject.ID, "Painting")
	artQuiz := createTestQuiz(t, db, artChapter.ID, "Colors", now, 0)

	user := createTestUser(t, db, "mona")
	seedScore(t, db, user.ID, mathQuiz.ID, 1, 40, false, now)
	seedScore(t, db, user.ID, artQuiz.ID, 1, 100, true, now)

	lb := NewLeaderboardService(db, NewNoopCache(), 1, 10)

	entries, err := lb.ForQuiz(context.Background(), artQuiz.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 100.0, entries[0].AverageScore)

	entries, err = lb.ForSubject(context.Background(), mathSubject.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 40.0, entries[0].AverageScore)
}
