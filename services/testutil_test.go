package services

import (
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"quizmaster/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Admin{},
		&models.Subject{},
		&models.Chapter{},
		&models.Quiz{},
		&models.Question{},
		&models.Score{},
		&models.Reminder{},
	))
	return db
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}

// answerKey renders a question id the way a JSON answer map keys it.
func answerKey(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func createTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	user := models.User{
		Username:           username,
		Email:              username + "@example.com",
		FullName:           "Test " + username,
		IsActive:           true,
		EmailNotifications: true,
		ReminderEmails:     true,
		MonthlyReports:     true,
	}
	require.NoError(t, user.SetPassword("password123"))
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func createTestSubject(t *testing.T, db *gorm.DB, name string) *models.Subject {
	t.Helper()

	subject := models.Subject{
		Name:     name,
		Slug:     models.Slugify(name),
		Code:     fmt.Sprintf("SUB-%s", models.Slugify(name)),
		IsActive: true,
	}
	require.NoError(t, db.Create(&subject).Error)
	return &subject
}

func createTestChapter(t *testing.T, db *gorm.DB, subjectID uint, name string) *models.Chapter {
	t.Helper()

	chapter := models.Chapter{
		Name:          name,
		Slug:          models.Slugify(name),
		SubjectID:     subjectID,
		ChapterNumber: 1,
		IsActive:      true,
	}
	require.NoError(t, db.Create(&chapter).Error)
	return &chapter
}

// createTestQuiz creates an active quiz whose window contains the given
// reference time.
func createTestQuiz(t *testing.T, db *gorm.DB, chapterID uint, title string, now time.Time, maxAttempts int) *models.Quiz {
	t.Helper()

	quiz := models.Quiz{
		Title:           title,
		Slug:            models.Slugify(title),
		ChapterID:       chapterID,
		DurationMinutes: 30,
		PassingScore:    50,
		MaxAttempts:     maxAttempts,
		StartDate:       now.Add(-time.Hour),
		EndDate:         now.Add(time.Hour),
		IsActive:        true,
	}
	require.NoError(t, db.Create(&quiz).Error)
	return &quiz
}

func createTestQuestion(t *testing.T, db *gorm.DB, quizID uint, text, questionType, correct string, options []string, points, order int) *models.Question {
	t.Helper()

	question := models.Question{
		QuizID:        quizID,
		QuestionText:  text,
		QuestionType:  questionType,
		Points:        points,
		CorrectAnswer: correct,
		Order:         order,
		IsActive:      true,
	}
	require.NoError(t, question.SetOptions(options))
	require.NoError(t, db.Create(&question).Error)
	return &question
}
