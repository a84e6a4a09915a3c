package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQuizStatusAt(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 30, 23, 59, 59, 0, time.UTC)

	tests := []struct {
		name     string
		isActive bool
		now      time.Time
		want     string
	}{
		{"before window", true, start.Add(-time.Minute), QuizStatusUpcoming},
		{"at window start", true, start, QuizStatusActive},
		{"inside window", true, start.Add(24 * time.Hour), QuizStatusActive},
		{"at window end", true, end, QuizStatusActive},
		{"after window", true, end.Add(time.Minute), QuizStatusExpired},
		{"inactive wins over active window", false, start.Add(24 * time.Hour), QuizStatusInactive},
		{"inactive wins over upcoming", false, start.Add(-time.Minute), QuizStatusInactive},
		{"inactive wins over expired", false, end.Add(time.Minute), QuizStatusInactive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quiz := Quiz{StartDate: start, EndDate: end, IsActive: tt.isActive}
			assert.Equal(t, tt.want, quiz.StatusAt(tt.now))
			assert.Equal(t, tt.want == QuizStatusActive, quiz.AvailableAt(tt.now))
		})
	}
}

func TestQuizCanAttempt(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	quiz := Quiz{
		StartDate:   now.Add(-time.Hour),
		EndDate:     now.Add(time.Hour),
		IsActive:    true,
		MaxAttempts: 2,
	}

	assert.True(t, quiz.CanAttempt(0, now))
	assert.True(t, quiz.CanAttempt(1, now))
	assert.False(t, quiz.CanAttempt(2, now))
	assert.False(t, quiz.CanAttempt(3, now))

	assert.False(t, quiz.CanAttempt(0, now.Add(2*time.Hour)), "outside the window")

	quiz.MaxAttempts = 0
	assert.True(t, quiz.CanAttempt(1000, now), "zero means unlimited")
}

func TestQuizAttemptsRemaining(t *testing.T) {
	quiz := Quiz{MaxAttempts: 3}
	assert.Equal(t, 3, quiz.AttemptsRemaining(0))
	assert.Equal(t, 1, quiz.AttemptsRemaining(2))
	assert.Equal(t, 0, quiz.AttemptsRemaining(3))
	assert.Equal(t, 0, quiz.AttemptsRemaining(5), "never negative")

	quiz.MaxAttempts = 0
	assert.Equal(t, -1, quiz.AttemptsRemaining(10))
}
