package models

import "time"

// Quiz status values derived from the schedule window and active flag.
const (
	QuizStatusInactive = "inactive"
	QuizStatusUpcoming = "upcoming"
	QuizStatusActive   = "active"
	QuizStatusExpired  = "expired"
)

type Quiz struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	Title           string    `json:"title" gorm:"size:200;not null"`
	Slug            string    `json:"slug" gorm:"size:220;not null;index"`
	Description     string    `json:"description" gorm:"type:text"`
	ChapterID       uint      `json:"chapter_id" gorm:"not null"`
	DurationMinutes int       `json:"duration_minutes" gorm:"not null;default:30"`
	PassingScore    int       `json:"passing_score" gorm:"not null;default:60"`
	// MaxAttempts of 0 means unlimited attempts.
	MaxAttempts int       `json:"max_attempts" gorm:"not null;default:3"`
	StartDate   time.Time `json:"start_date" gorm:"not null"`
	EndDate     time.Time `json:"end_date" gorm:"not null"`
	IsActive    bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Relationships
	Chapter   Chapter    `json:"chapter,omitempty"`
	Questions []Question `json:"questions,omitempty" gorm:"foreignKey:QuizID"`
	Scores    []Score    `json:"scores,omitempty" gorm:"foreignKey:QuizID"`
}

// AvailableAt reports whether the quiz can be taken at the given time.
// Both window ends are inclusive.
func (q *Quiz) AvailableAt(now time.Time) bool {
	return q.IsActive && !now.Before(q.StartDate) && !now.After(q.EndDate)
}

// StatusAt derives the quiz status at the given time. The inactive flag
// wins over the window, and upcoming wins over expired.
func (q *Quiz) StatusAt(now time.Time) string {
	switch {
	case !q.IsActive:
		return QuizStatusInactive
	case now.Before(q.StartDate):
		return QuizStatusUpcoming
	case now.After(q.EndDate):
		return QuizStatusExpired
	default:
		return QuizStatusActive
	}
}

// CanAttempt reports whether a user with the given number of prior
// attempts may start the quiz now. MaxAttempts == 0 means unlimited.
func (q *Quiz) CanAttempt(attemptsTaken int, now time.Time) bool {
	if !q.AvailableAt(now) {
		return false
	}
	return q.MaxAttempts == 0 || attemptsTaken < q.MaxAttempts
}

// AttemptsRemaining returns the number of attempts left, or -1 when the
// quiz has unlimited attempts.
func (q *Quiz) AttemptsRemaining(attemptsTaken int) int {
	if q.MaxAttempts == 0 {
		return -1
	}
	if remaining := q.MaxAttempts - attemptsTaken; remaining > 0 {
		return remaining
	}
	return 0
}
