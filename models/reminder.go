package models

import "time"

const (
	ReminderTypeInactiveUser = "inactive_user"
	ReminderTypeNewQuiz      = "new_quiz"
	ReminderTypeGeneral      = "general"
)

// Reminder is a persisted notification surfaced to a user by the daily
// job. ReferenceID points at the entity the reminder is about (the quiz
// id for new_quiz reminders, zero otherwise) so deduplication works on
// a structured key instead of message text.
type Reminder struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	UserID       uint      `json:"user_id" gorm:"not null;index"`
	Message      string    `json:"message" gorm:"type:text;not null"`
	ReminderType string    `json:"reminder_type" gorm:"size:50;not null"`
	ReferenceID  uint      `json:"reference_id" gorm:"not null;default:0"`
	IsRead       bool      `json:"is_read" gorm:"not null;default:false"`
	CreatedAt    time.Time `json:"created_at"`

	// Relationships
	User User `json:"user,omitempty"`
}
