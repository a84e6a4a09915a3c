package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Score is one scored quiz attempt. Rows are append-only; the unique
// index on (user_id, quiz_id, attempt_number) guarantees two concurrent
// submissions cannot claim the same attempt slot.
type Score struct {
	ID     uint `json:"id" gorm:"primaryKey"`
	UserID uint `json:"user_id" gorm:"not null;uniqueIndex:idx_scores_user_quiz_attempt"`
	QuizID uint `json:"quiz_id" gorm:"not null;uniqueIndex:idx_scores_user_quiz_attempt"`

	Score      int     `json:"score" gorm:"not null"`
	MaxScore   int     `json:"max_score" gorm:"not null"`
	Percentage float64 `json:"percentage" gorm:"not null"`
	Passed     bool    `json:"passed" gorm:"not null;default:false"`

	StartedAt        time.Time `json:"started_at" gorm:"not null"`
	CompletedAt      time.Time `json:"completed_at" gorm:"not null"`
	TimeTakenSeconds int       `json:"time_taken_seconds"`

	// Answers is a JSON object mapping question id (as string) to the
	// submitted answer.
	Answers datatypes.JSON `json:"-"`

	AttemptNumber int       `json:"attempt_number" gorm:"not null;default:1;uniqueIndex:idx_scores_user_quiz_attempt"`
	CreatedAt     time.Time `json:"created_at"`

	// Relationships
	User User `json:"user,omitempty"`
	Quiz Quiz `json:"quiz,omitempty"`
}

// AnswerMap decodes the stored answer map. Malformed JSON decodes to an
// empty map rather than an error.
func (s *Score) AnswerMap() map[string]any {
	answers := map[string]any{}
	if err := json.Unmarshal(s.Answers, &answers); err != nil {
		return map[string]any{}
	}
	return answers
}

// SetAnswers encodes the submitted answer map for storage.
func (s *Score) SetAnswers(answers map[string]any) error {
	data, err := json.Marshal(answers)
	if err != nil {
		return err
	}
	s.Answers = data
	return nil
}

// CalculateTimeTaken derives the elapsed seconds from the attempt window.
func (s *Score) CalculateTimeTaken() {
	s.TimeTakenSeconds = int(s.CompletedAt.Sub(s.StartedAt).Seconds())
}
