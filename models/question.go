package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

const (
	QuestionTypeMultipleChoice = "multiple_choice"
	QuestionTypeTrueFalse      = "true_false"
)

type Question struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	QuizID       uint   `json:"quiz_id" gorm:"not null;index"`
	QuestionText string `json:"question_text" gorm:"type:text;not null"`
	QuestionType string `json:"question_type" gorm:"size:20;not null;default:'multiple_choice'"`
	Points       int    `json:"points" gorm:"not null;default:1"`
	// Options is a JSON array of option strings. CorrectAnswer holds the
	// option index for multiple choice and "true"/"false" for boolean
	// questions.
	Options       datatypes.JSON `json:"options" gorm:"not null"`
	CorrectAnswer string         `json:"correct_answer" gorm:"size:255;not null"`
	Explanation   string         `json:"explanation" gorm:"type:text"`
	Order         int            `json:"order" gorm:"not null;default:0"`
	IsActive      bool           `json:"is_active" gorm:"not null;default:true"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`

	// Relationships
	Quiz Quiz `json:"quiz,omitempty"`
}

// OptionList decodes the stored options. Malformed JSON decodes to an
// empty list rather than an error.
func (q *Question) OptionList() []string {
	var opts []string
	if err := json.Unmarshal(q.Options, &opts); err != nil {
		return []string{}
	}
	return opts
}

// SetOptions encodes the option list for storage.
func (q *Question) SetOptions(opts []string) error {
	data, err := json.Marshal(opts)
	if err != nil {
		return err
	}
	q.Options = data
	return nil
}
