package models

import "time"

type Chapter struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	Name          string    `json:"name" gorm:"size:100;not null"`
	Slug          string    `json:"slug" gorm:"size:120;not null;uniqueIndex:idx_chapters_subject_slug"`
	SubjectID     uint      `json:"subject_id" gorm:"not null;uniqueIndex:idx_chapters_subject_slug"`
	ChapterNumber int       `json:"chapter_number" gorm:"not null"`
	Description   string    `json:"description" gorm:"type:text"`
	IsActive      bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// Relationships
	Subject Subject `json:"subject,omitempty"`
	Quizzes []Quiz  `json:"quizzes,omitempty" gorm:"foreignKey:ChapterID"`
}
