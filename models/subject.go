package models

import (
	"regexp"
	"strings"
	"time"
)

type Subject struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"size:100;not null"`
	Slug        string    `json:"slug" gorm:"uniqueIndex;size:120;not null"`
	Code        string    `json:"code" gorm:"uniqueIndex;size:20;not null"`
	Description string    `json:"description" gorm:"type:text"`
	Color       string    `json:"color" gorm:"size:7;default:'#3498db'"`
	Icon        string    `json:"icon" gorm:"size:50;default:'book'"`
	IsActive    bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Relationships
	Chapters []Chapter `json:"chapters,omitempty" gorm:"foreignKey:SubjectID"`
}

var slugPattern = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// Slugify converts a name into a URL-safe slug.
func Slugify(name string) string {
	return strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(name), "-"), "-")
}
