package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	Username      string     `json:"username" gorm:"uniqueIndex;size:80;not null"`
	Email         string     `json:"email" gorm:"uniqueIndex;size:120;not null"`
	PasswordHash  string     `json:"-" gorm:"size:255;not null"`
	FullName      string     `json:"full_name" gorm:"size:100;not null"`
	Qualification string     `json:"qualification" gorm:"size:100"`
	IsActive      bool       `json:"is_active" gorm:"not null;default:true"`
	LastLogin     *time.Time `json:"last_login"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	// Notification preferences, all opt-out.
	EmailNotifications bool `json:"email_notifications" gorm:"not null;default:true"`
	ReminderEmails     bool `json:"reminder_emails" gorm:"not null;default:true"`
	MonthlyReports     bool `json:"monthly_reports" gorm:"not null;default:true"`

	// Relationships
	Scores    []Score    `json:"scores,omitempty" gorm:"foreignKey:UserID"`
	Reminders []Reminder `json:"reminders,omitempty" gorm:"foreignKey:UserID"`
}

// SetPassword hashes the plaintext password and stores the hash.
func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword reports whether the plaintext password matches the stored hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}
