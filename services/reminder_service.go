package services

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"quizmaster/models"
)

// ReminderNotifier pushes a freshly created reminder to the user, e.g.
// over a websocket. Delivery is best-effort.
type ReminderNotifier interface {
	NotifyReminder(userID uint, reminder *models.Reminder)
}

type ReminderService struct {
	db       *gorm.DB
	logger   *zap.Logger
	notifier ReminderNotifier
}

func NewReminderService(db *gorm.DB, logger *zap.Logger) *ReminderService {
	return &ReminderService{db: db, logger: logger}
}

// SetNotifier wires the push channel; called once the hub exists.
func (s *ReminderService) SetNotifier(n ReminderNotifier) {
	s.notifier = n
}

func (s *ReminderService) ListForUser(userID uint, unreadOnly bool) ([]models.Reminder, error) {
	query := s.db.Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}
	var reminders []models.Reminder
	err := query.Order("created_at DESC").Find(&reminders).Error
	return reminders, err
}

func (s *ReminderService) UnreadCount(userID uint) (int64, error) {
	var count int64
	err := s.db.Model(&models.Reminder{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// MarkRead flips the read flag; only the owning user may do so.
func (s *ReminderService) MarkRead(userID, reminderID uint) error {
	reminder, err := s.getOwned(userID, reminderID)
	if err != nil {
		return err
	}
	return s.db.Model(reminder).Update("is_read", true).Error
}

func (s *ReminderService) MarkAllRead(userID uint) (int64, error) {
	result := s.db.Model(&models.Reminder{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}

func (s *ReminderService) Delete(userID, reminderID uint) error {
	reminder, err := s.getOwned(userID, reminderID)
	if err != nil {
		return err
	}
	return s.db.Delete(reminder).Error
}

func (s *ReminderService) getOwned(userID, reminderID uint) (*models.Reminder, error) {
	var reminder models.Reminder
	if err := s.db.First(&reminder, reminderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: reminder %d", ErrNotFound, reminderID)
		}
		return nil, err
	}
	if reminder.UserID != userID {
		return nil, fmt.Errorf("%w: reminder belongs to another user", ErrForbidden)
	}
	return &reminder, nil
}

// GenerateDaily is the body of the daily reminder job. For each active
// user it emits at most one inactive-user reminder (no attempt in the
// last 24 hours and at least one attemptable quiz) and one new-quiz
// reminder per quiz created in the last 24 hours that the user can
// still attempt. Deduplication uses the (user, type, reference,
// calendar day) key, so re-running the job on the same day is a no-op.
// Users who opted out of reminders are skipped. A failure for one user
// never aborts the rest.
func (s *ReminderService) GenerateDaily(now time.Time) (int, error) {
	yesterday := now.Add(-24 * time.Hour)

	var users []models.User
	if err := s.db.Where("is_active = ?", true).Find(&users).Error; err != nil {
		return 0, err
	}

	var quizzes []models.Quiz
	if err := s.db.Where("is_active = ?", true).
		Preload("Chapter").Preload("Chapter.Subject").
		Find(&quizzes).Error; err != nil {
		return 0, err
	}

	created := 0
	for i := range users {
		user := &users[i]
		if !user.ReminderEmails {
			continue
		}
		n, err := s.generateForUser(user, quizzes, now, yesterday)
		if err != nil {
			s.logger.Error("reminder generation failed for user",
				zap.Uint("user_id", user.ID),
				zap.Error(err),
			)
			continue
		}
		created += n
	}

	s.logger.Info("daily reminders generated", zap.Int("created", created))
	return created, nil
}

func (s *ReminderService) generateForUser(user *models.User, quizzes []models.Quiz, now, yesterday time.Time) (int, error) {
	var recentActivity int64
	err := s.db.Model(&models.Score{}).
		Where("user_id = ? AND created_at >= ?", user.ID, yesterday).
		Count(&recentActivity).Error
	if err != nil {
		return 0, err
	}

	var attemptable []*models.Quiz
	for i := range quizzes {
		quiz := &quizzes[i]
		if !quiz.AvailableAt(now) {
			continue
		}
		var attempts int64
		err := s.db.Model(&models.Score{}).
			Where("user_id = ? AND quiz_id = ?", user.ID, quiz.ID).
			Count(&attempts).Error
		if err != nil {
			return 0, err
		}
		if quiz.CanAttempt(int(attempts), now) {
			attemptable = append(attemptable, quiz)
		}
	}

	created := 0

	if recentActivity == 0 && len(attemptable) > 0 {
		msg := fmt.Sprintf("Hey %s! You haven't attempted any quizzes today. You have %d quiz(s) available to attempt.",
			user.FullName, len(attemptable))
		n, err := s.createDeduplicated(user.ID, models.ReminderTypeInactiveUser, 0, msg, now)
		if err != nil {
			return created, err
		}
		created += n
	}

	for _, quiz := range attemptable {
		if quiz.CreatedAt.Before(yesterday) {
			continue
		}
		msg := fmt.Sprintf("New quiz available: '%s' in %s. Don't miss out!",
			quiz.Title, quiz.Chapter.Subject.Name)
		n, err := s.createDeduplicated(user.ID, models.ReminderTypeNewQuiz, quiz.ID, msg, now)
		if err != nil {
			return created, err
		}
		created += n
	}

	return created, nil
}

// createDeduplicated inserts a reminder unless one with the same
// (user, type, reference) key already exists today.
func (s *ReminderService) createDeduplicated(userID uint, reminderType string, referenceID uint, message string, now time.Time) (int, error) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var count int64
	err := s.db.Model(&models.Reminder{}).
		Where("user_id = ? AND reminder_type = ? AND reference_id = ? AND created_at >= ?",
			userID, reminderType, referenceID, midnight).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	reminder := models.Reminder{
		UserID:       userID,
		Message:      message,
		ReminderType: reminderType,
		ReferenceID:  referenceID,
	}
	if err := s.db.Create(&reminder).Error; err != nil {
		return 0, err
	}

	if s.notifier != nil {
		s.notifier.NotifyReminder(userID, &reminder)
	}
	return 1, nil
}
