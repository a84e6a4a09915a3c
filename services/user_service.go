package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"quizmaster/models"
)

const dashboardStatsCacheKey = "admin:dashboard:stats"

// UserService covers administrative user management, the admin
// dashboard aggregates and user notification preferences.
type UserService struct {
	db    *gorm.DB
	cache Cache
}

func NewUserService(db *gorm.DB, cache Cache) *UserService {
	return &UserService{db: db, cache: cache}
}

type UserListItem struct {
	models.User
	AttemptCount int64 `json:"attempt_count"`
}

func (s *UserService) List(search string) ([]UserListItem, error) {
	query := s.db.Model(&models.User{})
	if search != "" {
		like := "%" + search + "%"
		query = query.Where("username LIKE ? OR email LIKE ? OR full_name LIKE ?", like, like, like)
	}

	var users []models.User
	if err := query.Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, err
	}

	items := make([]UserListItem, 0, len(users))
	for _, u := range users {
		var count int64
		s.db.Model(&models.Score{}).Where("user_id = ?", u.ID).Count(&count)
		items = append(items, UserListItem{User: u, AttemptCount: count})
	}
	return items, nil
}

func (s *UserService) Get(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %d", ErrNotFound, id)
		}
		return nil, err
	}
	return &user, nil
}

// History returns a user's full attempt history, newest first.
func (s *UserService) History(id uint) ([]models.Score, error) {
	if _, err := s.Get(id); err != nil {
		return nil, err
	}
	var scores []models.Score
	err := s.db.Where("user_id = ?", id).
		Preload("Quiz").Preload("Quiz.Chapter").Preload("Quiz.Chapter.Subject").
		Order("created_at DESC").
		Find(&scores).Error
	return scores, err
}

// ToggleActive flips the account's active flag and returns the new state.
func (s *UserService) ToggleActive(id uint) (*models.User, error) {
	user, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	user.IsActive = !user.IsActive
	if err := s.db.Model(user).Update("is_active", user.IsActive).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// Delete removes a user together with their scores and reminders.
func (s *UserService) Delete(id uint) error {
	user, err := s.Get(id)
	if err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&models.Score{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Reminder{}).Error; err != nil {
			return err
		}
		return tx.Delete(user).Error
	})
}

type Preferences struct {
	EmailNotifications bool `json:"email_notifications"`
	ReminderEmails     bool `json:"reminder_emails"`
	MonthlyReports     bool `json:"monthly_reports"`
}

type UpdatePreferencesRequest struct {
	EmailNotifications *bool `json:"email_notifications"`
	ReminderEmails     *bool `json:"reminder_emails"`
	MonthlyReports     *bool `json:"monthly_reports"`
}

func (s *UserService) GetPreferences(id uint) (*Preferences, error) {
	user, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return &Preferences{
		EmailNotifications: user.EmailNotifications,
		ReminderEmails:     user.ReminderEmails,
		MonthlyReports:     user.MonthlyReports,
	}, nil
}

// UpdatePreferences changes only the preferences present in the request.
func (s *UserService) UpdatePreferences(id uint, req *UpdatePreferencesRequest) (*Preferences, error) {
	user, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if req.EmailNotifications != nil {
		updates["email_notifications"] = *req.EmailNotifications
		user.EmailNotifications = *req.EmailNotifications
	}
	if req.ReminderEmails != nil {
		updates["reminder_emails"] = *req.ReminderEmails
		user.ReminderEmails = *req.ReminderEmails
	}
	if req.MonthlyReports != nil {
		updates["monthly_reports"] = *req.MonthlyReports
		user.MonthlyReports = *req.MonthlyReports
	}
	if len(updates) > 0 {
		if err := s.db.Model(user).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	return &Preferences{
		EmailNotifications: user.EmailNotifications,
		ReminderEmails:     user.ReminderEmails,
		MonthlyReports:     user.MonthlyReports,
	}, nil
}

type ChartSeries struct {
	Labels []string `json:"labels"`
	Data   []int    `json:"data"`
}

type DashboardStats struct {
	TotalUsers       int64       `json:"total_users"`
	ActiveUsers      int64       `json:"active_users"`
	TotalSubjects    int64       `json:"total_subjects"`
	TotalQuizzes     int64       `json:"total_quizzes"`
	ActiveQuizzes    int64       `json:"active_quizzes"`
	TotalQuestions   int64       `json:"total_questions"`
	QuizDistribution ChartSeries `json:"quiz_distribution"`
	ActivityTrend    ChartSeries `json:"activity_trend"`
}

// AdminDashboardStats aggregates the counters and chart series for the
// admin dashboard, read-through cached for five minutes.
func (s *UserService) AdminDashboardStats(ctx context.Context, now time.Time) (*DashboardStats, error) {
	if data, ok := s.cache.Get(ctx, dashboardStatsCacheKey); ok {
		var cached DashboardStats
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
	}

	stats := &DashboardStats{}
	counts := []struct {
		dest  *int64
		query *gorm.DB
	}{
		{&stats.TotalUsers, s.db.Model(&models.User{})},
		{&stats.ActiveUsers, s.db.Model(&models.User{}).Where("is_active = ?", true)},
		{&stats.TotalSubjects, s.db.Model(&models.Subject{}).Where("is_active = ?", true)},
		{&stats.TotalQuizzes, s.db.Model(&models.Quiz{}).Where("is_active = ?", true)},
		{&stats.ActiveQuizzes, s.db.Model(&models.Quiz{}).
			Where("is_active = ? AND start_date <= ? AND end_date >= ?", true, now, now)},
		{&stats.TotalQuestions, s.db.Model(&models.Question{}).Where("is_active = ?", true)},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dest).Error; err != nil {
			return nil, err
		}
	}

	var distribution []struct {
		Name  string
		Total int
	}
	err := s.db.Model(&models.Quiz{}).
		Select("subjects.name AS name, COUNT(quizzes.id) AS total").
		Joins("JOIN chapters ON chapters.id = quizzes.chapter_id").
		Joins("JOIN subjects ON subjects.id = chapters.subject_id").
		Where("quizzes.is_active = ? AND subjects.is_active = ?", true, true).
		Group("subjects.id, subjects.name").
		Order("subjects.name").
		Scan(&distribution).Error
	if err != nil {
		return nil, err
	}
	for _, d := range distribution {
		stats.QuizDistribution.Labels = append(stats.QuizDistribution.Labels, d.Name)
		stats.QuizDistribution.Data = append(stats.QuizDistribution.Data, d.Total)
	}

	// Attempts per day over the last seven days, oldest first.
	for i := 6; i >= 0; i-- {
		day := now.UTC().AddDate(0, 0, -i)
		dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
		dayEnd := dayStart.Add(24 * time.Hour)

		var attempts int64
		err := s.db.Model(&models.Score{}).
			Where("completed_at >= ? AND completed_at < ?", dayStart, dayEnd).
			Count(&attempts).Error
		if err != nil {
			return nil, err
		}
		stats.ActivityTrend.Labels = append(stats.ActivityTrend.Labels, dayStart.Format("Mon"))
		stats.ActivityTrend.Data = append(stats.ActivityTrend.Data, int(attempts))
	}

	if data, err := json.Marshal(stats); err == nil {
		s.cache.Set(ctx, dashboardStatsCacheKey, data, 5*time.Minute)
	}
	return stats, nil
}

// ExportCSV renders every user account as CSV rows, header first.
func (s *UserService) ExportCSV() ([][]string, error) {
	var users []models.User
	if err := s.db.Order("id").Find(&users).Error; err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(users)+1)
	rows = append(rows, []string{
		"ID", "Username", "Email", "Full Name", "Qualification",
		"Status", "Created At", "Last Login",
	})
	for _, u := range users {
		status := "Inactive"
		if u.IsActive {
			status = "Active"
		}
		lastLogin := ""
		if u.LastLogin != nil {
			lastLogin = u.LastLogin.Format("2006-01-02 15:04:05")
		}
		rows = append(rows, []string{
			strconv.FormatUint(uint64(u.ID), 10),
			u.Username,
			u.Email,
			u.FullName,
			u.Qualification,
			status,
			u.CreatedAt.Format("2006-01-02 15:04:05"),
			lastLogin,
		})
	}
	return rows, nil
}
