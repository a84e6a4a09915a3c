package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"quizmaster/mailer"
	"quizmaster/models"
)

// ReportService produces the periodic email reports and the on-demand
// CSV score exports.
type ReportService struct {
	db        *gorm.DB
	mail      mailer.Service
	cache     Cache
	logger    *zap.Logger
	exportDir string
}

func NewReportService(db *gorm.DB, mail mailer.Service, cache Cache, logger *zap.Logger, exportDir string) *ReportService {
	return &ReportService{db: db, mail: mail, cache: cache, logger: logger, exportDir: exportDir}
}

type MonthlyReport struct {
	TotalAttempts int
	AverageScore  float64
	PassedCount   int
	FailedCount   int
	TopSubjects   []SubjectSummary
	Recent        []models.Score
}

type SubjectSummary struct {
	Name     string
	Average  float64
	Attempts int
}

// SendMonthlyReports emails every user active last month a summary of
// their activity, unless they opted out of monthly reports. One user's
// failure does not stop the rest.
func (s *ReportService) SendMonthlyReports(now time.Time) (int, error) {
	firstOfThisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthStart := firstOfThisMonth.AddDate(0, -1, 0)
	monthEnd := firstOfThisMonth.Add(-time.Second)

	var userIDs []uint
	err := s.db.Model(&models.Score{}).
		Where("created_at >= ? AND created_at <= ?", monthStart, monthEnd).
		Distinct("user_id").
		Pluck("user_id", &userIDs).Error
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, userID := range userIDs {
		var user models.User
		if err := s.db.First(&user, userID).Error; err != nil {
			s.logger.Error("monthly report: user lookup failed", zap.Uint("user_id", userID), zap.Error(err))
			continue
		}
		if !user.MonthlyReports {
			continue
		}

		report, err := s.buildMonthlyReport(userID, monthStart, monthEnd)
		if err != nil {
			s.logger.Error("monthly report: build failed", zap.Uint("user_id", userID), zap.Error(err))
			continue
		}

		html, err := renderMonthlyReport(&user, report, monthStart)
		if err != nil {
			s.logger.Error("monthly report: render failed", zap.Uint("user_id", userID), zap.Error(err))
			continue
		}

		msg := &mailer.Message{
			To:       user.Email,
			ToName:   user.FullName,
			Subject:  fmt.Sprintf("Monthly Quiz Report - %s", monthStart.Format("January 2006")),
			HTMLBody: html,
		}
		if err := s.mail.Send(msg); err != nil {
			s.logger.Error("monthly report: send failed", zap.Uint("user_id", userID), zap.Error(err))
			continue
		}
		sent++
	}

	s.logger.Info("monthly reports sent", zap.Int("sent", sent), zap.Int("eligible", len(userIDs)))
	return sent, nil
}

func (s *ReportService) buildMonthlyReport(userID uint, start, end time.Time) (*MonthlyReport, error) {
	var scores []models.Score
	err := s.db.Where("user_id = ? AND created_at >= ? AND created_at <= ?", userID, start, end).
		Preload("Quiz").Preload("Quiz.Chapter").Preload("Quiz.Chapter.Subject").
		Order("created_at DESC").
		Find(&scores).Error
	if err != nil {
		return nil, err
	}

	report := &MonthlyReport{TotalAttempts: len(scores)}
	if len(scores) == 0 {
		return report, nil
	}

	sum := 0.0
	bySubject := map[string][]float64{}
	for _, sc := range scores {
		sum += sc.Percentage
		if sc.Passed {
			report.PassedCount++
		} else {
			report.FailedCount++
		}
		name := sc.Quiz.Chapter.Subject.Name
		bySubject[name] = append(bySubject[name], sc.Percentage)
	}
	report.AverageScore = sum / float64(len(scores))

	for name, percentages := range bySubject {
		subjectSum := 0.0
		for _, p := range percentages {
			subjectSum += p
		}
		report.TopSubjects = append(report.TopSubjects, SubjectSummary{
			Name:     name,
			Average:  subjectSum / float64(len(percentages)),
			Attempts: len(percentages),
		})
	}
	sort.Slice(report.TopSubjects, func(i, j int) bool {
		return report.TopSubjects[i].Average > report.TopSubjects[j].Average
	})
	if len(report.TopSubjects) > 5 {
		report.TopSubjects = report.TopSubjects[:5]
	}

	if len(scores) > 10 {
		scores = scores[:10]
	}
	report.Recent = scores
	return report, nil
}

type ExportStatus struct {
	TaskID    string `json:"task_id"`
	Status    string `json:"status"` // pending, completed, failed
	Filename  string `json:"filename,omitempty"`
	Rows      int    `json:"rows,omitempty"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
}

// StartScoreExport kicks off an asynchronous CSV export of the user's
// scores and returns a task id to poll.
func (s *ReportService) StartScoreExport(userID uint) (string, error) {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		return "", fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}

	taskID := uuid.NewString()
	s.setExportStatus(taskID, &ExportStatus{
		TaskID:    taskID,
		Status:    "pending",
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	})

	go s.runScoreExport(taskID, &user)
	return taskID, nil
}

// GetExportStatus returns the status of a previously started export.
func (s *ReportService) GetExportStatus(taskID string) (*ExportStatus, error) {
	data, ok := s.cache.Get(context.Background(), "export:"+taskID)
	if !ok {
		return nil, fmt.Errorf("%w: export task %s", ErrNotFound, taskID)
	}
	var status ExportStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("%w: export task %s", ErrNotFound, taskID)
	}
	return &status, nil
}

func (s *ReportService) runScoreExport(taskID string, user *models.User) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("score export panicked", zap.String("task_id", taskID), zap.Any("panic", r))
			s.setExportStatus(taskID, &ExportStatus{TaskID: taskID, Status: "failed", Error: "internal error"})
		}
	}()

	filename, rows, err := s.writeScoreCSV(user)
	if err != nil {
		s.logger.Error("score export failed", zap.String("task_id", taskID), zap.Error(err))
		s.setExportStatus(taskID, &ExportStatus{TaskID: taskID, Status: "failed", Error: err.Error()})
		return
	}

	s.setExportStatus(taskID, &ExportStatus{
		TaskID:   taskID,
		Status:   "completed",
		Filename: filename,
		Rows:     rows,
	})

	if !user.EmailNotifications {
		return
	}
	msg := &mailer.Message{
		To:      user.Email,
		ToName:  user.FullName,
		Subject: "Quiz Export Completed",
		TextBody: fmt.Sprintf("Hello %s,\n\nYour quiz score export is ready.\n\nFile: %s\nRows: %d\n",
			user.FullName, filename, rows),
	}
	if err := s.mail.Send(msg); err != nil {
		s.logger.Warn("export notification failed", zap.String("task_id", taskID), zap.Error(err))
	}
}

func (s *ReportService) writeScoreCSV(user *models.User) (string, int, error) {
	var scores []models.Score
	err := s.db.Where("user_id = ?", user.ID).
		Preload("Quiz").Preload("Quiz.Chapter").Preload("Quiz.Chapter.Subject").
		Order("created_at DESC").
		Find(&scores).Error
	if err != nil {
		return "", 0, err
	}

	if err := os.MkdirAll(s.exportDir, 0o755); err != nil {
		return "", 0, err
	}
	filename := fmt.Sprintf("user_%d_scores_%s.csv", user.ID, time.Now().UTC().Format("20060102_150405"))

	file, err := os.Create(filepath.Join(s.exportDir, filename))
	if err != nil {
		return "", 0, err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	header := []string{
		"Quiz ID", "Quiz Title", "Subject", "Chapter", "Date of Quiz",
		"Score", "Percentage", "Passed", "Attempt Number",
		"Time Taken (minutes)", "Completed Date",
	}
	if err := w.Write(header); err != nil {
		return "", 0, err
	}

	for _, sc := range scores {
		passed := "No"
		if sc.Passed {
			passed = "Yes"
		}
		record := []string{
			strconv.FormatUint(uint64(sc.QuizID), 10),
			sc.Quiz.Title,
			sc.Quiz.Chapter.Subject.Name,
			sc.Quiz.Chapter.Name,
			sc.Quiz.StartDate.Format("2006-01-02"),
			fmt.Sprintf("%d/%d", sc.Score, sc.MaxScore),
			fmt.Sprintf("%.2f%%", sc.Percentage),
			passed,
			strconv.Itoa(sc.AttemptNumber),
			strconv.Itoa(sc.TimeTakenSeconds / 60),
			sc.CreatedAt.Format("2006-01-02 15:04"),
		}
		if err := w.Write(record); err != nil {
			return "", 0, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", 0, err
	}

	return filename, len(scores), nil
}

func (s *ReportService) setExportStatus(taskID string, status *ExportStatus) {
	if data, err := json.Marshal(status); err == nil {
		s.cache.Set(context.Background(), "export:"+taskID, data, 24*time.Hour)
	}
}

var monthlyReportTmpl = template.Must(template.New("monthly").Parse(`<!DOCTYPE html>
<html>
<head>
<style>
body { font-family: Arial, sans-serif; margin: 20px; }
.header { background: #3498db; color: white; padding: 20px; text-align: center; }
.stat-box { background: #f8f9fa; padding: 15px; border-radius: 5px; text-align: center; display: inline-block; margin-right: 10px; }
.subject-item { background: #e9ecef; padding: 10px; margin: 5px 0; border-radius: 3px; }
.activity-item { border-bottom: 1px solid #ddd; padding: 10px 0; }
</style>
</head>
<body>
<div class="header"><h1>Monthly Quiz Report</h1><p>{{.Month}}</p></div>
<h2>Hello {{.Name}}!</h2>
<p>Here's your quiz activity summary for {{.Month}}:</p>
<div>
<div class="stat-box"><h3>{{.Report.TotalAttempts}}</h3><p>Total Attempts</p></div>
<div class="stat-box"><h3>{{printf "%.1f" .Report.AverageScore}}%</h3><p>Average Score</p></div>
<div class="stat-box"><h3>{{.Report.PassedCount}}</h3><p>Passed Quizzes</p></div>
</div>
{{if .Report.TopSubjects}}
<h3>Top Performing Subjects</h3>
{{range .Report.TopSubjects}}
<div class="subject-item"><strong>{{.Name}}</strong> - {{printf "%.1f" .Average}}% ({{.Attempts}} attempts)</div>
{{end}}
{{end}}
{{if .Report.Recent}}
<h3>Recent Activity</h3>
{{range .Report.Recent}}
<div class="activity-item"><strong>{{.Quiz.Title}}</strong> - {{printf "%.1f" .Percentage}}% ({{.CreatedAt.Format "2006-01-02"}})</div>
{{end}}
{{end}}
<p>Keep up the great work! Continue practicing to improve your scores.</p>
</body>
</html>`))

func renderMonthlyReport(user *models.User, report *MonthlyReport, month time.Time) (string, error) {
	var buf bytes.Buffer
	err := monthlyReportTmpl.Execute(&buf, map[string]any{
		"Name":   user.FullName,
		"Month":  month.Format("January 2006"),
		"Report": report,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
