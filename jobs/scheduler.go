package jobs

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"quizmaster/services"
)

// Scheduler runs the periodic background jobs: daily activity reminders
// and monthly email reports. All schedules are evaluated in UTC.
type Scheduler struct {
	cron      *cron.Cron
	reminders *services.ReminderService
	reports   *services.ReportService
	logger    *zap.Logger

	mu      sync.Mutex
	running bool
}

func NewScheduler(reminders *services.ReminderService, reports *services.ReportService, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithLocation(time.UTC)),
		reminders: reminders,
		reports:   reports,
		logger:    logger,
	}
}

// Start registers the jobs and starts the cron loop. Job failures are
// logged and never take the process down.
func (s *Scheduler) Start(reminderSpec, reportSpec string) error {
	if _, err := s.cron.AddFunc(reminderSpec, s.runReminders); err != nil {
		return fmt.Errorf("scheduling reminder job: %w", err)
	}
	if _, err := s.cron.AddFunc(reportSpec, s.runReports); err != nil {
		return fmt.Errorf("scheduling report job: %w", err)
	}

	s.cron.Start()
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	s.logger.Info("scheduler started",
		zap.String("reminder_cron", reminderSpec),
		zap.String("report_cron", reportSpec))
	return nil
}

// Stop halts the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// Running reports whether the cron loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) runReminders() {
	start := time.Now().UTC()
	created, err := s.reminders.GenerateDaily(start)
	if err != nil {
		s.logger.Error("daily reminder job failed", zap.Error(err))
		return
	}
	s.logger.Info("daily reminder job finished",
		zap.Int("created", created),
		zap.Duration("took", time.Since(start)))
}

func (s *Scheduler) runReports() {
	start := time.Now().UTC()
	sent, err := s.reports.SendMonthlyReports(start)
	if err != nil {
		s.logger.Error("monthly report job failed", zap.Error(err))
		return
	}
	s.logger.Info("monthly report job finished",
		zap.Int("sent", sent),
		zap.Duration("took", time.Since(start)))
}
