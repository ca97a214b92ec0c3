package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/example/quizbot/internal/database"
	"github.com/go-co-op/gocron"
)

// Default notification window
const (
	DefaultNotificationStartHour = 8
	DefaultNotificationEndHour   = 22
)

// Notifier sends a "continue your quiz" reminder
type Notifier interface {
	RemindAttempt(ctx context.Context, attempt database.StaleAttempt) error
}

// AttemptSource finds unfinished attempts and remembers which were reminded
type AttemptSource interface {
	GetStale(ctx context.Context, before time.Time) ([]database.StaleAttempt, error)
	MarkReminded(ctx context.Context, attemptID int64, at time.Time) error
}

// Config controls when reminders go out
type Config struct {
	// Interval between checks
	Interval time.Duration
	// RemindAfter is how long an attempt has to be left unfinished
	RemindAfter time.Duration
	// Reminders are only sent between StartHour and EndHour inclusive
	StartHour int
	EndHour   int
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler *gocron.Scheduler
	attempts  AttemptSource
	notifier  Notifier
	config    Config
	now       func() time.Time
}

// New creates a new scheduler instance
func New(attempts AttemptSource, notifier Notifier, config Config) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		attempts:  attempts,
		notifier:  notifier,
		config:    config,
		now:       time.Now,
	}
}

// Start begins running all scheduled tasks
func (s *Scheduler) Start() error {
	s.scheduler.SingletonModeAll()
	if _, err := s.scheduler.Every(s.config.Interval).Do(s.checkAndSendReminders); err != nil {
		return err
	}

	// Start the scheduler in a non-blocking manner
	s.scheduler.StartAsync()
	log.Printf("Reminder scheduler started (every %s, after %s)", s.config.Interval, s.config.RemindAfter)
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) checkAndSendReminders() {
	s.sendReminders(context.Background())
}

// sendReminders notifies the owners of stale attempts and returns how many were reminded
func (s *Scheduler) sendReminders(ctx context.Context) int {
	now := s.now()
	if !s.inWindow(now.Hour()) {
		log.Printf("Current hour %d is outside notification hours (%d-%d), skipping reminders",
			now.Hour(), s.config.StartHour, s.config.EndHour)
		return 0
	}

	attempts, err := s.attempts.GetStale(ctx, now.UTC().Add(-s.config.RemindAfter))
	if err != nil {
		log.Printf("Error getting unfinished attempts: %v", err)
		return 0
	}

	sent := 0
	for _, attempt := range attempts {
		if err := s.notifier.RemindAttempt(ctx, attempt); err != nil {
			log.Printf("Error sending reminder for attempt %d: %v", attempt.ID, err)
			continue
		}
		if err := s.attempts.MarkReminded(ctx, attempt.ID, now.UTC()); err != nil {
			log.Printf("Error marking attempt %d as reminded: %v", attempt.ID, err)
			continue
		}
		sent++
	}
	if sent > 0 {
		log.Printf("Sent %d quiz reminders", sent)
	}
	return sent
}

// inWindow handles windows that wrap past midnight, e.g. 20-2
func (s *Scheduler) inWindow(hour int) bool {
	start, end := s.config.StartHour, s.config.EndHour
	if start <= end {
		return hour >= start && hour <= end
	}
	return hour >= start || hour <= end
}
