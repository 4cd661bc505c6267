package reminders

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/taskrelay/backend/domain"
	"github.com/taskrelay/backend/repository"
)

// Reminder thresholds. A task first pings its assignee past progressThreshold
// of the creation→deadline window, then again inside the final window.
const (
	progressThreshold = 0.8
	finalWindow       = 6 * time.Hour
)

// Notifier delivers reminder messages, fail-soft.
type Notifier interface {
	NotifyUser(ctx context.Context, userID, text string)
}

// Sweeper periodically reminds assignees of approaching deadlines.
type Sweeper struct {
	tasks    repository.TaskRepository
	notifier Notifier
	logger   *zap.Logger
	cron     *cron.Cron
	interval time.Duration

	mu   sync.Mutex
	sent map[string]string // task ID -> last reminder stage
}

func NewSweeper(tasks repository.TaskRepository, notifier Notifier, interval time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Sweeper{
		tasks:    tasks,
		notifier: notifier,
		logger:   logger,
		interval: interval,
		cron:     cron.New(),
		sent:     make(map[string]string),
	}

	schedule := fmt.Sprintf("@every %ds", int(interval.Seconds()))
	_, _ = s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := s.Sweep(ctx); err != nil {
			s.logger.Error("deadline sweep failed", zap.Error(err))
		}
	})
	return s
}

// Start launches the cron scheduler.
func (s *Sweeper) Start() {
	if s == nil || s.cron == nil {
		return
	}
	s.cron.Start()
	s.logger.Info("deadline sweeper started")
}

// Stop gracefully stops the scheduler.
func (s *Sweeper) Stop(ctx context.Context) {
	if s == nil || s.cron == nil {
		return
	}
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	s.logger.Info("deadline sweeper stopped")
}

// Sweep checks every active task against its deadline and sends due reminders.
func (s *Sweeper) Sweep(ctx context.Context) error {
	now := time.Now()
	var due []domain.Task
	for _, status := range []domain.TaskStatus{domain.StatusAssigned, domain.StatusInProgress} {
		list, err := s.tasks.List(ctx, repository.TaskFilter{Status: status})
		if err != nil {
			return err
		}
		due = append(due, list...)
	}

	for _, t := range due {
		s.remind(ctx, t, now)
	}
	return nil
}

func (s *Sweeper) remind(ctx context.Context, t domain.Task, now time.Time) {
	if t.Assignee == "" || t.Deadline.IsZero() {
		return
	}

	stage := reminderStage(t, now)
	if stage == "" {
		return
	}

	s.mu.Lock()
	already := s.sent[t.ID] == stage || (s.sent[t.ID] == "final" && stage == "progress")
	if !already {
		s.sent[t.ID] = stage
	}
	s.mu.Unlock()
	if already || s.notifier == nil {
		return
	}

	remaining := t.Deadline.Sub(now)
	var text string
	switch stage {
	case "final":
		text = fmt.Sprintf("⏰ Final reminder: task %s (%s) is due in %s.",
			t.ID, t.Title, formatRemaining(remaining))
	case "progress":
		text = fmt.Sprintf("⏳ Reminder: task %s (%s) is due %s. How is it going?",
			t.ID, t.Title, t.Deadline.Format("2006-01-02 15:04"))
	}
	s.notifier.NotifyUser(ctx, t.Assignee, text)
	s.logger.Info("deadline reminder sent",
		zap.String("task_id", t.ID),
		zap.String("stage", stage))
}

// reminderStage decides which reminder a task is due for, "" for none.
func reminderStage(t domain.Task, now time.Time) string {
	if now.After(t.Deadline) {
		return ""
	}
	if t.Deadline.Sub(now) <= finalWindow {
		return "final"
	}
	window := t.Deadline.Sub(t.CreatedAt)
	if window <= 0 {
		return ""
	}
	elapsed := now.Sub(t.CreatedAt)
	if float64(elapsed)/float64(window) >= progressThreshold {
		return "progress"
	}
	return ""
}

func formatRemaining(d time.Duration) string {
	if d >= time.Hour {
		return fmt.Sprintf("%.1f hours", d.Hours())
	}
	return fmt.Sprintf("%d minutes", int(d.Minutes()))
}
