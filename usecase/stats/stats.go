package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/taskrelay/backend/domain"
	"github.com/taskrelay/backend/repository"
)

// Snapshot is the daily aggregate written to daily_stats.json. The file is a
// one-way export for external dashboards; nothing reads it back, so the field
// names are a contract with those consumers. The flat counters roll statuses
// up by work stage: pending covers draft and published, in_progress covers
// assigned and in_progress, submitted covers submitted and reviewing.
type Snapshot struct {
	Date            string         `json:"date"`
	TotalTasks      int            `json:"total_tasks"`
	CompletedTasks  int            `json:"completed_tasks"`
	PendingTasks    int            `json:"pending_tasks"`
	InProgressTasks int            `json:"in_progress_tasks"`
	SubmittedTasks  int            `json:"submitted_tasks"`
	RejectedTasks   int            `json:"rejected_tasks"`
	AverageScore    float64        `json:"average_score"`
	CompletionRate  float64        `json:"completion_rate"`
	TasksByStatus   map[string]int `json:"tasks_by_status"`
	TopPerformers   []Performer    `json:"top_performers"`
	LastUpdated     time.Time      `json:"last_updated"`
}

// Performer is one line of the completion leaderboard.
type Performer struct {
	UserID         string  `json:"user_id"`
	CompletedTasks int     `json:"completed_tasks"`
	TotalScore     int     `json:"total_score"`
	AverageScore   float64 `json:"average_score"`
}

// Service computes daily statistics from the task store.
type Service struct {
	tasks   repository.TaskRepository
	outPath string
	logger  *zap.Logger
}

func NewService(tasks repository.TaskRepository, outPath string, logger *zap.Logger) *Service {
	if outPath == "" {
		outPath = "daily_stats.json"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{tasks: tasks, outPath: outPath, logger: logger}
}

// Compute builds today's snapshot from the full task list.
func (s *Service) Compute(ctx context.Context) (*Snapshot, error) {
	all, err := s.tasks.List(ctx, repository.TaskFilter{})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	snap := &Snapshot{
		Date:          now.Format("2006-01-02"),
		TotalTasks:    len(all),
		TasksByStatus: make(map[string]int),
		LastUpdated:   now,
	}

	scoreSum, scored := 0, 0
	performers := make(map[string]*Performer)
	for _, t := range all {
		snap.TasksByStatus[string(t.Status)]++
		if t.FinalScore != nil {
			scoreSum += *t.FinalScore
			scored++
		}
		if t.Status == domain.StatusCompleted && t.Assignee != "" {
			p := performers[t.Assignee]
			if p == nil {
				p = &Performer{UserID: t.Assignee}
				performers[t.Assignee] = p
			}
			p.CompletedTasks++
			if t.FinalScore != nil {
				p.TotalScore += *t.FinalScore
			}
		}
	}

	byStatus := func(statuses ...domain.TaskStatus) int {
		sum := 0
		for _, st := range statuses {
			sum += snap.TasksByStatus[string(st)]
		}
		return sum
	}
	snap.CompletedTasks = byStatus(domain.StatusCompleted)
	snap.PendingTasks = byStatus(domain.StatusDraft, domain.StatusPublished)
	snap.InProgressTasks = byStatus(domain.StatusAssigned, domain.StatusInProgress)
	snap.SubmittedTasks = byStatus(domain.StatusSubmitted, domain.StatusReviewing)
	snap.RejectedTasks = byStatus(domain.StatusRejected)

	if len(all) > 0 {
		snap.CompletionRate = float64(snap.CompletedTasks) / float64(len(all))
	}
	if scored > 0 {
		snap.AverageScore = float64(scoreSum) / float64(scored)
	}

	for _, p := range performers {
		if p.CompletedTasks > 0 {
			p.AverageScore = float64(p.TotalScore) / float64(p.CompletedTasks)
		}
		snap.TopPerformers = append(snap.TopPerformers, *p)
	}
	sort.Slice(snap.TopPerformers, func(i, j int) bool {
		a, b := snap.TopPerformers[i], snap.TopPerformers[j]
		if a.CompletedTasks != b.CompletedTasks {
			return a.CompletedTasks > b.CompletedTasks
		}
		if a.AverageScore != b.AverageScore {
			return a.AverageScore > b.AverageScore
		}
		return a.UserID < b.UserID
	})
	if len(snap.TopPerformers) > 5 {
		snap.TopPerformers = snap.TopPerformers[:5]
	}

	return snap, nil
}

// Export writes the snapshot to the configured path.
func (s *Service) Export(snap *Snapshot) error {
	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.outPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(s.outPath, payload, 0o644)
}

// Report computes today's snapshot, exports it, and renders the chat summary.
// Export failure is logged but does not block the report text.
func (s *Service) Report(ctx context.Context) (string, error) {
	snap, err := s.Compute(ctx)
	if err != nil {
		return "", err
	}
	if err := s.Export(snap); err != nil {
		s.logger.Warn("daily stats export failed", zap.Error(err))
	}
	return Format(snap), nil
}

// Format renders a snapshot as a chat message.
func Format(snap *Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Daily report %s\n", snap.Date)
	fmt.Fprintf(&b, "Total tasks: %d\n", snap.TotalTasks)

	statuses := make([]string, 0, len(snap.TasksByStatus))
	for st := range snap.TasksByStatus {
		statuses = append(statuses, st)
	}
	sort.Strings(statuses)
	for _, st := range statuses {
		fmt.Fprintf(&b, "- %s: %d\n", st, snap.TasksByStatus[st])
	}

	fmt.Fprintf(&b, "Completion rate: %.0f%%\n", snap.CompletionRate*100)
	fmt.Fprintf(&b, "Average score: %.1f\n", snap.AverageScore)

	if len(snap.TopPerformers) > 0 {
		b.WriteString("Top performers:\n")
		for i, p := range snap.TopPerformers {
			fmt.Fprintf(&b, "%d. %s — %d completed, avg %.1f\n", i+1, p.UserID, p.CompletedTasks, p.AverageScore)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
