package stats

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/taskrelay/backend/domain"
	"github.com/taskrelay/backend/repository/memory"
)

func intPtr(v int) *int { return &v }

func seededRepo(t *testing.T) *memory.TaskRepository {
	t.Helper()
	repo := memory.NewTaskRepository()
	ctx := context.Background()
	seed := []domain.Task{
		{ID: "t1", Title: "a", Status: domain.StatusCompleted, Assignee: "alice", FinalScore: intPtr(90)},
		{ID: "t2", Title: "b", Status: domain.StatusCompleted, Assignee: "alice", FinalScore: intPtr(80)},
		{ID: "t3", Title: "c", Status: domain.StatusCompleted, Assignee: "bob", FinalScore: intPtr(95)},
		{ID: "t4", Title: "d", Status: domain.StatusRejected, Assignee: "bob", FinalScore: intPtr(40)},
		{ID: "t5", Title: "e", Status: domain.StatusPublished},
	}
	for i := range seed {
		if _, err := repo.Create(ctx, &seed[i]); err != nil {
			t.Fatalf("seed %s: %v", seed[i].ID, err)
		}
	}
	return repo
}

func TestComputeAggregates(t *testing.T) {
	svc := NewService(seededRepo(t), filepath.Join(t.TempDir(), "daily_stats.json"), nil)

	snap, err := svc.Compute(context.Background())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if snap.TotalTasks != 5 {
		t.Errorf("total = %d, want 5", snap.TotalTasks)
	}
	if snap.TasksByStatus["completed"] != 3 || snap.TasksByStatus["published"] != 1 {
		t.Errorf("tasks_by_status = %v", snap.TasksByStatus)
	}
	if snap.CompletedTasks != 3 || snap.PendingTasks != 1 || snap.RejectedTasks != 1 {
		t.Errorf("rollups = %d/%d/%d, want 3/1/1", snap.CompletedTasks, snap.PendingTasks, snap.RejectedTasks)
	}
	if snap.InProgressTasks != 0 || snap.SubmittedTasks != 0 {
		t.Errorf("in_progress/submitted = %d/%d, want 0/0", snap.InProgressTasks, snap.SubmittedTasks)
	}
	if snap.LastUpdated.IsZero() {
		t.Error("last_updated not set")
	}
	if snap.CompletionRate != 0.6 {
		t.Errorf("completion rate = %v, want 0.6", snap.CompletionRate)
	}
	if snap.AverageScore != 76.25 {
		t.Errorf("average score = %v, want 76.25", snap.AverageScore)
	}

	if len(snap.TopPerformers) != 2 {
		t.Fatalf("performers = %+v", snap.TopPerformers)
	}
	// More completions outrank a higher average.
	if snap.TopPerformers[0].UserID != "alice" || snap.TopPerformers[0].CompletedTasks != 2 {
		t.Errorf("top performer = %+v, want alice with 2", snap.TopPerformers[0])
	}
	if snap.TopPerformers[0].AverageScore != 85 {
		t.Errorf("alice avg = %v, want 85", snap.TopPerformers[0].AverageScore)
	}
	if snap.TopPerformers[1].UserID != "bob" || snap.TopPerformers[1].AverageScore != 95 {
		t.Errorf("second performer = %+v", snap.TopPerformers[1])
	}
}

func TestComputeEmptyStore(t *testing.T) {
	svc := NewService(memory.NewTaskRepository(), filepath.Join(t.TempDir(), "daily_stats.json"), nil)

	snap, err := svc.Compute(context.Background())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if snap.TotalTasks != 0 || snap.CompletionRate != 0 || snap.AverageScore != 0 {
		t.Errorf("empty snapshot = %+v", snap)
	}
}

func TestExportWritesFile(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "reports", "daily_stats.json")
	svc := NewService(seededRepo(t), outPath, nil)

	snap, err := svc.Compute(context.Background())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if err := svc.Export(snap); err != nil {
		t.Fatalf("Export: %v", err)
	}

	raw, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var decoded Snapshot
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.TotalTasks != snap.TotalTasks || decoded.Date != snap.Date {
		t.Errorf("exported snapshot differs: %+v vs %+v", decoded, snap)
	}

	// External consumers read these exact keys.
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		t.Fatalf("Unmarshal keys: %v", err)
	}
	for _, key := range []string{
		"date", "total_tasks", "completed_tasks", "pending_tasks",
		"in_progress_tasks", "submitted_tasks", "rejected_tasks",
		"average_score", "completion_rate", "tasks_by_status",
		"top_performers", "last_updated",
	} {
		if _, ok := keys[key]; !ok {
			t.Errorf("exported file missing key %q", key)
		}
	}
}

func TestReportRendersAndExports(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "daily_stats.json")
	svc := NewService(seededRepo(t), outPath, nil)

	text, err := svc.Report(context.Background())
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if !strings.Contains(text, "📊 Daily report") {
		t.Errorf("report header missing: %q", text)
	}
	if !strings.Contains(text, "Completion rate: 60%") {
		t.Errorf("completion rate missing: %q", text)
	}
	if !strings.Contains(text, "1. alice — 2 completed, avg 85.0") {
		t.Errorf("leaderboard missing: %q", text)
	}
	if _, err := os.Stat(outPath); err != nil {
		t.Errorf("report did not export: %v", err)
	}
}
