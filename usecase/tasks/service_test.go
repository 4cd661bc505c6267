package tasks

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/taskrelay/backend/domain"
	"github.com/taskrelay/backend/repository/memory"
)

func newTestService(t *testing.T) (*Service, *memory.CandidateRepository) {
	t.Helper()
	candidates := memory.NewCandidateRepository(
		domain.Candidate{UserID: "worker", Status: domain.CandidateAvailable},
	)
	return NewService(memory.NewTaskRepository(), candidates, nil), candidates
}

func createPublished(t *testing.T, svc *Service, candidateIDs []string) *domain.Task {
	t.Helper()
	ctx := context.Background()
	task, err := svc.Create(ctx, CreateInput{
		Title:        "Build exporter",
		Urgency:      domain.UrgencyHigh,
		RewardPoints: 10,
		Deadline:     time.Now().Add(48 * time.Hour),
		CreatedBy:    "boss",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	task, err = svc.Publish(ctx, task.ID, candidateIDs)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	return task
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateInput{Title: "  "}); !domain.IsDomainError(err, domain.ErrCodeValidation) {
		t.Errorf("empty title: got %v, want VALIDATION", err)
	}
	if _, err := svc.Create(ctx, CreateInput{Title: "x", Urgency: "critical"}); !domain.IsDomainError(err, domain.ErrCodeValidation) {
		t.Errorf("bad urgency: got %v, want VALIDATION", err)
	}
	if _, err := svc.Create(ctx, CreateInput{Title: "x", EstimatedHours: -1}); !domain.IsDomainError(err, domain.ErrCodeValidation) {
		t.Errorf("negative hours: got %v, want VALIDATION", err)
	}

	task, err := svc.Create(ctx, CreateInput{Title: "ok"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if task.Status != domain.StatusDraft {
		t.Errorf("new task status = %s, want draft", task.Status)
	}
	if task.Urgency != domain.UrgencyNormal {
		t.Errorf("default urgency = %s, want normal", task.Urgency)
	}
	if !strings.HasPrefix(task.ID, "TASK") {
		t.Errorf("task ID %q missing TASK prefix", task.ID)
	}
}

func TestFullLifecyclePassingReview(t *testing.T) {
	svc, candidates := newTestService(t)
	ctx := context.Background()

	task := createPublished(t, svc, []string{"worker"})

	task, err := svc.Accept(ctx, task.ID, "worker")
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if task.Status != domain.StatusAssigned || task.Assignee != "worker" {
		t.Fatalf("after accept: %s/%s", task.Status, task.Assignee)
	}

	task, err = svc.Submit(ctx, task.ID, "worker", "https://github.com/acme/exporter", "done")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if task.Status != domain.StatusSubmitted {
		t.Fatalf("after submit: %s", task.Status)
	}
	if task.SubmissionURL != "https://github.com/acme/exporter" {
		t.Errorf("submission url not recorded: %q", task.SubmissionURL)
	}

	task, err = svc.BeginReview(ctx, task.ID)
	if err != nil {
		t.Fatalf("BeginReview: %v", err)
	}
	if task.Status != domain.StatusReviewing {
		t.Fatalf("after begin review: %s", task.Status)
	}

	task, err = svc.ApplyReview(ctx, task.ID, domain.NewReviewOutcome(92, nil))
	if err != nil {
		t.Fatalf("ApplyReview: %v", err)
	}
	if task.Status != domain.StatusCompleted {
		t.Fatalf("after passing review: %s", task.Status)
	}
	if task.FinalScore == nil || *task.FinalScore != 92 {
		t.Errorf("final score not recorded: %v", task.FinalScore)
	}

	worker, err := candidates.GetByID(ctx, "worker")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if worker.CompletedTasks != 1 {
		t.Errorf("completion not credited: %d", worker.CompletedTasks)
	}
}

func TestFirstAcceptWins(t *testing.T) {
	svc, _ := newTestService(t)
	task := createPublished(t, svc, nil)

	const contenders = 8
	var wg sync.WaitGroup
	winners := make(chan string, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			userID := string(rune('a' + n))
			if _, err := svc.Accept(context.Background(), task.ID, userID); err == nil {
				winners <- userID
			}
		}(i)
	}
	wg.Wait()
	close(winners)

	var got []string
	for w := range winners {
		got = append(got, w)
	}
	if len(got) != 1 {
		t.Fatalf("expected exactly one winner, got %v", got)
	}

	final, err := svc.Get(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if final.Status != domain.StatusAssigned || final.Assignee != got[0] {
		t.Errorf("final task %s/%s, winner %s", final.Status, final.Assignee, got[0])
	}
}

func TestAcceptRestrictedToCandidates(t *testing.T) {
	svc, _ := newTestService(t)
	task := createPublished(t, svc, []string{"worker"})

	if _, err := svc.Accept(context.Background(), task.ID, "outsider"); !domain.IsDomainError(err, domain.ErrCodeValidation) {
		t.Errorf("outsider accept: got %v, want VALIDATION", err)
	}
	if _, err := svc.Accept(context.Background(), task.ID, "worker"); err != nil {
		t.Errorf("candidate accept failed: %v", err)
	}
}

func TestSubmitValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	task := createPublished(t, svc, nil)
	if _, err := svc.Accept(ctx, task.ID, "worker"); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	if _, err := svc.Submit(ctx, task.ID, "worker", "ftp://example.com/x", ""); !domain.IsDomainError(err, domain.ErrCodeValidation) {
		t.Errorf("non-http url: got %v, want VALIDATION", err)
	}
	if _, err := svc.Submit(ctx, task.ID, "worker", "not a url", ""); !domain.IsDomainError(err, domain.ErrCodeValidation) {
		t.Errorf("garbage url: got %v, want VALIDATION", err)
	}
	if _, err := svc.Submit(ctx, task.ID, "intruder", "https://example.com/x", ""); !domain.IsDomainError(err, domain.ErrCodeUnauthorized) {
		t.Errorf("non-assignee submit: got %v, want UNAUTHORIZED", err)
	}
}

func TestDuplicateSubmitWhileReviewing(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	task := createPublished(t, svc, nil)
	if _, err := svc.Accept(ctx, task.ID, "worker"); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if _, err := svc.Submit(ctx, task.ID, "worker", "https://example.com/x", ""); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := svc.BeginReview(ctx, task.ID); err != nil {
		t.Fatalf("BeginReview: %v", err)
	}

	if _, err := svc.Submit(ctx, task.ID, "worker", "https://example.com/y", ""); !domain.IsDomainError(err, domain.ErrCodeState) {
		t.Errorf("submit during review: got %v, want STATE", err)
	}
}

func TestBeginReviewClaimsOnlyOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	task := createPublished(t, svc, nil)
	if _, err := svc.Accept(ctx, task.ID, "worker"); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if _, err := svc.Submit(ctx, task.ID, "worker", "https://example.com/x", ""); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if _, err := svc.BeginReview(ctx, task.ID); err != nil {
		t.Fatalf("first BeginReview: %v", err)
	}
	if _, err := svc.BeginReview(ctx, task.ID); !domain.IsDomainError(err, domain.ErrCodeState) {
		t.Errorf("second BeginReview: got %v, want STATE", err)
	}
}

func TestResubmissionBudgetExhaustion(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	task := createPublished(t, svc, nil)
	if _, err := svc.Accept(ctx, task.ID, "worker"); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	failOnce := func() *domain.Task {
		t.Helper()
		if _, err := svc.Submit(ctx, task.ID, "worker", "https://example.com/x", ""); err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if _, err := svc.BeginReview(ctx, task.ID); err != nil {
			t.Fatalf("BeginReview: %v", err)
		}
		rejected, err := svc.ApplyReview(ctx, task.ID, domain.NewReviewOutcome(40, []string{"incomplete"}))
		if err != nil {
			t.Fatalf("ApplyReview: %v", err)
		}
		return rejected
	}

	for attempt := 1; attempt <= domain.MaxAttempts; attempt++ {
		rejected := failOnce()
		if rejected.Status != domain.StatusRejected {
			t.Fatalf("attempt %d: status %s", attempt, rejected.Status)
		}
		if rejected.AttemptCount != attempt {
			t.Fatalf("attempt %d: count %d", attempt, rejected.AttemptCount)
		}
	}

	// Budget exhausted: no further resubmission.
	if _, err := svc.Submit(ctx, task.ID, "worker", "https://example.com/x", ""); !domain.IsDomainError(err, domain.ErrCodeState) {
		t.Errorf("submit after budget: got %v, want STATE", err)
	}

	final, err := svc.Get(ctx, task.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !final.IsTerminal() {
		t.Error("task should be terminal after exhausting attempts")
	}
}

// Plain Update carries no version check, so a stale read-modify-write
// overwrites newer changes. This characterizes the last-writer-wins behavior
// rather than fixing it; the conditional UpdateStatus path is not affected.
func TestDeclineLostToConcurrentStaleWrite(t *testing.T) {
	repo := memory.NewTaskRepository()
	candidates := memory.NewCandidateRepository(
		domain.Candidate{UserID: "worker", Status: domain.CandidateAvailable},
	)
	svc := NewService(repo, candidates, nil)
	ctx := context.Background()

	task, err := svc.Create(ctx, CreateInput{Title: "Build exporter", CreatedBy: "boss"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Publish(ctx, task.ID, []string{"worker", "other"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	// An external editor snapshots the record before the decline lands.
	stale, err := repo.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}

	declined, err := svc.Decline(ctx, task.ID, "worker")
	if err != nil {
		t.Fatalf("Decline: %v", err)
	}
	if len(declined.Candidates) != 1 {
		t.Fatalf("candidates after decline = %v", declined.Candidates)
	}

	// The editor writes its stale copy back with an unrelated change.
	stale.Description = "clarified scope"
	if err := repo.Update(ctx, stale); err != nil {
		t.Fatalf("Update: %v", err)
	}

	final, err := repo.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(final.Candidates) != 2 {
		t.Fatalf("candidates = %v; stale write no longer clobbers the decline", final.Candidates)
	}
	if final.Description != "clarified scope" {
		t.Errorf("description = %q", final.Description)
	}
}

func TestRejectedResubmissionLoop(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	task := createPublished(t, svc, nil)
	if _, err := svc.Accept(ctx, task.ID, "worker"); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if _, err := svc.Submit(ctx, task.ID, "worker", "https://example.com/v1", ""); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := svc.BeginReview(ctx, task.ID); err != nil {
		t.Fatalf("BeginReview: %v", err)
	}
	if _, err := svc.ApplyReview(ctx, task.ID, domain.NewReviewOutcome(30, []string{"broken"})); err != nil {
		t.Fatalf("ApplyReview: %v", err)
	}

	// Resubmit after rejection.
	resubmitted, err := svc.Submit(ctx, task.ID, "worker", "https://example.com/v2", "fixed")
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if resubmitted.Status != domain.StatusSubmitted {
		t.Errorf("resubmitted status = %s", resubmitted.Status)
	}
	if resubmitted.SubmissionURL != "https://example.com/v2" {
		t.Errorf("submission url not replaced: %q", resubmitted.SubmissionURL)
	}
}
