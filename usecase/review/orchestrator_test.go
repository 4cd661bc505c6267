package review

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/taskrelay/backend/domain"
	"github.com/taskrelay/backend/repository/memory"
	"github.com/taskrelay/backend/usecase/tasks"
)

type fakeCompleter struct {
	reply string
	err   error
}

func (f *fakeCompleter) Available() bool { return true }

func (f *fakeCompleter) Complete(context.Context, string, string) (string, error) {
	return f.reply, f.err
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *fakeNotifier) NotifyChat(_ context.Context, _, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
}

func (n *fakeNotifier) NotifyUser(_ context.Context, _, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
}

func (n *fakeNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

// submittedTask drives a task to the submitted state and returns the service
// and task ID.
func submittedTask(t *testing.T, title, submissionURL string) (*tasks.Service, string) {
	t.Helper()
	ctx := context.Background()
	svc := tasks.NewService(memory.NewTaskRepository(), memory.NewCandidateRepository(
		domain.Candidate{UserID: "worker", Status: domain.CandidateAvailable},
	), nil)

	task, err := svc.Create(ctx, tasks.CreateInput{Title: title, CreatedBy: "boss"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Publish(ctx, task.ID, nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if _, err := svc.Accept(ctx, task.ID, "worker"); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if _, err := svc.Submit(ctx, task.ID, "worker", submissionURL, ""); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return svc, task.ID
}

func waitForVerdict(t *testing.T, svc *tasks.Service, taskID string, feed func()) *domain.Task {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if feed != nil {
			feed()
		}
		task, err := svc.Get(context.Background(), taskID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if task.Status == domain.StatusCompleted || task.Status == domain.StatusRejected {
			return task
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("review did not finish in time")
	return nil
}

func TestCodeSubmissionPassesOnCISuccess(t *testing.T) {
	svc, taskID := submittedTask(t, "Fix API bug in exporter", "https://github.com/acme/exporter")
	notifier := &fakeNotifier{}
	o := NewOrchestrator(svc, nil, notifier, nil, Config{CIWaitTimeout: 5 * time.Second}, nil)

	go o.Review(context.Background(), taskID, domain.ChatContext{ChatID: "c1"})

	task := waitForVerdict(t, svc, taskID, func() {
		o.HandleCISignal(domain.CISignal{
			Repo:       "acme/exporter",
			Action:     "completed",
			Conclusion: "success",
		})
	})

	if task.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want completed", task.Status)
	}
	if task.FinalScore == nil || *task.FinalScore != domain.CIPassScore {
		t.Errorf("final score = %v, want %d", task.FinalScore, domain.CIPassScore)
	}
}

func TestCodeSubmissionFailsOnCIFailure(t *testing.T) {
	svc, taskID := submittedTask(t, "Fix API bug in exporter", "https://github.com/acme/exporter")
	o := NewOrchestrator(svc, nil, &fakeNotifier{}, nil, Config{CIWaitTimeout: 5 * time.Second}, nil)

	go o.Review(context.Background(), taskID, domain.ChatContext{})

	task := waitForVerdict(t, svc, taskID, func() {
		o.HandleCISignal(domain.CISignal{
			Repo:       "acme/exporter",
			Action:     "completed",
			CheckName:  "build",
			Conclusion: "failure",
		})
	})

	if task.Status != domain.StatusRejected {
		t.Fatalf("status = %s, want rejected", task.Status)
	}
	if task.FinalScore == nil || *task.FinalScore != domain.CIFailScore {
		t.Errorf("final score = %v, want %d", task.FinalScore, domain.CIFailScore)
	}
	if task.AttemptCount != 1 {
		t.Errorf("attempt count = %d, want 1", task.AttemptCount)
	}
}

func TestCIIncompleteSignalsIgnored(t *testing.T) {
	registry := NewWaiterRegistry()
	ch, ok := registry.Await("acme/exporter")
	if !ok {
		t.Fatal("Await failed")
	}

	registry.Resolve(domain.CISignal{Repo: "acme/exporter", Action: "requested"})
	select {
	case sig := <-ch:
		t.Fatalf("incomplete signal delivered: %+v", sig)
	default:
	}

	registry.Resolve(domain.CISignal{Repo: "acme/exporter", Action: "completed", Conclusion: "success"})
	select {
	case sig := <-ch:
		if !sig.Passed() {
			t.Errorf("signal should pass: %+v", sig)
		}
	case <-time.After(time.Second):
		t.Fatal("completed signal not delivered")
	}
}

func TestCITimeoutDegradesToLLM(t *testing.T) {
	svc, taskID := submittedTask(t, "Fix API bug in exporter", "https://github.com/acme/exporter")
	completer := &fakeCompleter{reply: `{"score": 85, "failed_reasons": []}`}
	o := NewOrchestrator(svc, completer, &fakeNotifier{}, nil, Config{CIWaitTimeout: 30 * time.Millisecond}, nil)

	go o.Review(context.Background(), taskID, domain.ChatContext{})

	task := waitForVerdict(t, svc, taskID, nil)
	if task.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want completed via llm degrade", task.Status)
	}
	if task.FinalScore == nil || *task.FinalScore != 85 {
		t.Errorf("final score = %v, want 85", task.FinalScore)
	}
}

func TestNonCodeSubmissionUsesLLM(t *testing.T) {
	svc, taskID := submittedTask(t, "Summarize Q3 survey results", "https://docs.example.com/summary")
	completer := &fakeCompleter{reply: "```json\n{\"score\": 90, \"failed_reasons\": []}\n```"}
	o := NewOrchestrator(svc, completer, &fakeNotifier{}, nil, Config{}, nil)

	o.Review(context.Background(), taskID, domain.ChatContext{})

	task, err := svc.Get(context.Background(), taskID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if task.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want completed", task.Status)
	}
	if task.FinalScore == nil || *task.FinalScore != 90 {
		t.Errorf("final score = %v, want 90", task.FinalScore)
	}
}

func TestUnparseableLLMReplyRoutesToManualReview(t *testing.T) {
	svc, taskID := submittedTask(t, "Summarize Q3 survey results", "https://docs.example.com/summary")
	completer := &fakeCompleter{reply: "Looks pretty good overall, I'd say it passes."}
	notifier := &fakeNotifier{}
	o := NewOrchestrator(svc, completer, notifier, nil, Config{}, nil)

	o.Review(context.Background(), taskID, domain.ChatContext{ChatID: "c1"})

	task, err := svc.Get(context.Background(), taskID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if task.Status != domain.StatusRejected {
		t.Fatalf("status = %s, want rejected", task.Status)
	}
	if task.FinalScore == nil || *task.FinalScore != domain.ManualReviewDefaultScore {
		t.Errorf("final score = %v, want %d", task.FinalScore, domain.ManualReviewDefaultScore)
	}

	found := false
	for _, msg := range notifier.all() {
		if strings.Contains(msg, domain.ManualReviewReason) {
			found = true
		}
	}
	if !found {
		t.Error("manual review reason not surfaced in notifications")
	}
}

func TestLLMErrorRoutesToManualReview(t *testing.T) {
	svc, taskID := submittedTask(t, "Summarize Q3 survey results", "https://docs.example.com/summary")
	completer := &fakeCompleter{err: errors.New("backends exhausted")}
	o := NewOrchestrator(svc, completer, &fakeNotifier{}, nil, Config{}, nil)

	o.Review(context.Background(), taskID, domain.ChatContext{})

	task, _ := svc.Get(context.Background(), taskID)
	if task.FinalScore == nil || *task.FinalScore != domain.ManualReviewDefaultScore {
		t.Errorf("final score = %v, want %d", task.FinalScore, domain.ManualReviewDefaultScore)
	}
}

func TestReviewIsClaimedOnce(t *testing.T) {
	svc, taskID := submittedTask(t, "Summarize Q3 survey results", "https://docs.example.com/summary")
	completer := &fakeCompleter{reply: `{"score": 90, "failed_reasons": []}`}
	o := NewOrchestrator(svc, completer, &fakeNotifier{}, nil, Config{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.Review(context.Background(), taskID, domain.ChatContext{})
		}()
	}
	wg.Wait()

	task, err := svc.Get(context.Background(), taskID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if task.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want completed exactly once", task.Status)
	}
}

func TestClassifier(t *testing.T) {
	c := newClassifier(nil)
	if !c.isCodeTask(&domain.Task{Title: "Fix login bug"}) {
		t.Error("bug fix should classify as code")
	}
	if !c.isCodeTask(&domain.Task{Title: "New feature", SkillTags: []string{"backend"}}) {
		t.Error("backend tag should classify as code")
	}
	if c.isCodeTask(&domain.Task{Title: "Design launch poster"}) {
		t.Error("design task should not classify as code")
	}

	custom := newClassifier([]string{"poster"})
	if !custom.isCodeTask(&domain.Task{Title: "Design launch poster"}) {
		t.Error("custom keyword list not honored")
	}
}

func TestRepoFromSubmission(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://github.com/acme/exporter", "acme/exporter"},
		{"https://github.com/acme/exporter/pull/42", "acme/exporter"},
		{"https://www.github.com/acme/exporter", "acme/exporter"},
		{"https://gitlab.com/grp/proj", "grp/proj"},
		{"https://docs.example.com/report", ""},
		{"https://github.com/onlyowner", ""},
		{"not a url at all", ""},
	}
	for _, tc := range cases {
		if got := repoFromSubmission(tc.url); got != tc.want {
			t.Errorf("repoFromSubmission(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}
