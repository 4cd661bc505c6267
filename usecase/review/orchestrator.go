package review

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/taskrelay/backend/domain"
	"github.com/taskrelay/backend/internal/infrastructure/llm"
)

// TaskLifecycle is the slice of the task service the orchestrator drives.
type TaskLifecycle interface {
	BeginReview(ctx context.Context, taskID string) (*domain.Task, error)
	ApplyReview(ctx context.Context, taskID string, outcome domain.ReviewOutcome) (*domain.Task, error)
}

// Completer is the slice of the LLM router used for non-code evaluation.
type Completer interface {
	Available() bool
	Complete(ctx context.Context, prompt, systemPrompt string) (string, error)
}

// Notifier delivers review verdicts. Implementations are fail-soft.
type Notifier interface {
	NotifyChat(ctx context.Context, chatID, text string)
	NotifyUser(ctx context.Context, userID, text string)
}

// Config tunes the orchestrator.
type Config struct {
	// CIWaitTimeout bounds how long a code review waits for a CI signal
	// before degrading to LLM evaluation.
	CIWaitTimeout time.Duration
	// CodeKeywords overrides the default code-task keyword list.
	CodeKeywords []string
}

// Orchestrator runs automated submission reviews. Each review claims the task
// (submitted→reviewing), evaluates via CI signal or LLM, commits the verdict,
// and notifies. It is designed to run detached from the dispatch loop.
type Orchestrator struct {
	lifecycle TaskLifecycle
	llm       Completer
	notifier  Notifier
	waiters   *WaiterRegistry
	classify  classifier
	ciWait    time.Duration
	logger    *zap.Logger
}

func NewOrchestrator(lifecycle TaskLifecycle, completer Completer, notifier Notifier, waiters *WaiterRegistry, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.CIWaitTimeout <= 0 {
		cfg.CIWaitTimeout = 10 * time.Minute
	}
	if waiters == nil {
		waiters = NewWaiterRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		lifecycle: lifecycle,
		llm:       completer,
		notifier:  notifier,
		waiters:   waiters,
		classify:  newClassifier(cfg.CodeKeywords),
		ciWait:    cfg.CIWaitTimeout,
		logger:    logger,
	}
}

// HandleCISignal feeds a webhook CI event to whichever review is waiting on it.
func (o *Orchestrator) HandleCISignal(sig domain.CISignal) {
	o.waiters.Resolve(sig)
}

// Review runs one full review cycle for the task. The submitted→reviewing
// claim makes concurrent calls for the same task a no-op for the losers.
func (o *Orchestrator) Review(ctx context.Context, taskID string, chat domain.ChatContext) {
	task, err := o.lifecycle.BeginReview(ctx, taskID)
	if err != nil {
		o.logger.Info("review not started", zap.String("task_id", taskID), zap.Error(err))
		return
	}

	outcome := o.evaluate(ctx, task)

	updated, err := o.lifecycle.ApplyReview(ctx, taskID, outcome)
	if err != nil {
		o.logger.Error("failed to commit review verdict",
			zap.String("task_id", taskID),
			zap.Int("score", outcome.Score),
			zap.Error(err))
		return
	}

	o.notify(ctx, updated, outcome, chat)
}

func (o *Orchestrator) evaluate(ctx context.Context, task *domain.Task) domain.ReviewOutcome {
	if o.classify.isCodeTask(task) {
		if repo := repoFromSubmission(task.SubmissionURL); repo != "" {
			if outcome, ok := o.awaitCI(ctx, task.ID, repo); ok {
				return outcome
			}
			// CI never reported; fall through to LLM evaluation.
		}
	}
	return o.evaluateLLM(ctx, task)
}

// awaitCI blocks until the repo's CI completes or the wait times out.
func (o *Orchestrator) awaitCI(ctx context.Context, taskID, repo string) (domain.ReviewOutcome, bool) {
	ch, ok := o.waiters.Await(repo)
	if !ok {
		o.logger.Warn("ci waiter slot busy, using llm evaluation",
			zap.String("task_id", taskID), zap.String("repo", repo))
		return domain.ReviewOutcome{}, false
	}

	timer := time.NewTimer(o.ciWait)
	defer timer.Stop()

	select {
	case sig := <-ch:
		if sig.Passed() {
			return domain.NewReviewOutcome(domain.CIPassScore, nil), true
		}
		return domain.NewReviewOutcome(domain.CIFailScore,
			[]string{fmt.Sprintf("CI check %q concluded %s", sig.CheckName, sig.Conclusion)}), true
	case <-timer.C:
		o.waiters.Cancel(repo)
		o.logger.Warn("ci wait timed out, using llm evaluation",
			zap.String("task_id", taskID), zap.String("repo", repo))
		return domain.ReviewOutcome{}, false
	case <-ctx.Done():
		o.waiters.Cancel(repo)
		return domain.ReviewOutcome{}, false
	}
}

func (o *Orchestrator) evaluateLLM(ctx context.Context, task *domain.Task) domain.ReviewOutcome {
	if o.llm == nil || !o.llm.Available() {
		return manualFallback()
	}

	reply, err := o.llm.Complete(ctx, buildReviewPrompt(task, task.SubmissionURL), reviewSystemPrompt)
	if err != nil {
		o.logger.Warn("llm review failed", zap.String("task_id", task.ID), zap.Error(err))
		return manualFallback()
	}

	doc := llm.ExtractJSON(reply)
	if doc == "" {
		return manualFallback()
	}
	var parsed struct {
		Score         int      `json:"score"`
		FailedReasons []string `json:"failed_reasons"`
	}
	if err := json.Unmarshal([]byte(doc), &parsed); err != nil {
		return manualFallback()
	}
	return domain.NewReviewOutcome(parsed.Score, parsed.FailedReasons)
}

// manualFallback is the borderline-fail verdict used when automated evaluation
// produced nothing usable. It routes to human escalation rather than a silent
// accept or reject.
func manualFallback() domain.ReviewOutcome {
	return domain.NewReviewOutcome(domain.ManualReviewDefaultScore, []string{domain.ManualReviewReason})
}

func (o *Orchestrator) notify(ctx context.Context, task *domain.Task, outcome domain.ReviewOutcome, chat domain.ChatContext) {
	if o.notifier == nil {
		return
	}

	if outcome.Passed {
		text := fmt.Sprintf("✅ Task %s passed review with score %d. +%d points to %s.",
			task.ID, outcome.Score, task.RewardPoints, task.Assignee)
		if chat.ChatID != "" {
			o.notifier.NotifyChat(ctx, chat.ChatID, text)
		}
		o.notifier.NotifyUser(ctx, task.Assignee,
			fmt.Sprintf("Your submission for %s passed with score %d. Well done!", task.ID, outcome.Score))
		return
	}

	attemptsLeft := domain.MaxAttempts - task.AttemptCount
	var b strings.Builder
	fmt.Fprintf(&b, "❌ Task %s failed review with score %d.", task.ID, outcome.Score)
	for _, reason := range outcome.FailedReasons {
		fmt.Fprintf(&b, "\n- %s", reason)
	}
	if attemptsLeft > 0 {
		fmt.Fprintf(&b, "\n%d resubmission attempt(s) left.", attemptsLeft)
	} else {
		b.WriteString("\nNo attempts left; the task needs manual intervention.")
	}

	if chat.ChatID != "" {
		o.notifier.NotifyChat(ctx, chat.ChatID, b.String())
	}
	o.notifier.NotifyUser(ctx, task.Assignee, b.String())
}
