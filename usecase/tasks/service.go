package tasks

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskrelay/backend/domain"
	"github.com/taskrelay/backend/repository"
)

// Service owns the task lifecycle. Every status move goes through the state
// machine in domain, and every move is committed with a conditional update so
// a stale writer loses instead of clobbering.
type Service struct {
	tasks      repository.TaskRepository
	candidates repository.CandidateRepository
	logger     *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(tasks repository.TaskRepository, candidates repository.CandidateRepository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		tasks:      tasks,
		candidates: candidates,
		logger:     logger,
		locks:      make(map[string]*sync.Mutex),
	}
}

// taskLock serializes state-changing operations on one task. Single-process
// by design; running two instances would need a lease on the store instead.
func (s *Service) taskLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locks[id]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.locks[id] = l
	return l
}

// CreateInput carries the operator-supplied task fields.
type CreateInput struct {
	Title          string
	Description    string
	SkillTags      []string
	Deadline       time.Time
	Urgency        domain.TaskUrgency
	EstimatedHours float64
	RewardPoints   int
	CreatedBy      string
}

// Create validates the input and stores a new draft task.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, domain.NewError(domain.ErrCodeValidation, "task title is required")
	}
	if in.Urgency == "" {
		in.Urgency = domain.UrgencyNormal
	}
	if !domain.ValidUrgency(in.Urgency) {
		return nil, domain.NewError(domain.ErrCodeValidation,
			fmt.Sprintf("unknown urgency %q", in.Urgency))
	}
	if in.EstimatedHours < 0 {
		return nil, domain.NewError(domain.ErrCodeValidation, "estimated hours must not be negative")
	}
	if in.RewardPoints < 0 {
		return nil, domain.NewError(domain.ErrCodeValidation, "reward points must not be negative")
	}

	now := time.Now()
	task := &domain.Task{
		ID:             s.newTaskID(ctx),
		Title:          title,
		Description:    strings.TrimSpace(in.Description),
		SkillTags:      in.SkillTags,
		Deadline:       in.Deadline,
		Urgency:        in.Urgency,
		EstimatedHours: in.EstimatedHours,
		RewardPoints:   in.RewardPoints,
		Status:         domain.StatusDraft,
		CreatedBy:      in.CreatedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return s.tasks.Create(ctx, task)
}

// newTaskID derives a readable store ID from the creation time, falling back
// to a uuid suffix on collision.
func (s *Service) newTaskID(ctx context.Context) string {
	id := fmt.Sprintf("TASK%d", time.Now().UnixMilli())
	if _, err := s.tasks.GetByID(ctx, id); err != nil {
		return id
	}
	return fmt.Sprintf("%s-%s", id, uuid.NewString()[:8])
}

// Publish moves a draft into the published pool and records the suggested
// candidate IDs for the accept gate.
func (s *Service) Publish(ctx context.Context, id string, candidateIDs []string) (*domain.Task, error) {
	return s.tasks.UpdateStatus(ctx, id, domain.StatusDraft, domain.StatusPublished,
		map[string]any{"candidates": candidateIDs})
}

// Accept assigns the task to the accepting candidate. First accept wins:
// the per-task lock plus the conditional published check guarantee at most
// one assignee.
func (s *Service) Accept(ctx context.Context, taskID, userID string) (*domain.Task, error) {
	if userID == "" {
		return nil, domain.NewError(domain.ErrCodeValidation, "accepting user is required")
	}
	l := s.taskLock(taskID)
	l.Lock()
	defer l.Unlock()

	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != domain.StatusPublished {
		return nil, domain.NewError(domain.ErrCodeState,
			fmt.Sprintf("task %s is %s, not open for acceptance", taskID, task.Status))
	}
	if len(task.Candidates) > 0 && !contains(task.Candidates, userID) {
		return nil, domain.NewError(domain.ErrCodeValidation, "you are not a candidate for this task")
	}

	return s.tasks.UpdateStatus(ctx, taskID, domain.StatusPublished, domain.StatusAssigned,
		map[string]any{"assignee": userID})
}

// Decline removes the candidate from the suggestion list of a published task.
func (s *Service) Decline(ctx context.Context, taskID, userID string) (*domain.Task, error) {
	l := s.taskLock(taskID)
	l.Lock()
	defer l.Unlock()

	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != domain.StatusPublished {
		return nil, domain.NewError(domain.ErrCodeState,
			fmt.Sprintf("task %s is %s, nothing to decline", taskID, task.Status))
	}
	remaining := make([]string, 0, len(task.Candidates))
	for _, c := range task.Candidates {
		if c != userID {
			remaining = append(remaining, c)
		}
	}
	task.Candidates = remaining
	task.UpdatedAt = time.Now()
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// Submit records a submission and moves the task to submitted. The assigned
// and rejected states implicitly pass through in_progress on the way.
func (s *Service) Submit(ctx context.Context, taskID, userID, submissionURL, note string) (*domain.Task, error) {
	if err := validateSubmissionURL(submissionURL); err != nil {
		return nil, err
	}
	l := s.taskLock(taskID)
	l.Lock()
	defer l.Unlock()

	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Assignee != userID {
		return nil, domain.NewError(domain.ErrCodeUnauthorized, "only the assignee can submit this task")
	}

	switch task.Status {
	case domain.StatusAssigned, domain.StatusRejected:
		if !task.CanTransition(domain.StatusInProgress) {
			return nil, domain.NewError(domain.ErrCodeState,
				fmt.Sprintf("task %s has no resubmission attempts left", taskID))
		}
		task, err = s.tasks.UpdateStatus(ctx, taskID, task.Status, domain.StatusInProgress, nil)
		if err != nil {
			return nil, err
		}
	case domain.StatusInProgress:
	case domain.StatusReviewing:
		return nil, domain.NewError(domain.ErrCodeState,
			fmt.Sprintf("task %s is already under review", taskID))
	default:
		return nil, domain.NewError(domain.ErrCodeState,
			fmt.Sprintf("task %s is %s and cannot accept a submission", taskID, task.Status))
	}

	return s.tasks.UpdateStatus(ctx, taskID, domain.StatusInProgress, domain.StatusSubmitted,
		map[string]any{"submission_url": submissionURL, "submission_note": note})
}

// BeginReview claims the submission for review. The conditional submitted
// check is what makes reviews at-most-one per task.
func (s *Service) BeginReview(ctx context.Context, taskID string) (*domain.Task, error) {
	return s.tasks.UpdateStatus(ctx, taskID, domain.StatusSubmitted, domain.StatusReviewing, nil)
}

// ApplyReview commits a review verdict. A pass completes the task and credits
// the assignee; a fail rejects it and burns one attempt.
func (s *Service) ApplyReview(ctx context.Context, taskID string, outcome domain.ReviewOutcome) (*domain.Task, error) {
	l := s.taskLock(taskID)
	l.Lock()
	defer l.Unlock()

	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != domain.StatusReviewing {
		return nil, domain.NewError(domain.ErrCodeState,
			fmt.Sprintf("task %s is %s, no review in flight", taskID, task.Status))
	}

	if outcome.Passed {
		updated, err := s.tasks.UpdateStatus(ctx, taskID, domain.StatusReviewing, domain.StatusCompleted,
			map[string]any{"final_score": outcome.Score})
		if err != nil {
			return nil, err
		}
		if s.candidates != nil && updated.Assignee != "" {
			if err := s.candidates.RecordCompletion(ctx, updated.Assignee, outcome.Score, updated.RewardPoints); err != nil {
				s.logger.Warn("failed to credit assignee",
					zap.String("task_id", taskID),
					zap.String("assignee", updated.Assignee),
					zap.Error(err))
			}
		}
		return updated, nil
	}

	return s.tasks.UpdateStatus(ctx, taskID, domain.StatusReviewing, domain.StatusRejected,
		map[string]any{"final_score": outcome.Score, "attempt_count": task.AttemptCount + 1})
}

// Get returns one task by ID.
func (s *Service) Get(ctx context.Context, id string) (*domain.Task, error) {
	return s.tasks.GetByID(ctx, id)
}

// ListByUser returns the tasks assigned to the user.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]domain.Task, error) {
	return s.tasks.List(ctx, repository.TaskFilter{UserID: userID})
}

// ListByStatus returns the tasks currently in the given status.
func (s *Service) ListByStatus(ctx context.Context, status domain.TaskStatus) ([]domain.Task, error) {
	return s.tasks.List(ctx, repository.TaskFilter{Status: status})
}

// ListAll returns every task.
func (s *Service) ListAll(ctx context.Context) ([]domain.Task, error) {
	return s.tasks.List(ctx, repository.TaskFilter{})
}

func validateSubmissionURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.NewError(domain.ErrCodeValidation, "submission URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return domain.NewError(domain.ErrCodeValidation, "submission URL must be http(s)")
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
