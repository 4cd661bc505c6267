package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskrelay/backend/domain"
	"github.com/taskrelay/backend/repository"
)

// TaskRepository is a process-local task store. It backs the bot when no
// spreadsheet backend is configured and the whole test suite.
type TaskRepository struct {
	mu    sync.RWMutex
	tasks map[string]domain.Task
}

func NewTaskRepository() *TaskRepository {
	return &TaskRepository{tasks: make(map[string]domain.Task)}
}

func (r *TaskRepository) GetByID(_ context.Context, id string) (*domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	task, ok := r.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	copied := cloneTask(task)
	return &copied, nil
}

func (r *TaskRepository) List(_ context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Task
	for _, task := range r.tasks {
		if filter.UserID != "" && task.Assignee != filter.UserID && task.CreatedBy != filter.UserID {
			continue
		}
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		out = append(out, cloneTask(task))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *TaskRepository) Create(_ context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now
	r.tasks[task.ID] = cloneTask(*task)
	return task, nil
}

func (r *TaskRepository) Update(_ context.Context, task *domain.Task) error {
	if task == nil {
		return domain.ErrInvalidPayload
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[task.ID]; !ok {
		return domain.ErrTaskNotFound
	}
	task.UpdatedAt = time.Now()
	r.tasks[task.ID] = cloneTask(*task)
	return nil
}

func (r *TaskRepository) UpdateStatus(_ context.Context, id string, expected, next domain.TaskStatus, extra map[string]any) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	if task.Status != expected {
		return nil, domain.NewError(domain.ErrCodeState, "task status changed concurrently")
	}
	task.Status = next
	task.UpdatedAt = time.Now()
	applyExtra(&task, extra)
	r.tasks[id] = task
	copied := cloneTask(task)
	return &copied, nil
}

func (r *TaskRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		return domain.ErrTaskNotFound
	}
	delete(r.tasks, id)
	return nil
}

func applyExtra(task *domain.Task, extra map[string]any) {
	for key, value := range extra {
		switch key {
		case "assignee":
			if v, ok := value.(string); ok {
				task.Assignee = v
			}
		case "candidates":
			if v, ok := value.([]string); ok {
				task.Candidates = append([]string(nil), v...)
			}
		case "submission_url":
			if v, ok := value.(string); ok {
				task.SubmissionURL = v
			}
		case "submission_note":
			if v, ok := value.(string); ok {
				task.SubmissionNote = v
			}
		case "final_score":
			if v, ok := value.(int); ok {
				task.FinalScore = &v
			}
		case "attempt_count":
			if v, ok := value.(int); ok {
				task.AttemptCount = v
			}
		}
	}
}

func cloneTask(task domain.Task) domain.Task {
	task.SkillTags = append([]string(nil), task.SkillTags...)
	task.Candidates = append([]string(nil), task.Candidates...)
	if task.FinalScore != nil {
		score := *task.FinalScore
		task.FinalScore = &score
	}
	return task
}
