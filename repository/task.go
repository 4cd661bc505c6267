package repository

import (
	"context"

	"github.com/taskrelay/backend/domain"
)

type TaskFilter struct {
	UserID string
	Status domain.TaskStatus
	Limit  int
}

type TaskRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
	Create(ctx context.Context, task *domain.Task) (*domain.Task, error)
	Update(ctx context.Context, task *domain.Task) error
	// UpdateStatus moves the task to next only when its stored status still
	// equals expected, returning a STATE error otherwise. Extra carries
	// additional field writes applied in the same update.
	UpdateStatus(ctx context.Context, id string, expected, next domain.TaskStatus, extra map[string]any) (*domain.Task, error)
	Delete(ctx context.Context, id string) error
}
