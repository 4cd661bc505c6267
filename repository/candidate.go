package repository

import (
	"context"

	"github.com/taskrelay/backend/domain"
)

type CandidateRepository interface {
	GetByID(ctx context.Context, userID string) (*domain.Candidate, error)
	// ListAvailable returns candidates whose status allows new assignments.
	ListAvailable(ctx context.Context) ([]domain.Candidate, error)
	// RecordCompletion folds a finished task into the candidate's running
	// totals (completed count, average score, reward points).
	RecordCompletion(ctx context.Context, userID string, score int, rewardPoints int) error
}
