package memory

import (
	"context"
	"sync"

	"github.com/taskrelay/backend/domain"
)

// CandidateRepository holds candidate profiles in process memory.
type CandidateRepository struct {
	mu         sync.RWMutex
	candidates map[string]domain.Candidate
}

func NewCandidateRepository(seed ...domain.Candidate) *CandidateRepository {
	r := &CandidateRepository{candidates: make(map[string]domain.Candidate)}
	for _, c := range seed {
		r.candidates[c.UserID] = c
	}
	return r
}

func (r *CandidateRepository) GetByID(_ context.Context, userID string) (*domain.Candidate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.candidates[userID]
	if !ok {
		return nil, domain.ErrCandidateNotFound
	}
	c.SkillTags = append([]string(nil), c.SkillTags...)
	return &c, nil
}

func (r *CandidateRepository) ListAvailable(_ context.Context) ([]domain.Candidate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Candidate
	for _, c := range r.candidates {
		if c.Status != domain.CandidateAvailable {
			continue
		}
		c.SkillTags = append([]string(nil), c.SkillTags...)
		out = append(out, c)
	}
	return out, nil
}

func (r *CandidateRepository) RecordCompletion(_ context.Context, userID string, score int, _ int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.candidates[userID]
	if !ok {
		return domain.ErrCandidateNotFound
	}
	total := c.AverageScore*float64(c.CompletedTasks) + float64(score)
	c.CompletedTasks++
	c.AverageScore = total / float64(c.CompletedTasks)
	r.candidates[userID] = c
	return nil
}

func (r *CandidateRepository) Upsert(c domain.Candidate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.candidates[c.UserID] = c
}
