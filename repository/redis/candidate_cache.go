package redis

import (
	"context"
	"encoding/json"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/taskrelay/backend/domain"
	"github.com/taskrelay/backend/repository"
)

const candidateSnapshotKey = "candidates:available"

type candidateCache struct {
	inner  repository.CandidateRepository
	client *redislib.Client
	ttl    time.Duration
}

// NewCandidateCache wraps a candidate repository with a Redis snapshot cache.
// Matching reads the full available-candidate list on every request; the cache
// keeps that from hammering the spreadsheet API. Writes go straight through
// and invalidate the snapshot.
func NewCandidateCache(inner repository.CandidateRepository, client *redislib.Client, ttl time.Duration) repository.CandidateRepository {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &candidateCache{inner: inner, client: client, ttl: ttl}
}

func (c *candidateCache) GetByID(ctx context.Context, userID string) (*domain.Candidate, error) {
	return c.inner.GetByID(ctx, userID)
}

func (c *candidateCache) ListAvailable(ctx context.Context) ([]domain.Candidate, error) {
	if cached, err := c.client.Get(ctx, candidateSnapshotKey).Result(); err == nil {
		var candidates []domain.Candidate
		if json.Unmarshal([]byte(cached), &candidates) == nil {
			return candidates, nil
		}
	}

	candidates, err := c.inner.ListAvailable(ctx)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(candidates); err == nil {
		c.client.Set(ctx, candidateSnapshotKey, payload, c.ttl)
	}
	return candidates, nil
}

func (c *candidateCache) RecordCompletion(ctx context.Context, userID string, score int, rewardPoints int) error {
	if err := c.inner.RecordCompletion(ctx, userID, score, rewardPoints); err != nil {
		return err
	}
	c.client.Del(ctx, candidateSnapshotKey)
	return nil
}
