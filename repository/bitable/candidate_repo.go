package bitable

import (
	"context"

	"github.com/taskrelay/backend/domain"
	bitableInfra "github.com/taskrelay/backend/internal/infrastructure/bitable"
	"github.com/taskrelay/backend/repository"
)

type candidateRepository struct {
	client  *bitableInfra.Client
	tableID string
}

// NewCandidateRepository returns a spreadsheet-backed candidate store adapter.
// Candidate records are read-mostly; matching takes them as snapshots.
func NewCandidateRepository(client *bitableInfra.Client, tableID string) repository.CandidateRepository {
	return &candidateRepository{client: client, tableID: tableID}
}

func (r *candidateRepository) GetByID(ctx context.Context, userID string) (*domain.Candidate, error) {
	records, err := r.client.ListRecords(ctx, r.tableID)
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		if fieldString(record.Fields, "user_id") == userID {
			c := candidateFromRecord(record)
			return &c, nil
		}
	}
	return nil, domain.ErrCandidateNotFound
}

func (r *candidateRepository) ListAvailable(ctx context.Context) ([]domain.Candidate, error) {
	records, err := r.client.ListRecords(ctx, r.tableID)
	if err != nil {
		return nil, err
	}
	var candidates []domain.Candidate
	for _, record := range records {
		c := candidateFromRecord(record)
		if c.UserID == "" || !c.IsAvailable() {
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func (r *candidateRepository) RecordCompletion(ctx context.Context, userID string, score int, rewardPoints int) error {
	records, err := r.client.ListRecords(ctx, r.tableID)
	if err != nil {
		return err
	}
	for _, record := range records {
		if fieldString(record.Fields, "user_id") != userID {
			continue
		}
		c := candidateFromRecord(record)
		total := c.AverageScore*float64(c.CompletedTasks) + float64(score)
		completed := c.CompletedTasks + 1
		points := fieldInt(record.Fields, "total_points") + rewardPoints
		return r.client.UpdateRecord(ctx, r.tableID, record.ID, map[string]any{
			"completed_tasks": completed,
			"average_score":   total / float64(completed),
			"total_points":    points,
		})
	}
	return domain.ErrCandidateNotFound
}

func candidateFromRecord(record bitableInfra.Record) domain.Candidate {
	fields := record.Fields
	status := domain.CandidateStatus(fieldString(fields, "status"))
	if status == "" {
		status = domain.CandidateAvailable
	}
	return domain.Candidate{
		UserID:          fieldString(fields, "user_id"),
		Name:            fieldString(fields, "name"),
		SkillTags:       fieldStrings(fields, "skill_tags"),
		ExperienceYears: fieldFloat(fields, "experience_years"),
		HoursAvailable:  fieldFloat(fields, "hours_available"),
		AverageScore:    fieldFloat(fields, "average_score"),
		CompletedTasks:  fieldInt(fields, "completed_tasks"),
		Status:          status,
	}
}
