package bitable

import (
	"context"
	"sort"
	"time"

	"github.com/taskrelay/backend/domain"
	bitableInfra "github.com/taskrelay/backend/internal/infrastructure/bitable"
	"github.com/taskrelay/backend/repository"
)

type taskRepository struct {
	client  *bitableInfra.Client
	tableID string
}

// NewTaskRepository returns a spreadsheet-backed implementation of
// TaskRepository. Each operation maps to record CRUD on the task table.
func NewTaskRepository(client *bitableInfra.Client, tableID string) repository.TaskRepository {
	return &taskRepository{client: client, tableID: tableID}
}

func (r *taskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	record, err := r.findRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	task := taskFromRecord(*record)
	return &task, nil
}

func (r *taskRepository) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	records, err := r.client.ListRecords(ctx, r.tableID)
	if err != nil {
		return nil, err
	}

	var tasks []domain.Task
	for _, record := range records {
		task := taskFromRecord(record)
		if task.ID == "" {
			continue
		}
		if filter.UserID != "" && task.Assignee != filter.UserID && task.CreatedBy != filter.UserID {
			continue
		}
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		tasks = append(tasks, task)
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	if filter.Limit > 0 && len(tasks) > filter.Limit {
		tasks = tasks[:filter.Limit]
	}
	return tasks, nil
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now
	if _, err := r.client.CreateRecord(ctx, r.tableID, taskToFields(task)); err != nil {
		return nil, err
	}
	return task, nil
}

func (r *taskRepository) Update(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return domain.ErrInvalidPayload
	}
	record, err := r.findRecord(ctx, task.ID)
	if err != nil {
		return err
	}
	task.UpdatedAt = time.Now()
	return r.client.UpdateRecord(ctx, r.tableID, record.ID, taskToFields(task))
}

// UpdateStatus re-reads the record and rejects the write when the stored
// status no longer matches. There is no version field on the record, so a
// concurrent external edit between the read and the write can still slip
// through; see the consistency note in DESIGN.md.
func (r *taskRepository) UpdateStatus(ctx context.Context, id string, expected, next domain.TaskStatus, extra map[string]any) (*domain.Task, error) {
	record, err := r.findRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	task := taskFromRecord(*record)
	if task.Status != expected {
		return nil, domain.NewError(domain.ErrCodeState, "task status changed concurrently")
	}

	task.Status = next
	task.UpdatedAt = time.Now()
	applyExtra(&task, extra)
	if err := r.client.UpdateRecord(ctx, r.tableID, record.ID, taskToFields(&task)); err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) Delete(ctx context.Context, id string) error {
	record, err := r.findRecord(ctx, id)
	if err != nil {
		return err
	}
	return r.client.DeleteRecord(ctx, r.tableID, record.ID)
}

func (r *taskRepository) findRecord(ctx context.Context, taskID string) (*bitableInfra.Record, error) {
	records, err := r.client.ListRecords(ctx, r.tableID)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if fieldString(records[i].Fields, "task_id") == taskID {
			return &records[i], nil
		}
	}
	return nil, domain.ErrTaskNotFound
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

func taskToFields(task *domain.Task) map[string]any {
	fields := map[string]any{
		"task_id":         task.ID,
		"title":           task.Title,
		"description":     task.Description,
		"skill_tags":      task.SkillTags,
		"urgency":         string(task.Urgency),
		"estimated_hours": task.EstimatedHours,
		"reward_points":   task.RewardPoints,
		"status":          string(task.Status),
		"assignee":        task.Assignee,
		"candidates":      task.Candidates,
		"submission_url":  task.SubmissionURL,
		"submission_note": task.SubmissionNote,
		"created_by":      task.CreatedBy,
		"attempt_count":   task.AttemptCount,
		"updated_at":      task.UpdatedAt.UnixMilli(),
	}
	if !task.Deadline.IsZero() {
		fields["deadline"] = task.Deadline.UnixMilli()
	}
	if !task.CreatedAt.IsZero() {
		fields["created_at"] = task.CreatedAt.UnixMilli()
	}
	if task.FinalScore != nil {
		fields["final_score"] = *task.FinalScore
	}
	return fields
}

func taskFromRecord(record bitableInfra.Record) domain.Task {
	fields := record.Fields
	task := domain.Task{
		ID:             fieldString(fields, "task_id"),
		Title:          fieldString(fields, "title"),
		Description:    fieldString(fields, "description"),
		SkillTags:      fieldStrings(fields, "skill_tags"),
		Deadline:       fieldTime(fields, "deadline"),
		Urgency:        domain.TaskUrgency(fieldString(fields, "urgency")),
		EstimatedHours: fieldFloat(fields, "estimated_hours"),
		RewardPoints:   fieldInt(fields, "reward_points"),
		Status:         domain.TaskStatus(fieldString(fields, "status")),
		Assignee:       fieldString(fields, "assignee"),
		Candidates:     fieldStrings(fields, "candidates"),
		SubmissionURL:  fieldString(fields, "submission_url"),
		SubmissionNote: fieldString(fields, "submission_note"),
		CreatedBy:      fieldString(fields, "created_by"),
		CreatedAt:      fieldTime(fields, "created_at"),
		UpdatedAt:      fieldTime(fields, "updated_at"),
		AttemptCount:   fieldInt(fields, "attempt_count"),
	}
	if raw, ok := fields["final_score"]; ok && raw != nil {
		score := fieldInt(fields, "final_score")
		task.FinalScore = &score
	}
	return task
}
