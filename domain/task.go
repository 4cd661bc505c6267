package domain

import "time"

// TaskStatus enumerates the lifecycle states a task moves through.
type TaskStatus string

const (
	StatusDraft      TaskStatus = "draft"
	StatusPublished  TaskStatus = "published"
	StatusAssigned   TaskStatus = "assigned"
	StatusInProgress TaskStatus = "in_progress"
	StatusSubmitted  TaskStatus = "submitted"
	StatusReviewing  TaskStatus = "reviewing"
	StatusCompleted  TaskStatus = "completed"
	StatusRejected   TaskStatus = "rejected"
)

// TaskUrgency enumerates the urgency levels accepted on task creation.
type TaskUrgency string

const (
	UrgencyLow    TaskUrgency = "low"
	UrgencyNormal TaskUrgency = "normal"
	UrgencyHigh   TaskUrgency = "high"
	UrgencyUrgent TaskUrgency = "urgent"
)

// MaxAttempts is the resubmission budget before a rejection becomes terminal.
const MaxAttempts = 3

// Task is a unit of work tracked through the lifecycle state machine.
type Task struct {
	ID             string      `json:"id"`
	Title          string      `json:"title"`
	Description    string      `json:"description,omitempty"`
	SkillTags      []string    `json:"skill_tags,omitempty"`
	Deadline       time.Time   `json:"deadline"`
	Urgency        TaskUrgency `json:"urgency"`
	EstimatedHours float64     `json:"estimated_hours"`
	RewardPoints   int         `json:"reward_points"`
	Status         TaskStatus  `json:"status"`
	Assignee       string      `json:"assignee,omitempty"`
	Candidates     []string    `json:"candidates,omitempty"`
	SubmissionURL  string      `json:"submission_url,omitempty"`
	SubmissionNote string      `json:"submission_note,omitempty"`
	FinalScore     *int        `json:"final_score,omitempty"`
	CreatedBy      string      `json:"created_by"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	AttemptCount   int         `json:"attempt_count"`
}

// transitions is the closed set of legal status moves. rejected→in_progress is
// the resubmission loop and is gated on the attempt budget by CanTransition.
var transitions = map[TaskStatus][]TaskStatus{
	StatusDraft:      {StatusPublished},
	StatusPublished:  {StatusAssigned},
	StatusAssigned:   {StatusInProgress},
	StatusInProgress: {StatusSubmitted},
	StatusSubmitted:  {StatusReviewing},
	StatusReviewing:  {StatusCompleted, StatusRejected},
	StatusRejected:   {StatusInProgress},
}

// CanTransition reports whether the task may legally move to the target status.
func (t *Task) CanTransition(to TaskStatus) bool {
	if t == nil {
		return false
	}
	if t.Status == StatusRejected && to == StatusInProgress && t.AttemptCount >= MaxAttempts {
		return false
	}
	for _, next := range transitions[t.Status] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the task has reached a state with no legal exits.
func (t *Task) IsTerminal() bool {
	if t == nil {
		return false
	}
	if t.Status == StatusCompleted {
		return true
	}
	return t.Status == StatusRejected && t.AttemptCount >= MaxAttempts
}

// IsActive reports whether the assignee is expected to produce a submission.
func (t *Task) IsActive() bool {
	if t == nil {
		return false
	}
	switch t.Status {
	case StatusAssigned, StatusInProgress:
		return true
	case StatusRejected:
		return t.AttemptCount < MaxAttempts
	default:
		return false
	}
}

// ValidUrgency reports whether the string names a known urgency level.
func ValidUrgency(u TaskUrgency) bool {
	switch u {
	case UrgencyLow, UrgencyNormal, UrgencyHigh, UrgencyUrgent:
		return true
	}
	return false
}
