package domain

// CandidateStatus marks whether a worker can take on new tasks.
type CandidateStatus string

const (
	CandidateAvailable CandidateStatus = "available"
	CandidateBusy      CandidateStatus = "busy"
)

// Candidate is a worker profile eligible for task assignment. The record is
// owned by the spreadsheet store; matching treats it as an immutable snapshot.
type Candidate struct {
	UserID          string          `json:"user_id"`
	Name            string          `json:"name"`
	SkillTags       []string        `json:"skill_tags,omitempty"`
	ExperienceYears float64         `json:"experience_years"`
	HoursAvailable  float64         `json:"hours_available"`
	AverageScore    float64         `json:"average_score"`
	CompletedTasks  int             `json:"completed_tasks"`
	Status          CandidateStatus `json:"status"`
}

func (c *Candidate) IsAvailable() bool {
	return c != nil && c.Status == CandidateAvailable
}
