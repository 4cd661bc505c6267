package matching

import (
	"fmt"
	"strings"

	"github.com/taskrelay/backend/domain"
)

const matchSystemPrompt = `You are a task assignment assistant. You score how well each candidate fits a task and respond with strict JSON only, no markdown, no commentary.`

// buildMatchPrompt renders the scoring rubric and the candidate roster. The
// rubric weights are fixed: 40% skill match, 30% track record, 20% experience,
// 10% availability.
func buildMatchPrompt(req domain.TaskRequirements, candidates []domain.Candidate) string {
	var b strings.Builder

	b.WriteString("Task requirements:\n")
	fmt.Fprintf(&b, "- required skills: %s\n", joinOrNone(req.SkillTags))
	if !req.Deadline.IsZero() {
		fmt.Fprintf(&b, "- deadline: %s\n", req.Deadline.Format("2006-01-02 15:04"))
	}
	if req.Urgency != "" {
		fmt.Fprintf(&b, "- urgency: %s\n", req.Urgency)
	}

	b.WriteString("\nCandidates:\n")
	for _, c := range candidates {
		fmt.Fprintf(&b, "- user_id=%s name=%s skills=%s experience_years=%.1f avg_score=%.1f completed_tasks=%d hours_available=%.1f\n",
			c.UserID, c.Name, joinOrNone(c.SkillTags), c.ExperienceYears, c.AverageScore, c.CompletedTasks, c.HoursAvailable)
	}

	b.WriteString(`
Score every candidate from 0 to 100 using this rubric:
- 40%: overlap between required skills and candidate skills
- 30%: track record (average score and completed task count)
- 20%: experience years relative to the task
- 10%: hours available

Respond with a JSON array only, one object per candidate:
[{"user_id": "...", "match_score": 85, "reason": "one short sentence"}]`)

	return b.String()
}

func joinOrNone(tags []string) string {
	if len(tags) == 0 {
		return "(none)"
	}
	return strings.Join(tags, ", ")
}
