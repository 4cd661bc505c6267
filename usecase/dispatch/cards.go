package dispatch

import (
	"fmt"

	"github.com/taskrelay/backend/domain"
)

// buildCandidateCard renders the interactive card announcing a published task
// and its suggested candidates. Buttons carry the action payload decoded by
// the card-action webhook.
func buildCandidateCard(task *domain.Task, matches []domain.MatchResult) map[string]any {
	elements := []any{
		map[string]any{
			"tag": "div",
			"text": map[string]any{
				"tag": "lark_md",
				"content": fmt.Sprintf("**%s**\n%s\nUrgency: %s | Reward: %d points",
					task.Title, task.Description, task.Urgency, task.RewardPoints),
			},
		},
		map[string]any{"tag": "hr"},
	}

	for i, m := range matches {
		elements = append(elements, map[string]any{
			"tag": "div",
			"text": map[string]any{
				"tag":     "lark_md",
				"content": fmt.Sprintf("%d. <at id=%s></at> — score %d\n%s", i+1, m.CandidateID, m.MatchScore, m.Reason),
			},
		})
		elements = append(elements, map[string]any{
			"tag": "action",
			"actions": []any{
				cardButton("Assign", domain.ActionSelectCandidate, task.ID, m.CandidateID, i+1),
			},
		})
	}

	elements = append(elements, map[string]any{"tag": "hr"})
	elements = append(elements, map[string]any{
		"tag": "action",
		"actions": []any{
			cardButton("Accept task", domain.ActionAcceptTask, task.ID, "", 0),
			cardButton("Decline", domain.ActionRejectTask, task.ID, "", 0),
		},
	})

	return map[string]any{
		"config": map[string]any{"wide_screen_mode": true},
		"header": map[string]any{
			"title":    map[string]any{"tag": "plain_text", "content": fmt.Sprintf("New task %s", task.ID)},
			"template": urgencyColor(task.Urgency),
		},
		"elements": elements,
	}
}

func cardButton(label, action, taskID, candidateID string, rank int) map[string]any {
	value := map[string]any{
		"action":  action,
		"task_id": taskID,
	}
	if candidateID != "" {
		value["candidate_id"] = candidateID
		value["rank"] = rank
	}
	return map[string]any{
		"tag":   "button",
		"text":  map[string]any{"tag": "plain_text", "content": label},
		"type":  "primary",
		"value": value,
	}
}

func urgencyColor(u domain.TaskUrgency) string {
	switch u {
	case domain.UrgencyUrgent:
		return "red"
	case domain.UrgencyHigh:
		return "orange"
	case domain.UrgencyLow:
		return "grey"
	default:
		return "blue"
	}
}
