package review

import (
	"fmt"
	"strings"

	"github.com/taskrelay/backend/domain"
)

const reviewSystemPrompt = `You are a strict submission reviewer. You evaluate whether delivered work satisfies a task and respond with strict JSON only, no markdown, no commentary.`

func buildReviewPrompt(task *domain.Task, submissionURL string) string {
	var b strings.Builder

	b.WriteString("Task:\n")
	fmt.Fprintf(&b, "- title: %s\n", task.Title)
	if task.Description != "" {
		fmt.Fprintf(&b, "- description: %s\n", task.Description)
	}
	if len(task.SkillTags) > 0 {
		fmt.Fprintf(&b, "- required skills: %s\n", strings.Join(task.SkillTags, ", "))
	}
	fmt.Fprintf(&b, "\nSubmission URL: %s\n", submissionURL)
	if task.SubmissionNote != "" {
		fmt.Fprintf(&b, "Submitter note: %s\n", task.SubmissionNote)
	}

	fmt.Fprintf(&b, `
Score the submission from 0 to 100 against the task. %d or above passes.
List concrete failure reasons when the score is below the threshold, or an
empty array when it passes.

Respond with a JSON object only:
{"score": 85, "failed_reasons": []}`, domain.PassThreshold)

	return b.String()
}
