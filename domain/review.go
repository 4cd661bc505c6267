package domain

// PassThreshold is the minimum review score that completes a task. Both review
// paths share it; the CI path produces a binary 95/45 rather than a graded score.
const PassThreshold = 80

// Review scores assigned by the CI path.
const (
	CIPassScore = 95
	CIFailScore = 45
)

// ManualReviewDefaultScore is the conservative borderline-fail score used when
// the LLM review output cannot be parsed, routing the task to human escalation.
const ManualReviewDefaultScore = 60

// ManualReviewReason accompanies ManualReviewDefaultScore.
const ManualReviewReason = "automated evaluation failed, needs manual review"

// ReviewOutcome is the verdict of one automated review attempt. It is consumed
// immediately to drive a task transition and never persisted on its own.
type ReviewOutcome struct {
	Score         int      `json:"score"`
	Passed        bool     `json:"passed"`
	FailedReasons []string `json:"failed_reasons,omitempty"`
}

// NewReviewOutcome derives the pass verdict from the score.
func NewReviewOutcome(score int, failedReasons []string) ReviewOutcome {
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return ReviewOutcome{
		Score:         score,
		Passed:        score >= PassThreshold,
		FailedReasons: failedReasons,
	}
}
