package domain

import "testing"

func TestCanTransitionFollowsLifecycle(t *testing.T) {
	cases := []struct {
		from TaskStatus
		to   TaskStatus
		want bool
	}{
		{StatusDraft, StatusPublished, true},
		{StatusPublished, StatusAssigned, true},
		{StatusAssigned, StatusInProgress, true},
		{StatusInProgress, StatusSubmitted, true},
		{StatusSubmitted, StatusReviewing, true},
		{StatusReviewing, StatusCompleted, true},
		{StatusReviewing, StatusRejected, true},
		{StatusRejected, StatusInProgress, true},

		{StatusDraft, StatusAssigned, false},
		{StatusPublished, StatusInProgress, false},
		{StatusAssigned, StatusSubmitted, false},
		{StatusSubmitted, StatusCompleted, false},
		{StatusCompleted, StatusInProgress, false},
		{StatusCompleted, StatusPublished, false},
		{StatusRejected, StatusPublished, false},
	}

	for _, tc := range cases {
		task := &Task{Status: tc.from}
		if got := task.CanTransition(tc.to); got != tc.want {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestResubmissionGatedOnAttemptBudget(t *testing.T) {
	task := &Task{Status: StatusRejected, AttemptCount: MaxAttempts - 1}
	if !task.CanTransition(StatusInProgress) {
		t.Fatalf("expected resubmission allowed with %d attempts used", task.AttemptCount)
	}

	task.AttemptCount = MaxAttempts
	if task.CanTransition(StatusInProgress) {
		t.Fatal("expected resubmission blocked after exhausting attempts")
	}
	if !task.IsTerminal() {
		t.Fatal("rejected task with no attempts left should be terminal")
	}
}

func TestCompletedIsTerminal(t *testing.T) {
	task := &Task{Status: StatusCompleted}
	if !task.IsTerminal() {
		t.Fatal("completed task should be terminal")
	}
	for _, to := range []TaskStatus{StatusDraft, StatusPublished, StatusAssigned, StatusInProgress, StatusSubmitted, StatusReviewing, StatusRejected} {
		if task.CanTransition(to) {
			t.Errorf("completed task should not transition to %s", to)
		}
	}
}

func TestIsActive(t *testing.T) {
	cases := []struct {
		task Task
		want bool
	}{
		{Task{Status: StatusAssigned}, true},
		{Task{Status: StatusInProgress}, true},
		{Task{Status: StatusRejected, AttemptCount: 1}, true},
		{Task{Status: StatusRejected, AttemptCount: MaxAttempts}, false},
		{Task{Status: StatusPublished}, false},
		{Task{Status: StatusCompleted}, false},
	}
	for _, tc := range cases {
		if got := tc.task.IsActive(); got != tc.want {
			t.Errorf("IsActive(%s attempts=%d) = %v, want %v", tc.task.Status, tc.task.AttemptCount, got, tc.want)
		}
	}
}

func TestTopMatchesOrdersAndTruncates(t *testing.T) {
	candidates := []Candidate{
		{UserID: "a", AverageScore: 70},
		{UserID: "b", AverageScore: 90},
		{UserID: "c", AverageScore: 80},
		{UserID: "d", AverageScore: 60},
	}
	results := []MatchResult{
		{CandidateID: "a", MatchScore: 80},
		{CandidateID: "b", MatchScore: 80},
		{CandidateID: "c", MatchScore: 95},
		{CandidateID: "d", MatchScore: 10},
	}

	top := TopMatches(results, candidates, 3)
	if len(top) != 3 {
		t.Fatalf("expected 3 results, got %d", len(top))
	}
	if top[0].CandidateID != "c" {
		t.Errorf("top[0] = %s, want c", top[0].CandidateID)
	}
	// Equal match scores break on the higher historical average.
	if top[1].CandidateID != "b" || top[2].CandidateID != "a" {
		t.Errorf("tie-break order = %s, %s; want b, a", top[1].CandidateID, top[2].CandidateID)
	}
}

func TestNewReviewOutcomeClampsAndDerivesVerdict(t *testing.T) {
	if out := NewReviewOutcome(150, nil); out.Score != 100 || !out.Passed {
		t.Errorf("NewReviewOutcome(150) = %+v, want clamped pass", out)
	}
	if out := NewReviewOutcome(-5, nil); out.Score != 0 || out.Passed {
		t.Errorf("NewReviewOutcome(-5) = %+v, want clamped fail", out)
	}
	if out := NewReviewOutcome(PassThreshold, nil); !out.Passed {
		t.Errorf("score at threshold should pass")
	}
	if out := NewReviewOutcome(PassThreshold-1, nil); out.Passed {
		t.Errorf("score below threshold should fail")
	}
}
