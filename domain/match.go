package domain

import (
	"sort"
	"time"
)

// TaskRequirements is the slice of a task the matching engine scores against.
type TaskRequirements struct {
	SkillTags []string
	Deadline  time.Time
	Urgency   TaskUrgency
}

// MatchResult is a per-candidate suitability estimate, ephemeral to one
// matching call.
type MatchResult struct {
	CandidateID string `json:"user_id"`
	MatchScore  int    `json:"match_score"`
	Reason      string `json:"reason"`
}

// TopMatches sorts results descending by score and truncates to limit.
// Ties break on the candidate's average score descending, then on the original
// order (stable).
func TopMatches(results []MatchResult, candidates []Candidate, limit int) []MatchResult {
	byID := make(map[string]float64, len(candidates))
	for _, c := range candidates {
		byID[c.UserID] = c.AverageScore
	}
	sorted := make([]MatchResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].MatchScore != sorted[j].MatchScore {
			return sorted[i].MatchScore > sorted[j].MatchScore
		}
		return byID[sorted[i].CandidateID] > byID[sorted[j].CandidateID]
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}
