package matching

import (
	"fmt"
	"math"
	"strings"

	"github.com/taskrelay/backend/domain"
)

// Fallback scoring weights. Skill coverage dominates; completion history and
// free hours round out the score.
const (
	weightSkills       = 0.5
	weightPerformance  = 0.3
	weightAvailability = 0.2

	performanceCeiling  = 5.0 // completed tasks for a full performance score
	availabilityCeiling = 8.0 // free hours for a full availability score
)

// fallbackScore computes the deterministic suitability score. Same inputs
// always produce the same score.
func fallbackScore(req domain.TaskRequirements, c domain.Candidate) int {
	skill := skillCoverage(req.SkillTags, c.SkillTags)
	performance := math.Min(float64(c.CompletedTasks)/performanceCeiling, 1)
	availability := math.Min(c.HoursAvailable/availabilityCeiling, 1)

	raw := 100 * (weightSkills*skill + weightPerformance*performance + weightAvailability*availability)
	return int(math.Round(raw))
}

// skillCoverage is the fraction of required tags the candidate holds,
// case-insensitive. A task without skill tags grants no skill credit; the
// score then rests on history and availability alone.
func skillCoverage(required, held []string) float64 {
	if len(required) == 0 {
		return 0
	}
	have := make(map[string]bool, len(held))
	for _, tag := range held {
		have[strings.ToLower(strings.TrimSpace(tag))] = true
	}
	hit := 0
	for _, tag := range required {
		if have[strings.ToLower(strings.TrimSpace(tag))] {
			hit++
		}
	}
	return float64(hit) / float64(len(required))
}

func fallbackMatch(req domain.TaskRequirements, candidates []domain.Candidate) []domain.MatchResult {
	results := make([]domain.MatchResult, 0, len(candidates))
	for _, c := range candidates {
		score := fallbackScore(req, c)
		results = append(results, domain.MatchResult{
			CandidateID: c.UserID,
			MatchScore:  score,
			Reason: fmt.Sprintf("rule-based: %.0f%% skill coverage, %d completed tasks, %.1fh available",
				skillCoverage(req.SkillTags, c.SkillTags)*100, c.CompletedTasks, c.HoursAvailable),
		})
	}
	return domain.TopMatches(results, candidates, TopN)
}
