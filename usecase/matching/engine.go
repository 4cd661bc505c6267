package matching

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/taskrelay/backend/domain"
	"github.com/taskrelay/backend/internal/infrastructure/llm"
)

// TopN is how many match results a single call returns.
const TopN = 3

// Completer is the slice of the LLM router the engine needs.
type Completer interface {
	Available() bool
	Complete(ctx context.Context, prompt, systemPrompt string) (string, error)
}

// Engine ranks candidates for a task. The LLM path is primary; any failure
// there (transport, exhaustion, unparseable reply) drops to the deterministic
// rule-based path, so Match never errors.
type Engine struct {
	llm    Completer
	logger *zap.Logger
}

func NewEngine(completer Completer, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{llm: completer, logger: logger}
}

// Match scores the given candidates against the task requirements and returns
// at most TopN results, best first.
func (e *Engine) Match(ctx context.Context, req domain.TaskRequirements, candidates []domain.Candidate) []domain.MatchResult {
	if len(candidates) == 0 {
		return nil
	}

	if e.llm != nil && e.llm.Available() {
		results, err := e.matchLLM(ctx, req, candidates)
		if err == nil {
			return results
		}
		e.logger.Warn("llm matching failed, using rule-based fallback", zap.Error(err))
	}
	return fallbackMatch(req, candidates)
}

func (e *Engine) matchLLM(ctx context.Context, req domain.TaskRequirements, candidates []domain.Candidate) ([]domain.MatchResult, error) {
	reply, err := e.llm.Complete(ctx, buildMatchPrompt(req, candidates), matchSystemPrompt)
	if err != nil {
		return nil, err
	}

	doc := llm.ExtractJSON(reply)
	if doc == "" {
		return nil, domain.NewError(domain.ErrCodeParse, "match reply contains no JSON")
	}

	var parsed []domain.MatchResult
	if err := json.Unmarshal([]byte(doc), &parsed); err != nil {
		return nil, domain.WrapError(domain.ErrCodeParse, "decode match reply", err)
	}
	if len(parsed) == 0 {
		return nil, domain.NewError(domain.ErrCodeParse, "match reply is empty")
	}

	// Keep only results that reference a real candidate; clamp scores.
	known := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		known[c.UserID] = true
	}
	results := parsed[:0]
	for _, r := range parsed {
		if !known[r.CandidateID] {
			continue
		}
		if r.MatchScore < 0 {
			r.MatchScore = 0
		}
		if r.MatchScore > 100 {
			r.MatchScore = 100
		}
		results = append(results, r)
	}
	if len(results) == 0 {
		return nil, domain.NewError(domain.ErrCodeParse, "match reply references no known candidates")
	}
	return domain.TopMatches(results, candidates, TopN), nil
}
