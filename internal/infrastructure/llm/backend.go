package llm

import (
	"context"
	"time"
)

// Backend is a single text-completion API. Implementations do not retry;
// fallback across backends is the caller's job.
type Backend interface {
	Name() string
	Complete(ctx context.Context, prompt, systemPrompt string) (string, error)
}

// Options are the fixed sampling parameters shared by every backend. Low
// temperature and a bounded output length bias the models toward
// deterministic, parseable output.
type Options struct {
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

func (o Options) withDefaults() Options {
	if o.Temperature <= 0 {
		o.Temperature = 0.1
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 2000
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	return o
}
