package llm

import (
	"context"

	"go.uber.org/zap"

	"github.com/taskrelay/backend/domain"
)

// Router fans a completion request across configured backends in preference
// order. The preferred backend is tried first, then the rest in registration
// order; the first success wins and nothing is retried per backend.
type Router struct {
	backends  []Backend
	preferred string
	logger    *zap.Logger
}

func NewRouter(backends []Backend, preferred string, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{backends: backends, preferred: preferred, logger: logger}
}

// Available reports whether at least one backend is configured.
func (r *Router) Available() bool {
	return r != nil && len(r.backends) > 0
}

func (r *Router) ordered() []Backend {
	if r.preferred == "" {
		return r.backends
	}
	out := make([]Backend, 0, len(r.backends))
	for _, b := range r.backends {
		if b.Name() == r.preferred {
			out = append(out, b)
		}
	}
	for _, b := range r.backends {
		if b.Name() != r.preferred {
			out = append(out, b)
		}
	}
	return out
}

// Complete tries each backend until one answers. When every backend fails the
// caller gets a BACKEND_EXHAUSTED error and is expected to fall back to a
// deterministic path.
func (r *Router) Complete(ctx context.Context, prompt, systemPrompt string) (string, error) {
	if !r.Available() {
		return "", domain.NewError(domain.ErrCodeBackendExhausted, "no llm backends configured")
	}

	var lastErr error
	for _, b := range r.ordered() {
		content, err := b.Complete(ctx, prompt, systemPrompt)
		if err == nil {
			return content, nil
		}
		r.logger.Warn("llm backend failed",
			zap.String("backend", b.Name()),
			zap.Error(err))
		lastErr = err
	}
	return "", domain.WrapError(domain.ErrCodeBackendExhausted, "all llm backends failed", lastErr)
}
