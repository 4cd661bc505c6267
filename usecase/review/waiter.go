package review

import (
	"sync"

	"github.com/taskrelay/backend/domain"
)

// WaiterRegistry connects the CI webhook to in-flight reviews. A review
// waiting on CI registers under the submission's repo; the next completed CI
// signal for that repo resolves it. Single-process, in-memory only.
type WaiterRegistry struct {
	mu      sync.Mutex
	waiters map[string]chan domain.CISignal
}

func NewWaiterRegistry() *WaiterRegistry {
	return &WaiterRegistry{waiters: make(map[string]chan domain.CISignal)}
}

// Await registers interest in the repo's next completed CI signal. The second
// return is false when another review already holds the slot for the repo.
func (r *WaiterRegistry) Await(repo string) (<-chan domain.CISignal, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.waiters[repo]; busy {
		return nil, false
	}
	ch := make(chan domain.CISignal, 1)
	r.waiters[repo] = ch
	return ch, true
}

// Cancel releases the repo's waiter slot without resolving it.
func (r *WaiterRegistry) Cancel(repo string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.waiters, repo)
}

// Resolve delivers a completed CI signal to the repo's waiter, if any.
// Signals for repos nobody is waiting on are dropped.
func (r *WaiterRegistry) Resolve(sig domain.CISignal) {
	if !sig.Completed() {
		return
	}
	r.mu.Lock()
	ch, ok := r.waiters[sig.Repo]
	if ok {
		delete(r.waiters, sig.Repo)
	}
	r.mu.Unlock()
	if ok {
		ch <- sig
	}
}
