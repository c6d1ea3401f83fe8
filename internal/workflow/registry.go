package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry owns the live workflows, one per session.
type Registry struct {
	opts    Options
	idleTTL time.Duration

	mu       sync.Mutex
	sessions map[string]*Workflow
}

// NewRegistry builds a registry whose workflows share opts. A non-positive
// idleTTL disables eviction.
func NewRegistry(opts Options, idleTTL time.Duration) *Registry {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Registry{
		opts:     opts,
		idleTTL:  idleTTL,
		sessions: make(map[string]*Workflow),
	}
}

// Create starts a new Idle workflow under a fresh session id.
func (r *Registry) Create() *Workflow {
	w := New(uuid.NewString(), r.opts)
	r.mu.Lock()
	r.sessions[w.ID()] = w
	r.mu.Unlock()
	return w
}

func (r *Registry) Get(id string) (*Workflow, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.sessions[id]
	return w, ok
}

// Remove closes and forgets a session.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	w, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		w.Close()
	}
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Evict removes sessions idle since before now-idleTTL and returns how many.
func (r *Registry) Evict(now time.Time) int {
	if r.idleTTL <= 0 {
		return 0
	}
	cutoff := now.Add(-r.idleTTL)
	var stale []*Workflow
	r.mu.Lock()
	for id, w := range r.sessions {
		if w.idleSince().Before(cutoff) {
			stale = append(stale, w)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()
	for _, w := range stale {
		w.Close()
	}
	return len(stale)
}

// Run evicts idle sessions every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if r.idleTTL <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Evict(r.opts.Now()); n > 0 {
				r.opts.Logger.Info().Int("evicted", n).Msg("workflow: idle sessions evicted")
			}
		}
	}
}

// Shutdown closes every session and waits for their in-flight work.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	all := make([]*Workflow, 0, len(r.sessions))
	for _, w := range r.sessions {
		all = append(all, w)
	}
	r.sessions = make(map[string]*Workflow)
	r.mu.Unlock()
	for _, w := range all {
		w.Close()
		w.Wait()
	}
}
