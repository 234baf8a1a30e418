package memory

import (
	"sync"

	"github.com/JakeFAU/apify-webhook-monitor/internal/monitor"
)

// Registry is a mutex-guarded run id to handle map.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]*monitor.RunHandle
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]*monitor.RunHandle)}
}

// Add stores h unless its run id is already present.
func (r *Registry) Add(h *monitor.RunHandle) (*monitor.RunHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.handles[h.RunID]; ok {
		return existing, false
	}
	r.handles[h.RunID] = h
	return h, true
}

// Get fetches the handle for runID.
func (r *Registry) Get(runID string) (*monitor.RunHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[runID]
	return h, ok
}

// Delete removes runID and returns the handle it pointed at.
func (r *Registry) Delete(runID string) (*monitor.RunHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[runID]
	if ok {
		delete(r.handles, runID)
	}
	return h, ok
}

// CompareAndDelete removes runID only while it still maps to h.
func (r *Registry) CompareAndDelete(runID string, h *monitor.RunHandle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.handles[runID]; ok && current == h {
		delete(r.handles, runID)
		return true
	}
	return false
}

// List returns the current handles in no particular order.
func (r *Registry) List() []*monitor.RunHandle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*monitor.RunHandle, 0, len(r.handles))
	for _, h := range r.handles {
		out = append(out, h)
	}
	return out
}

// Len reports how many runs are tracked.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

var _ monitor.Registry = (*Registry)(nil)
