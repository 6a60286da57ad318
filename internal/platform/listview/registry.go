package listview

import (
	"strings"
	"sync"
)

// Registry keeps each session's views between requests so an errored
// refresh can fall back to the set that user last saw.
type Registry struct {
	mu    sync.Mutex
	views map[string]any
}

func NewRegistry() *Registry {
	return &Registry{views: make(map[string]any)}
}

func registryKey(sessionID, name string) string {
	return sessionID + "\x00" + name
}

// Lookup returns the session's view called name, creating it on first use.
// A name must always be used with the same record type. A nil registry
// hands out a fresh view every time.
func Lookup[T any](r *Registry, sessionID, name string) *View[T] {
	if r == nil {
		return NewView[T]()
	}
	key := registryKey(sessionID, name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.views[key].(*View[T]); ok {
		return v
	}
	v := NewView[T]()
	r.views[key] = v
	return v
}

// Forget drops every view held for sessionID.
func (r *Registry) Forget(sessionID string) {
	prefix := sessionID + "\x00"
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.views {
		if strings.HasPrefix(k, prefix) {
			delete(r.views, k)
		}
	}
}

// Len is the number of live views.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}
