package jobqueue

import (
	"fmt"
	"sync"
)

// DecodeFunc rebuilds a Job from its persisted payload.
type DecodeFunc func(payload []byte) (Job, error)

// Registry maps persisted job type names to decode functions. The
// manager uses it during crash recovery to rebuild the jobs inside
// records abandoned by a previous session. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]DecodeFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		decoders: make(map[string]DecodeFunc),
	}
}

// Register associates a type name with a decode function, replacing
// any previous registration.
func (r *Registry) Register(typeName string, fn DecodeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[typeName] = fn
}

// Decode rebuilds a Job of the given type from its payload. Returns
// ErrUnknownJobType when no decoder is registered.
func (r *Registry) Decode(typeName string, payload []byte) (Job, error) {
	r.mu.RLock()
	fn, ok := r.decoders[typeName]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownJobType, typeName)
	}
	return fn(payload)
}

// Types returns all registered type names.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.decoders))
	for name := range r.decoders {
		names = append(names, name)
	}
	return names
}
