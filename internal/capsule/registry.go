package capsule

import (
	"sync"

	"github.com/datacapsule-io/dcserver/internal/dchash"
)

// Registry is the server process's table of live Capsule state, one entry
// per Datacapsule it has ever touched this run.
type Registry struct {
	mu       sync.RWMutex
	capsules map[dchash.Hash]*Capsule
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{capsules: make(map[dchash.Hash]*Capsule)}
}

// Get returns the live Capsule for name, if loaded.
func (r *Registry) Get(name dchash.Hash) (*Capsule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.capsules[name]
	return c, ok
}

// Put installs c into the registry, replacing anything previously keyed
// under c.Capsule.
func (r *Registry) Put(c *Capsule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capsules[c.Capsule] = c
}

// GetOrCreate returns the live Capsule for name, constructing it via build
// if this is the first reference this run. build is called at most once
// per name even if multiple callers race for the same not-yet-resident
// capsule (double-checked locking): the losing caller's build result, if
// any, is discarded in favor of the one already installed. This is what
// keeps a capsule's writer lock and notify hub singular per Datacapsule
// (spec §5) instead of each racing caller building its own.
func (r *Registry) GetOrCreate(name dchash.Hash, build func() (*Capsule, error)) (*Capsule, error) {
	r.mu.RLock()
	if c, ok := r.capsules[name]; ok {
		r.mu.RUnlock()
		return c, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.capsules[name]; ok {
		return c, nil
	}
	c, err := build()
	if err != nil {
		return nil, err
	}
	r.capsules[name] = c
	return c, nil
}
