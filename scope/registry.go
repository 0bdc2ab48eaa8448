package scope

import (
	"errors"
	"strings"
	"sync"
)

// Registry holds the role labels an engine is allowed to put into a scope.
// Labels are registered during startup; after [Registry.Freeze] the set is
// read-only.
type Registry struct {
	mu     sync.RWMutex
	labels map[string]struct{}
	order  []string
	frozen bool
}

// NewRegistry returns an empty registry, optionally seeded with labels.
func NewRegistry(labels ...string) (*Registry, error) {
	r := &Registry{labels: make(map[string]struct{})}
	for _, l := range labels {
		if err := r.Register(l); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a label. Labels may not be blank or contain whitespace, and
// may not be registered twice. Must be called before [Registry.Freeze].
func (r *Registry) Register(label string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return errors.New("registry frozen")
	}
	if label == "" || strings.TrimSpace(label) != label || strings.ContainsAny(label, " \t\r\n") {
		return errors.New("scope label must be non-empty and contain no whitespace")
	}
	if _, exists := r.labels[label]; exists {
		return errors.New("scope label already registered")
	}
	r.labels[label] = struct{}{}
	r.order = append(r.order, label)
	return nil
}

// Known reports whether label has been registered.
func (r *Registry) Known(label string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.labels[label]
	return ok
}

// Unknown returns the labels in scope that are not registered, in order.
func (r *Registry) Unknown(scope []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var missing []string
	for _, l := range scope {
		if _, ok := r.labels[l]; !ok {
			missing = append(missing, l)
		}
	}
	return missing
}

// Labels returns the registered labels in registration order.
func (r *Registry) Labels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Frozen reports whether [Registry.Freeze] has been called.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}
