package source

import (
	"fmt"
	"sync"

	"NewsScanner/internal/domain"
	"NewsScanner/internal/ports"
)

type entry struct {
	source  ports.Source
	enabled bool
}

// Registry keeps the ordered set of configured sources.
// Enabling or disabling a source never touches its adapter.
type Registry struct {
	mu      sync.RWMutex
	entries []*entry
	index   map[string]*entry
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: map[string]*entry{}}
}

// Register appends a source in enabled state. Names must be unique.
func (r *Registry) Register(src ports.Source) error {
	return r.register(src, true)
}

// RegisterDisabled appends a source that stays inactive until enabled.
func (r *Registry) RegisterDisabled(src ports.Source) error {
	return r.register(src, false)
}

func (r *Registry) register(src ports.Source, enabled bool) error {
	if src == nil {
		return fmt.Errorf("source is nil")
	}
	name := src.Descriptor().Name
	if name == "" {
		return fmt.Errorf("source name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.index == nil {
		r.index = map[string]*entry{}
	}
	if _, exists := r.index[name]; exists {
		return fmt.Errorf("source %s is already registered", name)
	}

	e := &entry{source: src, enabled: enabled}
	r.entries = append(r.entries, e)
	r.index[name] = e
	return nil
}

// Active returns the enabled sources in registration order.
func (r *Registry) Active() []ports.Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	active := make([]ports.Source, 0, len(r.entries))
	for _, e := range r.entries {
		if e.enabled {
			active = append(active, e.source)
		}
	}
	return active
}

// Descriptors lists every registered source, enabled or not.
func (r *Registry) Descriptors() []domain.SourceDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.SourceDescriptor, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.source.Descriptor())
	}
	return out
}

// SetEnabled toggles a source by name.
func (r *Registry) SetEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.index[name]
	if !ok {
		return fmt.Errorf("source %s: %w", name, domain.ErrUnknownSource)
	}
	e.enabled = enabled
	return nil
}

// Resolve returns a source by name or an error if it is absent.
func (r *Registry) Resolve(name string) (ports.Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.index[name]; ok {
		return e.source, nil
	}
	return nil, fmt.Errorf("source %s: %w", name, domain.ErrUnknownSource)
}
