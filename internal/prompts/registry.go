package prompts

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNotFound is returned when a prompt name or version is not registered.
var ErrNotFound = errors.New("not found in registry")

// Prompt is a versioned system prompt.
type Prompt struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Content string `json:"content"`
}

// Registry holds named prompts with version history. Registering an existing
// name appends a version and makes it current.
type Registry struct {
	mu       sync.RWMutex
	current  map[string]Prompt
	versions map[string][]Prompt
}

func NewRegistry() *Registry {
	return &Registry{
		current:  make(map[string]Prompt),
		versions: make(map[string][]Prompt),
	}
}

func (r *Registry) Register(p Prompt) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.current[p.Name] = p
	r.versions[p.Name] = append(r.versions[p.Name], p)
}

// Get returns the current version of the named prompt.
func (r *Registry) Get(name string) (Prompt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.current[name]
	if !ok {
		return Prompt{}, fmt.Errorf("prompt %q: %w", name, ErrNotFound)
	}
	return p, nil
}

// Version returns a specific registered version of the named prompt.
func (r *Registry) Version(name, version string) (Prompt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.versions[name] {
		if p.Version == version {
			return p, nil
		}
	}
	return Prompt{}, fmt.Errorf("prompt %q version %q: %w", name, version, ErrNotFound)
}

// Names returns all registered prompt names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.current))
	for name := range r.current {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Versions returns the registered versions of a name in registration order.
func (r *Registry) Versions(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.versions[name]))
	for _, p := range r.versions[name] {
		out = append(out, p.Version)
	}
	return out
}
