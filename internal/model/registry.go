package model

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

var modelNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// Registry holds the registered models of one client, keyed by their
// lower-cased name.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*Model
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]*Model)}
}

// Add registers a model. Registration fails on an invalid name or a
// duplicate; it never panics.
func (r *Registry) Add(m *Model) error {
	if !modelNamePattern.MatchString(m.Name()) {
		return errors.Errorf("invalid model name %q", m.Name())
	}

	key := strings.ToLower(m.Name())
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.models[key]; exists {
		return errors.Errorf("model %q is already registered", m.Name())
	}
	r.models[key] = m
	return nil
}

// MustAdd registers a model and panics on failure. Intended for
// registration at startup where a bad declaration is a programming error.
func (r *Registry) MustAdd(m *Model) {
	if err := r.Add(m); err != nil {
		panic(fmt.Sprintf("cqlorm: %v", err))
	}
}

// Get looks up a model by name, case-insensitively.
func (r *Registry) Get(name string) (*Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[strings.ToLower(name)]
	if !ok {
		return nil, errors.Wrapf(ErrModelNotRegistered, "model %q", name)
	}
	return m, nil
}

// Names returns the registered model names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.models))
	for _, m := range r.models {
		names = append(names, m.Name())
	}
	sort.Strings(names)
	return names
}
