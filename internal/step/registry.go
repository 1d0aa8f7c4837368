package step

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	rerrors "github.com/stevehiehn/recipe-executor/internal/errors"
)

// Registry maps step type names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// Default is the process-wide registry built-in steps install themselves in.
var Default = NewRegistry()

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register installs a factory. Returns an error if the name already exists.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("step: type name is required")
	}
	if factory == nil {
		return fmt.Errorf("step: factory is required for %s", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("step: %s already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// MustRegister panics if registration fails.
func (r *Registry) MustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Resolve returns the factory for name or an UNKNOWN_STEP_TYPE error.
func (r *Registry) Resolve(name string) (Factory, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, rerrors.NewUnknownStepType(rerrors.NoStep, name, r.Types())
	}
	return factory, nil
}

// Known reports whether name is registered.
func (r *Registry) Known(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Types returns the registered names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New resolves name and builds the step. A nil logger is replaced with a
// discarding one.
func (r *Registry) New(name string, cfg Config, logger *slog.Logger) (Step, error) {
	factory, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = DiscardLogger()
	}
	if cfg == nil {
		cfg = Config{}
	}
	return factory(cfg, logger)
}

// Register installs a factory in the Default registry.
func Register(name string, factory Factory) error {
	return Default.Register(name, factory)
}

// Resolve looks name up in the Default registry.
func Resolve(name string) (Factory, error) {
	return Default.Resolve(name)
}
