package executor

import (
	"fmt"
	"sort"

	rerrors "github.com/stevehiehn/recipe-executor/internal/errors"
	"github.com/stevehiehn/recipe-executor/internal/recipe"
)

// Explanation describes a recipe without running it.
type Explanation struct {
	Name        string        `json:"name,omitempty"`
	Description string        `json:"description,omitempty"`
	Steps       []PlannedStep `json:"steps"`
}

// PlannedStep is one step as written in the recipe. Config is unrendered.
type PlannedStep struct {
	Index      int            `json:"index"`
	Type       string         `json:"type"`
	Registered bool           `json:"registered"`
	Fields     []string       `json:"fields,omitempty"`
	Config     map[string]any `json:"config,omitempty"`
}

// Explain loads src and reports each step and whether its type is
// registered. Nothing is built or executed.
func (e *Executor) Explain(src any) (*Explanation, error) {
	r, err := recipe.Load(src)
	if err != nil {
		return nil, err
	}
	out := &Explanation{Name: r.Name, Description: r.Description, Steps: make([]PlannedStep, len(r.Steps))}
	for i, s := range r.Steps {
		fields := make([]string, 0, len(s.Config))
		for k := range s.Config {
			fields = append(fields, k)
		}
		sort.Strings(fields)
		out.Steps[i] = PlannedStep{
			Index:      i,
			Type:       s.Type,
			Registered: e.registry.Known(s.Type),
			Fields:     fields,
			Config:     s.Config,
		}
	}
	return out, nil
}

// Validate loads src and checks that every step type is registered. Step
// constructors are run too, so missing required fields are reported
// before anything executes.
func (e *Executor) Validate(src any) error {
	r, err := recipe.Load(src)
	if err != nil {
		return err
	}
	for i, s := range r.Steps {
		if !e.registry.Known(s.Type) {
			return rerrors.NewUnknownStepType(i, s.Type, e.registry.Types())
		}
		if _, err := e.registry.New(s.Type, s.Config, nil); err != nil {
			return rerrors.NewStepExecution(i, s.Type, fmt.Errorf("building step: %w", err))
		}
	}
	return nil
}
