// Package step defines the contract between the executor and every step
// implementation, and the table that maps a recipe's "type" tag to a
// constructor.
//
// A step is built from its raw, unrendered configuration. Any templated
// field is rendered inside Execute, against the context as it exists when
// the step runs, so a step can consume what the previous step produced.
package step

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/stevehiehn/recipe-executor/internal/runctx"
)

// Config is a step's configuration as it appears in the recipe.
type Config map[string]any

// Step is one executable unit of a recipe.
type Step interface {
	Execute(ctx context.Context, rc *runctx.Context) error
}

// Factory builds a step from its configuration. The logger is never nil.
type Factory func(cfg Config, logger *slog.Logger) (Step, error)

// Func adapts a plain function to the Step interface.
type Func func(ctx context.Context, rc *runctx.Context) error

func (f Func) Execute(ctx context.Context, rc *runctx.Context) error {
	return f(ctx, rc)
}

// Decode copies cfg into the struct pointed to by out, using the struct's
// json tags.
func Decode(cfg Config, out any) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}
	return nil
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
