package steps

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/stevehiehn/recipe-executor/internal/runctx"
	"github.com/stevehiehn/recipe-executor/internal/step"
	"github.com/stevehiehn/recipe-executor/internal/template"
)

// Conditional evaluates condition and runs the if_true or if_false branch.
//
// A string condition is rendered first, then evaluated as an expr boolean
// expression with the context artifacts as variables and three helpers:
// file_exists(path), all_files_exist(paths) and file_is_newer(a, b).
// Unknown variables evaluate to nil. A branch is a list of steps or an
// object with a "steps" list; a missing branch is a no-op.
type Conditional struct {
	cfg    step.Config
	logger *slog.Logger
}

func NewConditional(cfg step.Config, logger *slog.Logger) (step.Step, error) {
	if _, ok := cfg["condition"]; !ok {
		return nil, fmt.Errorf("conditional: missing required field 'condition'")
	}
	return &Conditional{cfg: cfg, logger: logger}, nil
}

func (s *Conditional) Execute(ctx context.Context, rc *runctx.Context) error {
	result, err := s.evaluate(rc)
	if err != nil {
		return fmt.Errorf("conditional: %w", err)
	}
	branch := "if_false"
	if result {
		branch = "if_true"
	}
	s.logger.Debug("condition evaluated", "result", result, "branch", branch)

	steps, ok := s.cfg[branch]
	if !ok || steps == nil {
		return nil
	}
	if err := runSteps(ctx, steps, rc, s.logger); err != nil {
		return fmt.Errorf("conditional: %s: %w", branch, err)
	}
	return nil
}

func (s *Conditional) evaluate(rc *runctx.Context) (bool, error) {
	switch c := s.cfg["condition"].(type) {
	case bool:
		return c, nil
	case string:
		rendered, err := template.Render(c, rc)
		if err != nil {
			return false, err
		}
		return Evaluate(rendered, rc.Snapshot())
	default:
		return false, fmt.Errorf("condition must be a string or a boolean, got %T", c)
	}
}

// Evaluate runs a boolean expression against vars plus the file helpers.
// An empty expression is false.
func Evaluate(condition string, vars map[string]any) (bool, error) {
	condition = strings.TrimSpace(condition)
	if condition == "" {
		return false, nil
	}
	env := make(map[string]any, len(vars)+3)
	for k, v := range vars {
		env[k] = v
	}
	env["file_exists"] = fileExists
	env["all_files_exist"] = allFilesExist
	env["file_is_newer"] = fileIsNewer

	program, err := expr.Compile(condition, expr.Env(env), expr.AllowUndefinedVariables(), expr.AsBool())
	if err != nil {
		return false, fmt.Errorf("compiling condition %q: %w", condition, err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("evaluating condition %q: %w", condition, err)
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q did not produce a boolean", condition)
	}
	return b, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func allFilesExist(paths []any) bool {
	for _, p := range paths {
		s, ok := p.(string)
		if !ok || !fileExists(s) {
			return false
		}
	}
	return true
}

// fileIsNewer reports whether a was modified after b. A missing b counts
// as older; a missing a is never newer.
func fileIsNewer(a, b string) bool {
	ia, err := os.Stat(a)
	if err != nil {
		return false
	}
	ib, err := os.Stat(b)
	if err != nil {
		return true
	}
	return ia.ModTime().After(ib.ModTime())
}
