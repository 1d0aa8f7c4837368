package steps

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/stevehiehn/recipe-executor/internal/runctx"
	"github.com/stevehiehn/recipe-executor/internal/step"
	"github.com/stevehiehn/recipe-executor/internal/template"
)

// ExecuteRecipe runs the recipe at recipe_path on the current context,
// after applying context_overrides (values rendered, keys set in sorted
// order).
type ExecuteRecipe struct {
	cfg    step.Config
	logger *slog.Logger
}

func NewExecuteRecipe(cfg step.Config, logger *slog.Logger) (step.Step, error) {
	if stringField(cfg, "recipe_path", "") == "" {
		return nil, fmt.Errorf("execute_recipe: missing required field 'recipe_path'")
	}
	if o, ok := cfg["context_overrides"]; ok && o != nil {
		if _, ok := o.(map[string]any); !ok {
			return nil, fmt.Errorf("execute_recipe: context_overrides must be an object, got %T", o)
		}
	}
	return &ExecuteRecipe{cfg: cfg, logger: logger}, nil
}

func (s *ExecuteRecipe) Execute(ctx context.Context, rc *runctx.Context) error {
	path, err := renderField(s.cfg, "recipe_path", rc)
	if err != nil {
		return fmt.Errorf("execute_recipe: %w", err)
	}
	overrides, _ := s.cfg["context_overrides"].(map[string]any)
	rendered, err := template.RenderMap(overrides, rc)
	if err != nil {
		return fmt.Errorf("execute_recipe: %w", err)
	}
	keys := make([]string, 0, len(rendered))
	for k := range rendered {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		rc.Set(k, rendered[k])
	}

	s.logger.Info("executing sub-recipe", "recipe", path)
	if err := runSteps(ctx, path, rc, s.logger); err != nil {
		return fmt.Errorf("execute_recipe: %s: %w", path, err)
	}
	return nil
}
