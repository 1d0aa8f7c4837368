package steps

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/stevehiehn/recipe-executor/internal/executor"
	"github.com/stevehiehn/recipe-executor/internal/runctx"
	"github.com/stevehiehn/recipe-executor/internal/step"
	"github.com/stevehiehn/recipe-executor/internal/template"
)

// renderField renders cfg[key] when it is a string. Absent keys render
// as "".
func renderField(cfg step.Config, key string, rc *runctx.Context) (string, error) {
	raw, ok := cfg[key]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string, got %T", key, raw)
	}
	return template.Render(s, rc)
}

// stringField returns cfg[key] when it is a string, else def.
func stringField(cfg step.Config, key, def string) string {
	if s, ok := cfg[key].(string); ok && s != "" {
		return s
	}
	return def
}

func boolField(cfg step.Config, key string, def bool) (bool, error) {
	switch v := cfg[key].(type) {
	case nil:
		return def, nil
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return def, fmt.Errorf("%s must be a boolean, got %q", key, v)
		}
		return b, nil
	default:
		return def, fmt.Errorf("%s must be a boolean, got %T", key, v)
	}
}

func intField(cfg step.Config, key string, def int) (int, error) {
	switch v := cfg[key].(type) {
	case nil:
		return def, nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return def, fmt.Errorf("%s must be an integer, got %q", key, v)
		}
		return n, nil
	default:
		return def, fmt.Errorf("%s must be an integer, got %T", key, v)
	}
}

// lookupPath resolves a dotted path such as "plan.items" in the context.
// Values that are not maps are normalized before descending into them, so
// structs can be reached through their JSON field names.
func lookupPath(rc *runctx.Context, path string) (any, error) {
	keys := strings.Split(strings.TrimSpace(path), ".")
	current, err := rc.Get(keys[0])
	if err != nil {
		return nil, err
	}
	for _, k := range keys[1:] {
		m, ok := current.(map[string]any)
		if !ok {
			m, ok = template.Normalize(current).(map[string]any)
		}
		if !ok {
			return nil, fmt.Errorf("key %q: not an object", k)
		}
		v, ok := m[k]
		if !ok {
			return nil, fmt.Errorf("key %q not found", k)
		}
		current = v
	}
	return current, nil
}

// runSteps runs src as a sub-recipe on rc with the executor that is
// running the current step.
func runSteps(ctx context.Context, src any, rc *runctx.Context, logger *slog.Logger) error {
	ex, ok := executor.FromContext(ctx)
	if !ok {
		ex = executor.New(nil)
	}
	_, err := ex.Execute(ctx, src, rc, logger)
	return err
}
