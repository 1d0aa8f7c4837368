package steps

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stevehiehn/recipe-executor/internal/runctx"
	"github.com/stevehiehn/recipe-executor/internal/step"
	"github.com/stevehiehn/recipe-executor/internal/template"
)

// SetContext stores value under key. Strings nested anywhere in value are
// rendered.
//
// if_exists chooses what happens when key is already set: "overwrite"
// (default) replaces it, "merge" combines old and new: strings are
// concatenated, lists appended, maps merged shallowly, anything else
// becomes a two-element list.
type SetContext struct {
	cfg    step.Config
	logger *slog.Logger
}

func NewSetContext(cfg step.Config, logger *slog.Logger) (step.Step, error) {
	if stringField(cfg, "key", "") == "" {
		return nil, fmt.Errorf("set_context: missing required field 'key'")
	}
	if _, ok := cfg["value"]; !ok {
		return nil, fmt.Errorf("set_context: missing required field 'value'")
	}
	switch mode := stringField(cfg, "if_exists", "overwrite"); mode {
	case "overwrite", "merge":
	default:
		return nil, fmt.Errorf("set_context: unknown if_exists %q", mode)
	}
	return &SetContext{cfg: cfg, logger: logger}, nil
}

func (s *SetContext) Execute(_ context.Context, rc *runctx.Context) error {
	key, err := renderField(s.cfg, "key", rc)
	if err != nil {
		return fmt.Errorf("set_context: %w", err)
	}
	value, err := template.RenderValue(s.cfg["value"], rc)
	if err != nil {
		return fmt.Errorf("set_context: %w", err)
	}

	if stringField(s.cfg, "if_exists", "overwrite") == "merge" && rc.Contains(key) {
		old, _ := rc.Get(key)
		value = merge(old, value)
	}
	rc.Set(key, value)
	s.logger.Debug("set context value", "key", key)
	return nil
}

func merge(old, value any) any {
	switch o := old.(type) {
	case string:
		if v, ok := value.(string); ok {
			return o + v
		}
	case []any:
		out := append([]any(nil), o...)
		if v, ok := value.([]any); ok {
			return append(out, v...)
		}
		return append(out, value)
	case map[string]any:
		if v, ok := value.(map[string]any); ok {
			out := make(map[string]any, len(o)+len(v))
			for k, val := range o {
				out[k] = val
			}
			for k, val := range v {
				out[k] = val
			}
			return out
		}
	}
	return []any{old, value}
}
