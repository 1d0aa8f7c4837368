package steps

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/stevehiehn/recipe-executor/internal/runctx"
	"github.com/stevehiehn/recipe-executor/internal/step"
	"github.com/stevehiehn/recipe-executor/internal/template"
)

// Loop runs substeps once per item, one item at a time.
//
// items is either a list (strings in it are rendered) or a string naming a
// context path such as "plan.components"; a string containing template
// syntax is rendered first. Each iteration runs on a clone of the context
// with the item stored under item_key (default "item") and its position
// under "__index" ("__key" as well when iterating a map). The value left
// under item_key is the iteration's result. Results are stored under
// result_key as a list, or as a map when items was a map.
//
// With fail_fast (default true) the first failing iteration fails the
// step. Otherwise failures are collected under "<result_key>__errors" and
// the failed items are left out of the results.
type Loop struct {
	cfg    step.Config
	logger *slog.Logger
}

func NewLoop(cfg step.Config, logger *slog.Logger) (step.Step, error) {
	if _, ok := cfg["items"]; !ok {
		return nil, fmt.Errorf("loop: missing required field 'items'")
	}
	if _, ok := cfg["substeps"]; !ok {
		return nil, fmt.Errorf("loop: missing required field 'substeps'")
	}
	if stringField(cfg, "result_key", "") == "" {
		return nil, fmt.Errorf("loop: missing required field 'result_key'")
	}
	if _, err := boolField(cfg, "fail_fast", true); err != nil {
		return nil, fmt.Errorf("loop: %w", err)
	}
	return &Loop{cfg: cfg, logger: logger}, nil
}

// LoopError records a failed iteration when fail_fast is off.
type LoopError struct {
	Index int    `json:"index"`
	Key   string `json:"key,omitempty"`
	Error string `json:"error"`
}

func (s *Loop) Execute(ctx context.Context, rc *runctx.Context) error {
	items, err := s.items(rc)
	if err != nil {
		return fmt.Errorf("loop: %w", err)
	}
	itemKey := stringField(s.cfg, "item_key", "item")
	resultKey, err := renderField(s.cfg, "result_key", rc)
	if err != nil {
		return fmt.Errorf("loop: %w", err)
	}
	failFast, _ := boolField(s.cfg, "fail_fast", true)

	var (
		keys   []string
		values []any
	)
	m, isMap := items.(map[string]any)
	switch {
	case isMap:
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			values = append(values, m[k])
		}
	default:
		list, ok := items.([]any)
		if !ok {
			list, ok = template.Normalize(items).([]any)
		}
		if !ok {
			return fmt.Errorf("loop: items must be a list or a map, got %T", items)
		}
		values = list
	}

	s.logger.Info("loop started", "items", len(values))
	results := make([]any, 0, len(values))
	byKey := make(map[string]any, len(keys))
	var failures []LoopError

	for i, item := range values {
		iter := rc.Clone()
		iter.Set(itemKey, item)
		iter.Set("__index", i)
		key := ""
		if isMap {
			key = keys[i]
			iter.Set("__key", key)
		}

		if err := runSteps(ctx, s.cfg["substeps"], iter, s.logger.With("iteration", i)); err != nil {
			if failFast {
				return fmt.Errorf("loop: item %d: %w", i, err)
			}
			s.logger.Warn("loop iteration failed", "iteration", i, "error", err)
			failures = append(failures, LoopError{Index: i, Key: key, Error: err.Error()})
			continue
		}

		out := iter.GetOrDefault(itemKey, nil)
		if isMap {
			byKey[key] = out
		} else {
			results = append(results, out)
		}
	}

	if isMap {
		rc.Set(resultKey, byKey)
	} else {
		rc.Set(resultKey, results)
	}
	if len(failures) > 0 {
		rc.Set(resultKey+"__errors", failures)
	}
	s.logger.Info("loop completed", "items", len(values), "failed", len(failures))
	return nil
}

func (s *Loop) items(rc *runctx.Context) (any, error) {
	switch v := s.cfg["items"].(type) {
	case string:
		path := strings.TrimSpace(v)
		if template.HasSyntax(path) {
			rendered, err := template.Render(path, rc)
			if err != nil {
				return nil, err
			}
			path = strings.TrimSpace(rendered)
		}
		if path == "" {
			return nil, fmt.Errorf("items path is empty")
		}
		return lookupPath(rc, path)
	case []any:
		return template.RenderValue(v, rc)
	case map[string]any:
		return template.RenderValue(v, rc)
	default:
		return nil, fmt.Errorf("items must be a list, a map or a context path, got %T", v)
	}
}
