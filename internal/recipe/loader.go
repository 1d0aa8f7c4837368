package recipe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	rerrors "github.com/stevehiehn/recipe-executor/internal/errors"
	"github.com/stevehiehn/recipe-executor/internal/step"
)

// Load normalizes any supported recipe source into a Recipe:
//
//   - a string naming an existing file is read with LoadFile
//   - any other string, or a []byte, is parsed as raw JSON
//   - a Recipe, *Recipe or []Step is validated as is
//   - a decoded document (map[string]any, []any, []map[string]any) is
//     validated without parsing
//
// Every failure is a RECIPE_FORMAT_ERROR.
func Load(src any) (*Recipe, error) {
	switch v := src.(type) {
	case nil:
		return nil, rerrors.NewRecipeFormat(rerrors.NoStep, "recipe is nil", nil)
	case *Recipe:
		if v == nil {
			return nil, rerrors.NewRecipeFormat(rerrors.NoStep, "recipe is nil", nil)
		}
		return checkRecipe(v)
	case Recipe:
		return checkRecipe(&v)
	case []Step:
		return checkRecipe(&Recipe{Steps: v})
	case string:
		if isFile(v) {
			return LoadFile(v)
		}
		r, err := Parse([]byte(v))
		if err != nil && !looksLikeJSON(v) {
			return nil, rerrors.NewRecipeFormat(rerrors.NoStep,
				fmt.Sprintf("recipe %q is neither an existing file nor a JSON document", truncate(v)), nil)
		}
		return r, err
	case []byte:
		return Parse(v)
	case map[string]any, []any:
		return fromDocument(v)
	case []map[string]any:
		steps := make([]any, len(v))
		for i, m := range v {
			steps[i] = m
		}
		return fromDocument(steps)
	default:
		return nil, rerrors.NewRecipeFormat(rerrors.NoStep, fmt.Sprintf("unsupported recipe source %T", src), nil)
	}
}

// LoadFile reads a recipe file. Files ending in .yaml or .yml are YAML.
// Anything else is parsed as JSON first; if that fails, the first fenced
// code block tagged json is parsed instead, so Markdown documents can
// carry a recipe.
func LoadFile(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, rerrors.NewRecipeFormat(rerrors.NoStep, "reading recipe file", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, rerrors.NewRecipeFormat(rerrors.NoStep, fmt.Sprintf("parsing YAML recipe %s", path), err)
		}
		return fromDocument(doc)
	}

	doc, jsonErr := decodeJSON(data)
	if jsonErr == nil {
		return fromDocument(doc)
	}

	block, ok := FirstJSONBlock(data)
	if !ok {
		return nil, rerrors.NewRecipeFormat(rerrors.NoStep,
			fmt.Sprintf("recipe %s is not JSON and contains no json code block", path), jsonErr)
	}
	doc, err = decodeJSON([]byte(block))
	if err != nil {
		return nil, rerrors.NewRecipeFormat(rerrors.NoStep,
			fmt.Sprintf("parsing json code block in %s", path), err)
	}
	return fromDocument(doc)
}

// Parse parses a raw JSON recipe document.
func Parse(data []byte) (*Recipe, error) {
	doc, err := decodeJSON(data)
	if err != nil {
		return nil, rerrors.NewRecipeFormat(rerrors.NoStep, "parsing JSON recipe", err)
	}
	return fromDocument(doc)
}

func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after JSON document")
	}
	return doc, nil
}

// fromDocument turns a decoded JSON/YAML document into a Recipe. The
// per-step "type" check runs before schema validation so a missing type is
// always reported with its position.
func fromDocument(doc any) (*Recipe, error) {
	r := &Recipe{}
	var rawSteps []any

	switch v := doc.(type) {
	case map[string]any:
		steps, ok := v["steps"]
		if !ok {
			return nil, rerrors.NewRecipeFormat(rerrors.NoStep, `recipe has no "steps" field`, nil)
		}
		list, ok := steps.([]any)
		if !ok && steps != nil {
			return nil, rerrors.NewRecipeFormat(rerrors.NoStep, fmt.Sprintf(`recipe "steps" must be a list, got %T`, steps), nil)
		}
		rawSteps = list
		r.Name, _ = v["name"].(string)
		r.Description, _ = v["description"].(string)
	case []any:
		rawSteps = v
		doc = map[string]any{"steps": v}
	default:
		return nil, rerrors.NewRecipeFormat(rerrors.NoStep, fmt.Sprintf("recipe must be an object or a list of steps, got %T", doc), nil)
	}

	r.Steps = make([]Step, 0, len(rawSteps))
	for i, raw := range rawSteps {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, rerrors.NewRecipeFormat(i, fmt.Sprintf("step is not an object (got %T)", raw), nil)
		}
		s, err := stepFromMap(m)
		if err != nil {
			return nil, rerrors.NewRecipeFormat(i, err.Error(), nil)
		}
		r.Steps = append(r.Steps, s)
	}

	if err := validateDocument(doc); err != nil {
		return nil, err
	}
	return r, nil
}

func checkRecipe(in *Recipe) (*Recipe, error) {
	out := &Recipe{Name: in.Name, Description: in.Description, Steps: make([]Step, len(in.Steps))}
	for i, s := range in.Steps {
		if s.Type == "" {
			return nil, rerrors.NewRecipeFormat(i, `step is missing the "type" field`, nil)
		}
		cfg := make(step.Config, len(s.Config))
		for k, v := range s.Config {
			cfg[k] = v
		}
		out.Steps[i] = Step{Type: s.Type, Config: cfg}
	}
	return out, nil
}

func isFile(s string) bool {
	if s == "" || strings.ContainsAny(s, "\n{[") {
		return false
	}
	info, err := os.Stat(s)
	return err == nil && !info.IsDir()
}

func looksLikeJSON(s string) bool {
	t := strings.TrimSpace(s)
	return strings.HasPrefix(t, "{") || strings.HasPrefix(t, "[")
}

func truncate(s string) string {
	const max = 60
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
