package recipe

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/stevehiehn/recipe-executor/internal/step"
)

// Recipe is an ordered list of step descriptors.
type Recipe struct {
	Name        string `json:"name,omitempty" jsonschema:"description=Optional human-readable recipe name"`
	Description string `json:"description,omitempty"`
	Steps       []Step `json:"steps" jsonschema:"description=Steps executed strictly in order"`
}

// Step is one descriptor: a type tag plus the step's raw configuration.
// Config never contains the "type" key.
type Step struct {
	Type   string
	Config step.Config
}

// MarshalJSON writes the descriptor in flat form.
func (s Step) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Config)+1)
	for k, v := range s.Config {
		out[k] = v
	}
	out["type"] = s.Type
	return json.Marshal(out)
}

// UnmarshalJSON accepts the flat and the nested ("config") forms.
func (s *Step) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := stepFromMap(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// JSONSchema describes a step: an object with a string "type" and any other
// fields. Step-specific fields are not validated here.
func (Step) JSONSchema() *jsonschema.Schema {
	props := jsonschema.NewProperties()
	props.Set("type", &jsonschema.Schema{
		Type:        "string",
		MinLength:   jsonschemaUint(1),
		Description: "Registered step type",
	})
	props.Set("config", &jsonschema.Schema{
		Type:        "object",
		Description: "Step configuration; may also be given as sibling fields of type",
	})
	return &jsonschema.Schema{
		Type:                 "object",
		Properties:           props,
		Required:             []string{"type"},
		AdditionalProperties: jsonschema.TrueSchema,
	}
}

func jsonschemaUint(n uint64) *uint64 {
	return &n
}

// stepFromMap normalizes one decoded descriptor. A step whose only fields
// are "type" and an object "config" takes its configuration from "config";
// otherwise every field other than "type" is configuration.
func stepFromMap(m map[string]any) (Step, error) {
	rawType, ok := m["type"]
	if !ok {
		return Step{}, fmt.Errorf(`step is missing the "type" field`)
	}
	typ, ok := rawType.(string)
	if !ok || typ == "" {
		return Step{}, fmt.Errorf(`step "type" must be a non-empty string`)
	}
	if nested, ok := m["config"].(map[string]any); ok && len(m) == 2 {
		cfg := make(step.Config, len(nested))
		for k, v := range nested {
			cfg[k] = v
		}
		return Step{Type: typ, Config: cfg}, nil
	}
	cfg := make(step.Config, len(m))
	for k, v := range m {
		if k == "type" {
			continue
		}
		cfg[k] = v
	}
	return Step{Type: typ, Config: cfg}, nil
}
