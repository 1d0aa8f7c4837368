package recipe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	rerrors "github.com/stevehiehn/recipe-executor/internal/errors"
)

const schemaID = "https://github.com/stevehiehn/recipe-executor/schemas/recipe.json"

// GenerateJSONSchema produces the JSON Schema (Draft 2020-12) of a recipe
// document. Only the envelope and the "type" tag are described; step
// specific fields are left open.
func GenerateJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.AllowAdditionalProperties = true

	s := r.Reflect(&Recipe{})
	s.ID = schemaID
	s.Title = "Recipe"
	s.Description = "An ordered list of steps run against one shared context"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}

var compiledSchema = sync.OnceValues(func() (*sjsonschema.Schema, error) {
	raw, err := GenerateJSONSchema()
	if err != nil {
		return nil, err
	}
	doc, err := sjsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	c := sjsonschema.NewCompiler()
	if err := c.AddResource("recipe.json", doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return c.Compile("recipe.json")
})

// validateDocument checks a decoded document against the recipe schema.
// The document is re-encoded first so YAML scalars take their JSON form.
func validateDocument(doc any) error {
	sch, err := compiledSchema()
	if err != nil {
		return rerrors.NewRecipeFormat(rerrors.NoStep, "compiling recipe schema", err)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return rerrors.NewRecipeFormat(rerrors.NoStep, "encoding recipe for validation", err)
	}
	inst, err := sjsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return rerrors.NewRecipeFormat(rerrors.NoStep, "decoding recipe for validation", err)
	}

	err = sch.Validate(inst)
	if err == nil {
		return nil
	}
	ve, ok := err.(*sjsonschema.ValidationError)
	if !ok {
		return rerrors.NewRecipeFormat(rerrors.NoStep, "validating recipe", err)
	}
	causes := flattenValidationErrors(ve)
	first := causes[0]
	index := stepIndex(first.InstanceLocation)
	msgs := make([]string, 0, len(causes))
	for _, c := range causes {
		loc := "/" + strings.Join(c.InstanceLocation, "/")
		msgs = append(msgs, fmt.Sprintf("%s: %v", loc, c.ErrorKind))
	}
	return rerrors.NewRecipeFormat(index, "recipe does not match schema: "+strings.Join(msgs, "; "), nil)
}

func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

// stepIndex extracts i from an instance location of the form steps/i/...
func stepIndex(loc []string) int {
	if len(loc) >= 2 && loc[0] == "steps" {
		if i, err := strconv.Atoi(loc[1]); err == nil {
			return i
		}
	}
	return rerrors.NoStep
}
