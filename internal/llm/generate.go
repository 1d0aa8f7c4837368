package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/stevehiehn/recipe-executor/internal/models"
)

// Generator binds a provider to one model.
type Generator struct {
	provider Provider
	model    ModelID
}

// New returns a generator using p for model.
func New(p Provider, model ModelID) *Generator {
	return &Generator{provider: p, model: model}
}

// NewGenerator parses model and builds its provider from cfg (see
// SettingsFromConfig).
func NewGenerator(model string, cfg map[string]any) (*Generator, error) {
	id, err := ParseModelID(model)
	if err != nil {
		return nil, err
	}
	p, err := NewProvider(id.Provider, SettingsFromConfig(id.Provider, cfg))
	if err != nil {
		return nil, err
	}
	return New(p, id), nil
}

// Model returns the model the generator talks to.
func (g *Generator) Model() ModelID {
	return g.model
}

// GenerateText returns the raw completion for prompt.
func (g *Generator) GenerateText(ctx context.Context, prompt string) (string, error) {
	return g.provider.Complete(ctx, Request{
		Model:    g.model.Name,
		Messages: []Message{{Role: "user", Content: prompt}},
	})
}

// GenerateFiles asks for a FileGenerationResult and validates the answer.
func (g *Generator) GenerateFiles(ctx context.Context, prompt string) (*models.FileGenerationResult, error) {
	schema, err := fileResultSchema()
	if err != nil {
		return nil, err
	}
	out, err := g.provider.Complete(ctx, Request{
		Model: g.model.Name,
		Messages: []Message{
			{Role: "system", Content: filesInstruction + schema},
			{Role: "user", Content: prompt},
		},
		JSON: true,
	})
	if err != nil {
		return nil, err
	}
	result, err := models.ParseFileGenerationResult([]byte(stripFence(out)))
	if err != nil {
		return nil, fmt.Errorf("model %s returned an invalid file result: %w", g.model, err)
	}
	return result, nil
}

const filesInstruction = "Respond with a single JSON object and nothing else. " +
	"It must match this JSON Schema:\n"

var fileResultSchema = sync.OnceValues(func() (string, error) {
	r := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	data, err := json.Marshal(r.Reflect(&models.FileGenerationResult{}))
	if err != nil {
		return "", fmt.Errorf("marshal file result schema: %w", err)
	}
	return string(data), nil
})

// stripFence removes a surrounding ``` fence some models add.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		return s
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}
