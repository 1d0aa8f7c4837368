// Package llm is the collaborator behind the llm_generate step: given a
// rendered prompt and a "provider:model_name" identifier it returns text or
// a validated FileGenerationResult. Providers are looked up by name in a
// registry, so new backends are added by registration only.
package llm

import (
	"fmt"
	"strings"
)

// ModelID identifies a model as provider:name.
type ModelID struct {
	Provider string
	Name     string
}

func (m ModelID) String() string {
	return m.Provider + ":" + m.Name
}

// ParseModelID splits s at the first colon. Both halves must be non-empty;
// the name may itself contain colons (ollama:llama3:8b).
func ParseModelID(s string) (ModelID, error) {
	provider, name, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || provider == "" || name == "" {
		return ModelID{}, fmt.Errorf("invalid model id %q: expected provider:model_name", s)
	}
	return ModelID{Provider: strings.ToLower(provider), Name: name}, nil
}
