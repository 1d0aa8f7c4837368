// Package config builds the read-mostly configuration map a run context is
// seeded with: built-in defaults, then an optional YAML file, then
// environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Keys understood by the built-in steps.
const (
	KeyModel         = "model"
	KeyOpenAIBaseURL = "openai_base_url"
	KeyOpenAIAPIKey  = "openai_api_key"
	KeyOllamaBaseURL = "ollama_base_url"
	KeyMaxRetries    = "llm_max_retries"
	KeyTimeoutSec    = "llm_timeout_sec"
	KeyMCPServers    = "mcp_servers"
)

// Defaults returns a fresh copy of the built-in defaults.
func Defaults() map[string]any {
	return map[string]any{
		KeyModel:         "openai:gpt-4o",
		KeyOpenAIBaseURL: "https://api.openai.com/v1",
		KeyOllamaBaseURL: "http://localhost:11434/v1",
		KeyMaxRetries:    3,
		KeyTimeoutSec:    120,
	}
}

var envKeys = []struct {
	env, key string
}{
	{"OPENAI_API_KEY", KeyOpenAIAPIKey},
	{"OPENAI_BASE_URL", KeyOpenAIBaseURL},
	{"OLLAMA_BASE_URL", KeyOllamaBaseURL},
	{"RECIPE_MODEL", KeyModel},
	{"LLM_MAX_RETRIES", KeyMaxRetries},
	{"LLM_TIMEOUT_SEC", KeyTimeoutSec},
}

// Load merges defaults, the YAML file at path (skipped when path is empty)
// and environment overrides.
func Load(path string) (map[string]any, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		var file map[string]any
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
		for k, v := range file {
			cfg[k] = v
		}
	}

	for _, e := range envKeys {
		v, ok := os.LookupEnv(e.env)
		if !ok || v == "" {
			continue
		}
		if n, err := strconv.Atoi(v); err == nil && (e.key == KeyMaxRetries || e.key == KeyTimeoutSec) {
			cfg[e.key] = n
			continue
		}
		cfg[e.key] = v
	}

	if raw := os.Getenv("MCP_SERVERS"); raw != "" {
		var servers []any
		if err := json.Unmarshal([]byte(raw), &servers); err != nil {
			return nil, fmt.Errorf("parsing MCP_SERVERS: %w", err)
		}
		cfg[KeyMCPServers] = servers
	}
	return cfg, nil
}
