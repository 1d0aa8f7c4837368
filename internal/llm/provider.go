package llm

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single completion call.
type Request struct {
	Model    string
	Messages []Message
	JSON     bool // ask for a JSON object response
}

// Provider performs completions for one backend.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Settings carries the connection details a provider needs.
type Settings struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Client  *http.Client
}

// SettingsFromConfig reads <provider>_base_url, <provider>_api_key and
// llm_timeout_sec from a configuration map.
func SettingsFromConfig(provider string, cfg map[string]any) Settings {
	s := Settings{
		BaseURL: stringValue(cfg[provider+"_base_url"]),
		APIKey:  stringValue(cfg[provider+"_api_key"]),
	}
	switch v := cfg["llm_timeout_sec"].(type) {
	case int:
		s.Timeout = time.Duration(v) * time.Second
	case float64:
		s.Timeout = time.Duration(v * float64(time.Second))
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			s.Timeout = time.Duration(n) * time.Second
		}
	}
	return s
}

func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// Factory builds a provider from its settings.
type Factory func(s Settings) (Provider, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// RegisterProvider installs a provider factory. Registering a name twice
// replaces the earlier factory.
func RegisterProvider(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = f
}

// Providers lists registered provider names, sorted.
func Providers() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewProvider builds the named provider.
func NewProvider(name string, s Settings) (Provider, error) {
	mu.RLock()
	f, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown LLM provider %q (registered: %v)", name, Providers())
	}
	return f(s)
}

func init() {
	RegisterProvider("openai", func(s Settings) (Provider, error) {
		if s.BaseURL == "" {
			s.BaseURL = "https://api.openai.com/v1"
		}
		if s.APIKey == "" {
			return nil, fmt.Errorf("openai: api key is not configured (set OPENAI_API_KEY)")
		}
		return NewChatClient(s), nil
	})
	RegisterProvider("ollama", func(s Settings) (Provider, error) {
		if s.BaseURL == "" {
			s.BaseURL = "http://localhost:11434/v1"
		}
		return NewChatClient(s), nil
	})
}
