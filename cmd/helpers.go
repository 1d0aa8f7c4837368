package cmd

import (
	"fmt"
	"strings"
)

// parseContext converts ["key=value", ...] to string artifacts. Values may
// contain '='; only the first one splits.
func parseContext(raw []string) (map[string]any, error) {
	m := make(map[string]any, len(raw))
	for _, kv := range raw {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --context %q: expected key=value", kv)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("invalid --context %q: empty key", kv)
		}
		m[key] = value
	}
	return m, nil
}
