package runctx

import (
	"fmt"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Config reads the configuration half of a Context.
type Config struct {
	m *orderedmap.OrderedMap[string, any]
}

// Get returns the raw configuration value for key.
func (c Config) Get(key string) (any, bool) {
	if c.m == nil {
		return nil, false
	}
	return c.m.Get(key)
}

// String returns the value for key formatted as a string, or def when the
// key is absent or empty.
func (c Config) String(key, def string) string {
	v, ok := c.Get(key)
	if !ok || v == nil {
		return def
	}
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	if s == "" {
		return def
	}
	return s
}

// Int returns the value for key as an int, or def when absent or not numeric.
func (c Config) Int(key string, def int) int {
	v, ok := c.Get(key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i
		}
	}
	return def
}

// Keys returns configuration keys in insertion order.
func (c Config) Keys() []string {
	if c.m == nil {
		return nil
	}
	keys := make([]string, 0, c.m.Len())
	for pair := c.m.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Map returns a deep copy of the configuration.
func (c Config) Map() map[string]any {
	out := map[string]any{}
	if c.m == nil {
		return out
	}
	for pair := c.m.Oldest(); pair != nil; pair = pair.Next() {
		out[pair.Key] = DeepCopy(pair.Value)
	}
	return out
}
