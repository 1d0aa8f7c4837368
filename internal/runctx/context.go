// Package runctx holds the shared key/value state threaded through every
// step of a recipe run.
//
// A Context has two halves: artifacts, which steps read and write freely,
// and config, which is set once at construction and is conventionally left
// alone by steps. Artifacts keep insertion order for iteration; the order
// carries no execution meaning.
//
// A Context is not safe for concurrent use. Recipes run one step at a time,
// so there is never more than one writer.
package runctx

import (
	"encoding/json"
	"reflect"
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	rerrors "github.com/stevehiehn/recipe-executor/internal/errors"
)

// Copier is implemented by artifact values that need more than a shallow
// copy when a Context is snapshotted or cloned.
type Copier interface {
	DeepCopy() any
}

// Context is the execution state for one recipe run.
type Context struct {
	artifacts *orderedmap.OrderedMap[string, any]
	config    *orderedmap.OrderedMap[string, any]
}

// New creates a Context seeded with artifacts and config. Either map may be
// nil. Seed keys are inserted in sorted order so iteration is deterministic.
func New(artifacts, config map[string]any) *Context {
	c := &Context{
		artifacts: orderedmap.New[string, any](),
		config:    orderedmap.New[string, any](),
	}
	for _, k := range sortedKeys(artifacts) {
		c.artifacts.Set(k, artifacts[k])
	}
	for _, k := range sortedKeys(config) {
		c.config.Set(k, config[k])
	}
	return c
}

// Set stores value under key, replacing any previous value.
func (c *Context) Set(key string, value any) {
	c.artifacts.Set(key, value)
}

// Get returns the value stored under key or a KEY_NOT_FOUND error.
func (c *Context) Get(key string) (any, error) {
	v, ok := c.artifacts.Get(key)
	if !ok {
		return nil, rerrors.NewKeyNotFound(key)
	}
	return v, nil
}

// GetOrDefault returns the value stored under key, or def when absent.
func (c *Context) GetOrDefault(key string, def any) any {
	if v, ok := c.artifacts.Get(key); ok {
		return v
	}
	return def
}

// Contains reports whether key is present.
func (c *Context) Contains(key string) bool {
	_, ok := c.artifacts.Get(key)
	return ok
}

// Keys returns artifact keys in insertion order.
func (c *Context) Keys() []string {
	keys := make([]string, 0, c.artifacts.Len())
	for pair := c.artifacts.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Len returns the number of artifacts.
func (c *Context) Len() int {
	return c.artifacts.Len()
}

// Snapshot returns a deep copy of the artifacts. Changes to the returned
// map, to maps and slices nested in it, or to values behind pointers never
// reach the Context. See DeepCopy for what is copied and how.
func (c *Context) Snapshot() map[string]any {
	out := make(map[string]any, c.artifacts.Len())
	for pair := c.artifacts.Oldest(); pair != nil; pair = pair.Next() {
		out[pair.Key] = DeepCopy(pair.Value)
	}
	return out
}

// Clone returns an independent Context with deep copies of both artifacts
// and config, preserving key order.
func (c *Context) Clone() *Context {
	clone := &Context{
		artifacts: orderedmap.New[string, any](),
		config:    orderedmap.New[string, any](),
	}
	for pair := c.artifacts.Oldest(); pair != nil; pair = pair.Next() {
		clone.artifacts.Set(pair.Key, DeepCopy(pair.Value))
	}
	for pair := c.config.Oldest(); pair != nil; pair = pair.Next() {
		clone.config.Set(pair.Key, DeepCopy(pair.Value))
	}
	return clone
}

// Config returns a read accessor over the configuration mapping.
func (c *Context) Config() Config {
	return Config{m: c.config}
}

// MarshalJSON encodes the artifacts in insertion order.
func (c *Context) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.artifacts)
}

// DeepCopy copies maps and slices recursively. Scalars are returned as is;
// values implementing Copier copy themselves. Any other non-nil pointer is
// copied through its JSON encoding into a fresh value of the same type, so
// only exported fields survive; a pointer whose target cannot round-trip
// through JSON is returned as is and stays shared.
func DeepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = DeepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = DeepCopy(val)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, val := range t {
			out[k] = val
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case []map[string]any:
		out := make([]map[string]any, len(t))
		for i, val := range t {
			out[i], _ = DeepCopy(val).(map[string]any)
		}
		return out
	case Copier:
		return t.DeepCopy()
	default:
		return copyPointer(v)
	}
}

func copyPointer(v any) any {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return v
	}
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	fresh := reflect.New(rv.Type().Elem())
	if err := json.Unmarshal(data, fresh.Interface()); err != nil {
		return v
	}
	return fresh.Interface()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
