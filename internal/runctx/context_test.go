package runctx

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	rerrors "github.com/stevehiehn/recipe-executor/internal/errors"
)

func TestGetMissingKey(t *testing.T) {
	c := New(nil, nil)
	_, err := c.Get("missing")
	if err == nil {
		t.Fatal("expected error for missing key")
	}
	if !errors.Is(err, rerrors.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
	var re *rerrors.RunError
	if !errors.As(err, &re) || re.Key != "missing" {
		t.Errorf("expected RunError naming key 'missing', got %v", err)
	}
}

func TestGetOrDefaultMissingKey(t *testing.T) {
	c := New(map[string]any{"a": 1}, nil)
	if got := c.GetOrDefault("b", "fallback"); got != "fallback" {
		t.Errorf("expected 'fallback', got %v", got)
	}
	if got := c.GetOrDefault("a", "fallback"); got != 1 {
		t.Errorf("expected 1, got %v", got)
	}
}

func TestSetContainsGet(t *testing.T) {
	c := New(nil, nil)
	c.Set("name", "World")
	if !c.Contains("name") {
		t.Fatal("expected key to be present")
	}
	v, err := c.Get("name")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "World" {
		t.Errorf("expected 'World', got %v", v)
	}
	if c.Len() != 1 {
		t.Errorf("expected size 1, got %d", c.Len())
	}
}

func TestOverwriteKeepsSize(t *testing.T) {
	c := New(nil, nil)
	c.Set("k", "v1")
	c.Set("k", "v2")
	if c.Len() != 1 {
		t.Errorf("expected size 1 after overwrite, got %d", c.Len())
	}
	v, _ := c.Get("k")
	if v != "v2" {
		t.Errorf("expected last write to win, got %v", v)
	}
}

func TestKeysInsertionOrder(t *testing.T) {
	c := New(nil, nil)
	c.Set("zeta", 1)
	c.Set("alpha", 2)
	c.Set("mid", 3)
	c.Set("zeta", 4)
	want := []string{"zeta", "alpha", "mid"}
	if got := c.Keys(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestSeedKeysAreSorted(t *testing.T) {
	c := New(map[string]any{"b": 1, "a": 2, "c": 3}, nil)
	want := []string{"a", "b", "c"}
	if got := c.Keys(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestSnapshotIsIndependent(t *testing.T) {
	c := New(nil, nil)
	c.Set("list", []any{"a", "b"})
	c.Set("nested", map[string]any{"inner": map[string]any{"x": "1"}})

	snap := c.Snapshot()
	snap["new"] = "added"
	snap["list"].([]any)[0] = "changed"
	snap["nested"].(map[string]any)["inner"].(map[string]any)["x"] = "2"
	delete(snap, "list")

	if c.Contains("new") {
		t.Error("snapshot insert leaked into context")
	}
	if !c.Contains("list") {
		t.Error("snapshot delete leaked into context")
	}
	list, _ := c.Get("list")
	if list.([]any)[0] != "a" {
		t.Errorf("nested slice mutation leaked, got %v", list)
	}
	nested, _ := c.Get("nested")
	if nested.(map[string]any)["inner"].(map[string]any)["x"] != "1" {
		t.Errorf("nested map mutation leaked, got %v", nested)
	}
}

type copyCounter struct {
	items []string
}

func (c copyCounter) DeepCopy() any {
	return copyCounter{items: append([]string(nil), c.items...)}
}

func TestSnapshotUsesCopier(t *testing.T) {
	c := New(nil, nil)
	c.Set("v", copyCounter{items: []string{"a"}})
	snap := c.Snapshot()
	snap["v"].(copyCounter).items[0] = "b"
	v, _ := c.Get("v")
	if v.(copyCounter).items[0] != "a" {
		t.Error("expected Copier to isolate snapshot")
	}
}

type report struct {
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
}

func TestSnapshotCopiesPointers(t *testing.T) {
	c := New(nil, nil)
	live := &report{Title: "draft", Tags: []string{"a"}}
	c.Set("report", live)

	snap := c.Snapshot()
	copied, ok := snap["report"].(*report)
	if !ok {
		t.Fatalf("expected *report in snapshot, got %T", snap["report"])
	}
	if copied == live {
		t.Fatal("expected a fresh pointer in snapshot")
	}
	copied.Title = "final"
	copied.Tags[0] = "b"

	if live.Title != "draft" || live.Tags[0] != "a" {
		t.Errorf("snapshot mutation leaked into context: %+v", live)
	}
}

func TestDeepCopyKeepsUnencodablePointer(t *testing.T) {
	ch := make(chan int)
	if got := DeepCopy(&ch); got != any(&ch) {
		t.Error("expected pointer that cannot be encoded to be returned as is")
	}
	var nilReport *report
	if got := DeepCopy(nilReport); got != any(nilReport) {
		t.Error("expected nil pointer to be returned as is")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	c := New(map[string]any{"a": "1"}, map[string]any{"model": "openai:gpt-4o"})
	clone := c.Clone()
	clone.Set("a", "2")
	clone.Set("b", "3")

	v, _ := c.Get("a")
	if v != "1" {
		t.Errorf("expected original value '1', got %v", v)
	}
	if c.Contains("b") {
		t.Error("clone insert leaked into original")
	}
	if clone.Config().String("model", "") != "openai:gpt-4o" {
		t.Error("expected clone to carry config")
	}
}

func TestTwoContextsShareNothing(t *testing.T) {
	first := New(nil, nil)
	second := New(nil, nil)
	first.Set("x", "A")
	if second.Contains("x") {
		t.Error("expected contexts to be independent")
	}
}

func TestConfigAccessors(t *testing.T) {
	c := New(nil, map[string]any{
		"model":       "ollama:llama3",
		"retries":     3,
		"timeout_sec": "45",
		"ratio":       float64(2),
	})
	cfg := c.Config()
	if cfg.String("model", "x") != "ollama:llama3" {
		t.Errorf("unexpected model %q", cfg.String("model", "x"))
	}
	if cfg.String("missing", "x") != "x" {
		t.Error("expected default for missing string")
	}
	if cfg.Int("retries", 0) != 3 {
		t.Errorf("expected 3 retries, got %d", cfg.Int("retries", 0))
	}
	if cfg.Int("timeout_sec", 0) != 45 {
		t.Errorf("expected 45, got %d", cfg.Int("timeout_sec", 0))
	}
	if cfg.Int("ratio", 0) != 2 {
		t.Errorf("expected 2, got %d", cfg.Int("ratio", 0))
	}
	if cfg.Int("model", 7) != 7 {
		t.Error("expected default for non-numeric value")
	}
	if len(cfg.Keys()) != 4 {
		t.Errorf("expected 4 config keys, got %d", len(cfg.Keys()))
	}
}

func TestMarshalJSONKeepsOrder(t *testing.T) {
	c := New(nil, nil)
	c.Set("b", "2")
	c.Set("a", "1")
	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{"b":"2","a":"1"}` {
		t.Errorf("unexpected JSON %s", data)
	}
}
