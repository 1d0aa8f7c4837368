package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestNewCreatesRunDir(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, "run-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := filepath.Join(dir, "runs", "run-123")
	if store.BaseDir != want {
		t.Errorf("expected base dir %s, got %s", want, store.BaseDir)
	}
	info, err := os.Stat(want)
	if err != nil {
		t.Fatalf("run dir not created: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("expected a directory")
	}
}

func TestNewRequiresRunID(t *testing.T) {
	if _, err := New(t.TempDir(), ""); err == nil {
		t.Error("expected error for empty run id")
	}
}

func TestWriteResult(t *testing.T) {
	store, err := New(t.TempDir(), "run-789")
	if err != nil {
		t.Fatal(err)
	}

	result := map[string]any{"run_id": "run-789", "state": "completed"}
	if err := store.WriteResult(result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(store.BaseDir, "result.json"))
	if err != nil {
		t.Fatalf("reading result.json: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got["state"] != "completed" {
		t.Errorf("expected state completed, got %v", got["state"])
	}
}

func TestWriteContext(t *testing.T) {
	store, err := New(t.TempDir(), "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.WriteContext(map[string]string{"k": "v"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(store.BaseDir, "context.json"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "{\n  \"k\": \"v\"\n}" {
		t.Errorf("unexpected context.json %q", data)
	}
}

func TestWriteUnencodable(t *testing.T) {
	store, err := New(t.TempDir(), "run-2")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.WriteResult(map[string]any{"ch": make(chan int)}); err == nil {
		t.Error("expected encoding error")
	}
}
