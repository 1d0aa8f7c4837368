package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	rerrors "github.com/stevehiehn/recipe-executor/internal/errors"
)

func writeRecipe(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestParseContext(t *testing.T) {
	got, err := parseContext([]string{"name=Ada", "expr=a=b", "empty="})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["name"] != "Ada" || got["expr"] != "a=b" || got["empty"] != "" {
		t.Errorf("unexpected artifacts %v", got)
	}

	for _, bad := range []string{"novalue", "=value", " =x"} {
		if _, err := parseContext([]string{bad}); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestRunRecipeJSON(t *testing.T) {
	dir := t.TempDir()
	logDir := filepath.Join(dir, "logs")
	path := writeRecipe(t, dir, "greet.json", `{"steps": [
		{"type": "set_context", "key": "greeting", "value": "hello {{name}}"}
	]}`)

	out, err := execute(t, path, "--context", "name=Ada", "--json", "--log-dir", logDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var doc struct {
		Result struct {
			RunID string `json:"run_id"`
			State string `json:"state"`
		} `json:"result"`
		Context map[string]any `json:"context"`
	}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if doc.Result.State != "completed" {
		t.Errorf("expected completed, got %q", doc.Result.State)
	}
	if doc.Context["greeting"] != "hello Ada" {
		t.Errorf("expected rendered greeting, got %v", doc.Context)
	}

	runDir := filepath.Join(logDir, "runs", doc.Result.RunID)
	for _, name := range []string{"result.json", "context.json"} {
		if _, err := os.Stat(filepath.Join(runDir, name)); err != nil {
			t.Errorf("expected run record %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(logDir, "recipe-executor.log")); err != nil {
		t.Errorf("expected log file: %v", err)
	}
}

func TestRunRecipeFailureSummary(t *testing.T) {
	dir := t.TempDir()
	path := writeRecipe(t, dir, "bad.json", `{"steps": [
		{"type": "set_context", "key": "a", "value": "1"},
		{"type": "does_not_exist"}
	]}`)

	out, err := execute(t, path)
	if !errors.Is(err, rerrors.ErrUnknownStepType) {
		t.Fatalf("expected ErrUnknownStepType, got %v", err)
	}
	if !strings.Contains(out, "Failed at step 1.") {
		t.Errorf("expected failure summary, got\n%s", out)
	}
	if !strings.Contains(out, "does_not_exist") {
		t.Errorf("expected failing type in summary, got\n%s", out)
	}
}

func TestRunRecipeBadContextRunsNothing(t *testing.T) {
	dir := t.TempDir()
	path := writeRecipe(t, dir, "write.json", `{"steps": [
		{"type": "write_files", "root": "`+dir+`", "files": [{"path": "marker.txt", "content": "x"}]}
	]}`)

	if _, err := execute(t, path, "--context", "broken"); err == nil {
		t.Fatal("expected context parse error")
	}
	if _, err := os.Stat(filepath.Join(dir, "marker.txt")); !os.IsNotExist(err) {
		t.Error("no step may run when --context is malformed")
	}
}

func TestRunRecipeMetricsFile(t *testing.T) {
	dir := t.TempDir()
	metrics := filepath.Join(dir, "metrics.prom")
	path := writeRecipe(t, dir, "r.json", `[{"type": "set_context", "key": "a", "value": "1"}]`)

	if _, err := execute(t, path, "--metrics-file", metrics); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(metrics)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `recipe_executor_steps_total{status="completed",type="set_context"} 1`) {
		t.Errorf("expected step counter in metrics, got\n%s", data)
	}
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	good := writeRecipe(t, dir, "good.json", `[{"type": "set_context", "key": "a", "value": "1"}]`)
	bad := writeRecipe(t, dir, "bad.json", `[{"type": "set_context"}]`)

	out, err := execute(t, "validate", good)
	if err != nil || !strings.Contains(out, "Recipe is valid.") {
		t.Errorf("expected valid recipe, got %v\n%s", err, out)
	}

	out, err = execute(t, "validate", bad, "--json")
	if err == nil {
		t.Fatal("expected validation error")
	}
	var doc map[string]any
	if jerr := json.Unmarshal([]byte(out), &doc); jerr != nil {
		t.Fatalf("output is not JSON: %v", jerr)
	}
	if doc["valid"] != false || !strings.Contains(doc["error"].(string), "key") {
		t.Errorf("unexpected validation output %v", doc)
	}
}

func TestExplainCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeRecipe(t, dir, "r.json", `{"name": "demo", "steps": [
		{"type": "set_context", "key": "out", "value": "{{x}}"},
		{"type": "teleport"}
	]}`)

	out, err := execute(t, "explain", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"Recipe: demo", "Step 0: set_context", `value: "{{x}}"`, "Step 1: teleport (unknown type)"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in\n%s", want, out)
		}
	}
}

func TestSchemaCommand(t *testing.T) {
	out, err := execute(t, "schema")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, `"$id"`) {
		t.Errorf("expected schema output, got %.80s", out)
	}
}
