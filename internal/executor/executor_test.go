package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	rerrors "github.com/stevehiehn/recipe-executor/internal/errors"
	"github.com/stevehiehn/recipe-executor/internal/runctx"
	"github.com/stevehiehn/recipe-executor/internal/step"
	"github.com/stevehiehn/recipe-executor/internal/telemetry"
	"github.com/stevehiehn/recipe-executor/internal/template"
)

// testRegistry holds steps that record their invocations in calls.
type testRegistry struct {
	*step.Registry
	calls []string
}

func newTestRegistry() *testRegistry {
	tr := &testRegistry{Registry: step.NewRegistry()}

	// set writes config "value" under config "key", both rendered.
	tr.MustRegister("set", func(cfg step.Config, _ *slog.Logger) (step.Step, error) {
		return step.Func(func(_ context.Context, rc *runctx.Context) error {
			tr.calls = append(tr.calls, "set")
			key, err := template.Render(fmt.Sprint(cfg["key"]), rc)
			if err != nil {
				return err
			}
			value, err := template.Render(fmt.Sprint(cfg["value"]), rc)
			if err != nil {
				return err
			}
			rc.Set(key, value)
			return nil
		}), nil
	})
	tr.MustRegister("fail", func(cfg step.Config, _ *slog.Logger) (step.Step, error) {
		return step.Func(func(_ context.Context, rc *runctx.Context) error {
			tr.calls = append(tr.calls, "fail")
			rc.Set("partial", true)
			return errors.New("boom")
		}), nil
	})
	tr.MustRegister("bad_config", func(cfg step.Config, _ *slog.Logger) (step.Step, error) {
		return nil, errors.New("missing field")
	})
	tr.MustRegister("sub", func(cfg step.Config, _ *slog.Logger) (step.Step, error) {
		return step.Func(func(ctx context.Context, rc *runctx.Context) error {
			tr.calls = append(tr.calls, "sub")
			ex, ok := FromContext(ctx)
			if !ok {
				return errors.New("no executor in context")
			}
			_, err := ex.Execute(ctx, cfg["recipe"], rc, nil)
			return err
		}), nil
	})
	return tr
}

func TestEmptyRecipeCompletes(t *testing.T) {
	tr := newTestRegistry()
	rc := runctx.New(map[string]any{"seed": "x"}, nil)

	res, err := New(tr.Registry).Execute(context.Background(), `{"steps": []}`, rc, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.State != Completed || !res.Succeeded() {
		t.Errorf("expected completed, got %s", res.State)
	}
	if !reflect.DeepEqual(rc.Keys(), []string{"seed"}) {
		t.Errorf("expected key set unchanged, got %v", rc.Keys())
	}
	if res.FailedStep != rerrors.NoStep {
		t.Errorf("expected no failed step, got %d", res.FailedStep)
	}
	if res.RunID == "" {
		t.Error("expected a run id")
	}
}

func TestUnknownStepTypeHalts(t *testing.T) {
	tr := newTestRegistry()
	rc := runctx.New(nil, nil)
	src := []any{
		map[string]any{"type": "set", "key": "a", "value": "1"},
		map[string]any{"type": "does_not_exist"},
		map[string]any{"type": "set", "key": "b", "value": "2"},
	}

	res, err := New(tr.Registry).Execute(context.Background(), src, rc, nil)
	if !errors.Is(err, rerrors.ErrUnknownStepType) {
		t.Fatalf("expected ErrUnknownStepType, got %v", err)
	}
	var re *rerrors.RunError
	if !errors.As(err, &re) || re.StepType != "does_not_exist" || re.StepIndex != 1 {
		t.Errorf("expected error naming does_not_exist at index 1, got %v", err)
	}
	if !reflect.DeepEqual(tr.calls, []string{"set"}) {
		t.Errorf("expected only the first step to run once, got %v", tr.calls)
	}
	if rc.Contains("b") {
		t.Error("step after the unknown type must not run")
	}
	if res.State != Failed || res.FailedStep != 1 {
		t.Errorf("expected failure at step 1, got %s at %d", res.State, res.FailedStep)
	}
	if got := res.Steps[2].Status; got != StatusSkipped {
		t.Errorf("expected step 2 skipped, got %s", got)
	}
}

func TestDeferredRendering(t *testing.T) {
	tr := newTestRegistry()
	rc := runctx.New(nil, nil)
	src := `{"steps": [
		{"type": "set", "key": "x", "value": "A"},
		{"type": "set", "key": "path", "value": "out/{{x}}.md"}
	]}`

	if _, err := New(tr.Registry).Execute(context.Background(), src, rc, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := rc.Get("path")
	if err != nil {
		t.Fatal(err)
	}
	if got != "out/A.md" {
		t.Errorf("expected out/A.md, got %v", got)
	}
}

func TestRunsAreIndependent(t *testing.T) {
	tr := newTestRegistry()
	ex := New(tr.Registry)

	first := runctx.New(nil, nil)
	if _, err := ex.Execute(context.Background(), `[{"type": "set", "key": "only_first", "value": "1"}]`, first, nil); err != nil {
		t.Fatal(err)
	}
	second := runctx.New(nil, nil)
	res, err := ex.Execute(context.Background(), `[{"type": "set", "key": "other", "value": "{{only_first}}"}]`, second, nil)
	if err != nil {
		t.Fatal(err)
	}
	if second.Contains("only_first") {
		t.Error("artifact from run 1 leaked into run 2")
	}
	if v, _ := second.Get("other"); v != "" {
		t.Errorf("expected empty render of unseen key, got %q", v)
	}
	if res.RunID == "" {
		t.Error("expected run id")
	}
}

func TestFailFastNoRollback(t *testing.T) {
	tr := newTestRegistry()
	rc := runctx.New(nil, nil)
	src := []map[string]any{
		{"type": "set", "key": "first", "value": "done"},
		{"type": "fail"},
		{"type": "set", "key": "third", "value": "done"},
	}

	res, err := New(tr.Registry).Execute(context.Background(), src, rc, nil)
	if !errors.Is(err, rerrors.ErrStepExecution) {
		t.Fatalf("expected ErrStepExecution, got %v", err)
	}
	if !strings.Contains(err.Error(), "step 1 (fail)") || !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected index, type and cause in %q", err.Error())
	}
	if v, _ := rc.Get("first"); v != "done" {
		t.Error("expected step 1 mutation to persist")
	}
	if !rc.Contains("partial") {
		t.Error("expected the failing step's own mutation to persist")
	}
	if rc.Contains("third") {
		t.Error("step 3 must not run")
	}
	if !reflect.DeepEqual(tr.calls, []string{"set", "fail"}) {
		t.Errorf("unexpected calls %v", tr.calls)
	}
	if res.Error == nil || res.Error.StepIndex != 1 {
		t.Errorf("expected structured error for step 1, got %+v", res.Error)
	}
	statuses := []string{res.Steps[0].Status, res.Steps[1].Status, res.Steps[2].Status}
	if !reflect.DeepEqual(statuses, []string{StatusCompleted, StatusFailed, StatusSkipped}) {
		t.Errorf("unexpected statuses %v", statuses)
	}
}

func TestTemplateErrorSurfacesThroughStep(t *testing.T) {
	tr := newTestRegistry()
	rc := runctx.New(nil, nil)
	_, err := New(tr.Registry).Execute(context.Background(), `[{"type": "set", "key": "k", "value": "{% if x %}open"}]`, rc, nil)
	if !errors.Is(err, rerrors.ErrTemplate) {
		t.Errorf("expected ErrTemplate, got %v", err)
	}
	if !errors.Is(err, rerrors.ErrStepExecution) {
		t.Errorf("expected ErrStepExecution, got %v", err)
	}
}

func TestConstructorErrorIsStepExecution(t *testing.T) {
	tr := newTestRegistry()
	_, err := New(tr.Registry).Execute(context.Background(), `[{"type": "bad_config"}]`, runctx.New(nil, nil), nil)
	re, ok := rerrors.As(err, rerrors.StepExecution)
	if !ok {
		t.Fatalf("expected STEP_EXECUTION_ERROR, got %v", err)
	}
	if re.StepIndex != 0 || re.StepType != "bad_config" {
		t.Errorf("unexpected error position %+v", re)
	}
}

func TestRecipeFormatErrorRunsNothing(t *testing.T) {
	tr := newTestRegistry()
	res, err := New(tr.Registry).Execute(context.Background(), `[{"type": "set"}, {"key": "x"}]`, runctx.New(nil, nil), nil)
	if !errors.Is(err, rerrors.ErrRecipeFormat) {
		t.Fatalf("expected ErrRecipeFormat, got %v", err)
	}
	if len(tr.calls) != 0 {
		t.Errorf("expected no steps to run, got %v", tr.calls)
	}
	if res.State != Failed {
		t.Errorf("expected failed, got %s", res.State)
	}
}

func TestNilContextIsRejected(t *testing.T) {
	_, err := New(newTestRegistry().Registry).Execute(context.Background(), `[]`, nil, nil)
	if err == nil {
		t.Fatal("expected error for nil context")
	}
}

func TestSubRecipeUsesSameContextAndRegistry(t *testing.T) {
	tr := newTestRegistry()
	rc := runctx.New(nil, nil)
	src := []any{
		map[string]any{"type": "set", "key": "outer", "value": "1"},
		map[string]any{"type": "sub", "recipe": []any{
			map[string]any{"type": "set", "key": "inner", "value": "{{outer}}2"},
		}},
	}

	if _, err := New(tr.Registry).Execute(context.Background(), src, rc, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _ := rc.Get("inner"); v != "12" {
		t.Errorf("expected inner=12, got %v", v)
	}
}

func TestNestingDepthIsCapped(t *testing.T) {
	tr := newTestRegistry()
	rc := runctx.New(nil, nil)
	var src any = []any{map[string]any{"type": "set", "key": "leaf", "value": "x"}}
	for i := 0; i < 5; i++ {
		src = []any{map[string]any{"type": "sub", "recipe": src}}
	}

	_, err := New(tr.Registry, WithMaxDepth(3)).Execute(context.Background(), src, rc, nil)
	if !errors.Is(err, rerrors.ErrStepExecution) {
		t.Fatalf("expected ErrStepExecution, got %v", err)
	}
	if !strings.Contains(err.Error(), "nesting exceeds 3") {
		t.Errorf("unexpected error %v", err)
	}
	if rc.Contains("leaf") {
		t.Error("leaf step must not run")
	}

	if _, err := New(tr.Registry).Execute(context.Background(), src, runctx.New(nil, nil), nil); err != nil {
		t.Errorf("expected default depth to allow 6 levels, got %v", err)
	}
}

func TestExecuteLogsAndMetrics(t *testing.T) {
	tr := newTestRegistry()
	var buf bytes.Buffer
	logger := telemetry.NewLogger(&buf, "json", slog.LevelDebug)
	m := telemetry.NewMetrics()

	_, _ = New(tr.Registry, WithMetrics(m)).Execute(context.Background(),
		`[{"type": "set", "key": "a", "value": "b"}, {"type": "fail"}]`, runctx.New(nil, nil), logger)

	var sawFailure bool
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("expected JSON log line, got %q", line)
		}
		if rec["run_id"] == nil {
			t.Errorf("expected run_id on every record, got %v", rec)
		}
		if rec["msg"] == "recipe failed" && rec["level"] == "ERROR" {
			sawFailure = true
		}
	}
	if !sawFailure {
		t.Errorf("expected an ERROR record for the failure:\n%s", buf.String())
	}
}

func TestExecuteUsesContextLogger(t *testing.T) {
	tr := newTestRegistry()
	var buf bytes.Buffer
	ctx := telemetry.WithLogger(context.Background(), telemetry.NewLogger(&buf, "text", slog.LevelInfo))

	if _, err := New(tr.Registry).Execute(ctx, `[{"type": "set", "key": "a", "value": "b"}]`, runctx.New(nil, nil), nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "recipe completed") {
		t.Errorf("expected the context logger to receive records, got %q", buf.String())
	}
}

func TestDefaultRegistry(t *testing.T) {
	if New(nil).Registry() != step.Default {
		t.Error("expected step.Default")
	}
}

func TestExplain(t *testing.T) {
	tr := newTestRegistry()
	ex := New(tr.Registry)
	exp, err := ex.Explain(`{"name": "demo", "steps": [{"type": "set", "value": "{{x}}", "key": "k"}, {"type": "nope"}]}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exp.Name != "demo" || len(exp.Steps) != 2 {
		t.Fatalf("unexpected explanation %+v", exp)
	}
	if !exp.Steps[0].Registered || exp.Steps[1].Registered {
		t.Errorf("unexpected registration flags %+v", exp.Steps)
	}
	if !reflect.DeepEqual(exp.Steps[0].Fields, []string{"key", "value"}) {
		t.Errorf("expected sorted fields, got %v", exp.Steps[0].Fields)
	}
	if exp.Steps[0].Config["value"] != "{{x}}" {
		t.Errorf("expected unrendered config, got %v", exp.Steps[0].Config)
	}
	if len(tr.calls) != 0 {
		t.Errorf("explain must not execute steps, got %v", tr.calls)
	}
}

func TestValidate(t *testing.T) {
	tr := newTestRegistry()
	ex := New(tr.Registry)
	if err := ex.Validate(`[{"type": "set"}]`); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := ex.Validate(`[{"type": "set"}, {"type": "nope"}]`)
	if re, ok := rerrors.As(err, rerrors.UnknownStepType); !ok || re.StepIndex != 1 {
		t.Errorf("expected unknown type at 1, got %v", err)
	}
	if err := ex.Validate(`[{"type": "bad_config"}]`); !errors.Is(err, rerrors.ErrStepExecution) {
		t.Errorf("expected constructor error, got %v", err)
	}
	if len(tr.calls) != 0 {
		t.Errorf("validate must not execute steps, got %v", tr.calls)
	}
}
