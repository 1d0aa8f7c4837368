package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"DEBUG": slog.LevelDebug,
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"ERROR": slog.LevelError,
		"":      slog.LevelInfo,
		"bogus": slog.LevelInfo,
	}
	for in, want := range cases {
		t.Setenv("LOG_LEVEL", in)
		if got := LogLevel(); got != want {
			t.Errorf("LOG_LEVEL=%q: expected %v, got %v", in, want, got)
		}
	}
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := WithRunID(NewLogger(&buf, "json", slog.LevelInfo), "r1")
	logger.Info("hello", "k", "v")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected JSON record, got %q", buf.String())
	}
	if rec["msg"] != "hello" || rec["run_id"] != "r1" || rec["k"] != "v" {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestNewLoggerTextRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "text", slog.LevelWarn)
	logger.Info("quiet")
	logger.Warn("loud")
	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Error("expected INFO to be filtered")
	}
	if !strings.Contains(out, "loud") {
		t.Error("expected WARN to be written")
	}
}

func TestSetupLoggerWritesFile(t *testing.T) {
	t.Setenv("LOG_LEVEL", "INFO")
	dir := filepath.Join(t.TempDir(), "logs")
	logger, closeFn, err := SetupLogger(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Info("to file")
	if err := closeFn(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("expected log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"to file"`) {
		t.Errorf("unexpected log contents %q", data)
	}
}

func TestSetupLoggerWithoutDir(t *testing.T) {
	logger, closeFn, err := SetupLogger("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger")
	}
	if err := closeFn(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
}

func TestLoggerContext(t *testing.T) {
	logger := NewLogger(&bytes.Buffer{}, "json", slog.LevelInfo)
	ctx := WithLogger(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Error("expected stored logger")
	}
	if FromContext(context.Background()).Enabled(context.Background(), slog.LevelError) {
		t.Error("expected a discarding logger without one in the context")
	}
}

func TestMetricsTextfile(t *testing.T) {
	m := NewMetrics()
	m.ObserveStep("read_files", "completed", 0.01)
	m.ObserveStep("read_files", "failed", 0.02)
	m.ObserveRun("completed")

	path := filepath.Join(t.TempDir(), "recipe.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{
		`recipe_executor_steps_total{status="completed",type="read_files"} 1`,
		`recipe_executor_runs_total{state="completed"} 1`,
		`recipe_executor_step_duration_seconds_count{type="read_files"} 2`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in metrics output:\n%s", want, out)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveStep("x", "completed", 1)
	m.ObserveRun("failed")
}
