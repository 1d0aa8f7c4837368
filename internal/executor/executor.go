// Package executor runs recipes: it loads the recipe once, then resolves,
// builds and executes each step in order against one shared context.
//
// Step configuration is handed to the step unrendered. Steps render their
// own templated fields when they execute, so step N sees whatever step N-1
// wrote. The executor never retries, skips ahead or rolls back: the first
// failing step ends the run and the context keeps every mutation applied
// before the failure.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	rerrors "github.com/stevehiehn/recipe-executor/internal/errors"
	"github.com/stevehiehn/recipe-executor/internal/recipe"
	"github.com/stevehiehn/recipe-executor/internal/runctx"
	"github.com/stevehiehn/recipe-executor/internal/step"
	"github.com/stevehiehn/recipe-executor/internal/telemetry"
)

// MaxDepth bounds how deeply recipes may run other recipes.
const MaxDepth = 16

// Executor holds no per-run state. One instance can serve any number of
// sequential runs, each with its own context.
type Executor struct {
	registry *step.Registry
	metrics  *telemetry.Metrics
	maxDepth int
}

// Option configures an Executor.
type Option func(*Executor)

// WithMetrics records step and run outcomes in m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithMaxDepth overrides MaxDepth.
func WithMaxDepth(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxDepth = n
		}
	}
}

// New returns an executor resolving step types in reg. A nil registry means
// step.Default.
func New(reg *step.Registry, opts ...Option) *Executor {
	if reg == nil {
		reg = step.Default
	}
	e := &Executor{registry: reg, maxDepth: MaxDepth}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the registry the executor resolves step types in.
func (e *Executor) Registry() *step.Registry {
	return e.registry
}

// Execute loads src (see recipe.Load) and runs its steps against rc. A nil
// logger falls back to the one carried by ctx. The returned Result is never
// nil; on failure it names the failing step and the error is returned as
// well.
func (e *Executor) Execute(ctx context.Context, src any, rc *runctx.Context, logger *slog.Logger) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = telemetry.FromContext(ctx)
	}

	depth := Depth(ctx)
	result := &Result{
		RunID:      uuid.NewString(),
		State:      NotStarted,
		Depth:      depth,
		FailedStep: rerrors.NoStep,
		Steps:      []StepRecord{},
	}
	logger = telemetry.WithRunID(logger, result.RunID)
	if depth > 0 {
		logger = logger.With("depth", depth)
	}

	if rc == nil {
		return e.fail(result, rerrors.NoStep, fmt.Errorf("executor: context is required"), logger)
	}
	if depth >= e.maxDepth {
		err := rerrors.NewStepExecution(rerrors.NoStep, "", fmt.Errorf("recipe nesting exceeds %d levels", e.maxDepth))
		return e.fail(result, rerrors.NoStep, err, logger)
	}

	r, err := recipe.Load(src)
	if err != nil {
		return e.fail(result, rerrors.NoStep, err, logger)
	}

	result.State = Running
	start := time.Now()
	logger.Info("recipe started", "steps", len(r.Steps))
	ctx = withExecutor(ctx, e, depth+1)

	for i, desc := range r.Steps {
		rec, err := e.runStep(ctx, i, desc, rc, logger)
		result.Steps = append(result.Steps, rec)
		if err != nil {
			for j := i + 1; j < len(r.Steps); j++ {
				result.Steps = append(result.Steps, StepRecord{Index: j, Type: r.Steps[j].Type, Status: StatusSkipped})
			}
			return e.fail(result, i, err, logger)
		}
	}

	result.State = Completed
	result.Duration = time.Since(start).Round(time.Millisecond).String()
	e.metrics.ObserveRun(string(Completed))
	logger.Info("recipe completed", "steps", len(r.Steps), "duration", result.Duration)
	return result, nil
}

func (e *Executor) runStep(ctx context.Context, i int, desc recipe.Step, rc *runctx.Context, logger *slog.Logger) (StepRecord, error) {
	rec := StepRecord{Index: i, Type: desc.Type}
	slogger := telemetry.WithStep(logger, i, desc.Type)

	s, err := e.registry.New(desc.Type, desc.Config, slogger)
	if err != nil {
		rec.Status = StatusFailed
		if errors.Is(err, rerrors.ErrUnknownStepType) {
			err = rerrors.NewUnknownStepType(i, desc.Type, e.registry.Types())
		} else {
			err = rerrors.NewStepExecution(i, desc.Type, fmt.Errorf("building step: %w", err))
		}
		rec.Error = err.Error()
		return rec, err
	}

	slogger.Debug("step started")
	start := time.Now()
	err = s.Execute(ctx, rc)
	elapsed := time.Since(start)
	rec.Duration = elapsed.Round(time.Millisecond).String()

	if err != nil {
		rec.Status = StatusFailed
		err = rerrors.NewStepExecution(i, desc.Type, err)
		rec.Error = err.Error()
		e.metrics.ObserveStep(desc.Type, StatusFailed, elapsed.Seconds())
		return rec, err
	}

	rec.Status = StatusCompleted
	e.metrics.ObserveStep(desc.Type, StatusCompleted, elapsed.Seconds())
	slogger.Info("step completed", "duration", rec.Duration)
	return rec, nil
}

func (e *Executor) fail(result *Result, index int, err error, logger *slog.Logger) (*Result, error) {
	result.State = Failed
	result.FailedStep = index
	var re *rerrors.RunError
	if errors.As(err, &re) {
		result.Error = re
	}
	e.metrics.ObserveRun(string(Failed))
	logger.Error("recipe failed", "step_index", index, "error", err)
	return result, err
}

type ctxKey struct{}

type running struct {
	executor *Executor
	depth    int
}

func withExecutor(ctx context.Context, e *Executor, depth int) context.Context {
	return context.WithValue(ctx, ctxKey{}, running{executor: e, depth: depth})
}

// FromContext returns the executor running the current step, if any. Steps
// that run sub-recipes use it so the sub-recipe sees the same registry.
func FromContext(ctx context.Context) (*Executor, bool) {
	r, ok := ctx.Value(ctxKey{}).(running)
	return r.executor, ok
}

// Depth reports how many recipes are running on the current call stack.
func Depth(ctx context.Context) int {
	r, _ := ctx.Value(ctxKey{}).(running)
	return r.depth
}
