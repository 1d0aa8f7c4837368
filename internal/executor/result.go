package executor

import rerrors "github.com/stevehiehn/recipe-executor/internal/errors"

// State is the lifecycle position of a run.
type State string

const (
	NotStarted State = "not_started"
	Running    State = "running"
	Completed  State = "completed"
	Failed     State = "failed"
)

// Step statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// Result is the structured outcome of one Execute call.
type Result struct {
	RunID      string            `json:"run_id"`
	State      State             `json:"state"`
	Depth      int               `json:"depth,omitempty"`
	FailedStep int               `json:"failed_step"` // NoStep unless a step failed
	Duration   string            `json:"duration,omitempty"`
	Steps      []StepRecord      `json:"steps"`
	Error      *rerrors.RunError `json:"error,omitempty"`
}

// StepRecord describes the outcome of a single step.
type StepRecord struct {
	Index    int    `json:"index"`
	Type     string `json:"type"`
	Status   string `json:"status"` // completed, failed, skipped
	Duration string `json:"duration,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Succeeded reports whether the run completed.
func (r *Result) Succeeded() bool {
	return r != nil && r.State == Completed
}
