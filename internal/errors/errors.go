package errors

import (
	"errors"
	"fmt"
)

// Error type constants
const (
	KeyNotFound     = "KEY_NOT_FOUND"
	RecipeFormat    = "RECIPE_FORMAT_ERROR"
	UnknownStepType = "UNKNOWN_STEP_TYPE"
	TemplateFailed  = "TEMPLATE_ERROR"
	StepExecution   = "STEP_EXECUTION_ERROR"
)

// Sentinels matched by errors.Is against any RunError of the same Type.
var (
	ErrKeyNotFound     = errors.New("key not found")
	ErrRecipeFormat    = errors.New("invalid recipe format")
	ErrUnknownStepType = errors.New("unknown step type")
	ErrTemplate        = errors.New("template error")
	ErrStepExecution   = errors.New("step execution failed")
)

var sentinels = map[string]error{
	KeyNotFound:     ErrKeyNotFound,
	RecipeFormat:    ErrRecipeFormat,
	UnknownStepType: ErrUnknownStepType,
	TemplateFailed:  ErrTemplate,
	StepExecution:   ErrStepExecution,
}

// NoStep marks a RunError that is not tied to a step position.
const NoStep = -1

// RunError is a structured error describing why a recipe run stopped.
type RunError struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	StepIndex int    `json:"step_index"`
	StepType  string `json:"step_type,omitempty"`
	Key       string `json:"key,omitempty"`
	Hint      string `json:"hint,omitempty"`
	Err       error  `json:"-"`
}

func (e *RunError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	switch {
	case e.StepIndex >= 0 && e.StepType != "":
		return fmt.Sprintf("[%s] step %d (%s): %s", e.Type, e.StepIndex, e.StepType, msg)
	case e.StepIndex >= 0:
		return fmt.Sprintf("[%s] step %d: %s", e.Type, e.StepIndex, msg)
	}
	return fmt.Sprintf("[%s] %s", e.Type, msg)
}

// Unwrap exposes the kind sentinel and the wrapped cause.
func (e *RunError) Unwrap() []error {
	var errs []error
	if s, ok := sentinels[e.Type]; ok {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func NewKeyNotFound(key string) *RunError {
	return &RunError{
		Type:      KeyNotFound,
		Message:   fmt.Sprintf("key %q not found in context", key),
		StepIndex: NoStep,
		Key:       key,
	}
}

// NewRecipeFormat reports a malformed recipe. Pass NoStep when the problem
// is not specific to one step.
func NewRecipeFormat(index int, msg string, err error) *RunError {
	return &RunError{Type: RecipeFormat, Message: msg, StepIndex: index, Err: err}
}

func NewUnknownStepType(index int, stepType string, known []string) *RunError {
	e := &RunError{
		Type:      UnknownStepType,
		Message:   fmt.Sprintf("unknown step type %q", stepType),
		StepIndex: index,
		StepType:  stepType,
	}
	if len(known) > 0 {
		e.Hint = fmt.Sprintf("Registered step types: %v", known)
	}
	return e
}

func NewTemplate(tmpl string, err error) *RunError {
	const maxLen = 80
	snippet := tmpl
	if len(snippet) > maxLen {
		snippet = snippet[:maxLen] + "..."
	}
	return &RunError{
		Type:      TemplateFailed,
		Message:   fmt.Sprintf("rendering template %q", snippet),
		StepIndex: NoStep,
		Err:       err,
	}
}

func NewStepExecution(index int, stepType string, err error) *RunError {
	return &RunError{
		Type:      StepExecution,
		Message:   "step failed",
		StepIndex: index,
		StepType:  stepType,
		Err:       err,
	}
}

// As reports whether err carries a RunError of the given type and returns
// the outermost such error.
func As(err error, errType string) (*RunError, bool) {
	for err != nil {
		var re *RunError
		if !errors.As(err, &re) {
			return nil, false
		}
		if re.Type == errType {
			return re, true
		}
		if re.Err == nil {
			return nil, false
		}
		err = re.Err
	}
	return nil, false
}
