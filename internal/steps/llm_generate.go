package steps

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stevehiehn/recipe-executor/internal/config"
	"github.com/stevehiehn/recipe-executor/internal/llm"
	"github.com/stevehiehn/recipe-executor/internal/models"
	"github.com/stevehiehn/recipe-executor/internal/runctx"
	"github.com/stevehiehn/recipe-executor/internal/step"
)

// retryDelay is the pause before the n-th retry, multiplied by n.
var retryDelay = time.Second

// LLMGenerate sends the rendered prompt to a model and stores the answer
// under output_key.
//
// model ("provider:model_name", rendered) defaults to the "model" config
// value. output_format "files" (default) stores a validated
// FileGenerationResult; "text" stores the raw completion. A failed call is
// retried up to max_retries times (default: llm_max_retries config).
type LLMGenerate struct {
	cfg    step.Config
	logger *slog.Logger
}

func NewLLMGenerate(cfg step.Config, logger *slog.Logger) (step.Step, error) {
	if stringField(cfg, "prompt", "") == "" {
		return nil, fmt.Errorf("llm_generate: missing required field 'prompt'")
	}
	switch f := stringField(cfg, "output_format", "files"); f {
	case "files", "text":
	default:
		return nil, fmt.Errorf("llm_generate: unknown output_format %q", f)
	}
	if _, err := intField(cfg, "max_retries", 0); err != nil {
		return nil, fmt.Errorf("llm_generate: %w", err)
	}
	return &LLMGenerate{cfg: cfg, logger: logger}, nil
}

func (s *LLMGenerate) Execute(ctx context.Context, rc *runctx.Context) error {
	prompt, err := renderField(s.cfg, "prompt", rc)
	if err != nil {
		return fmt.Errorf("llm_generate: %w", err)
	}
	model, err := renderField(s.cfg, "model", rc)
	if err != nil {
		return fmt.Errorf("llm_generate: %w", err)
	}
	if model == "" {
		model = rc.Config().String(config.KeyModel, "openai:gpt-4o")
	}
	outputKey, err := renderField(s.cfg, "output_key", rc)
	if err != nil {
		return fmt.Errorf("llm_generate: %w", err)
	}
	if outputKey == "" {
		outputKey = "llm_output"
	}
	retries, _ := intField(s.cfg, "max_retries", rc.Config().Int(config.KeyMaxRetries, 3))
	if retries < 0 {
		retries = 0
	}

	gen, err := llm.NewGenerator(model, rc.Config().Map())
	if err != nil {
		return fmt.Errorf("llm_generate: %w", err)
	}
	format := stringField(s.cfg, "output_format", "files")

	var out any
	for attempt := 0; ; attempt++ {
		s.logger.Debug("calling model", "model", model, "attempt", attempt+1)
		if format == "text" {
			out, err = gen.GenerateText(ctx, prompt)
		} else {
			var res *models.FileGenerationResult
			res, err = gen.GenerateFiles(ctx, prompt)
			if err == nil {
				out = *res
			}
		}
		if err == nil {
			break
		}
		if attempt >= retries || ctx.Err() != nil {
			return fmt.Errorf("llm_generate: %s failed after %d attempt(s): %w", model, attempt+1, err)
		}
		s.logger.Warn("model call failed, retrying", "model", model, "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			return fmt.Errorf("llm_generate: %w", ctx.Err())
		case <-time.After(retryDelay * time.Duration(attempt+1)):
		}
	}

	rc.Set(outputKey, out)
	s.logger.Info("stored model output", "key", outputKey, "model", model)
	return nil
}
