package steps

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/stevehiehn/recipe-executor/internal/runctx"
	"github.com/stevehiehn/recipe-executor/internal/runner"
	"github.com/stevehiehn/recipe-executor/internal/step"
	"github.com/stevehiehn/recipe-executor/internal/template"
)

// Shell runs command through sh -c in cwd and stores the trimmed stdout
// under output_key when one is given. A non-zero exit fails the step.
// timeout_sec bounds the command's run time.
type Shell struct {
	cfg    step.Config
	logger *slog.Logger
}

func NewShell(cfg step.Config, logger *slog.Logger) (step.Step, error) {
	if stringField(cfg, "command", "") == "" {
		return nil, fmt.Errorf("shell: missing required field 'command'")
	}
	if _, err := intField(cfg, "timeout_sec", 0); err != nil {
		return nil, fmt.Errorf("shell: %w", err)
	}
	return &Shell{cfg: cfg, logger: logger}, nil
}

func (s *Shell) Execute(ctx context.Context, rc *runctx.Context) error {
	command, err := renderField(s.cfg, "command", rc)
	if err != nil {
		return fmt.Errorf("shell: %w", err)
	}
	cwd, err := renderField(s.cfg, "cwd", rc)
	if err != nil {
		return fmt.Errorf("shell: %w", err)
	}
	outputKey, err := renderField(s.cfg, "output_key", rc)
	if err != nil {
		return fmt.Errorf("shell: %w", err)
	}
	var env map[string]string
	if raw, ok := s.cfg["env"].(map[string]any); ok {
		rendered, err := template.RenderMap(raw, rc)
		if err != nil {
			return fmt.Errorf("shell: %w", err)
		}
		env = make(map[string]string, len(rendered))
		for k, v := range rendered {
			env[k] = fmt.Sprint(v)
		}
	}
	if timeout, _ := intField(s.cfg, "timeout_sec", 0); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer cancel()
	}

	s.logger.Info("running command", "command", command, "cwd", cwd)
	res, err := runner.Run(ctx, runner.Command{Script: command, Dir: cwd, Env: env})
	if err != nil {
		return fmt.Errorf("shell: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("shell: command exited with code %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	s.logger.Debug("command finished", "duration", res.Duration.Round(time.Millisecond).String())
	if outputKey != "" {
		rc.Set(outputKey, strings.TrimSpace(res.Stdout))
	}
	return nil
}
