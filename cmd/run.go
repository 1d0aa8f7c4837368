package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/stevehiehn/recipe-executor/internal/artifact"
	"github.com/stevehiehn/recipe-executor/internal/config"
	"github.com/stevehiehn/recipe-executor/internal/executor"
	"github.com/stevehiehn/recipe-executor/internal/runctx"
	"github.com/stevehiehn/recipe-executor/internal/telemetry"
)

// runOutput is the --json payload of a run.
type runOutput struct {
	Recipe  string           `json:"recipe"`
	Result  *executor.Result `json:"result"`
	Context *runctx.Context  `json:"context"`
}

func runRecipe(cmd *cobra.Command, opts *rootOptions, path string) error {
	logger, closeLog, err := telemetry.SetupLogger(opts.logDir)
	if err != nil {
		return err
	}
	defer closeLog()

	artifacts, err := parseContext(opts.context)
	if err != nil {
		logger.Error("parsing context", "error", err)
		return err
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		logger.Error("loading config", "error", err)
		return err
	}

	var exOpts []executor.Option
	var metrics *telemetry.Metrics
	if opts.metricsFile != "" {
		metrics = telemetry.NewMetrics()
		exOpts = append(exOpts, executor.WithMetrics(metrics))
	}

	rc := runctx.New(artifacts, cfg)
	logger = logger.With("recipe", path)
	ctx := telemetry.WithLogger(cmd.Context(), logger)
	result, runErr := executor.New(nil, exOpts...).Execute(ctx, path, rc, logger)

	if opts.logDir != "" {
		writeRunRecords(opts.logDir, result, rc, logger)
	}
	if metrics != nil {
		if err := metrics.WriteTextfile(opts.metricsFile); err != nil {
			logger.Warn("writing metrics", "path", opts.metricsFile, "error", err)
		}
	}

	out := cmd.OutOrStdout()
	if opts.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(runOutput{Recipe: path, Result: result, Context: rc}); err != nil {
			return err
		}
	} else {
		fmt.Fprint(out, renderSummary(path, result))
	}
	return runErr
}

func writeRunRecords(logDir string, result *executor.Result, rc *runctx.Context, logger *slog.Logger) {
	store, err := artifact.New(logDir, result.RunID)
	if err != nil {
		logger.Warn("creating run record", "error", err)
		return
	}
	if err := store.WriteResult(result); err != nil {
		logger.Warn("writing run result", "error", err)
	}
	if err := store.WriteContext(rc); err != nil {
		logger.Warn("writing run context", "error", err)
	}
}
