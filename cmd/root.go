package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	// Built-in step types register themselves on import.
	_ "github.com/stevehiehn/recipe-executor/internal/steps"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

type rootOptions struct {
	json        bool
	logDir      string
	context     []string
	configPath  string
	metricsFile string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "recipe-executor <recipe_path>",
		Short:         "Run declarative step recipes",
		Long:          "recipe-executor runs JSON, YAML or Markdown-embedded recipes step by step against one shared context.",
		Version:       Version,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecipe(cmd, opts, args[0])
		},
	}

	root.PersistentFlags().BoolVar(&opts.json, "json", false, "Output raw JSON")
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML configuration file")
	root.Flags().StringVar(&opts.logDir, "log-dir", "", "Directory for the log file and run records")
	root.Flags().StringArrayVar(&opts.context, "context", nil, "Initial context artifact (key=value, repeatable)")
	root.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the run")

	root.AddCommand(
		newValidateCmd(opts),
		newExplainCmd(opts),
		newSchemaCmd(),
		newMCPCmd(opts),
	)
	return root
}

// Execute runs the root command and exits 1 on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
