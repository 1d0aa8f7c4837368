package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stevehiehn/recipe-executor/internal/executor"
)

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <recipe_path>",
		Short: "Validate a recipe without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := executor.New(nil).Validate(args[0])
			out := cmd.OutOrStdout()
			if opts.json {
				doc := map[string]any{"valid": err == nil}
				if err != nil {
					doc["error"] = err.Error()
				}
				if encErr := json.NewEncoder(out).Encode(doc); encErr != nil {
					return encErr
				}
				return err
			}
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}
			fmt.Fprintln(out, passedStyle.Render(glyphPassed)+" Recipe is valid.")
			return nil
		},
	}
}
