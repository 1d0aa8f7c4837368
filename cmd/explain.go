package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stevehiehn/recipe-executor/internal/executor"
)

func newExplainCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "explain <recipe_path>",
		Short: "List recipe steps and their unrendered configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := executor.New(nil).Explain(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.json {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(exp)
			}

			title := exp.Name
			if title == "" {
				title = args[0]
			}
			fmt.Fprintln(out, headerStyle.Render("Recipe: "+title))
			if exp.Description != "" {
				fmt.Fprintf(out, "  %s\n", exp.Description)
			}
			fmt.Fprintln(out)
			for _, s := range exp.Steps {
				label := fmt.Sprintf("Step %d: %s", s.Index, s.Type)
				if !s.Registered {
					label += " " + failedStyle.Render("(unknown type)")
				}
				fmt.Fprintln(out, label)
				for _, field := range s.Fields {
					v, _ := json.Marshal(s.Config[field])
					fmt.Fprintf(out, "  %s: %s\n", field, dimStyle.Render(string(v)))
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}
