package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stevehiehn/recipe-executor/internal/config"
	"github.com/stevehiehn/recipe-executor/internal/mcp"
	"github.com/stevehiehn/recipe-executor/internal/telemetry"
)

func newMCPCmd(opts *rootOptions) *cobra.Command {
	var (
		port       int
		httpPort   int
		recipesDir string
		logDir     string
	)
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server (stdio by default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port > 0 && httpPort > 0 {
				return fmt.Errorf("--port and --http-port are mutually exclusive")
			}
			logger, closeLog, err := telemetry.SetupLogger(logDir)
			if err != nil {
				return err
			}
			defer closeLog()

			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			wd, _ := os.Getwd()
			s := mcp.NewServer(mcp.Options{
				Version:    Version,
				WorkDir:    wd,
				RecipesDir: recipesDir,
				Config:     cfg,
				Logger:     logger,
			})

			switch {
			case port > 0:
				addr := fmt.Sprintf(":%d", port)
				logger.Info("serving MCP over SSE", "addr", addr)
				return mcp.ServeSSE(s, addr)
			case httpPort > 0:
				addr := fmt.Sprintf(":%d", httpPort)
				logger.Info("serving MCP over streamable HTTP", "addr", addr)
				return mcp.ServeHTTP(s, addr)
			}
			return mcp.ServeStdio(s)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "Serve over SSE on this port instead of stdio")
	cmd.Flags().IntVar(&httpPort, "http-port", 0, "Serve with the streamable HTTP transport on this port")
	cmd.Flags().StringVar(&recipesDir, "recipes-dir", "", "Publish every recipe in this directory as a tool")
	cmd.Flags().StringVar(&logDir, "log-dir", "", "Directory for the log file")
	return cmd
}
