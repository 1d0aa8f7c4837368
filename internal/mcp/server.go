// Package mcp exposes the recipe executor as an MCP tool server. Built-in
// tools validate, explain and execute recipe files; every recipe found in
// the recipes directory is also published as a tool of its own.
package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/stevehiehn/recipe-executor/internal/executor"
	"github.com/stevehiehn/recipe-executor/internal/step"
)

// Options configures NewServer.
type Options struct {
	Version    string
	WorkDir    string         // relative recipe paths resolve against it
	RecipesDir string         // optional; each recipe in it becomes a tool
	Config     map[string]any // run configuration for every execution
	Executor   *executor.Executor
	Logger     *slog.Logger
}

// NewServer creates an MCP server with the recipe tools registered.
func NewServer(opts Options) *server.MCPServer {
	h := newHandlers(opts)
	s := server.NewMCPServer(
		"recipe-executor",
		opts.Version,
		server.WithToolCapabilities(true),
	)

	s.AddTool(
		mcp.NewTool("recipe_validate",
			mcp.WithDescription("Validate a recipe file without running it"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the recipe (.json, .yaml or .md)")),
		),
		h.HandleValidate,
	)

	s.AddTool(
		mcp.NewTool("recipe_explain",
			mcp.WithDescription("List the steps of a recipe and their unrendered configuration"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the recipe")),
		),
		h.HandleExplain,
	)

	s.AddTool(
		mcp.NewTool("recipe_execute",
			mcp.WithDescription("Execute a recipe and return the run result and final context"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the recipe")),
			mcp.WithObject("context", mcp.Description("Initial context artifacts")),
		),
		h.HandleExecute,
	)

	s.AddTool(
		mcp.NewTool("recipe_schema",
			mcp.WithDescription("Export the recipe JSON Schema"),
		),
		h.HandleSchema,
	)

	for _, rt := range h.recipeTools() {
		s.AddTool(rt.tool, rt.handler)
	}
	return s
}

// ServeStdio serves s over stdin/stdout until stdin closes.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// ServeSSE serves s over HTTP with server-sent events on addr.
func ServeSSE(s *server.MCPServer, addr string) error {
	return server.NewSSEServer(s).Start(addr)
}

// ServeHTTP serves s with the streamable HTTP transport on addr.
func ServeHTTP(s *server.MCPServer, addr string) error {
	return server.NewStreamableHTTPServer(s).Start(addr)
}

func defaultExecutor(e *executor.Executor) *executor.Executor {
	if e != nil {
		return e
	}
	return executor.New(step.Default)
}
