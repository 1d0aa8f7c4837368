package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/stevehiehn/recipe-executor/internal/executor"
	"github.com/stevehiehn/recipe-executor/internal/recipe"
	"github.com/stevehiehn/recipe-executor/internal/runctx"
	"github.com/stevehiehn/recipe-executor/internal/step"
)

type handlers struct {
	workDir    string
	recipesDir string
	config     map[string]any
	executor   *executor.Executor
	logger     *slog.Logger
}

func newHandlers(opts Options) *handlers {
	logger := opts.Logger
	if logger == nil {
		logger = step.DiscardLogger()
	}
	return &handlers{
		workDir:    opts.WorkDir,
		recipesDir: opts.RecipesDir,
		config:     opts.Config,
		executor:   defaultExecutor(opts.Executor),
		logger:     logger,
	}
}

// runOutcome is the payload of a recipe_execute call.
type runOutcome struct {
	Result  *executor.Result `json:"result"`
	Context *runctx.Context  `json:"context"`
}

// HandleValidate implements the recipe_validate tool.
func (h *handlers) HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, ok := h.pathArg(req)
	if !ok {
		return errorResult("path argument is required"), nil
	}
	if err := h.executor.Validate(path); err != nil {
		return errorResult(err.Error()), nil
	}
	exp, err := h.executor.Explain(path)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(fmt.Sprintf("%s is valid (%d steps)", filepath.Base(path), len(exp.Steps))), nil
}

// HandleExplain implements the recipe_explain tool.
func (h *handlers) HandleExplain(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, ok := h.pathArg(req)
	if !ok {
		return errorResult("path argument is required"), nil
	}
	exp, err := h.executor.Explain(path)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return jsonResult(exp, false), nil
}

// HandleExecute implements the recipe_execute tool.
func (h *handlers) HandleExecute(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, ok := h.pathArg(req)
	if !ok {
		return errorResult("path argument is required"), nil
	}
	seed, _ := req.GetArguments()["context"].(map[string]any)
	return h.execute(ctx, path, seed), nil
}

// HandleSchema implements the recipe_schema tool.
func (h *handlers) HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := recipe.GenerateJSONSchema()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

func (h *handlers) execute(ctx context.Context, path string, seed map[string]any) *mcp.CallToolResult {
	rc := runctx.New(seed, h.config)
	res, err := h.executor.Execute(ctx, path, rc, h.logger.With("recipe", path))
	out := jsonResult(runOutcome{Result: res, Context: rc}, err != nil)
	if err != nil {
		h.logger.Warn("recipe failed", "recipe", path, "error", err)
	}
	return out
}

func (h *handlers) pathArg(req mcp.CallToolRequest) (string, bool) {
	path, _ := req.GetArguments()["path"].(string)
	if path == "" {
		return "", false
	}
	return h.resolve(path), true
}

func (h *handlers) resolve(path string) string {
	if filepath.IsAbs(path) || h.workDir == "" {
		return path
	}
	return filepath.Join(h.workDir, path)
}

type recipeTool struct {
	tool    mcp.Tool
	handler server.ToolHandlerFunc
}

var recipeExts = map[string]bool{".json": true, ".yaml": true, ".yml": true, ".md": true}

// recipeTools publishes each loadable recipe in recipesDir. The tool is named
// after the recipe, or the file stem when the recipe has no name. Call
// arguments seed the run context.
func (h *handlers) recipeTools() []recipeTool {
	if h.recipesDir == "" {
		return nil
	}
	dir := h.resolve(h.recipesDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		h.logger.Warn("reading recipes directory", "dir", dir, "error", err)
		return nil
	}

	var tools []recipeTool
	seen := map[string]bool{}
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || !recipeExts[ext] {
			continue
		}
		path := filepath.Join(dir, e.Name())
		r, err := recipe.LoadFile(path)
		if err != nil {
			h.logger.Warn("skipping recipe", "path", path, "error", err)
			continue
		}
		name := r.Name
		if name == "" {
			name = strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		}
		if seen[name] {
			h.logger.Warn("duplicate recipe tool name", "name", name, "path", path)
			continue
		}
		seen[name] = true

		desc := r.Description
		if desc == "" {
			desc = "Execute the " + name + " recipe"
		}
		tools = append(tools, recipeTool{
			tool: mcp.NewTool(name, mcp.WithDescription(desc)),
			handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return h.execute(ctx, path, req.GetArguments()), nil
			},
		})
	}
	return tools
}

func jsonResult(v any, isError bool) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(err.Error())
	}
	if isError {
		return errorResult(string(data))
	}
	return textResult(string(data))
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
