package steps

import "github.com/stevehiehn/recipe-executor/internal/step"

func init() {
	RegisterAll(step.Default)
}

// RegisterAll installs the built-in step types in r.
func RegisterAll(r *step.Registry) {
	r.MustRegister("read_files", NewReadFiles)
	r.MustRegister("write_files", NewWriteFiles)
	r.MustRegister("set_context", NewSetContext)
	r.MustRegister("conditional", NewConditional)
	r.MustRegister("loop", NewLoop)
	r.MustRegister("execute_recipe", NewExecuteRecipe)
	r.MustRegister("llm_generate", NewLLMGenerate)
	r.MustRegister("mcp", NewMCP)
	r.MustRegister("shell", NewShell)
	r.MustRegister("http_request", NewHTTPRequest)
}
