// Package steps holds the built-in step types. Importing the package
// registers all of them in step.Default:
//
//	read_files      read one or more files into the context
//	write_files     materialize FileSpecs on disk
//	set_context     store a (templated) value
//	conditional     run one of two branches depending on an expression
//	loop            run substeps once per item on a cloned context
//	execute_recipe  run another recipe on the same context
//	llm_generate    ask a model for text or a FileGenerationResult
//	mcp             call a tool on an MCP server
//	shell           run a shell command
//	http_request    send an HTTP request
//
// Every step renders its own templated fields inside Execute.
package steps
