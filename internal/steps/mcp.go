package steps

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/stevehiehn/recipe-executor/internal/config"
	"github.com/stevehiehn/recipe-executor/internal/runctx"
	"github.com/stevehiehn/recipe-executor/internal/step"
	"github.com/stevehiehn/recipe-executor/internal/template"
)

// MCPServer locates an MCP server: a command started over stdio, or the
// URL of a streamable HTTP endpoint.
type MCPServer struct {
	Name    string            `json:"name,omitempty"`
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	URL     string            `json:"url,omitempty"`
}

// dialMCP connects to srv. Replaced in tests.
var dialMCP = func(ctx context.Context, srv MCPServer) (*client.Client, error) {
	if srv.URL != "" {
		c, err := client.NewStreamableHttpClient(srv.URL)
		if err != nil {
			return nil, err
		}
		if err := c.Start(ctx); err != nil {
			return nil, err
		}
		return c, nil
	}
	env := make([]string, 0, len(srv.Env))
	for k, v := range srv.Env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return client.NewStdioMCPClient(srv.Command, env, srv.Args...)
}

// MCP calls tool_name on server with the rendered arguments and stores the
// tool's text output under result_key.
//
// server is an object (see MCPServer) or the name of an entry in the
// mcp_servers configuration list. Fields of an inline server are rendered.
type MCP struct {
	cfg    step.Config
	logger *slog.Logger
}

func NewMCP(cfg step.Config, logger *slog.Logger) (step.Step, error) {
	if _, ok := cfg["server"]; !ok {
		return nil, fmt.Errorf("mcp: missing required field 'server'")
	}
	if stringField(cfg, "tool_name", "") == "" {
		return nil, fmt.Errorf("mcp: missing required field 'tool_name'")
	}
	if a, ok := cfg["arguments"]; ok && a != nil {
		if _, ok := a.(map[string]any); !ok {
			return nil, fmt.Errorf("mcp: arguments must be an object, got %T", a)
		}
	}
	return &MCP{cfg: cfg, logger: logger}, nil
}

func (s *MCP) Execute(ctx context.Context, rc *runctx.Context) error {
	srv, err := s.server(rc)
	if err != nil {
		return fmt.Errorf("mcp: %w", err)
	}
	tool, err := renderField(s.cfg, "tool_name", rc)
	if err != nil {
		return fmt.Errorf("mcp: %w", err)
	}
	args, _ := s.cfg["arguments"].(map[string]any)
	args, err = template.RenderMap(args, rc)
	if err != nil {
		return fmt.Errorf("mcp: %w", err)
	}
	resultKey, err := renderField(s.cfg, "result_key", rc)
	if err != nil {
		return fmt.Errorf("mcp: %w", err)
	}
	if resultKey == "" {
		resultKey = "tool_result"
	}

	c, err := dialMCP(ctx, srv)
	if err != nil {
		return fmt.Errorf("mcp: connecting to %s: %w", srv.label(), err)
	}
	defer c.Close()

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "recipe-executor", Version: "0.1.0"}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		return fmt.Errorf("mcp: initializing %s: %w", srv.label(), err)
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = args
	s.logger.Info("calling MCP tool", "server", srv.label(), "tool", tool)
	res, err := c.CallTool(ctx, req)
	if err != nil {
		return fmt.Errorf("mcp: calling %s: %w", tool, err)
	}

	text := contentText(res.Content)
	if res.IsError {
		return fmt.Errorf("mcp: tool %s returned an error: %s", tool, text)
	}
	rc.Set(resultKey, text)
	return nil
}

func (s *MCP) server(rc *runctx.Context) (MCPServer, error) {
	switch v := s.cfg["server"].(type) {
	case string:
		name, err := template.Render(v, rc)
		if err != nil {
			return MCPServer{}, err
		}
		return namedServer(rc, name)
	case map[string]any:
		rendered, err := template.RenderMap(v, rc)
		if err != nil {
			return MCPServer{}, err
		}
		var srv MCPServer
		if err := step.Decode(step.Config(rendered), &srv); err != nil {
			return MCPServer{}, err
		}
		if srv.Command == "" && srv.URL == "" {
			return MCPServer{}, fmt.Errorf("server needs a command or a url")
		}
		return srv, nil
	default:
		return MCPServer{}, fmt.Errorf("server must be an object or a server name, got %T", v)
	}
}

func namedServer(rc *runctx.Context, name string) (MCPServer, error) {
	raw, _ := rc.Config().Get(config.KeyMCPServers)
	list, _ := raw.([]any)
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok || m["name"] != name {
			continue
		}
		var srv MCPServer
		if err := step.Decode(step.Config(m), &srv); err != nil {
			return MCPServer{}, err
		}
		return srv, nil
	}
	return MCPServer{}, fmt.Errorf("no MCP server named %q in configuration", name)
}

func (srv MCPServer) label() string {
	switch {
	case srv.Name != "":
		return srv.Name
	case srv.URL != "":
		return srv.URL
	}
	return srv.Command
}

func contentText(content []mcp.Content) string {
	var parts []string
	for _, c := range content {
		if tc, ok := mcp.AsTextContent(c); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
