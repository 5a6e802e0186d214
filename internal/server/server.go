// Package server exposes the tool registry as an MCP server.
//
// It adapts every tool in a [dispatch.Registry] into an MCP tool declaration
// and serves the catalogue over stdio or streamable HTTP using the official
// MCP Go SDK (github.com/modelcontextprotocol/go-sdk). Handler failures are
// reported as tool results with IsError set rather than protocol errors, so
// clients always receive the failure text.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/heravelli/tollgate/internal/dispatch"
)

// serverName is the implementation name announced during the MCP handshake.
const serverName = "TollServer"

// defaultVersion is used when no version is supplied via [WithVersion].
const defaultVersion = "1.0.0"

// Server wraps a [dispatch.Registry] in an MCP server.
//
// The tool catalogue is fixed at construction time; tools registered on the
// registry afterwards are not announced to clients.
type Server struct {
	srv     *mcp.Server
	reg     *dispatch.Registry
	version string
}

// Option configures a [Server].
type Option func(*Server)

// WithVersion sets the version string announced during the MCP handshake.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// New builds an MCP server announcing every tool currently registered on reg.
func New(reg *dispatch.Registry, opts ...Option) *Server {
	s := &Server{reg: reg, version: defaultVersion}
	for _, opt := range opts {
		opt(s)
	}

	s.srv = mcp.NewServer(&mcp.Implementation{Name: serverName, Version: s.version}, nil)
	for _, t := range reg.Tools() {
		s.srv.AddTool(&mcp.Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		}, s.handler(t.Name))
	}
	return s
}

// handler adapts a registry invocation into an MCP tool handler.
func (s *Server) handler(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := rawArguments(req.Params.Arguments)
		if err != nil {
			return errorResult(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		out, err := s.reg.Invoke(ctx, name, args)
		if err != nil {
			// Strip the dispatch wrapping so clients see the tool's own
			// failure text, e.g. "SQL query failed: DATABRICKS_HOST not set".
			var execErr *dispatch.ExecError
			if errors.As(err, &execErr) {
				return errorResult(execErr.Err.Error()), nil
			}
			return errorResult(err.Error()), nil
		}
		return textResult(out), nil
	}
}

// ServeStdio serves MCP over stdin/stdout until ctx is cancelled or the
// client disconnects.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.srv.Run(ctx, &mcp.StdioTransport{})
}

// HTTPHandler returns an [http.Handler] speaking the streamable HTTP
// transport. Every request is served by the same underlying MCP server.
func (s *Server) HTTPHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.srv }, nil)
}

// rawArguments normalizes the argument payload of a tool call into raw JSON.
// The SDK hands untyped handlers a json.RawMessage, but a nil or decoded
// value is tolerated too.
func rawArguments(v any) (json.RawMessage, error) {
	switch a := v.(type) {
	case nil:
		return json.RawMessage("{}"), nil
	case json.RawMessage:
		if len(a) == 0 {
			return json.RawMessage("{}"), nil
		}
		return a, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return data, nil
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func errorResult(text string) *mcp.CallToolResult {
	r := textResult(text)
	r.IsError = true
	return r
}
