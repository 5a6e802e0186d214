package chat

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/heravelli/tollgate/internal/config"
)

// Implementation details announced during the MCP handshake.
const (
	clientName    = "tollchat"
	clientVersion = "1.0.0"
)

// ToolInfo describes one tool announced by the server.
type ToolInfo struct {
	Name        string
	Description string
}

// CallResult is the outcome of one tool invocation.
type CallResult struct {
	// Content is the concatenated text content of the result.
	Content string

	// IsError reports an application-level tool failure; Content then holds
	// the failure text.
	IsError bool

	// Duration is the wall-clock time of the call.
	Duration time.Duration
}

// Client is a live connection to one tollgate MCP server.
type Client struct {
	session *mcpsdk.ClientSession
	tools   []ToolInfo
}

// Connect dials the server described by cfg, lists its tools and returns a
// ready-to-use client.
//
// For [config.TransportStdio] cfg.Command is split on spaces and spawned as
// a child process, with cfg.Env entries appended to the current environment.
// For [config.TransportStreamableHTTP] cfg.URL is dialed directly; cfg.Token,
// when set, is sent as a bearer token on every request.
func Connect(ctx context.Context, cfg config.ServerConfig) (*Client, error) {
	if !cfg.Transport.IsValid() {
		return nil, fmt.Errorf("chat: unknown transport %q", cfg.Transport)
	}

	var transport mcpsdk.Transport

	switch cfg.Transport {
	case config.TransportStdio:
		executable, args := splitCommand(cfg.Command)
		if executable == "" {
			return nil, fmt.Errorf("chat: stdio transport requires a non-empty command")
		}
		cmd := exec.CommandContext(ctx, executable, args...)
		if len(cfg.Env) > 0 {
			cmd.Env = os.Environ()
			for k, v := range cfg.Env {
				cmd.Env = append(cmd.Env, k+"="+v)
			}
		}
		transport = &mcpsdk.CommandTransport{Command: cmd}

	case config.TransportStreamableHTTP:
		if cfg.URL == "" {
			return nil, fmt.Errorf("chat: streamable-http transport requires a non-empty url")
		}
		httpc := http.DefaultClient
		if cfg.Token != "" {
			httpc = &http.Client{Transport: &bearerTransport{token: cfg.Token}}
		}
		transport = &mcpsdk.StreamableClientTransport{Endpoint: cfg.URL, HTTPClient: httpc}
	}

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: clientName, Version: clientVersion}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("chat: connect to server: %w", err)
	}

	var infos []ToolInfo
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			_ = session.Close()
			return nil, fmt.Errorf("chat: list tools: %w", err)
		}
		infos = append(infos, ToolInfo{Name: tool.Name, Description: tool.Description})
	}

	return &Client{session: session, tools: infos}, nil
}

// Tools returns the tools announced by the server at connect time.
func (c *Client) Tools() []ToolInfo {
	out := make([]ToolInfo, len(c.tools))
	copy(out, c.tools)
	return out
}

// CallTool invokes the named tool and returns its text content. A result
// with IsError set is an application-level tool failure; a Go error is a
// transport or protocol failure.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*CallResult, error) {
	if args == nil {
		args = map[string]any{}
	}

	start := time.Now()
	res, err := c.session.CallTool(ctx, &mcpsdk.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, fmt.Errorf("chat: call tool %q: %w", name, err)
	}

	var sb strings.Builder
	for _, content := range res.Content {
		if tc, ok := content.(*mcpsdk.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return &CallResult{Content: sb.String(), IsError: res.IsError, Duration: time.Since(start)}, nil
}

// Close shuts down the server connection. For stdio transports this also
// terminates the spawned server process.
func (c *Client) Close() error {
	return c.session.Close()
}

// bearerTransport adds an Authorization header to every request.
type bearerTransport struct {
	token string
}

func (b *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+b.token)
	return http.DefaultTransport.RoundTrip(r)
}

// splitCommand splits a command string into executable and arguments,
// e.g. "tollgate -transport stdio" → ("tollgate", ["-transport", "stdio"]).
func splitCommand(command string) (executable string, args []string) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return "", nil
	}
	return parts[0], parts[1:]
}

// Ensure Client implements Caller at compile time.
var _ Caller = (*Client)(nil)
