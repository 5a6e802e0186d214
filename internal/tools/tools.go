// Package tools defines the tool contract shared by the MCP server and the
// chat dispatcher.
//
// A tool couples a wire-level definition (name, description and a JSON
// Schema for its arguments) with a handler that receives the raw argument
// JSON and returns the textual tool output. Concrete tools live in the
// subpackages secretword, tollcalc and sqlquery.
package tools

import (
	"context"
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
)

// Definition describes a tool to clients: its wire name, a human-readable
// description and the JSON Schema its arguments must satisfy.
type Definition struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Handler executes a tool call. args is the raw JSON object of arguments as
// received from the client; the returned string is the tool output delivered
// back to the caller.
type Handler func(ctx context.Context, args json.RawMessage) (string, error)

// Tool couples a definition with its handler.
type Tool struct {
	Definition
	Handler Handler
}
