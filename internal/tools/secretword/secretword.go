// Package secretword implements the secret_word tool.
package secretword

import (
	"context"
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/heravelli/tollgate/internal/tools"
)

// Word is the fixed value the tool returns.
const Word = "ABRACADABRA"

// Tool returns the secret_word tool. It takes no arguments and always
// responds with [Word].
func Tool() tools.Tool {
	return tools.Tool{
		Definition: tools.Definition{
			Name:        "secret_word",
			Description: "Returns a secret word.",
			InputSchema: &jsonschema.Schema{Type: "object"},
		},
		Handler: func(context.Context, json.RawMessage) (string, error) {
			return Word, nil
		},
	}
}
