// Package nlp turns natural language requests into SQL queries using a
// text completion backend.
//
// The package defines the Provider interface implemented by the concrete
// backends in the gateway, openai and anyllm subpackages, plus a Translator
// that wraps a Provider with prompt construction and completion cleanup.
package nlp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/heravelli/tollgate/internal/observe"
)

// Provider generates a text completion for a prompt.
type Provider interface {
	// Name identifies the backend in logs and metrics, e.g. "gateway".
	Name() string

	// Generate returns the raw model completion for the given prompt.
	Generate(ctx context.Context, prompt string) (string, error)
}

// promptHeader and promptFooter frame the user request for the completion
// backend. The examples steer the model towards fully qualified Unity
// Catalog table names and a default LIMIT clause.
const (
	promptHeader = `Convert the following natural language request into a valid SQL query for a Databricks SQL warehouse.
Assume tables are in a Unity Catalog schema (e.g., my_catalog.my_schema.table_name).
Use standard SQL syntax and include a LIMIT 10 clause unless specified otherwise.
If the schema or catalog is not mentioned, assume my_catalog.my_schema.
Examples:
- "Show all customers" -> "SELECT * FROM my_catalog.my_schema.customers LIMIT 10"
- "Get total tolls for cars in January 2025" -> "SELECT SUM(toll_amount) FROM my_catalog.my_schema.tolls WHERE vehicle_type = 'car' AND date LIKE '2025-01%' LIMIT 10"
Input: `

	promptFooter = `
Output: Only the SQL query, no explanations.`
)

// Prompt builds the completion prompt for a natural language request.
func Prompt(request string) string {
	return promptHeader + request + promptFooter
}

// CleanSQL normalizes a raw completion into a bare SQL string. Models
// regularly wrap queries in markdown code fences even when told not to,
// so a ``` or ```sql fence is stripped before trimming whitespace.
func CleanSQL(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```sql")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Translator converts natural language requests into SQL via a Provider.
type Translator struct {
	provider Provider
}

// NewTranslator wraps the given provider.
func NewTranslator(p Provider) *Translator {
	return &Translator{provider: p}
}

// ToSQL generates a SQL query for the given natural language request.
// The returned query has surrounding whitespace and code fences removed.
func (t *Translator) ToSQL(ctx context.Context, request string) (string, error) {
	met := observe.DefaultMetrics()

	raw, err := t.provider.Generate(ctx, Prompt(request))
	if err != nil {
		met.RecordNLPRequest(ctx, t.provider.Name(), "error")
		met.RecordNLPError(ctx, t.provider.Name())
		return "", fmt.Errorf("nlp: generate sql: %w", err)
	}

	query := CleanSQL(raw)
	if query == "" {
		met.RecordNLPRequest(ctx, t.provider.Name(), "error")
		met.RecordNLPError(ctx, t.provider.Name())
		return "", errors.New("nlp: provider returned an empty query")
	}

	met.RecordNLPRequest(ctx, t.provider.Name(), "ok")
	observe.Logger(ctx).Debug("sql generated",
		slog.String("provider", t.provider.Name()),
		slog.String("query", query))
	return query, nil
}
