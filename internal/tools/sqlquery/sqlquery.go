// Package sqlquery adapts a [sqlbridge.Runner] into a query tool.
//
// All three SQL tools (run_sql_query, run_snowflake_query and
// run_postgres_query) share the same argument shape and output format and
// differ only in the engine behind them and the prefix their failures carry.
package sqlquery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/heravelli/tollgate/internal/sqlbridge"
	"github.com/heravelli/tollgate/internal/tools"
)

// queryArgs is the argument object shared by the query tools.
type queryArgs struct {
	Query string `json:"query"`
}

// New builds a query tool. Runner errors, including missing credentials, are
// wrapped with failPrefix so clients see e.g. "SQL query failed: <cause>".
// Successful queries return the rows as a JSON array of column-to-value
// objects, "[]" when the statement produced no rows.
func New(name, description, failPrefix string, run sqlbridge.Runner) tools.Tool {
	return tools.Tool{
		Definition: tools.Definition{
			Name:        name,
			Description: description,
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"query": {
						Type:        "string",
						Description: "SQL text to execute.",
					},
				},
				Required: []string{"query"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var a queryArgs
			if err := json.Unmarshal(args, &a); err != nil {
				return "", fmt.Errorf("sqlquery: decode args: %w", err)
			}
			if strings.TrimSpace(a.Query) == "" {
				return "", errors.New("sqlquery: query must not be empty")
			}

			rs, err := run.Run(ctx, a.Query)
			if err != nil {
				return "", fmt.Errorf("%s: %w", failPrefix, err)
			}

			out, err := json.Marshal(rs.Mappings())
			if err != nil {
				return "", fmt.Errorf("sqlquery: encode result: %w", err)
			}
			return string(out), nil
		},
	}
}

// Databricks returns the run_sql_query tool backed by run.
func Databricks(run sqlbridge.Runner) tools.Tool {
	return New("run_sql_query",
		"Executes a SQL query on Databricks and returns results as a list of dictionaries.",
		"SQL query failed", run)
}

// Snowflake returns the run_snowflake_query tool backed by run.
func Snowflake(run sqlbridge.Runner) tools.Tool {
	return New("run_snowflake_query",
		"Executes a SQL query on Snowflake and returns results as a list of dictionaries.",
		"Snowflake query failed", run)
}

// Postgres returns the run_postgres_query tool backed by run.
func Postgres(run sqlbridge.Runner) tools.Tool {
	return New("run_postgres_query",
		"Executes a SQL query on PostgreSQL and returns results as a list of dictionaries.",
		"PostgreSQL query failed", run)
}
