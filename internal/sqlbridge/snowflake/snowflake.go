// Package snowflake executes SQL statements on a Snowflake warehouse through
// the gosnowflake database/sql driver.
//
// Unlike the Databricks executor there is no statement polling: the driver
// blocks until the statement finishes. Each Run opens a fresh session and
// closes it when the statement is done, so no warehouse connection is held
// between tool calls.
package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sf "github.com/snowflakedb/gosnowflake"
	"go.opentelemetry.io/otel/metric"

	"github.com/heravelli/tollgate/internal/observe"
	"github.com/heravelli/tollgate/internal/sqlbridge"
)

// Compile-time interface assertion.
var _ sqlbridge.Runner = (*Executor)(nil)

// engineName labels the metrics emitted by this executor.
const engineName = "snowflake"

// Config carries the warehouse connection settings. Values usually come from
// the SNOWFLAKE_ACCOUNT, SNOWFLAKE_USER, SNOWFLAKE_PASSWORD,
// SNOWFLAKE_DATABASE, SNOWFLAKE_SCHEMA and SNOWFLAKE_WAREHOUSE environment
// variables. All six are required.
type Config struct {
	Account   string
	User      string
	Password  string
	Database  string
	Schema    string
	Warehouse string
}

// Option is a functional option for configuring an Executor.
type Option func(*Executor)

// WithOpener replaces the function used to open database handles. Tests use
// it to substitute an in-memory driver for real network connections.
func WithOpener(open func(dsn string) (*sql.DB, error)) Option {
	return func(e *Executor) {
		e.open = open
	}
}

// Executor runs SQL statements on a Snowflake warehouse. It is safe for
// concurrent use; each Run call opens its own session.
type Executor struct {
	cfg  Config
	open func(dsn string) (*sql.DB, error)
}

// New creates an Executor for the given warehouse. Missing credentials are
// not an error here: Run reports them per call, so a server can start without
// Snowflake access and fail only when the tool is actually used.
func New(cfg Config, opts ...Option) *Executor {
	e := &Executor{
		cfg: cfg,
		open: func(dsn string) (*sql.DB, error) {
			return sql.Open("snowflake", dsn)
		},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Run executes query in a fresh session and returns its rows. Missing
// credentials surface as a [sqlbridge.ConfigError] naming the first unset
// variable.
func (e *Executor) Run(ctx context.Context, query string) (*sqlbridge.ResultSet, error) {
	if err := e.checkConfig(); err != nil {
		return nil, err
	}

	met := observe.DefaultMetrics()
	engineAttr := metric.WithAttributes(observe.Attr("engine", engineName))
	met.ActiveQueries.Add(ctx, 1, engineAttr)
	defer met.ActiveQueries.Add(ctx, -1, engineAttr)

	start := time.Now()
	rs, err := e.execute(ctx, query)
	status := "ok"
	if err != nil {
		status = "error"
	}
	met.RecordQuery(ctx, engineName, status, time.Since(start).Seconds())
	return rs, err
}

// checkConfig reports the first missing credential by the name of the
// environment variable that supplies it.
func (e *Executor) checkConfig() error {
	switch {
	case e.cfg.Account == "":
		return &sqlbridge.ConfigError{Variable: "SNOWFLAKE_ACCOUNT"}
	case e.cfg.User == "":
		return &sqlbridge.ConfigError{Variable: "SNOWFLAKE_USER"}
	case e.cfg.Password == "":
		return &sqlbridge.ConfigError{Variable: "SNOWFLAKE_PASSWORD"}
	case e.cfg.Database == "":
		return &sqlbridge.ConfigError{Variable: "SNOWFLAKE_DATABASE"}
	case e.cfg.Schema == "":
		return &sqlbridge.ConfigError{Variable: "SNOWFLAKE_SCHEMA"}
	case e.cfg.Warehouse == "":
		return &sqlbridge.ConfigError{Variable: "SNOWFLAKE_WAREHOUSE"}
	}
	return nil
}

func (e *Executor) execute(ctx context.Context, query string) (*sqlbridge.ResultSet, error) {
	dsn, err := sf.DSN(&sf.Config{
		Account:   e.cfg.Account,
		User:      e.cfg.User,
		Password:  e.cfg.Password,
		Database:  e.cfg.Database,
		Schema:    e.cfg.Schema,
		Warehouse: e.cfg.Warehouse,
	})
	if err != nil {
		return nil, fmt.Errorf("snowflake: build dsn: %w", err)
	}

	db, err := e.open(dsn)
	if err != nil {
		return nil, fmt.Errorf("snowflake: open connection: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("snowflake: execute query: %w", err)
	}
	defer rows.Close()

	return collectRows(rows)
}

// collectRows drains rows into a ResultSet, decoding []byte cells to strings
// so they render as text rather than base64 in JSON output.
func collectRows(rows *sql.Rows) (*sqlbridge.ResultSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("snowflake: read columns: %w", err)
	}

	rs := &sqlbridge.ResultSet{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("snowflake: scan row: %w", err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		rs.Rows = append(rs.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snowflake: iterate rows: %w", err)
	}
	return rs, nil
}
