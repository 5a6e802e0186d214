// Package postgres executes SQL statements on a PostgreSQL database through
// a pgx connection pool.
//
// Unlike the warehouse executors, the pool is established once at startup:
// the engine is only registered when POSTGRES_DSN is set, so a broken
// connection is surfaced immediately rather than on first tool call.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/metric"

	"github.com/heravelli/tollgate/internal/observe"
	"github.com/heravelli/tollgate/internal/sqlbridge"
)

// Compile-time interface assertion.
var _ sqlbridge.Runner = (*Executor)(nil)

// engineName labels the metrics emitted by this executor.
const engineName = "postgres"

// Executor runs SQL statements on a PostgreSQL database. It holds a single
// [pgxpool.Pool] and is safe for concurrent use.
type Executor struct {
	pool *pgxpool.Pool
}

// New establishes a connection pool to the database at dsn and verifies it
// with a ping. An empty dsn surfaces as a [sqlbridge.ConfigError] naming
// POSTGRES_DSN.
func New(ctx context.Context, dsn string) (*Executor, error) {
	if dsn == "" {
		return nil, &sqlbridge.ConfigError{Variable: "POSTGRES_DSN"}
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return &Executor{pool: pool}, nil
}

// Run executes query on the pool and returns its rows.
func (e *Executor) Run(ctx context.Context, query string) (*sqlbridge.ResultSet, error) {
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

func (e *Executor) execute(ctx context.Context, query string) (*sqlbridge.ResultSet, error) {
	rows, err := e.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: execute query: %w", err)
	}
	defer rows.Close()

	fds := rows.FieldDescriptions()
	cols := make([]string, 0, len(fds))
	for _, fd := range fds {
		cols = append(cols, fd.Name)
	}

	rs := &sqlbridge.ResultSet{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("postgres: read row: %w", err)
		}
		rs.Rows = append(rs.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate rows: %w", err)
	}
	return rs, nil
}

// Ping verifies the pool still reaches the database. Readiness checks use it.
func (e *Executor) Ping(ctx context.Context) error {
	return e.pool.Ping(ctx)
}

// Close releases all connections held by the pool.
func (e *Executor) Close() {
	e.pool.Close()
}
