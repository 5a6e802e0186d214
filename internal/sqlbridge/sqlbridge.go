// Package sqlbridge defines the shared statement lifecycle for the SQL
// execution tools: submit a statement to a remote engine, poll its handle
// until a terminal state, and translate the tabular result into ordered
// row mappings.
//
// The package deliberately knows nothing about any concrete engine. Engine
// adapters (databricks, snowflake, postgres) implement [Runner] and reuse
// [Poller] and [Translate] so every tool reports the same states and the
// same error kinds.
//
// A [Statement] moves monotonically through
//
//	{PENDING | RUNNING} → {SUCCEEDED | FAILED}
//
// and is never refreshed again once terminal.
package sqlbridge

import (
	"context"
	"errors"
)

// State is the lifecycle state of a submitted statement.
type State string

const (
	StatePending   State = "PENDING"
	StateRunning   State = "RUNNING"
	StateSucceeded State = "SUCCEEDED"
	StateFailed    State = "FAILED"
)

// Terminal reports whether no further state transition can occur.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Statement is one remote query execution: the engine-issued identifier,
// its current state, and — once terminal — either the engine's error detail
// or the result schema and positional row data.
type Statement struct {
	// ID is the engine-issued statement identifier.
	ID string

	// State is the last observed lifecycle state.
	State State

	// Detail carries the engine's error description when State is FAILED.
	Detail string

	// Columns is the ordered result schema, set when State is SUCCEEDED.
	Columns []string

	// Data holds the result rows, each positionally aligned with Columns.
	// Set when State is SUCCEEDED; may be empty.
	Data [][]any
}

// ResultSet is the uniform output of every engine adapter: an ordered
// column schema plus positional row data.
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

// Mappings translates the result set into ordered row mappings.
func (rs *ResultSet) Mappings() []Row {
	return Translate(rs.Columns, rs.Rows)
}

// Runner executes one SQL statement against a remote engine and returns the
// full result. Implementations validate their own configuration on each
// call and must not retry on failure.
type Runner interface {
	Run(ctx context.Context, query string) (*ResultSet, error)
}

// ConfigError reports a missing required connection setting. Variable names
// the environment variable that was absent.
type ConfigError struct {
	Variable string
}

func (e *ConfigError) Error() string {
	return e.Variable + " not set"
}

// IsConfigError reports whether err is (or wraps) a [ConfigError].
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// QueryError reports that the engine moved a statement to FAILED. Detail is
// the engine's own error text.
type QueryError struct {
	StatementID string
	Detail      string
}

func (e *QueryError) Error() string {
	return "query failed: " + e.Detail
}

// ErrPollDeadline is returned by [Poller.Wait] when the configured overall
// deadline expires before the statement reaches a terminal state.
var ErrPollDeadline = errors.New("sqlbridge: poll deadline exceeded")
