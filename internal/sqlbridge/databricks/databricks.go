// Package databricks executes SQL statements on a Databricks SQL warehouse
// via the Statement Execution API.
//
// A statement is submitted with POST /api/2.0/sql/statements using a 30 s
// server-side wait. If the warehouse has not finished by then, the executor
// polls GET /api/2.0/sql/statements/{id} until the statement reaches a
// terminal state. Column names come from the response manifest and row data
// from result.data_array.
//
// Typical usage:
//
//	exec := databricks.New(databricks.Config{
//	    Host:        os.Getenv("DATABRICKS_HOST"),
//	    Token:       os.Getenv("DATABRICKS_TOKEN"),
//	    WarehouseID: os.Getenv("DATABRICKS_SQL_WAREHOUSE_ID"),
//	})
//	rs, err := exec.Run(ctx, "SELECT * FROM my_catalog.my_schema.tolls LIMIT 10")
package databricks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/heravelli/tollgate/internal/observe"
	"github.com/heravelli/tollgate/internal/sqlbridge"
)

// Compile-time interface assertion.
var _ sqlbridge.Runner = (*Executor)(nil)

// ---- constants ----

const (
	// engineName labels the metrics emitted by this executor.
	engineName = "databricks"

	// statementsEndpoint is the Statement Execution API path.
	statementsEndpoint = "/api/2.0/sql/statements"

	// submitWait is the server-side wait passed on submission. The API holds
	// the submit request open for up to this long before the executor falls
	// back to polling.
	submitWait = "30s"

	// defaultTimeout bounds each individual HTTP call, not the statement as a
	// whole. It must exceed submitWait or every slow submission would fail.
	defaultTimeout = 2 * time.Minute

	// maxErrorBody caps how much of an error response body is echoed into
	// returned errors.
	maxErrorBody = 2048
)

// ---- options ----

// Option is a functional option for configuring an Executor.
type Option func(*Executor)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Executor) {
		e.httpc = c
	}
}

// WithPoller replaces the default status poller.
func WithPoller(p *sqlbridge.Poller) Option {
	return func(e *Executor) {
		e.poller = p
	}
}

// ---- Executor ----

// Config carries the warehouse connection settings. Values usually come from
// the DATABRICKS_HOST, DATABRICKS_TOKEN and DATABRICKS_SQL_WAREHOUSE_ID
// environment variables.
type Config struct {
	// Host is the workspace URL, e.g. "https://adb-1234567890.1.azuredatabricks.net".
	// A bare hostname is accepted and prefixed with https://.
	Host string

	// Token is a personal access token, sent as a bearer token.
	Token string

	// WarehouseID identifies the SQL warehouse that runs the statements.
	WarehouseID string
}

// Executor runs SQL statements on a Databricks SQL warehouse. It is safe for
// concurrent use; each Run call submits and tracks its own statement.
type Executor struct {
	host        string
	token       string
	warehouseID string
	httpc       *http.Client
	poller      *sqlbridge.Poller
}

// New creates an Executor for the given warehouse. Missing credentials are
// not an error here: Run reports them per call, so a server can start without
// Databricks access and fail only when the tool is actually used.
func New(cfg Config, opts ...Option) *Executor {
	e := &Executor{
		host:        normalizeHost(cfg.Host),
		token:       cfg.Token,
		warehouseID: cfg.WarehouseID,
		httpc:       &http.Client{Timeout: defaultTimeout},
		poller:      sqlbridge.NewPoller(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Run submits query, waits for the statement to finish and returns its rows.
// Missing credentials surface as a [sqlbridge.ConfigError]; a statement that
// ends in FAILED surfaces as a [sqlbridge.QueryError] carrying the engine's
// error message.
func (e *Executor) Run(ctx context.Context, query string) (*sqlbridge.ResultSet, error) {
	if err := e.checkConfig(); err != nil {
		return nil, err
	}

	met := observe.DefaultMetrics()
	engineAttr := metric.WithAttributes(observe.Attr("engine", engineName))
	met.ActiveQueries.Add(ctx, 1, engineAttr)
	defer met.ActiveQueries.Add(ctx, -1, engineAttr)

	start := time.Now()
	rs, err := e.execute(ctx, query, met)
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
	case e.host == "":
		return &sqlbridge.ConfigError{Variable: "DATABRICKS_HOST"}
	case e.token == "":
		return &sqlbridge.ConfigError{Variable: "DATABRICKS_TOKEN"}
	case e.warehouseID == "":
		return &sqlbridge.ConfigError{Variable: "DATABRICKS_SQL_WAREHOUSE_ID"}
	}
	return nil
}

func (e *Executor) execute(ctx context.Context, query string, met *observe.Metrics) (*sqlbridge.ResultSet, error) {
	st, err := e.submit(ctx, query)
	if err != nil {
		return nil, err
	}

	id := st.ID
	st, err = e.poller.Wait(ctx, st, func(ctx context.Context) (*sqlbridge.Statement, error) {
		met.QueryPolls.Add(ctx, 1, metric.WithAttributes(observe.Attr("engine", engineName)))
		return e.refresh(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return &sqlbridge.ResultSet{Columns: st.Columns, Rows: st.Data}, nil
}

// submit issues POST /api/2.0/sql/statements and returns the statement in
// whatever state the server-side wait left it.
func (e *Executor) submit(ctx context.Context, query string) (*sqlbridge.Statement, error) {
	body := statementRequest{
		Statement:     query,
		WarehouseID:   e.warehouseID,
		WaitTimeout:   submitWait,
		OnWaitTimeout: "CONTINUE",
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("databricks: marshal statement request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.host+statementsEndpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("databricks: create statement request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("databricks: POST %s: %w", statementsEndpoint, err)
	}
	defer resp.Body.Close()

	return decodeStatement(resp)
}

// refresh issues GET /api/2.0/sql/statements/{id} to fetch the current state.
func (e *Executor) refresh(ctx context.Context, id string) (*sqlbridge.Statement, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.host+statementsEndpoint+"/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("databricks: create status request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.token)
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("databricks: GET %s/%s: %w", statementsEndpoint, id, err)
	}
	defer resp.Body.Close()

	return decodeStatement(resp)
}

// decodeStatement turns an API response into a bridge statement. Non-200
// responses become errors carrying a snippet of the body.
func decodeStatement(resp *http.Response) (*sqlbridge.Statement, error) {
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("databricks: API returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	var sr statementResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("databricks: decode statement response: %w", err)
	}
	return sr.statement(), nil
}

// ---- wire types ----

// statementRequest is the JSON body sent to POST /api/2.0/sql/statements.
type statementRequest struct {
	Statement     string `json:"statement"`
	WarehouseID   string `json:"warehouse_id"`
	WaitTimeout   string `json:"wait_timeout"`
	OnWaitTimeout string `json:"on_wait_timeout"`
}

// statementResponse is the JSON body returned by both the submit and the
// status endpoints. Manifest and Result are only present once the statement
// has produced a result.
type statementResponse struct {
	StatementID string             `json:"statement_id"`
	Status      statementStatus    `json:"status"`
	Manifest    *statementManifest `json:"manifest"`
	Result      *statementResult   `json:"result"`
}

type statementStatus struct {
	State string          `json:"state"`
	Error *statementError `json:"error"`
}

type statementError struct {
	Message string `json:"message"`
}

type statementManifest struct {
	Schema statementSchema `json:"schema"`
}

type statementSchema struct {
	Columns []statementColumn `json:"columns"`
}

type statementColumn struct {
	Name string `json:"name"`
}

type statementResult struct {
	DataArray [][]any `json:"data_array"`
}

// statement maps the wire representation onto a bridge statement. States
// other than PENDING, RUNNING and SUCCEEDED (FAILED, CANCELED, CLOSED) are
// all treated as failures so the poller stops on them.
func (sr *statementResponse) statement() *sqlbridge.Statement {
	st := &sqlbridge.Statement{ID: sr.StatementID}
	switch sr.Status.State {
	case "PENDING":
		st.State = sqlbridge.StatePending
	case "RUNNING":
		st.State = sqlbridge.StateRunning
	case "SUCCEEDED":
		st.State = sqlbridge.StateSucceeded
	default:
		st.State = sqlbridge.StateFailed
		st.Detail = sr.Status.State
	}
	if sr.Status.Error != nil && sr.Status.Error.Message != "" {
		st.Detail = sr.Status.Error.Message
	}
	if sr.Manifest != nil {
		st.Columns = make([]string, 0, len(sr.Manifest.Schema.Columns))
		for _, col := range sr.Manifest.Schema.Columns {
			st.Columns = append(st.Columns, col.Name)
		}
	}
	if sr.Result != nil {
		st.Data = sr.Result.DataArray
	}
	return st
}

// ---- helpers ----

// normalizeHost trims trailing slashes and defaults to https for bare
// hostnames. Empty input stays empty so the credential check still fires.
func normalizeHost(host string) string {
	if host == "" {
		return ""
	}
	host = strings.TrimRight(host, "/")
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	return host
}
