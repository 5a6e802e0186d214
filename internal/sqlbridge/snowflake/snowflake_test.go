package snowflake_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"slices"
	"strings"
	"testing"

	"github.com/heravelli/tollgate/internal/sqlbridge"
	"github.com/heravelli/tollgate/internal/sqlbridge/snowflake"
)

// fakeConnector satisfies driver.Connector and serves canned rows, letting
// Run execute through database/sql without a real warehouse.
type fakeConnector struct {
	cols     []string
	rows     [][]driver.Value
	gotQuery string
}

func (c *fakeConnector) Connect(context.Context) (driver.Conn, error) { return &fakeConn{c: c}, nil }
func (c *fakeConnector) Driver() driver.Driver                        { return nil }

type fakeConn struct {
	c *fakeConnector
}

func (f *fakeConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not implemented") }
func (f *fakeConn) Close() error                        { return nil }
func (f *fakeConn) Begin() (driver.Tx, error)           { return nil, errors.New("not implemented") }

func (f *fakeConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	f.c.gotQuery = query
	return &fakeRows{cols: f.c.cols, rows: f.c.rows}, nil
}

type fakeRows struct {
	cols []string
	rows [][]driver.Value
	i    int
}

func (r *fakeRows) Columns() []string { return r.cols }
func (r *fakeRows) Close() error      { return nil }

func (r *fakeRows) Next(dest []driver.Value) error {
	if r.i >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.i])
	r.i++
	return nil
}

func fullConfig() snowflake.Config {
	return snowflake.Config{
		Account:   "xy12345",
		User:      "svc_tollgate",
		Password:  "hunter2",
		Database:  "TOLLS",
		Schema:    "PUBLIC",
		Warehouse: "COMPUTE_WH",
	}
}

func TestRunMissingConfig(t *testing.T) {
	t.Parallel()

	blank := []struct {
		name  string
		apply func(*snowflake.Config)
		want  string
	}{
		{"missing account", func(c *snowflake.Config) { c.Account = "" }, "SNOWFLAKE_ACCOUNT"},
		{"missing user", func(c *snowflake.Config) { c.User = "" }, "SNOWFLAKE_USER"},
		{"missing password", func(c *snowflake.Config) { c.Password = "" }, "SNOWFLAKE_PASSWORD"},
		{"missing database", func(c *snowflake.Config) { c.Database = "" }, "SNOWFLAKE_DATABASE"},
		{"missing schema", func(c *snowflake.Config) { c.Schema = "" }, "SNOWFLAKE_SCHEMA"},
		{"missing warehouse", func(c *snowflake.Config) { c.Warehouse = "" }, "SNOWFLAKE_WAREHOUSE"},
	}
	for _, tt := range blank {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := fullConfig()
			tt.apply(&cfg)
			exec := snowflake.New(cfg, snowflake.WithOpener(func(string) (*sql.DB, error) {
				t.Error("opener called despite missing config")
				return nil, errors.New("unreachable")
			}))

			_, err := exec.Run(context.Background(), "SELECT 1")
			var cerr *sqlbridge.ConfigError
			if !errors.As(err, &cerr) {
				t.Fatalf("Run: expected ConfigError, got %v", err)
			}
			if cerr.Variable != tt.want {
				t.Fatalf("Run: expected missing %s, got %s", tt.want, cerr.Variable)
			}
			if got := err.Error(); got != tt.want+" not set" {
				t.Fatalf("Run: unexpected message %q", got)
			}
		})
	}
}

func TestRunQueriesThroughOpener(t *testing.T) {
	t.Parallel()

	conn := &fakeConnector{
		cols: []string{"vehicle_type", "toll_amount"},
		rows: [][]driver.Value{
			{[]byte("car"), 2.5},
			{[]byte("truck"), 3.75},
		},
	}

	var gotDSN string
	exec := snowflake.New(fullConfig(), snowflake.WithOpener(func(dsn string) (*sql.DB, error) {
		gotDSN = dsn
		return sql.OpenDB(conn), nil
	}))

	rs, err := exec.Run(context.Background(), "SELECT vehicle_type, toll_amount FROM tolls")
	if err != nil {
		t.Fatalf("Run: unexpected error: %v", err)
	}

	for _, part := range []string{"svc_tollgate", "xy12345", "database=TOLLS", "schema=PUBLIC", "warehouse=COMPUTE_WH"} {
		if !strings.Contains(gotDSN, part) {
			t.Errorf("Run: dsn missing %q: %s", part, gotDSN)
		}
	}
	if conn.gotQuery != "SELECT vehicle_type, toll_amount FROM tolls" {
		t.Fatalf("Run: unexpected query %q", conn.gotQuery)
	}

	if !slices.Equal(rs.Columns, []string{"vehicle_type", "toll_amount"}) {
		t.Fatalf("Run: unexpected columns %v", rs.Columns)
	}
	if len(rs.Rows) != 2 {
		t.Fatalf("Run: expected 2 rows, got %d", len(rs.Rows))
	}
	if rs.Rows[0][0] != "car" {
		t.Fatalf("Run: expected byte cell decoded to string, got %T(%v)", rs.Rows[0][0], rs.Rows[0][0])
	}
	if rs.Rows[1][1] != 3.75 {
		t.Fatalf("Run: unexpected cell %v", rs.Rows[1][1])
	}
}

func TestRunOpenError(t *testing.T) {
	t.Parallel()

	exec := snowflake.New(fullConfig(), snowflake.WithOpener(func(string) (*sql.DB, error) {
		return nil, errors.New("dial tcp: connection refused")
	}))

	_, err := exec.Run(context.Background(), "SELECT 1")
	if err == nil {
		t.Fatal("Run: expected error")
	}
	if !strings.Contains(err.Error(), "snowflake: open connection") {
		t.Fatalf("Run: unexpected error %v", err)
	}
}
