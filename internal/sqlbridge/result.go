package sqlbridge

import (
	"bytes"
	"encoding/json"
)

// Row is one decoded result row: an ordered mapping from column name to
// cell value. Order follows the result schema and survives JSON
// marshalling. Values are loosely typed — strings, numbers, booleans, or
// nil, as produced by the engine adapter.
type Row struct {
	columns []string
	values  []any
}

// Len returns the number of column/value pairs in the row.
func (r Row) Len() int {
	return len(r.columns)
}

// Columns returns the row's column names in schema order. The returned
// slice must not be modified.
func (r Row) Columns() []string {
	return r.columns
}

// Get returns the value for the named column and whether the column exists.
// When a schema repeats a column name, the first occurrence wins.
func (r Row) Get(name string) (any, bool) {
	for i, c := range r.columns {
		if c == name {
			return r.values[i], true
		}
	}
	return nil, false
}

// MarshalJSON encodes the row as a JSON object whose keys appear in schema
// order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// String renders the row as its JSON object form. Used by transcript
// renderers; falls back to "{}" if a value cannot be encoded.
func (r Row) String() string {
	b, err := r.MarshalJSON()
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Translate zips column names with cell values positionally, producing one
// [Row] per data row. Empty columns or empty rows yield an empty, non-nil
// slice rather than an error. Rows shorter than the schema produce short
// mappings; cells beyond the schema are dropped.
func Translate(columns []string, rows [][]any) []Row {
	out := make([]Row, 0, len(rows))
	if len(columns) == 0 {
		return out
	}
	for _, cells := range rows {
		n := len(columns)
		if len(cells) < n {
			n = len(cells)
		}
		row := Row{
			columns: columns[:n],
			values:  cells[:n],
		}
		out = append(out, row)
	}
	return out
}
