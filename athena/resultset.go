package athena

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena/types"
)

// ResultSet holds the rows of a completed query together with the column
// metadata the engine reported. Row 0 is the header row the engine emits for
// SELECT queries; extraction therefore goes through DataRows and name-keyed
// Field lookups rather than raw offsets.
//
// Example:
//
//	rs, err := h.Results(ctx, id)
//	for _, row := range rs.DataRows() {
//	    fw, _ := rs.Field(row, "value")
//	}
type ResultSet struct {
	Columns []string   // Column names from the engine's metadata
	Rows    [][]string // All rows, header included as row 0
}

// newResultSet flattens the SDK result structure. Missing cells become empty
// strings so row access never needs nil checks.
func newResultSet(rs *types.ResultSet) *ResultSet {
	out := &ResultSet{}
	if rs == nil {
		return out
	}
	if rs.ResultSetMetadata != nil {
		out.Columns = make([]string, 0, len(rs.ResultSetMetadata.ColumnInfo))
		for _, ci := range rs.ResultSetMetadata.ColumnInfo {
			out.Columns = append(out.Columns, aws.ToString(ci.Name))
		}
	}
	out.Rows = make([][]string, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		cells := make([]string, 0, len(row.Data))
		for _, d := range row.Data {
			cells = append(cells, aws.ToString(d.VarCharValue))
		}
		out.Rows = append(out.Rows, cells)
	}
	return out
}

// DataRows returns the rows after the header. A header-only or empty result
// yields an empty slice.
func (r *ResultSet) DataRows() [][]string {
	if len(r.Rows) <= 1 {
		return nil
	}
	return r.Rows[1:]
}

// HasData reports whether at least one data row follows the header.
func (r *ResultSet) HasData() bool {
	return len(r.Rows) > 1
}

// Field returns the cell of row under the named column. Column names are
// matched case-insensitively since the engine lower-cases identifiers.
func (r *ResultSet) Field(row []string, column string) (string, bool) {
	for i, name := range r.Columns {
		if strings.EqualFold(name, column) {
			if i >= len(row) {
				return "", false
			}
			return row[i], true
		}
	}
	return "", false
}

// FirstField returns the named column of the first data row.
func (r *ResultSet) FirstField(column string) (string, bool) {
	rows := r.DataRows()
	if len(rows) == 0 {
		return "", false
	}
	return r.Field(rows[0], column)
}
