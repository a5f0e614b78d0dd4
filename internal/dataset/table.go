package dataset

import (
	"strings"

	"github.com/tixaudit/tixaudit/pkg/types"
)

// Table holds one loaded CSV extract. Rows are raw string records aligned
// to Header; cells are parsed on demand by the checks.
type Table struct {
	Spec Spec

	// Header is the first CSV record; empty when the file is missing.
	Header []string

	// Rows are the data records. Records may be shorter or longer than
	// the header; absent cells read as blank.
	Rows [][]string

	// Missing marks a dataset whose file could not be opened or whose
	// header could not be read.
	Missing bool

	// Skipped counts records the CSV reader rejected outright.
	Skipped int64

	// Ragged counts records whose field count differs from the header.
	Ragged int64

	// Blanks tallies blank cells per column, in header order.
	Blanks []types.ColumnBlanks

	colIndex map[string]int
}

// NewTable returns an empty table for spec.
func NewTable(spec Spec) *Table {
	return &Table{Spec: spec, colIndex: make(map[string]int)}
}

// SetHeader records the header row and indexes column names.
// Names are trimmed so headers with stray whitespace still resolve.
func (t *Table) SetHeader(header []string) {
	t.Header = header
	t.colIndex = make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if _, ok := t.colIndex[name]; !ok {
			t.colIndex[name] = i
		}
	}
}

// ColumnIndex returns the header position of a column.
func (t *Table) ColumnIndex(name string) (int, bool) {
	idx, ok := t.colIndex[name]
	return idx, ok
}

// HasColumn reports whether the header contains the column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.colIndex[name]
	return ok
}

// Cell returns the trimmed value at row i for the named column.
// Absent columns and cells beyond a short record read as "".
func (t *Table) Cell(i int, column string) string {
	idx, ok := t.colIndex[column]
	if !ok || i < 0 || i >= len(t.Rows) {
		return ""
	}
	row := t.Rows[i]
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// RowCount returns the number of parsed data rows.
func (t *Table) RowCount() int64 {
	return int64(len(t.Rows))
}

// RowsSeen returns parsed rows plus records skipped by the reader.
func (t *Table) RowsSeen() int64 {
	return t.RowCount() + t.Skipped
}

// MissingColumns returns the required columns absent from the header.
func (t *Table) MissingColumns() []string {
	var missing []string
	for _, name := range t.Spec.Required {
		if !t.HasColumn(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// SchemaOK reports whether the file loaded and all required columns exist.
func (t *Table) SchemaOK() bool {
	return !t.Missing && len(t.MissingColumns()) == 0
}

// tallyBlanks counts blank cells per header column.
func (t *Table) tallyBlanks() {
	if len(t.Header) == 0 {
		return
	}
	counts := make([]int64, len(t.Header))
	for _, row := range t.Rows {
		for j := range t.Header {
			if j >= len(row) || strings.TrimSpace(row[j]) == "" {
				counts[j]++
			}
		}
	}
	t.Blanks = make([]types.ColumnBlanks, len(t.Header))
	for j, name := range t.Header {
		t.Blanks[j] = types.ColumnBlanks{Column: strings.TrimSpace(name), Blanks: counts[j]}
	}
}
