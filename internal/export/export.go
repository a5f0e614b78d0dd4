// Package export builds the analyst-facing BI artifacts from the raw
// extracts.
//
// The export is a denormalizing left join: every transaction is widened
// with its event attributes, its attendance flag, and a few KPI helper
// columns. Join misses leave the widened cells blank; the export never
// repairs data. Flagging bad rows is the checks package's job.
package export

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tixaudit/tixaudit/internal/dataset"
	aerrors "github.com/tixaudit/tixaudit/internal/errors"
)

// Artifact file names under the export directory.
const (
	CSVName    = "billetterie_bi.csv"
	SQLiteName = "billetterie_bi.db"
)

// collisionSuffix marks joined event columns that share a name with a
// transaction column.
const collisionSuffix = "_ev"

// Derived KPI helper columns appended after the joined ones.
var derivedColumns = []string{"purchase_day", "event_day", "is_early", "is_late"}

// Table is the joined BI table, in transaction order.
type Table struct {
	Header []string
	Rows   [][]string
}

// Builder joins the three extracts into the BI table.
type Builder struct {
	events       *dataset.Table
	transactions *dataset.Table
	attendance   *dataset.Table
}

// NewBuilder wires a builder over loaded extracts. All three files must
// have loaded: the join tolerates missing rows, not missing datasets.
func NewBuilder(tables map[string]*dataset.Table) (*Builder, error) {
	for _, name := range []string{"events", "transactions", "attendance"} {
		t, ok := tables[name]
		if !ok || t.Missing {
			return nil, aerrors.NewExportError(aerrors.CodeJoinFailed,
				fmt.Sprintf("%s extract is missing", name), nil)
		}
	}
	return &Builder{
		events:       tables["events"],
		transactions: tables["transactions"],
		attendance:   tables["attendance"],
	}, nil
}

// Build materializes the join. Parent rows are matched by key with the
// first match winning; duplicate keys are the audit's finding, not the
// export's problem.
func (b *Builder) Build() *Table {
	txCols := trimmedHeader(b.transactions)
	evCols := joinColumns(b.events, "event_id")

	taken := make(map[string]bool, len(txCols))
	for _, c := range txCols {
		taken[c] = true
	}

	header := make([]string, 0, len(txCols)+len(evCols)+1+len(derivedColumns))
	header = append(header, txCols...)
	for _, c := range evCols {
		if taken[c] {
			c += collisionSuffix
		}
		header = append(header, c)
	}
	header = append(header, "attended")
	header = append(header, derivedColumns...)

	eventRow := firstMatchIndex(b.events, "event_id")
	attRow := firstMatchIndex(b.attendance, "transaction_id")

	rows := make([][]string, 0, b.transactions.RowCount())
	for i := 0; i < int(b.transactions.RowCount()); i++ {
		row := make([]string, 0, len(header))
		for _, c := range txCols {
			row = append(row, b.transactions.Cell(i, c))
		}

		evIdx, evOK := eventRow[b.transactions.Cell(i, "event_id")]
		for _, c := range evCols {
			if evOK {
				row = append(row, b.events.Cell(evIdx, c))
			} else {
				row = append(row, "")
			}
		}

		attended := ""
		if attIdx, ok := attRow[b.transactions.Cell(i, "transaction_id")]; ok {
			attended = b.attendance.Cell(attIdx, "attended")
		}
		row = append(row, attended)

		row = append(row, dayPart(b.transactions.Cell(i, "purchase_date")))
		row = append(row, dayPart(b.transactions.Cell(i, "event_date")))
		lead, leadOK := dataset.ParseInt(b.transactions.Cell(i, "lead_time_days"))
		row = append(row, flag(leadOK && lead > 45))
		row = append(row, flag(leadOK && lead <= 7))

		rows = append(rows, row)
	}

	return &Table{Header: header, Rows: rows}
}

// WriteCSV writes the BI table under dir, staging and renaming so readers
// never observe a partial file. Returns the final path.
func WriteCSV(dir string, t *Table) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", aerrors.NewExportError(aerrors.CodeArtifactBuild, "failed to create export directory", err)
	}

	staging := filepath.Join(dir, ".staging-"+uuid.New().String()[:8])
	defer os.Remove(staging)

	start := time.Now()
	if err := writeCSVFile(staging, t); err != nil {
		return "", err
	}

	out := filepath.Join(dir, CSVName)
	if err := os.Rename(staging, out); err != nil {
		return "", aerrors.NewExportError(aerrors.CodeArtifactBuild, "failed to move BI csv into place", err)
	}

	log.Printf("export: wrote %s (%d rows) in %v", out, len(t.Rows), time.Since(start))
	return out, nil
}

func writeCSVFile(path string, t *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return aerrors.NewExportError(aerrors.CodeArtifactBuild, "failed to create BI csv", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(t.Header); err != nil {
		return aerrors.NewExportError(aerrors.CodeArtifactBuild, "failed to write BI csv header", err)
	}
	for _, row := range t.Rows {
		if err := w.Write(row); err != nil {
			return aerrors.NewExportError(aerrors.CodeArtifactBuild, "failed to write BI csv row", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return aerrors.NewExportError(aerrors.CodeArtifactBuild, "failed to flush BI csv", err)
	}
	if err := f.Close(); err != nil {
		return aerrors.NewExportError(aerrors.CodeArtifactBuild, "failed to close BI csv", err)
	}
	return nil
}

// trimmedHeader returns the table's column names, trimmed and deduplicated
// in first-seen order.
func trimmedHeader(t *dataset.Table) []string {
	seen := make(map[string]bool, len(t.Header))
	cols := make([]string, 0, len(t.Header))
	for _, name := range t.Header {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		cols = append(cols, name)
	}
	return cols
}

// joinColumns returns the parent's columns minus the join key.
func joinColumns(t *dataset.Table, key string) []string {
	cols := trimmedHeader(t)
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if c != key {
			out = append(out, c)
		}
	}
	return out
}

// firstMatchIndex maps each distinct non-blank key to its first row.
func firstMatchIndex(t *dataset.Table, key string) map[string]int {
	m := make(map[string]int, t.RowCount())
	if !t.HasColumn(key) {
		return m
	}
	for i := 0; i < int(t.RowCount()); i++ {
		k := t.Cell(i, key)
		if k == "" {
			continue
		}
		if _, ok := m[k]; !ok {
			m[k] = i
		}
	}
	return m
}

// dayPart renders the date part of a parseable date cell, else blank.
func dayPart(cell string) string {
	d, ok := dataset.ParseDate(cell)
	if !ok {
		return ""
	}
	return d.Format("2006-01-02")
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
