package export

import (
	"context"
	"database/sql"
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/tixaudit/tixaudit/internal/dataset"
	aerrors "github.com/tixaudit/tixaudit/internal/errors"
	"github.com/tixaudit/tixaudit/internal/generator"
)

func table(spec dataset.Spec, header []string, rows ...[]string) *dataset.Table {
	t := dataset.NewTable(spec)
	t.SetHeader(header)
	t.Rows = append(t.Rows, rows...)
	return t
}

var (
	txHeader = []string{
		"transaction_id", "event_id", "event_date", "venue", "capacity",
		"base_price", "category", "purchase_date", "lead_time_days",
		"channel", "audience_type", "fare_type", "unit_price",
		"tickets_qty", "price_paid_total", "geo_zone",
	}
	eventsHeader     = []string{"event_id", "event_name", "venue", "capacity", "base_price", "category", "event_date"}
	attendanceHeader = []string{"transaction_id", "event_id", "event_date", "tickets_qty", "attended"}
)

// testTables builds a small trio with one orphan transaction, one
// unparseable row, and one transaction without attendance.
func testTables() map[string]*dataset.Table {
	return map[string]*dataset.Table{
		"events": table(dataset.Events, eventsHeader,
			[]string{"EVT001", "Festival — Soirée Electro", "Friche la Belle de Mai", "1600", "29", "festival", "2026-04-01"},
			[]string{"EVT002", "Rap Live — Salle", "Espace Julien", "1200", "25", "salle", "2026-05-01"},
		),
		"transactions": table(dataset.Transactions, txHeader,
			[]string{"TX000001", "EVT001", "2026-04-01", "Friche la Belle de Mai", "1600", "29", "festival", "2026-02-10", "50", "web", "local", "plein", "29.00", "2", "58.00", "13001"},
			[]string{"TX000002", "EVT999", "2026-05-01", "Espace Julien", "1200", "25", "salle", "2026-04-24", "7", "guichet", "touriste", "reduit", "22.00", "1", "22.00", "13006"},
			[]string{"TX000003", "EVT002", "2026-05-01", "Espace Julien", "1200", "25", "salle", "not-a-date", "abc", "web", "local", "plein", "25.00", "1", "25.00", "Aix"},
		),
		"attendance": table(dataset.Attendance, attendanceHeader,
			[]string{"TX000001", "EVT001", "2026-04-01", "2", "1"},
			[]string{"TX000002", "EVT999", "2026-05-01", "1", "0"},
		),
	}
}

func buildTestTable(t *testing.T) *Table {
	t.Helper()
	b, err := NewBuilder(testTables())
	if err != nil {
		t.Fatalf("NewBuilder failed: %v", err)
	}
	return b.Build()
}

func cellOf(t *testing.T, bi *Table, row int, column string) string {
	t.Helper()
	for i, name := range bi.Header {
		if name == column {
			return bi.Rows[row][i]
		}
	}
	t.Fatalf("column %q not in BI header", column)
	return ""
}

func TestBuild_Header(t *testing.T) {
	bi := buildTestTable(t)

	want := append([]string{}, txHeader...)
	want = append(want,
		"event_name", "venue_ev", "capacity_ev", "base_price_ev", "category_ev", "event_date_ev",
		"attended",
		"purchase_day", "event_day", "is_early", "is_late",
	)
	if !reflect.DeepEqual(bi.Header, want) {
		t.Fatalf("BI header = %v, want %v", bi.Header, want)
	}

	for i, row := range bi.Rows {
		if len(row) != len(bi.Header) {
			t.Fatalf("row %d has %d cells, want %d", i, len(row), len(bi.Header))
		}
	}
}

func TestBuild_JoinValues(t *testing.T) {
	bi := buildTestTable(t)
	if len(bi.Rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(bi.Rows))
	}

	// Fully matched transaction.
	if got := cellOf(t, bi, 0, "event_name"); got != "Festival — Soirée Electro" {
		t.Errorf("row 0 event_name = %q", got)
	}
	if got := cellOf(t, bi, 0, "venue_ev"); got != "Friche la Belle de Mai" {
		t.Errorf("row 0 venue_ev = %q", got)
	}
	if got := cellOf(t, bi, 0, "attended"); got != "1" {
		t.Errorf("row 0 attended = %q, want 1", got)
	}
	if got := cellOf(t, bi, 0, "purchase_day"); got != "2026-02-10" {
		t.Errorf("row 0 purchase_day = %q", got)
	}
	if got := cellOf(t, bi, 0, "is_early"); got != "1" {
		t.Errorf("row 0 is_early = %q, want 1", got)
	}
	if got := cellOf(t, bi, 0, "is_late"); got != "0" {
		t.Errorf("row 0 is_late = %q, want 0", got)
	}

	// Orphan event reference: joined event cells stay blank.
	for _, col := range []string{"event_name", "venue_ev", "capacity_ev", "base_price_ev", "category_ev", "event_date_ev"} {
		if got := cellOf(t, bi, 1, col); got != "" {
			t.Errorf("row 1 %s = %q, want blank", col, got)
		}
	}
	if got := cellOf(t, bi, 1, "is_late"); got != "1" {
		t.Errorf("row 1 is_late = %q, want 1", got)
	}
	if got := cellOf(t, bi, 1, "attended"); got != "0" {
		t.Errorf("row 1 attended = %q, want 0", got)
	}

	// Unparseable cells degrade to blanks and zero flags.
	if got := cellOf(t, bi, 2, "attended"); got != "" {
		t.Errorf("row 2 attended = %q, want blank", got)
	}
	if got := cellOf(t, bi, 2, "purchase_day"); got != "" {
		t.Errorf("row 2 purchase_day = %q, want blank", got)
	}
	if got := cellOf(t, bi, 2, "event_day"); got != "2026-05-01" {
		t.Errorf("row 2 event_day = %q", got)
	}
	if got := cellOf(t, bi, 2, "is_early"); got != "0" {
		t.Errorf("row 2 is_early = %q, want 0", got)
	}
	if got := cellOf(t, bi, 2, "is_late"); got != "0" {
		t.Errorf("row 2 is_late = %q, want 0", got)
	}
}

func TestBuild_FirstMatchWins(t *testing.T) {
	tables := testTables()
	tables["events"] = table(dataset.Events, eventsHeader,
		[]string{"EVT001", "First", "Venue A", "100", "10", "salle", "2026-04-01"},
		[]string{"EVT001", "Second", "Venue B", "200", "20", "club", "2026-04-02"},
	)

	b, err := NewBuilder(tables)
	if err != nil {
		t.Fatalf("NewBuilder failed: %v", err)
	}
	bi := b.Build()

	if got := cellOf(t, bi, 0, "event_name"); got != "First" {
		t.Errorf("duplicate parent key: event_name = %q, want %q", got, "First")
	}
}

func TestNewBuilder_MissingDataset(t *testing.T) {
	tables := testTables()
	missing := dataset.NewTable(dataset.Attendance)
	missing.Missing = true
	tables["attendance"] = missing

	_, err := NewBuilder(tables)
	if err == nil {
		t.Fatalf("expected error for missing attendance extract")
	}
	if aerrors.GetCategory(err) != aerrors.ErrCategoryExport {
		t.Errorf("error category = %q, want EXPORT", aerrors.GetCategory(err))
	}
	if aerrors.GetCode(err) != aerrors.CodeJoinFailed {
		t.Errorf("error code = %q, want %q", aerrors.GetCode(err), aerrors.CodeJoinFailed)
	}
}

func TestWriteCSV(t *testing.T) {
	dir := t.TempDir()
	bi := buildTestTable(t)

	path, err := WriteCSV(dir, bi)
	if err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	if filepath.Base(path) != CSVName {
		t.Errorf("path = %q, want base %q", path, CSVName)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening BI csv: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reading BI csv: %v", err)
	}
	if len(records) != len(bi.Rows)+1 {
		t.Fatalf("BI csv has %d records, want %d", len(records), len(bi.Rows)+1)
	}
	if !reflect.DeepEqual(records[0], bi.Header) {
		t.Errorf("BI csv header = %v", records[0])
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading export dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("export dir has %d entries, want 1", len(entries))
	}
}

func TestWriteSQLite(t *testing.T) {
	dir := t.TempDir()
	bi := buildTestTable(t)

	path, err := WriteSQLite(context.Background(), dir, bi)
	if err != nil {
		t.Fatalf("WriteSQLite failed: %v", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("opening BI database: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM billetterie_bi").Scan(&count); err != nil {
		t.Fatalf("counting rows: %v", err)
	}
	if count != len(bi.Rows) {
		t.Errorf("row count = %d, want %d", count, len(bi.Rows))
	}

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("reading journal mode: %v", err)
	}
	if !strings.EqualFold(mode, "delete") {
		t.Errorf("journal mode = %q, want delete", mode)
	}

	var capacity int
	if err := db.QueryRow(`SELECT "capacity" FROM billetterie_bi WHERE "transaction_id" = 'TX000001'`).Scan(&capacity); err != nil {
		t.Fatalf("reading capacity: %v", err)
	}
	if capacity != 1600 {
		t.Errorf("capacity = %d, want 1600", capacity)
	}

	// Blank cells round-trip as NULLs.
	var attended sql.NullString
	if err := db.QueryRow(`SELECT "attended" FROM billetterie_bi WHERE "transaction_id" = 'TX000003'`).Scan(&attended); err != nil {
		t.Fatalf("reading attended: %v", err)
	}
	if attended.Valid {
		t.Errorf("attended = %q, want NULL", attended.String)
	}

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type = 'index' ORDER BY name")
	if err != nil {
		t.Fatalf("listing indexes: %v", err)
	}
	defer rows.Close()
	indexes := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scanning index name: %v", err)
		}
		indexes[name] = true
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("iterating indexes: %v", err)
	}
	if !indexes["idx_bi_event"] || !indexes["idx_bi_purchase_day"] {
		t.Errorf("indexes = %v, want idx_bi_event and idx_bi_purchase_day", indexes)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading export dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("export dir has %d entries, want 1", len(entries))
	}
}

func TestBuild_FromGeneratedData(t *testing.T) {
	dir := t.TempDir()
	params := generator.Params{Seed: 7, Transactions: 300, Year: 2026}
	if err := generator.WriteFiles(dir, generator.New(params).Generate()); err != nil {
		t.Fatalf("generating datasets: %v", err)
	}

	b, err := NewBuilder(dataset.NewLoader(dir).LoadAll())
	if err != nil {
		t.Fatalf("NewBuilder failed: %v", err)
	}
	bi := b.Build()

	if len(bi.Rows) != params.Transactions {
		t.Fatalf("got %d BI rows, want %d", len(bi.Rows), params.Transactions)
	}
	for i := range bi.Rows {
		if got := cellOf(t, bi, i, "event_name"); got == "" {
			t.Fatalf("row %d: event join missed on clean data", i)
		}
		if got := cellOf(t, bi, i, "attended"); got != "0" && got != "1" {
			t.Fatalf("row %d: attended = %q on clean data", i, got)
		}

		lead, ok := dataset.ParseInt(cellOf(t, bi, i, "lead_time_days"))
		if !ok {
			t.Fatalf("row %d: unparseable lead time on clean data", i)
		}
		if got, want := cellOf(t, bi, i, "is_early"), flag(lead > 45); got != want {
			t.Fatalf("row %d: is_early = %q, want %q for lead %d", i, got, want, lead)
		}
		if got, want := cellOf(t, bi, i, "is_late"), flag(lead <= 7); got != want {
			t.Fatalf("row %d: is_late = %q, want %q for lead %d", i, got, want, lead)
		}
	}
}
