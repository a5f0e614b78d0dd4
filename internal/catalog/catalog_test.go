package catalog

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	aerrors "github.com/tixaudit/tixaudit/internal/errors"
	"github.com/tixaudit/tixaudit/pkg/types"
)

func newTestCatalog(t *testing.T) *SQLiteCatalog {
	t.Helper()
	c, err := NewCatalog(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func testSummary(t *testing.T, createdAt time.Time, issues int64) *types.RunSummary {
	t.Helper()
	id, err := types.NewRunID()
	if err != nil {
		t.Fatalf("NewRunID() error = %v", err)
	}
	return &types.RunSummary{
		RunID:     id,
		CreatedAt: createdAt,
		Datasets: []types.DatasetStat{
			{Name: "events", Rows: 24},
			{Name: "transactions", Rows: 5000},
			{Name: "attendance", Rows: 5000},
		},
		Results: []types.CheckResult{
			types.NewCheckResult(types.CategorySchema, "events: required columns", 0, 1),
			types.NewCheckResult(types.CategoryRules, "transactions: non-positive price_paid_total", issues, 5000),
		},
		Fingerprints: map[string]string{
			"events": "fp-events", "transactions": "fp-tx", "attendance": "fp-att",
		},
	}
}

func TestCatalog_RecordAndGetRun(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	createdAt := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	summary := testSummary(t, createdAt, 290)
	report := []byte("# Data Quality Report\n\ntable goes here\n")

	if err := c.RecordRun(ctx, summary, report, "checksum-1"); err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}

	record, err := c.GetRun(ctx, summary.RunID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if record.RunID != summary.RunID {
		t.Errorf("RunID = %s, want %s", record.RunID, summary.RunID)
	}
	if !record.CreatedAt.Equal(createdAt) {
		t.Errorf("CreatedAt = %v, want %v", record.CreatedAt, createdAt)
	}
	if record.TotalIssues != 290 || record.FailedChecks != 1 {
		t.Errorf("TotalIssues/FailedChecks = %d/%d, want 290/1", record.TotalIssues, record.FailedChecks)
	}
	if record.DatasetRows["transactions"] != 5000 {
		t.Errorf("DatasetRows[transactions] = %d, want 5000", record.DatasetRows["transactions"])
	}
	if record.Fingerprints["events"] != "fp-events" {
		t.Errorf("Fingerprints[events] = %q, want %q", record.Fingerprints["events"], "fp-events")
	}
	if record.ReportChecksum != "checksum-1" {
		t.Errorf("ReportChecksum = %q, want %q", record.ReportChecksum, "checksum-1")
	}
}

func TestCatalog_GetChecks(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	summary := testSummary(t, time.Now(), 290)
	if err := c.RecordRun(ctx, summary, []byte("report"), "sum"); err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}

	results, err := c.GetChecks(ctx, summary.RunID)
	if err != nil {
		t.Fatalf("GetChecks() error = %v", err)
	}
	if len(results) != len(summary.Results) {
		t.Fatalf("GetChecks() returned %d results, want %d", len(results), len(summary.Results))
	}
	for i, want := range summary.Results {
		if results[i] != want {
			t.Errorf("check %d = %+v, want %+v", i, results[i], want)
		}
	}
}

func TestCatalog_GetReport_RoundTrip(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	summary := testSummary(t, time.Now(), 0)
	report := []byte("# Data Quality Report\n\n✅ **All checks passed**\n")
	if err := c.RecordRun(ctx, summary, report, "sum"); err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}

	got, err := c.GetReport(ctx, summary.RunID)
	if err != nil {
		t.Fatalf("GetReport() error = %v", err)
	}
	if !bytes.Equal(got, report) {
		t.Errorf("GetReport() = %q, want %q", got, report)
	}
}

func TestCatalog_RunNotFound(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	id, err := types.NewRunID()
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.GetRun(ctx, id); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun() error = %v, want ErrRunNotFound", err)
	}
	if _, err := c.GetReport(ctx, id); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetReport() error = %v, want ErrRunNotFound", err)
	}
	if _, err := c.GetChecks(ctx, id); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetChecks() error = %v, want ErrRunNotFound", err)
	}
	if _, err := c.LatestRun(ctx); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("LatestRun() on empty catalog error = %v, want ErrRunNotFound", err)
	}
}

func TestCatalog_ListRuns_NewestFirst(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var ids []types.RunID
	for i := 0; i < 3; i++ {
		s := testSummary(t, base.Add(time.Duration(i)*time.Hour), int64(i))
		if err := c.RecordRun(ctx, s, []byte("r"), "sum"); err != nil {
			t.Fatalf("RecordRun() error = %v", err)
		}
		ids = append(ids, s.RunID)
	}

	records, err := c.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("ListRuns() returned %d runs, want 3", len(records))
	}
	for i, want := range []types.RunID{ids[2], ids[1], ids[0]} {
		if records[i].RunID != want {
			t.Errorf("run %d = %s, want %s", i, records[i].RunID, want)
		}
	}

	limited, err := c.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns(2) error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("ListRuns(2) returned %d runs, want 2", len(limited))
	}

	latest, err := c.LatestRun(ctx)
	if err != nil {
		t.Fatalf("LatestRun() error = %v", err)
	}
	if latest.RunID != ids[2] {
		t.Errorf("LatestRun() = %s, want %s", latest.RunID, ids[2])
	}
}

func TestCatalog_CompareRuns(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	older := testSummary(t, time.Now(), 290)
	newer := testSummary(t, time.Now().Add(time.Hour), 150)
	if err := c.RecordRun(ctx, older, []byte("r"), "s1"); err != nil {
		t.Fatal(err)
	}
	if err := c.RecordRun(ctx, newer, []byte("r"), "s2"); err != nil {
		t.Fatal(err)
	}

	deltas, err := c.CompareRuns(ctx, older.RunID, newer.RunID)
	if err != nil {
		t.Fatalf("CompareRuns() error = %v", err)
	}
	if len(deltas) != 2 {
		t.Fatalf("CompareRuns() returned %d deltas, want 2", len(deltas))
	}
	d := deltas[1]
	if d.Check != "transactions: non-positive price_paid_total" {
		t.Fatalf("delta check = %q", d.Check)
	}
	if d.OlderIssues != 290 || d.NewerIssues != 150 || d.Delta != -140 {
		t.Errorf("delta = %+v, want 290 -> 150 (-140)", d)
	}
}

func TestCatalog_CompareRuns_DisjointChecks(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	older := testSummary(t, time.Now(), 10)
	older.Results = []types.CheckResult{
		types.NewCheckResult(types.CategoryRules, "transactions: negative lead_time_days", 7, 100),
	}
	newer := testSummary(t, time.Now().Add(time.Hour), 5)
	if err := c.RecordRun(ctx, older, []byte("r"), "s1"); err != nil {
		t.Fatal(err)
	}
	if err := c.RecordRun(ctx, newer, []byte("r"), "s2"); err != nil {
		t.Fatal(err)
	}

	deltas, err := c.CompareRuns(ctx, older.RunID, newer.RunID)
	if err != nil {
		t.Fatalf("CompareRuns() error = %v", err)
	}
	// Two checks from the newer run plus the check only the older run had.
	if len(deltas) != 3 {
		t.Fatalf("CompareRuns() returned %d deltas, want 3", len(deltas))
	}
	last := deltas[2]
	if last.Check != "transactions: negative lead_time_days" {
		t.Fatalf("trailing delta = %q, want the older-only check", last.Check)
	}
	if last.OlderIssues != 7 || last.NewerIssues != 0 || last.Delta != -7 {
		t.Errorf("older-only delta = %+v, want 7 -> 0 (-7)", last)
	}
}

func TestCatalog_PruneRuns(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var ids []types.RunID
	for i := 0; i < 5; i++ {
		s := testSummary(t, base.Add(time.Duration(i)*time.Minute), 0)
		if err := c.RecordRun(ctx, s, []byte("r"), "sum"); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, s.RunID)
	}

	expired, err := c.PruneRuns(ctx, 2)
	if err != nil {
		t.Fatalf("PruneRuns() error = %v", err)
	}
	if len(expired) != 3 {
		t.Fatalf("PruneRuns() expired %d runs, want 3", len(expired))
	}

	remaining, err := c.ListRuns(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 2 {
		t.Fatalf("after prune %d runs remain, want 2", len(remaining))
	}
	if remaining[0].RunID != ids[4] || remaining[1].RunID != ids[3] {
		t.Errorf("prune kept wrong runs: %s, %s", remaining[0].RunID, remaining[1].RunID)
	}

	// Check rows go with the run.
	if _, err := c.GetChecks(ctx, ids[0]); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetChecks() on pruned run error = %v, want ErrRunNotFound", err)
	}
}

func TestCatalog_PruneRuns_Disabled(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	if err := c.RecordRun(ctx, testSummary(t, time.Now(), 0), []byte("r"), "sum"); err != nil {
		t.Fatal(err)
	}
	expired, err := c.PruneRuns(ctx, 0)
	if err != nil {
		t.Fatalf("PruneRuns(0) error = %v", err)
	}
	if expired != nil {
		t.Errorf("PruneRuns(0) = %v, want nil", expired)
	}
}

func TestCatalog_ReopenExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.db")
	ctx := context.Background()

	c, err := NewCatalog(path)
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	summary := testSummary(t, time.Now(), 42)
	if err := c.RecordRun(ctx, summary, []byte("r"), "sum"); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := NewCatalog(path)
	if err != nil {
		t.Fatalf("NewCatalog() reopen error = %v", err)
	}
	defer reopened.Close()

	record, err := reopened.GetRun(ctx, summary.RunID)
	if err != nil {
		t.Fatalf("GetRun() after reopen error = %v", err)
	}
	if record.TotalIssues != 42 {
		t.Errorf("TotalIssues = %d, want 42", record.TotalIssues)
	}
}

func TestCatalog_SchemaTooNew(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.db")

	c, err := NewCatalog(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	_, err = NewCatalog(path)
	if err == nil {
		t.Fatal("NewCatalog() on newer schema should fail")
	}
	if aerrors.GetCode(err) != aerrors.CodeSchemaTooNew {
		t.Errorf("error code = %q, want %q", aerrors.GetCode(err), aerrors.CodeSchemaTooNew)
	}
}

func TestCatalog_DuplicateRunID(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()

	summary := testSummary(t, time.Now(), 0)
	if err := c.RecordRun(ctx, summary, []byte("r"), "sum"); err != nil {
		t.Fatal(err)
	}
	if err := c.RecordRun(ctx, summary, []byte("r"), "sum"); err == nil {
		t.Error("RecordRun() with duplicate run ID should fail")
	}
}
