package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/golang/snappy"
	_ "github.com/mattn/go-sqlite3"

	aerrors "github.com/tixaudit/tixaudit/internal/errors"
	"github.com/tixaudit/tixaudit/pkg/types"
)

// ErrRunNotFound is returned when a run ID has no row in the catalog.
// Matchable with errors.Is.
var ErrRunNotFound = aerrors.New(aerrors.ErrCategoryCatalog, aerrors.CodeRunNotFound, "run not found")

// RunCatalog records audit runs and serves history queries.
type RunCatalog interface {
	// RecordRun stores a completed run: the summary row, its per-check
	// results, and the compressed report body, atomically.
	RecordRun(ctx context.Context, summary *types.RunSummary, report []byte, reportChecksum string) error

	// GetRun retrieves a single run by ID.
	GetRun(ctx context.Context, id types.RunID) (*RunRecord, error)

	// GetChecks retrieves the per-check results of a run in report order.
	GetChecks(ctx context.Context, id types.RunID) ([]types.CheckResult, error)

	// GetReport retrieves the stored markdown report of a run.
	GetReport(ctx context.Context, id types.RunID) ([]byte, error)

	// ListRuns returns runs newest first. limit <= 0 returns all runs.
	ListRuns(ctx context.Context, limit int) ([]*RunRecord, error)

	// LatestRun returns the most recent run.
	LatestRun(ctx context.Context) (*RunRecord, error)

	// CompareRuns returns per-check issue deltas between two runs.
	CompareRuns(ctx context.Context, olderID, newerID types.RunID) ([]CheckDelta, error)

	// PruneRuns deletes all but the newest keep runs and returns the
	// deleted IDs. keep <= 0 disables pruning.
	PruneRuns(ctx context.Context, keep int) ([]types.RunID, error)

	// Close closes the catalog database connections.
	Close() error
}

// RunRecord is one stored run without its per-check rows or report body.
type RunRecord struct {
	RunID          types.RunID
	CreatedAt      time.Time
	TotalIssues    int64
	FailedChecks   int64
	DatasetRows    map[string]int64
	Fingerprints   map[string]string
	ReportChecksum string
}

// CheckDelta is the change in one check between two runs.
type CheckDelta struct {
	Category    string
	Check       string
	OlderIssues int64
	NewerIssues int64
	Delta       int64
}

// SQLiteCatalog implements RunCatalog using SQLite.
type SQLiteCatalog struct {
	db     *sql.DB // Write connection (single writer)
	readDB *sql.DB // Read connection pool (concurrent readers)
	dbPath string
	mu     sync.Mutex // Write-only lock (reads don't need this)
}

const insertRunSQL = `
	INSERT INTO runs (
		run_id, created_at_ms, total_issues, failed_checks,
		events_rows, transactions_rows, attendance_rows,
		events_fingerprint, transactions_fingerprint, attendance_fingerprint,
		report_checksum, report_blob
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const insertCheckSQL = `
	INSERT INTO run_checks (run_id, position, category, check_name, issues, row_count, rate)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

const selectRunColumns = `run_id, created_at_ms, total_issues, failed_checks,
	events_rows, transactions_rows, attendance_rows,
	events_fingerprint, transactions_fingerprint, attendance_fingerprint,
	report_checksum`

// NewCatalog opens (or creates) a catalog at dbPath.
func NewCatalog(dbPath string) (*SQLiteCatalog, error) {
	// Write connection: single writer with WAL mode
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, aerrors.NewCatalogError(aerrors.CodeOpenFailed, "failed to open database", err)
	}
	db.SetMaxOpenConns(1) // Single writer
	db.SetMaxIdleConns(1)

	catalog := &SQLiteCatalog{db: db, dbPath: dbPath}

	// Schema init runs on the write connection before the read-only pool
	// opens, so a fresh dbPath works.
	if err := catalog.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	// Read connection pool: concurrent readers via read-only mode
	readDB, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&mode=ro")
	if err != nil {
		db.Close()
		return nil, aerrors.NewCatalogError(aerrors.CodeOpenFailed, "failed to open read database", err)
	}
	readDB.SetMaxOpenConns(4)
	readDB.SetMaxIdleConns(4)
	readDB.SetConnMaxLifetime(5 * time.Minute)

	if _, err := readDB.Exec("PRAGMA read_uncommitted = true"); err != nil {
		readDB.Close()
		db.Close()
		return nil, aerrors.NewCatalogError(aerrors.CodeOpenFailed, "failed to set read_uncommitted pragma", err)
	}
	catalog.readDB = readDB

	return catalog, nil
}

// initSchema checks the on-disk schema version, creates tables and indexes,
// and stamps a fresh database.
func (c *SQLiteCatalog) initSchema() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var version int
	if err := c.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return aerrors.NewCatalogError(aerrors.CodeOpenFailed, "failed to read schema version", err)
	}
	if version > SchemaVersion {
		return aerrors.NewCatalogError(aerrors.CodeSchemaTooNew,
			fmt.Sprintf("catalog schema version %d is newer than supported version %d; upgrade the tool", version, SchemaVersion), nil)
	}

	for _, stmt := range AllSchemaSQL() {
		if _, err := c.db.Exec(stmt); err != nil {
			return aerrors.NewCatalogError(aerrors.CodeOpenFailed, "failed to execute schema statement", err)
		}
	}

	if version == 0 {
		if _, err := c.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
			return aerrors.NewCatalogError(aerrors.CodeOpenFailed, "failed to stamp schema version", err)
		}
	}
	return nil
}

// RecordRun stores a completed run atomically.
func (c *SQLiteCatalog) RecordRun(ctx context.Context, summary *types.RunSummary, report []byte, reportChecksum string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	compressed := snappy.Encode(nil, report)

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return aerrors.NewCatalogError(aerrors.CodeRecordFailed, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	runID := summary.RunID.String()
	_, err = tx.ExecContext(ctx, insertRunSQL,
		runID, summary.CreatedAt.UnixMilli(),
		summary.TotalIssues(), int64(summary.FailedChecks()),
		datasetRows(summary, "events"), datasetRows(summary, "transactions"), datasetRows(summary, "attendance"),
		summary.Fingerprints["events"], summary.Fingerprints["transactions"], summary.Fingerprints["attendance"],
		reportChecksum, compressed,
	)
	if err != nil {
		return aerrors.NewCatalogError(aerrors.CodeRecordFailed, "failed to insert run", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertCheckSQL)
	if err != nil {
		return aerrors.NewCatalogError(aerrors.CodeRecordFailed, "failed to prepare check insert", err)
	}
	defer stmt.Close()

	for i, r := range summary.Results {
		if _, err := stmt.ExecContext(ctx, runID, i, string(r.Category), r.Check, r.Issues, r.Rows, r.Rate); err != nil {
			return aerrors.NewCatalogError(aerrors.CodeRecordFailed,
				fmt.Sprintf("failed to insert check %q", r.Check), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return aerrors.NewCatalogError(aerrors.CodeRecordFailed, "failed to commit transaction", err)
	}
	return nil
}

func datasetRows(summary *types.RunSummary, name string) int64 {
	if d, ok := summary.Dataset(name); ok && !d.Missing {
		return d.Rows
	}
	return 0
}

// GetRun retrieves a single run by ID.
func (c *SQLiteCatalog) GetRun(ctx context.Context, id types.RunID) (*RunRecord, error) {
	row := c.readDB.QueryRowContext(ctx,
		"SELECT "+selectRunColumns+" FROM runs WHERE run_id = ?", id.String())
	return scanRunRecord(row)
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRunRecord(row scanner) (*RunRecord, error) {
	var (
		rawID        string
		createdAtMS  int64
		record       RunRecord
		eventsRows   int64
		txRows       int64
		attRows      int64
		eventsFP     string
		txFP         string
		attFP        string
	)
	err := row.Scan(
		&rawID, &createdAtMS, &record.TotalIssues, &record.FailedChecks,
		&eventsRows, &txRows, &attRows,
		&eventsFP, &txFP, &attFP,
		&record.ReportChecksum,
	)
	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, aerrors.NewCatalogError(aerrors.CodeQueryFailed, "failed to scan run", err)
	}

	record.RunID, err = types.ParseRunID(rawID)
	if err != nil {
		return nil, aerrors.NewCatalogError(aerrors.CodeQueryFailed,
			fmt.Sprintf("stored run ID %q is invalid", rawID), err)
	}
	record.CreatedAt = time.UnixMilli(createdAtMS)
	record.DatasetRows = map[string]int64{
		"events": eventsRows, "transactions": txRows, "attendance": attRows,
	}
	record.Fingerprints = map[string]string{
		"events": eventsFP, "transactions": txFP, "attendance": attFP,
	}
	return &record, nil
}

// GetChecks retrieves the per-check results of a run in report order.
func (c *SQLiteCatalog) GetChecks(ctx context.Context, id types.RunID) ([]types.CheckResult, error) {
	rows, err := c.readDB.QueryContext(ctx,
		"SELECT category, check_name, issues, row_count, rate FROM run_checks WHERE run_id = ? ORDER BY position ASC",
		id.String())
	if err != nil {
		return nil, aerrors.NewCatalogError(aerrors.CodeQueryFailed, "failed to query checks", err)
	}
	defer rows.Close()

	var results []types.CheckResult
	for rows.Next() {
		var (
			category string
			r        types.CheckResult
		)
		if err := rows.Scan(&category, &r.Check, &r.Issues, &r.Rows, &r.Rate); err != nil {
			return nil, aerrors.NewCatalogError(aerrors.CodeQueryFailed, "failed to scan check", err)
		}
		r.Category = types.Category(category)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, aerrors.NewCatalogError(aerrors.CodeQueryFailed, "error iterating checks", err)
	}

	// Every stored run has check rows, so none means the run is unknown.
	if len(results) == 0 {
		if _, err := c.GetRun(ctx, id); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// GetReport retrieves and decompresses the stored markdown report.
func (c *SQLiteCatalog) GetReport(ctx context.Context, id types.RunID) ([]byte, error) {
	var compressed []byte
	err := c.readDB.QueryRowContext(ctx,
		"SELECT report_blob FROM runs WHERE run_id = ?", id.String()).Scan(&compressed)
	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, aerrors.NewCatalogError(aerrors.CodeQueryFailed, "failed to query report", err)
	}

	report, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, aerrors.NewCatalogError(aerrors.CodeQueryFailed, "failed to decompress report", err)
	}
	return report, nil
}

// ListRuns returns runs newest first. Run IDs sort in creation order, so
// they break created_at_ms ties.
func (c *SQLiteCatalog) ListRuns(ctx context.Context, limit int) ([]*RunRecord, error) {
	query := "SELECT " + selectRunColumns + " FROM runs ORDER BY created_at_ms DESC, run_id DESC"
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := c.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, aerrors.NewCatalogError(aerrors.CodeQueryFailed, "failed to query runs", err)
	}
	defer rows.Close()

	var records []*RunRecord
	for rows.Next() {
		record, err := scanRunRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, aerrors.NewCatalogError(aerrors.CodeQueryFailed, "error iterating runs", err)
	}
	return records, nil
}

// LatestRun returns the most recent run.
func (c *SQLiteCatalog) LatestRun(ctx context.Context) (*RunRecord, error) {
	records, err := c.ListRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrRunNotFound
	}
	return records[0], nil
}

// CompareRuns returns per-check issue deltas in the newer run's check
// order. Checks present only in the older run are appended at the end with
// a newer count of zero.
func (c *SQLiteCatalog) CompareRuns(ctx context.Context, olderID, newerID types.RunID) ([]CheckDelta, error) {
	older, err := c.GetChecks(ctx, olderID)
	if err != nil {
		return nil, err
	}
	newer, err := c.GetChecks(ctx, newerID)
	if err != nil {
		return nil, err
	}

	olderByName := make(map[string]types.CheckResult, len(older))
	for _, r := range older {
		olderByName[r.Check] = r
	}

	deltas := make([]CheckDelta, 0, len(newer))
	seen := make(map[string]bool, len(newer))
	for _, r := range newer {
		old := olderByName[r.Check]
		deltas = append(deltas, CheckDelta{
			Category:    string(r.Category),
			Check:       r.Check,
			OlderIssues: old.Issues,
			NewerIssues: r.Issues,
			Delta:       r.Issues - old.Issues,
		})
		seen[r.Check] = true
	}
	for _, r := range older {
		if seen[r.Check] {
			continue
		}
		deltas = append(deltas, CheckDelta{
			Category:    string(r.Category),
			Check:       r.Check,
			OlderIssues: r.Issues,
			Delta:       -r.Issues,
		})
	}
	return deltas, nil
}

// PruneRuns deletes all but the newest keep runs.
func (c *SQLiteCatalog) PruneRuns(ctx context.Context, keep int) ([]types.RunID, error) {
	if keep <= 0 {
		return nil, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// LIMIT -1 OFFSET n skips the newest n rows and returns the rest.
	rows, err := c.db.QueryContext(ctx,
		"SELECT run_id FROM runs ORDER BY created_at_ms DESC, run_id DESC LIMIT -1 OFFSET ?", keep)
	if err != nil {
		return nil, aerrors.NewCatalogError(aerrors.CodeQueryFailed, "failed to query prune candidates", err)
	}
	defer rows.Close()

	var expired []types.RunID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, aerrors.NewCatalogError(aerrors.CodeQueryFailed, "failed to scan run ID", err)
		}
		id, err := types.ParseRunID(raw)
		if err != nil {
			return nil, aerrors.NewCatalogError(aerrors.CodeQueryFailed,
				fmt.Sprintf("stored run ID %q is invalid", raw), err)
		}
		expired = append(expired, id)
	}
	if err := rows.Err(); err != nil {
		return nil, aerrors.NewCatalogError(aerrors.CodeQueryFailed, "error iterating prune candidates", err)
	}
	if len(expired) == 0 {
		return nil, nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, aerrors.NewCatalogError(aerrors.CodeRecordFailed, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	for _, id := range expired {
		// Check rows first, they reference runs.
		if _, err := tx.ExecContext(ctx, "DELETE FROM run_checks WHERE run_id = ?", id.String()); err != nil {
			return nil, aerrors.NewCatalogError(aerrors.CodeRecordFailed,
				fmt.Sprintf("failed to delete checks for run %s", id), err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE run_id = ?", id.String()); err != nil {
			return nil, aerrors.NewCatalogError(aerrors.CodeRecordFailed,
				fmt.Sprintf("failed to delete run %s", id), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, aerrors.NewCatalogError(aerrors.CodeRecordFailed, "failed to commit prune", err)
	}
	return expired, nil
}

// Close closes the catalog database connections.
func (c *SQLiteCatalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	if c.readDB != nil {
		if err := c.readDB.Close(); err != nil {
			firstErr = err
		}
	}
	if err := c.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if firstErr != nil {
		return aerrors.NewCatalogError(aerrors.CodeOpenFailed, "failed to close database", firstErr)
	}
	return nil
}
