// Package catalog persists audit run history in a local SQLite database
// (catalog.db). Each audit run is one row in runs plus its per-check
// results in run_checks; the rendered markdown report is stored
// snappy-compressed alongside so historical reports survive edits to the
// files on disk.
package catalog

// SchemaVersion is stamped into PRAGMA user_version when a catalog is
// created. Opening a catalog written by a newer tool version fails instead
// of guessing at its layout.
const SchemaVersion = 1

// CreateRunsTableSQL creates the core runs table. Row counts and content
// fingerprints are stored per dataset so history queries can tell whether
// the underlying files changed between runs.
const CreateRunsTableSQL = `
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    created_at_ms INTEGER NOT NULL,
    total_issues INTEGER NOT NULL,
    failed_checks INTEGER NOT NULL,
    events_rows INTEGER NOT NULL,
    transactions_rows INTEGER NOT NULL,
    attendance_rows INTEGER NOT NULL,
    events_fingerprint TEXT NOT NULL,
    transactions_fingerprint TEXT NOT NULL,
    attendance_fingerprint TEXT NOT NULL,
    report_checksum TEXT NOT NULL,
    report_blob BLOB NOT NULL
)`

// CreateRunChecksTableSQL creates the per-check results table. position
// preserves the fixed check order of the report.
const CreateRunChecksTableSQL = `
CREATE TABLE IF NOT EXISTS run_checks (
    run_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    category TEXT NOT NULL,
    check_name TEXT NOT NULL,
    issues INTEGER NOT NULL,
    row_count INTEGER NOT NULL,
    rate REAL NOT NULL,
    PRIMARY KEY (run_id, position),
    FOREIGN KEY (run_id) REFERENCES runs(run_id)
)`

// CreateRunsIndexesSQL creates indexes for history listing and pruning.
var CreateRunsIndexesSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at_ms)`,
	`CREATE INDEX IF NOT EXISTS idx_run_checks_run ON run_checks(run_id)`,
}

// AllSchemaSQL returns all SQL statements needed to initialize the catalog.
func AllSchemaSQL() []string {
	statements := []string{
		CreateRunsTableSQL,
		CreateRunChecksTableSQL,
	}
	statements = append(statements, CreateRunsIndexesSQL...)
	return statements
}
