package export

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	aerrors "github.com/tixaudit/tixaudit/internal/errors"
)

// insertBatch is the number of rows committed per transaction while
// loading the SQLite artifact.
const insertBatch = 5000

// sqliteTypes maps known BI columns to their storage type. Columns not
// listed, including dirty-input extras, default to TEXT.
var sqliteTypes = map[string]string{
	"capacity":         "INTEGER",
	"base_price":       "REAL",
	"lead_time_days":   "INTEGER",
	"unit_price":       "REAL",
	"tickets_qty":      "INTEGER",
	"price_paid_total": "REAL",
	"capacity_ev":      "INTEGER",
	"base_price_ev":    "REAL",
	"attended":         "INTEGER",
	"is_early":         "INTEGER",
	"is_late":          "INTEGER",
}

// WriteSQLite builds the analytics database under dir. The database is
// built in WAL mode at a staging path, checkpointed back to a single
// DELETE-mode file, and renamed into place. Returns the final path.
func WriteSQLite(ctx context.Context, dir string, t *Table) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", aerrors.NewExportError(aerrors.CodeArtifactBuild, "failed to create export directory", err)
	}

	staging := filepath.Join(dir, ".staging-"+uuid.New().String()[:8]+".db")
	defer os.Remove(staging)

	start := time.Now()
	if err := buildSQLite(ctx, staging, t); err != nil {
		return "", err
	}

	out := filepath.Join(dir, SQLiteName)
	if err := os.Rename(staging, out); err != nil {
		return "", aerrors.NewExportError(aerrors.CodeArtifactBuild, "failed to move BI database into place", err)
	}

	info, err := os.Stat(out)
	if err != nil {
		return "", aerrors.NewExportError(aerrors.CodeArtifactBuild, "failed to stat BI database", err)
	}
	log.Printf("export: wrote %s (%d rows, %d bytes) in %v", out, len(t.Rows), info.Size(), time.Since(start))
	return out, nil
}

func buildSQLite(ctx context.Context, path string, t *Table) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return aerrors.NewExportError(aerrors.CodeArtifactBuild, "failed to create BI database", err)
	}
	defer db.Close()

	// WAL keeps the bulk load fast; the artifact converts back to a
	// single file before it ships.
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		return aerrors.NewExportError(aerrors.CodeArtifactBuild, "failed to set journal mode", err)
	}

	cols := make([]string, len(t.Header))
	for i, name := range t.Header {
		typ := sqliteTypes[name]
		if typ == "" {
			typ = "TEXT"
		}
		cols[i] = fmt.Sprintf("%q %s", name, typ)
	}
	createSQL := fmt.Sprintf("CREATE TABLE billetterie_bi (%s)", strings.Join(cols, ", "))
	if _, err := db.ExecContext(ctx, createSQL); err != nil {
		return aerrors.NewExportError(aerrors.CodeArtifactBuild, "failed to create BI table", err)
	}

	for _, ddl := range biIndexes(t.Header) {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return aerrors.NewExportError(aerrors.CodeArtifactBuild, "failed to create BI index", err)
		}
	}

	insertSQL := insertStatement(t.Header)
	for lo := 0; lo < len(t.Rows); lo += insertBatch {
		hi := lo + insertBatch
		if hi > len(t.Rows) {
			hi = len(t.Rows)
		}
		if err := insertRows(ctx, db, insertSQL, t.Rows[lo:hi]); err != nil {
			return err
		}
	}

	if _, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return aerrors.NewExportError(aerrors.CodeArtifactBuild, "failed to checkpoint WAL", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=DELETE"); err != nil {
		return aerrors.NewExportError(aerrors.CodeArtifactBuild, "failed to restore journal mode", err)
	}
	if err := db.Close(); err != nil {
		return aerrors.NewExportError(aerrors.CodeArtifactBuild, "failed to close BI database", err)
	}
	return nil
}

// biIndexes returns index DDL for the query columns actually present.
func biIndexes(header []string) []string {
	present := make(map[string]bool, len(header))
	for _, c := range header {
		present[c] = true
	}

	var ddl []string
	if present["event_id"] {
		ddl = append(ddl, `CREATE INDEX idx_bi_event ON billetterie_bi("event_id")`)
	}
	if present["purchase_day"] {
		ddl = append(ddl, `CREATE INDEX idx_bi_purchase_day ON billetterie_bi("purchase_day")`)
	}
	return ddl
}

func insertStatement(header []string) string {
	names := make([]string, len(header))
	marks := make([]string, len(header))
	for i, c := range header {
		names[i] = fmt.Sprintf("%q", c)
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO billetterie_bi (%s) VALUES (%s)",
		strings.Join(names, ", "), strings.Join(marks, ", "))
}

// insertRows loads one batch inside a transaction. Blank cells become
// NULLs so BI tools see proper missing values.
func insertRows(ctx context.Context, db *sql.DB, insertSQL string, rows [][]string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return aerrors.NewExportError(aerrors.CodeArtifactBuild, "failed to begin insert batch", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return aerrors.NewExportError(aerrors.CodeArtifactBuild, "failed to prepare insert", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		args := make([]interface{}, len(row))
		for i, cell := range row {
			if cell != "" {
				args[i] = cell
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return aerrors.NewExportError(aerrors.CodeArtifactBuild, "failed to insert BI row", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return aerrors.NewExportError(aerrors.CodeArtifactBuild, "failed to commit insert batch", err)
	}
	return nil
}
