package generator

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	aerrors "github.com/tixaudit/tixaudit/internal/errors"
)

const dateLayout = "2006-01-02"

// File names the audit expects under the raw data directory.
const (
	EventsFile       = "events.csv"
	TransactionsFile = "transactions.csv"
	AttendanceFile   = "attendance.csv"
)

var (
	eventsHeader = []string{
		"event_id", "event_name", "venue", "capacity", "base_price",
		"category", "event_date",
	}
	transactionsHeader = []string{
		"transaction_id", "event_id", "event_date", "venue", "capacity",
		"base_price", "category", "purchase_date", "lead_time_days",
		"channel", "audience_type", "fare_type", "unit_price",
		"tickets_qty", "price_paid_total", "geo_zone",
	}
	attendanceHeader = []string{
		"transaction_id", "event_id", "event_date", "tickets_qty", "attended",
	}
)

// WriteFiles renders the bundle as CSV files under dir. Files are staged in
// a scratch directory and renamed into place, so a crash never leaves a
// partial dataset at the final paths.
func WriteFiles(dir string, b *Bundle) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return aerrors.NewDatasetError(aerrors.CodeWriteFailed, "failed to create output directory", err)
	}

	staging := filepath.Join(dir, ".staging-"+uuid.New().String()[:8])
	if err := os.MkdirAll(staging, 0755); err != nil {
		return aerrors.NewDatasetError(aerrors.CodeWriteFailed, "failed to create staging directory", err)
	}
	defer os.RemoveAll(staging)

	files := []struct {
		name   string
		header []string
		rows   [][]string
	}{
		{EventsFile, eventsHeader, b.eventRows()},
		{TransactionsFile, transactionsHeader, b.transactionRows()},
		{AttendanceFile, attendanceHeader, b.attendanceRows()},
	}

	start := time.Now()
	for _, f := range files {
		if err := writeCSV(filepath.Join(staging, f.name), f.header, f.rows); err != nil {
			return err
		}
	}
	for _, f := range files {
		if err := os.Rename(filepath.Join(staging, f.name), filepath.Join(dir, f.name)); err != nil {
			return aerrors.NewDatasetError(aerrors.CodeWriteFailed,
				fmt.Sprintf("failed to move %s into place", f.name), err)
		}
	}

	log.Printf("generator: wrote %d events, %d transactions, %d attendance rows to %s in %v",
		len(b.Events), len(b.Transactions), len(b.Attendance), dir, time.Since(start))
	return nil
}

func writeCSV(path string, header []string, rows [][]string) error {
	name := filepath.Base(path)

	file, err := os.Create(path)
	if err != nil {
		return aerrors.NewDatasetError(aerrors.CodeWriteFailed, "failed to create "+name, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(header); err != nil {
		return aerrors.NewDatasetError(aerrors.CodeWriteFailed, "failed to write "+name+" header", err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return aerrors.NewDatasetError(aerrors.CodeWriteFailed, "failed to write "+name+" row", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return aerrors.NewDatasetError(aerrors.CodeWriteFailed, "failed to flush "+name, err)
	}
	if err := file.Close(); err != nil {
		return aerrors.NewDatasetError(aerrors.CodeWriteFailed, "failed to close "+name, err)
	}
	return nil
}

func (b *Bundle) eventRows() [][]string {
	rows := make([][]string, 0, len(b.Events))
	for _, e := range b.Events {
		rows = append(rows, []string{
			e.ID,
			e.Name,
			e.Venue,
			strconv.Itoa(e.Capacity),
			formatBase(e.BasePrice),
			e.Category,
			e.Date.Format(dateLayout),
		})
	}
	return rows
}

func (b *Bundle) transactionRows() [][]string {
	rows := make([][]string, 0, len(b.Transactions))
	for _, t := range b.Transactions {
		rows = append(rows, []string{
			t.ID,
			t.EventID,
			t.EventDate.Format(dateLayout),
			t.Venue,
			strconv.Itoa(t.Capacity),
			formatBase(t.BasePrice),
			t.Category,
			t.PurchaseDate.Format(dateLayout),
			strconv.Itoa(t.LeadTimeDays),
			t.Channel,
			t.AudienceType,
			t.FareType,
			formatAmount(t.UnitPrice),
			strconv.Itoa(t.TicketsQty),
			formatAmount(t.PricePaidTotal),
			t.GeoZone,
		})
	}
	return rows
}

func (b *Bundle) attendanceRows() [][]string {
	rows := make([][]string, 0, len(b.Attendance))
	for _, a := range b.Attendance {
		rows = append(rows, []string{
			a.TransactionID,
			a.EventID,
			a.EventDate.Format(dateLayout),
			strconv.Itoa(a.TicketsQty),
			strconv.Itoa(a.Attended),
		})
	}
	return rows
}

// formatAmount renders monetary values with fixed cents.
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// formatBase renders list prices the way the source systems export them,
// without trailing zeros.
func formatBase(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
