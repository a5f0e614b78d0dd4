// Package types defines the shared result types produced by an audit run.
package types

import (
	"math"
	"time"
)

// Category classifies a check in the report. Categories appear in the
// report in the fixed order returned by Categories.
type Category string

const (
	CategorySchema     Category = "schema"
	CategoryDuplicates Category = "duplicates"
	CategoryIntegrity  Category = "integrity"
	CategoryRules      Category = "rules"
)

// Categories returns all check categories in report order.
func Categories() []Category {
	return []Category{CategorySchema, CategoryDuplicates, CategoryIntegrity, CategoryRules}
}

// CheckResult is the outcome of a single named check over one dataset.
type CheckResult struct {
	Category Category
	Check    string
	Issues   int64
	Rows     int64
	Rate     float64 // percentage, rounded to one decimal
}

// NewCheckResult builds a CheckResult, deriving the rate from issues and rows.
func NewCheckResult(category Category, check string, issues, rows int64) CheckResult {
	return CheckResult{
		Category: category,
		Check:    check,
		Issues:   issues,
		Rows:     rows,
		Rate:     Rate(issues, rows),
	}
}

// Rate returns issues/rows as a percentage rounded to one decimal place.
// A non-positive row count yields 0 so empty datasets never divide by zero.
func Rate(issues, rows int64) float64 {
	if rows <= 0 {
		return 0
	}
	return math.Round(float64(issues)/float64(rows)*1000) / 10
}

// Passed reports whether the check found no issues.
func (r CheckResult) Passed() bool {
	return r.Issues == 0
}

// DatasetStat holds per-dataset load facts surfaced in the report.
type DatasetStat struct {
	Name    string
	Rows    int64
	Missing bool // file absent or unreadable
}

// ColumnBlanks counts blank cells observed in one column during load.
type ColumnBlanks struct {
	Column string
	Blanks int64
}

// RunSummary is the complete outcome of one audit run. The report renderer,
// the run catalog and the artifact publisher all consume this single type.
type RunSummary struct {
	RunID     RunID
	CreatedAt time.Time

	// Datasets in load order: events, transactions, attendance.
	Datasets []DatasetStat

	// Results in the fixed check order.
	Results []CheckResult

	// Fingerprints maps dataset name to its input fingerprint. Missing
	// files carry an empty fingerprint.
	Fingerprints map[string]string

	// MissingValues maps dataset name to blank-cell counts in header order.
	MissingValues map[string][]ColumnBlanks
}

// TotalIssues returns the sum of issue counts across all checks.
func (s *RunSummary) TotalIssues() int64 {
	var total int64
	for _, r := range s.Results {
		total += r.Issues
	}
	return total
}

// FailedChecks returns the number of checks that found at least one issue.
func (s *RunSummary) FailedChecks() int {
	failed := 0
	for _, r := range s.Results {
		if !r.Passed() {
			failed++
		}
	}
	return failed
}

// Dataset returns the stat for the named dataset, if present.
func (s *RunSummary) Dataset(name string) (DatasetStat, bool) {
	for _, d := range s.Datasets {
		if d.Name == name {
			return d, true
		}
	}
	return DatasetStat{}, false
}
