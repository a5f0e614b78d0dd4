// Package checks implements the data-quality validation pass.
//
// The pass runs a fixed ordered list of named checks over the three loaded
// extracts and yields one CheckResult per check. Violations are counted,
// never repaired: rows are not rejected, cells are not mutated, and a
// malformed input degrades into schema findings instead of failing the run.
package checks

import (
	"sort"
	"time"

	"github.com/tixaudit/tixaudit/internal/dataset"
	"github.com/tixaudit/tixaudit/internal/observability"
	"github.com/tixaudit/tixaudit/pkg/types"
)

// Datasets bundles the three loaded extracts.
type Datasets struct {
	Events       *dataset.Table
	Transactions *dataset.Table
	Attendance   *dataset.Table
}

// check pairs a fixed label with its counting function.
type check struct {
	category types.Category
	name     string
	count    func() (issues, rows int64)
}

// Run executes the fixed ordered list of checks.
func Run(ds Datasets) []types.CheckResult {
	return RunWithStats(ds, nil)
}

// RunWithStats executes the checks, recording per-check wall time when
// stats is non-nil. The check order is part of the report contract and
// never changes.
func RunWithStats(ds Datasets, stats *observability.RunStats) []types.CheckResult {
	list := buildChecks(ds)

	results := make([]types.CheckResult, 0, len(list))
	for _, c := range list {
		start := time.Now()
		issues, rows := c.count()
		if stats != nil {
			stats.RecordCheck(c.name, time.Since(start))
		}
		results = append(results, types.NewCheckResult(c.category, c.name, issues, rows))
	}
	return results
}

// TopIssues returns the failing results ordered by issue count descending.
// The sort is stable: ties keep the fixed check order, so the report is
// deterministic.
func TopIssues(results []types.CheckResult) []types.CheckResult {
	top := make([]types.CheckResult, 0, len(results))
	for _, r := range results {
		if r.Issues > 0 {
			top = append(top, r)
		}
	}
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Issues > top[j].Issues
	})
	return top
}

// buildChecks assembles the fixed check list. Parent key sets for the
// integrity checks are materialized once up front.
func buildChecks(ds Datasets) []check {
	evt, tx, att := ds.Events, ds.Transactions, ds.Attendance

	eventKeys := keySet(evt)
	txKeys := keySet(tx)

	nonPositiveInt := func(cell string) bool {
		v, ok := dataset.ParseInt(cell)
		return ok && v <= 0
	}
	nonPositiveDecimal := func(cell string) bool {
		v, ok := dataset.ParseDecimal(cell)
		return ok && v <= 0
	}
	negativeInt := func(cell string) bool {
		v, ok := dataset.ParseInt(cell)
		return ok && v < 0
	}
	// String-domain test: the trimmed cell must be exactly "0" or "1".
	badAttendedFlag := func(cell string) bool {
		return cell != "0" && cell != "1"
	}

	return []check{
		{types.CategorySchema, "events: required columns",
			func() (int64, int64) { return requiredColumns(evt) }},
		{types.CategorySchema, "transactions: required columns",
			func() (int64, int64) { return requiredColumns(tx) }},
		{types.CategorySchema, "attendance: required columns",
			func() (int64, int64) { return requiredColumns(att) }},

		{types.CategorySchema, "events: malformed rows",
			func() (int64, int64) { return malformedRows(evt) }},
		{types.CategorySchema, "transactions: malformed rows",
			func() (int64, int64) { return malformedRows(tx) }},
		{types.CategorySchema, "attendance: malformed rows",
			func() (int64, int64) { return malformedRows(att) }},

		{types.CategoryDuplicates, "events: duplicate event_id",
			func() (int64, int64) { return duplicateKeys(evt) }},
		{types.CategoryDuplicates, "transactions: duplicate transaction_id",
			func() (int64, int64) { return duplicateKeys(tx) }},
		{types.CategoryDuplicates, "attendance: duplicate transaction_id",
			func() (int64, int64) { return duplicateKeys(att) }},

		{types.CategoryIntegrity, "transactions: orphan event_id",
			func() (int64, int64) { return orphanRows(tx, eventKeys) }},
		{types.CategoryIntegrity, "attendance: orphan transaction_id",
			func() (int64, int64) { return orphanRows(att, txKeys) }},

		{types.CategoryRules, "events: capacity <= 0",
			func() (int64, int64) { return countRule(evt, "capacity", nonPositiveInt) }},
		{types.CategoryRules, "events: base_price <= 0",
			func() (int64, int64) { return countRule(evt, "base_price", nonPositiveDecimal) }},
		{types.CategoryRules, "transactions: tickets_qty <= 0",
			func() (int64, int64) { return countRule(tx, "tickets_qty", nonPositiveInt) }},
		{types.CategoryRules, "transactions: price_paid_total <= 0",
			func() (int64, int64) { return countRule(tx, "price_paid_total", nonPositiveDecimal) }},
		{types.CategoryRules, "transactions: lead_time_days < 0",
			func() (int64, int64) { return countRule(tx, "lead_time_days", negativeInt) }},
		{types.CategoryRules, "transactions: purchase_date > event_date",
			func() (int64, int64) { return purchaseAfterEvent(tx) }},
		{types.CategoryRules, "attendance: attended not in {0,1}",
			func() (int64, int64) { return countRule(att, "attended", badAttendedFlag) }},
	}
}

// requiredColumns is binary: 1 if the file is missing or any required
// column is absent, else 0. Denominator is always 1.
func requiredColumns(t *dataset.Table) (int64, int64) {
	if !t.SchemaOK() {
		return 1, 1
	}
	return 0, 1
}

// malformedRows counts records the reader skipped plus rows whose typed
// cells do not parse. Denominator is rows seen, not rows parsed.
func malformedRows(t *dataset.Table) (int64, int64) {
	if t.Missing {
		return 0, 0
	}

	issues := t.Skipped

	// Only typed columns actually present can be judged.
	typed := make([]dataset.TypedColumn, 0, len(t.Spec.Typed))
	for _, tc := range t.Spec.Typed {
		if t.HasColumn(tc.Name) {
			typed = append(typed, tc)
		}
	}

	if len(typed) > 0 {
		for i := int64(0); i < t.RowCount(); i++ {
			for _, tc := range typed {
				if !dataset.Parses(t.Cell(int(i), tc.Name), tc.Kind) {
					issues++
					break // a row counts once no matter how many cells fail
				}
			}
		}
	}

	return issues, t.RowsSeen()
}

// duplicateKeys counts rows carrying an already-seen key value. The count
// is rows minus distinct keys, so it is invariant to row order.
func duplicateKeys(t *dataset.Table) (int64, int64) {
	rows := t.RowCount()
	if t.Missing || !t.HasColumn(t.Spec.Key) {
		return 0, rows
	}

	distinct := make(map[string]struct{}, rows)
	for i := 0; i < int(rows); i++ {
		distinct[t.Cell(i, t.Spec.Key)] = struct{}{}
	}
	return rows - int64(len(distinct)), rows
}

// orphanRows counts child rows whose foreign key has no matching parent.
// Blank foreign keys count as orphans.
func orphanRows(child *dataset.Table, parentKeys map[string]struct{}) (int64, int64) {
	rows := child.RowCount()
	if child.Missing || !child.HasColumn(child.Spec.FKColumn) {
		return 0, rows
	}

	var issues int64
	for i := 0; i < int(rows); i++ {
		fk := child.Cell(i, child.Spec.FKColumn)
		if fk == "" {
			issues++
			continue
		}
		if _, ok := parentKeys[fk]; !ok {
			issues++
		}
	}
	return issues, rows
}

// countRule counts rows whose cell in the given column satisfies bad.
// Cells that fail to parse are the malformed-rows check's business, so
// the numeric predicates above only fire on cells that parse.
func countRule(t *dataset.Table, column string, bad func(cell string) bool) (int64, int64) {
	rows := t.RowCount()
	if t.Missing || !t.HasColumn(column) {
		return 0, rows
	}

	var issues int64
	for i := 0; i < int(rows); i++ {
		if bad(t.Cell(i, column)) {
			issues++
		}
	}
	return issues, rows
}

// purchaseAfterEvent counts rows where both dates parse and the purchase
// date lands after the event date.
func purchaseAfterEvent(t *dataset.Table) (int64, int64) {
	rows := t.RowCount()
	if t.Missing || !t.HasColumn("purchase_date") || !t.HasColumn("event_date") {
		return 0, rows
	}

	var issues int64
	for i := 0; i < int(rows); i++ {
		purchase, okP := dataset.ParseDate(t.Cell(i, "purchase_date"))
		event, okE := dataset.ParseDate(t.Cell(i, "event_date"))
		if okP && okE && purchase.After(event) {
			issues++
		}
	}
	return issues, rows
}

// keySet collects the distinct trimmed key values of a table. A missing
// table or key column yields an empty set, so every child row counts as
// an orphan.
func keySet(t *dataset.Table) map[string]struct{} {
	keys := make(map[string]struct{})
	if t.Missing || !t.HasColumn(t.Spec.Key) {
		return keys
	}
	for i := 0; i < int(t.RowCount()); i++ {
		keys[t.Cell(i, t.Spec.Key)] = struct{}{}
	}
	return keys
}
