// Package dataset loads the raw CSV extracts audited by the quality checks.
//
// Loading is deliberately lenient: a missing file, a ragged record, or an
// unparseable cell is never fatal. Problems are tallied on the returned
// Table and surface later as schema findings in the report.
package dataset

// Kind identifies how a typed column's cells are parsed.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindDecimal
	KindDate
)

// TypedColumn declares a column whose cells are expected to parse as a
// given kind. A cell that does not parse makes the whole row count as
// malformed.
type TypedColumn struct {
	Name string
	Kind Kind
}

// Spec describes one expected CSV extract.
type Spec struct {
	// Name is the dataset name used in check labels and the report.
	Name string

	// Filename is the file expected under the raw data directory.
	Filename string

	// Required lists the columns that must be present in the header.
	Required []string

	// Key is the unique key column; empty means the dataset has no key.
	Key string

	// FKColumn and FKParent describe a foreign key into another dataset.
	FKColumn string
	FKParent string

	// Typed lists the columns carrying parseable values.
	Typed []TypedColumn
}

// The three ticketing extracts, in audit order.
var (
	Events = Spec{
		Name:     "events",
		Filename: "events.csv",
		Required: []string{"event_id", "capacity", "base_price"},
		Key:      "event_id",
		Typed: []TypedColumn{
			{Name: "capacity", Kind: KindInt},
			{Name: "base_price", Kind: KindDecimal},
		},
	}

	Transactions = Spec{
		Name:     "transactions",
		Filename: "transactions.csv",
		Required: []string{
			"transaction_id", "event_id", "tickets_qty", "price_paid_total",
			"lead_time_days", "purchase_date", "event_date",
		},
		Key:      "transaction_id",
		FKColumn: "event_id",
		FKParent: "events",
		Typed: []TypedColumn{
			{Name: "tickets_qty", Kind: KindInt},
			{Name: "price_paid_total", Kind: KindDecimal},
			{Name: "lead_time_days", Kind: KindInt},
			{Name: "purchase_date", Kind: KindDate},
			{Name: "event_date", Kind: KindDate},
		},
	}

	Attendance = Spec{
		Name:     "attendance",
		Filename: "attendance.csv",
		Required: []string{"transaction_id", "attended"},
		Key:      "transaction_id",
		FKColumn: "transaction_id",
		FKParent: "transactions",
	}
)

// AllSpecs returns the dataset specs in audit order.
func AllSpecs() []Spec {
	return []Spec{Events, Transactions, Attendance}
}
