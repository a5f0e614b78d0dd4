package dataset

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
)

// Loader reads the raw CSV extracts from a directory.
type Loader struct {
	dir string
}

// NewLoader creates a loader rooted at dir.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// Path returns the file path a spec resolves to under this loader.
func (l *Loader) Path(spec Spec) string {
	return filepath.Join(l.dir, spec.Filename)
}

// Load reads one extract. Load never fails: a missing or unreadable file
// yields an empty table flagged Missing, records the reader rejects are
// counted and skipped, and blank cells are tallied per column. The audit
// pass continues with whatever loaded.
func (l *Loader) Load(spec Spec) *Table {
	t := NewTable(spec)

	f, err := os.Open(l.Path(spec))
	if err != nil {
		t.Missing = true
		return t
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // tolerate ragged records

	header, err := r.Read()
	if err != nil {
		// No readable header means no usable data at all.
		t.Missing = true
		return t
	}
	t.SetHeader(header)

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				t.Skipped++
				continue
			}
			// I/O failure mid-file: keep what was read so far.
			break
		}
		if len(record) != len(header) {
			t.Ragged++
		}
		t.Rows = append(t.Rows, record)
	}

	t.tallyBlanks()
	return t
}

// LoadAll reads the three extracts in audit order, keyed by dataset name.
func (l *Loader) LoadAll() map[string]*Table {
	tables := make(map[string]*Table, 3)
	for _, spec := range AllSpecs() {
		tables[spec.Name] = l.Load(spec)
	}
	return tables
}
