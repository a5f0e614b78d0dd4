package dataset

import (
	"strconv"
	"strings"
	"time"
)

// Date layouts accepted by the extracts, tried in order.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
}

// ParseInt parses an integer cell. Blank or non-numeric cells report !ok.
func ParseInt(cell string) (int64, bool) {
	v, err := strconv.ParseInt(strings.TrimSpace(cell), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseDecimal parses a decimal cell.
func ParseDecimal(cell string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseDate parses a date cell in the layouts the extracts use.
func ParseDate(cell string) (time.Time, bool) {
	cell = strings.TrimSpace(cell)
	for _, layout := range dateLayouts {
		if v, err := time.Parse(layout, cell); err == nil {
			return v, true
		}
	}
	return time.Time{}, false
}

// Parses reports whether the cell parses as the given kind.
// KindString cells always parse.
func Parses(cell string, kind Kind) bool {
	switch kind {
	case KindInt:
		_, ok := ParseInt(cell)
		return ok
	case KindDecimal:
		_, ok := ParseDecimal(cell)
		return ok
	case KindDate:
		_, ok := ParseDate(cell)
		return ok
	default:
		return true
	}
}
