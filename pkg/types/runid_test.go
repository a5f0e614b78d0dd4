package types

import (
	"bytes"
	"testing"
	"time"
)

func TestRunIDGenerator_Next(t *testing.T) {
	gen := NewRunIDGenerator()

	id1, err := gen.Next()
	if err != nil {
		t.Fatalf("failed to generate run ID: %v", err)
	}

	id2, err := gen.Next()
	if err != nil {
		t.Fatalf("failed to generate run ID: %v", err)
	}

	// IDs should be different
	if id1 == id2 {
		t.Error("expected different run IDs")
	}

	// id2 should be >= id1 (lexicographic ordering)
	if bytes.Compare(id1[:], id2[:]) > 0 {
		t.Error("expected id2 >= id1 for lexicographic ordering")
	}
}

func TestRunIDGenerator_TimeOrdering(t *testing.T) {
	gen := NewRunIDGenerator()

	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC) // 1 second later

	id1, err := gen.NextAt(t1)
	if err != nil {
		t.Fatalf("failed to generate run ID: %v", err)
	}

	id2, err := gen.NextAt(t2)
	if err != nil {
		t.Fatalf("failed to generate run ID: %v", err)
	}

	// ID generated at later time should be greater
	if id1.Compare(id2) >= 0 {
		t.Errorf("expected ID at t1 < ID at t2, got %s >= %s", id1.String(), id2.String())
	}
}

func TestRunIDGenerator_MonotonicWithinMillisecond(t *testing.T) {
	gen := NewRunIDGenerator()
	ts := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	// Generate multiple IDs at the same millisecond
	var ids []RunID
	for i := 0; i < 100; i++ {
		id, err := gen.NextAt(ts)
		if err != nil {
			t.Fatalf("failed to generate run ID: %v", err)
		}
		ids = append(ids, id)
	}

	// All IDs should be strictly increasing
	for i := 1; i < len(ids); i++ {
		if ids[i-1].Compare(ids[i]) >= 0 {
			t.Errorf("expected ID[%d] < ID[%d], got %s >= %s",
				i-1, i, ids[i-1].String(), ids[i].String())
		}
	}
}

func TestRunID_Timestamp(t *testing.T) {
	gen := NewRunIDGenerator()
	ts := time.Date(2026, 2, 5, 10, 30, 0, 0, time.UTC)

	id, err := gen.NextAt(ts)
	if err != nil {
		t.Fatalf("failed to generate run ID: %v", err)
	}

	// Timestamp should match (within millisecond precision)
	expectedMs := uint64(ts.UnixMilli())
	if id.Timestamp() != expectedMs {
		t.Errorf("expected timestamp %d, got %d", expectedMs, id.Timestamp())
	}

	if !id.Time().Equal(ts) {
		t.Errorf("expected time %v, got %v", ts, id.Time())
	}
}

func TestRunID_StringRoundTrip(t *testing.T) {
	gen := NewRunIDGenerator()

	id1, err := gen.Next()
	if err != nil {
		t.Fatalf("failed to generate run ID: %v", err)
	}

	str := id1.String()
	if len(str) != 26 {
		t.Errorf("expected string length 26, got %d", len(str))
	}

	id2, err := ParseRunID(str)
	if err != nil {
		t.Fatalf("failed to parse run ID: %v", err)
	}

	if id1 != id2 {
		t.Errorf("round-trip failed: %v != %v", id1, id2)
	}
}

func TestRunID_BytesRoundTrip(t *testing.T) {
	gen := NewRunIDGenerator()

	id1, err := gen.Next()
	if err != nil {
		t.Fatalf("failed to generate run ID: %v", err)
	}

	b := id1.Bytes()
	if len(b) != 16 {
		t.Errorf("expected bytes length 16, got %d", len(b))
	}

	id2, err := RunIDFromBytes(b)
	if err != nil {
		t.Fatalf("failed to create run ID from bytes: %v", err)
	}

	if id1 != id2 {
		t.Errorf("round-trip failed: %v != %v", id1, id2)
	}
}

func TestNewRunID_ProcessWideOrdering(t *testing.T) {
	id1, err := NewRunID()
	if err != nil {
		t.Fatalf("failed to generate run ID: %v", err)
	}

	id2, err := NewRunID()
	if err != nil {
		t.Fatalf("failed to generate run ID: %v", err)
	}

	if id1.Compare(id2) >= 0 {
		t.Errorf("expected strictly increasing IDs, got %s >= %s", id1, id2)
	}
}

func TestParseRunID_InvalidLength(t *testing.T) {
	_, err := ParseRunID("short")
	if err != ErrInvalidRunIDLength {
		t.Errorf("expected ErrInvalidRunIDLength, got %v", err)
	}
}

func TestParseRunID_InvalidCharacter(t *testing.T) {
	// 'I', 'L', 'O', 'U' are not valid in Crockford Base32
	_, err := ParseRunID("01234567890123456789012I45")
	if err != ErrInvalidRunIDCharacter {
		t.Errorf("expected ErrInvalidRunIDCharacter, got %v", err)
	}
}

func TestRunID_IsZero(t *testing.T) {
	var zero RunID
	if !zero.IsZero() {
		t.Error("expected zero value to report IsZero")
	}

	id, err := NewRunID()
	if err != nil {
		t.Fatalf("failed to generate run ID: %v", err)
	}
	if id.IsZero() {
		t.Error("expected generated ID to be non-zero")
	}
}
