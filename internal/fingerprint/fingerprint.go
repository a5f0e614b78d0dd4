// Package fingerprint computes stable identifiers for audit inputs.
//
// A fingerprint is the 128-bit murmur3 hash of the raw bytes rendered as
// 32 hex characters. Two runs over inputs with identical fingerprints must
// produce identical reports, so fingerprints are recorded in the catalog
// and the report metadata sidecar.
package fingerprint

import (
	"fmt"
	"io"
	"os"

	"github.com/spaolacci/murmur3"
)

// HashBytes returns the fingerprint of a byte slice.
func HashBytes(data []byte) string {
	h1, h2 := murmur3.Sum128(data)
	return fmt.Sprintf("%016x%016x", h1, h2)
}

// HashFile returns the fingerprint of a file's contents.
// The file is streamed, not loaded into memory.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("fingerprint: failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := murmur3.New128()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("fingerprint: failed to read %s: %w", path, err)
	}
	h1, h2 := h.Sum128()
	return fmt.Sprintf("%016x%016x", h1, h2), nil
}
