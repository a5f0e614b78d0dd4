package types

import "errors"

// Run ID related errors
var (
	// ErrInvalidRunIDLength is returned when a run ID string or byte slice has incorrect length
	ErrInvalidRunIDLength = errors.New("invalid run ID length")

	// ErrInvalidRunIDCharacter is returned when a run ID string contains invalid characters
	ErrInvalidRunIDCharacter = errors.New("invalid run ID character")
)
