package flat

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDimension is returned when an index is created with a dimension
	// outside 1..persistence.MaxDimension.
	ErrInvalidDimension = errors.New("flat: dimension out of range")
	// ErrInvalidK is returned when a search asks for fewer than one result.
	ErrInvalidK = errors.New("flat: k must be positive")
	// ErrLengthMismatch is returned when ids and vectors differ in length.
	ErrLengthMismatch = errors.New("flat: ids and vectors differ in length")
	// ErrCorruptIndex wraps every failure to decode a persisted index.
	ErrCorruptIndex = errors.New("flat: corrupt index")
	// ErrDimensionMismatch is matched by every *DimensionMismatchError.
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// DimensionMismatchError reports a vector whose length differs from the index dimension.
type DimensionMismatchError struct {
	Expected int // Expected dimensions
	Actual   int // Actual dimensions
}

// Error returns the error message for dimension mismatch.
func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Is reports whether target is ErrDimensionMismatch.
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}
