package chunkcanvas

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/hupe1980/chunkcanvas/catalog"
	"github.com/hupe1980/chunkcanvas/distance"
	"github.com/hupe1980/chunkcanvas/index/flat"
	"github.com/hupe1980/chunkcanvas/metadata"
)

var (
	// ErrInvalidLocation is returned when neither an index path nor a base
	// directory with a name was supplied.
	ErrInvalidLocation = errors.New("invalid index location")
	// ErrInvalidName is returned when a name sanitizes to nothing.
	ErrInvalidName = errors.New("invalid index name")
	// ErrAlreadyExists is returned by Create when the index exists and
	// overwrite was not requested.
	ErrAlreadyExists = errors.New("index already exists")
	// ErrNotFound is returned when an index or base directory does not exist.
	ErrNotFound = errors.New("not found")
	// ErrCorruptIndex is returned when the vector index file cannot be parsed.
	ErrCorruptIndex = errors.New("corrupt vector index")
	// ErrCorruptMetadata is returned when the metadata sidecar cannot be parsed.
	ErrCorruptMetadata = errors.New("corrupt metadata")
	// ErrDimensionMismatch is matched by every *DimensionMismatchError.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrDuplicateID is matched by every *DuplicateIDError.
	ErrDuplicateID = errors.New("duplicate id")
	// ErrReconstructionUnsupported is returned when a stored vector cannot be
	// reconstructed for an ID.
	ErrReconstructionUnsupported = errors.New("vector reconstruction unsupported")
	// ErrIO wraps failures reading or writing index files.
	ErrIO = errors.New("i/o error")
	// ErrInvalidArgument is returned for malformed request parameters.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrEmptyBatch is returned when an upsert or delete carries no items.
	ErrEmptyBatch = errors.New("empty batch")
	// ErrInvalidDimension is returned when an index is created with a
	// dimension outside 1..persistence.MaxDimension.
	ErrInvalidDimension = errors.New("invalid dimension")
	// ErrInvalidMetric is returned for metrics other than cosine, l2 and ip.
	ErrInvalidMetric = errors.New("invalid metric")
)

// DimensionMismatchError reports a vector whose length differs from the
// index dimension.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type DimensionMismatchError struct {
	Expected int
	Actual   int
	// ID is the item that failed the check, when known.
	ID    int64
	HasID bool
	cause error
}

func (e *DimensionMismatchError) Error() string {
	if e.HasID {
		return fmt.Sprintf("dimension mismatch for id %d: expected %d, got %d", e.ID, e.Expected, e.Actual)
	}
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *DimensionMismatchError) Unwrap() error { return e.cause }

// Is reports whether target is ErrDimensionMismatch.
func (e *DimensionMismatchError) Is(target error) bool { return target == ErrDimensionMismatch }

// DuplicateIDError reports an ID that occurs more than once in one batch.
type DuplicateIDError struct {
	ID int64
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate id %d in batch", e.ID)
}

// Is reports whether target is ErrDuplicateID.
func (e *DuplicateIDError) Is(target error) bool { return target == ErrDuplicateID }

// IsValidation reports whether err was raised before any state was touched
// because the request itself was invalid.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidLocation,
		ErrInvalidName,
		ErrDimensionMismatch,
		ErrDuplicateID,
		ErrInvalidArgument,
		ErrEmptyBatch,
		ErrInvalidDimension,
		ErrInvalidMetric,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

var rootErrors = []error{
	ErrInvalidLocation, ErrInvalidName, ErrAlreadyExists, ErrNotFound,
	ErrCorruptIndex, ErrCorruptMetadata, ErrDimensionMismatch, ErrDuplicateID,
	ErrReconstructionUnsupported, ErrIO, ErrInvalidArgument, ErrEmptyBatch,
	ErrInvalidDimension, ErrInvalidMetric,
}

// translateError maps errors of the sub-packages onto the public taxonomy.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	for _, target := range rootErrors {
		if errors.Is(err, target) {
			return err
		}
	}

	// Location resolution.
	switch {
	case errors.Is(err, catalog.ErrInvalidLocation):
		return fmt.Errorf("%w: %w", ErrInvalidLocation, err)
	case errors.Is(err, catalog.ErrInvalidName):
		return fmt.Errorf("%w: %w", ErrInvalidName, err)
	case errors.Is(err, catalog.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	// Dimension and argument normalization.
	var dm *flat.DimensionMismatchError
	if errors.As(err, &dm) {
		return &DimensionMismatchError{Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}
	switch {
	case errors.Is(err, flat.ErrInvalidDimension):
		return fmt.Errorf("%w: %w", ErrInvalidDimension, err)
	case errors.Is(err, flat.ErrInvalidK), errors.Is(err, flat.ErrLengthMismatch):
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	case errors.Is(err, distance.ErrUnsupportedMetric):
		return fmt.Errorf("%w: %w", ErrInvalidMetric, err)
	case errors.Is(err, metadata.ErrUnsupportedValue):
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	// Persisted state.
	switch {
	case errors.Is(err, flat.ErrCorruptIndex):
		return fmt.Errorf("%w: %w", ErrCorruptIndex, err)
	case errors.Is(err, metadata.ErrCorruptMetadata):
		return fmt.Errorf("%w: %w", ErrCorruptMetadata, err)
	}

	var pe *fs.PathError
	if errors.As(err, &pe) {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return err
}
