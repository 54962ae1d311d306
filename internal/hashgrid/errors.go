package hashgrid

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidRadius is returned for a non-positive or non-finite radius.
	ErrInvalidRadius = errors.New("radius must be positive and finite")

	// ErrInvalidSizeFactor is returned when the size factor is outside (0, 1].
	ErrInvalidSizeFactor = errors.New("hash table size factor must be in (0, 1]")

	// ErrInvalidTableSize is returned for a non-positive table size cap.
	ErrInvalidTableSize = errors.New("max hash table size must be positive")

	// ErrTableTooSmall is returned when the cap cannot give every batch item
	// at least one bucket.
	ErrTableTooSmall = errors.New("max hash table size is smaller than the batch size")

	// ErrTableMismatch is returned when a table does not fit the points or
	// row splits it is used with.
	ErrTableMismatch = errors.New("hash table does not match inputs")
)

// CoordinateError reports a point that cannot be placed on the grid.
type CoordinateError struct {
	Name  string
	Index int64
	Value float64
}

// ErrNonFinite is wrapped by CoordinateError for NaN or infinite values.
var ErrNonFinite = errors.New("coordinate is not finite")

// ErrCoordinateRange is wrapped by CoordinateError when a coordinate is too
// large relative to the radius to produce a cell index.
var ErrCoordinateRange = errors.New("coordinate out of grid range")

func (e *CoordinateError) Error() string {
	return fmt.Sprintf("%s[%d]: %v: %s", e.Name, e.Index, e.Value, e.Unwrap())
}

func (e *CoordinateError) Unwrap() error {
	if math.IsNaN(e.Value) || math.IsInf(e.Value, 0) {
		return ErrNonFinite
	}
	return ErrCoordinateRange
}
