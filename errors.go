package pointgrid

import (
	"errors"
	"fmt"

	"github.com/hupe1980/pointgrid/distance"
	"github.com/hupe1980/pointgrid/internal/hashgrid"
	"github.com/hupe1980/pointgrid/internal/neighbors"
	"github.com/hupe1980/pointgrid/internal/ragged"
	"github.com/hupe1980/pointgrid/internal/snapshot"
	"github.com/hupe1980/pointgrid/resource"
	"github.com/hupe1980/pointgrid/tensor"
)

// Error taxonomy. Every error returned by BuildSpatialHashTable,
// FixedRadiusSearch and Searcher matches exactly one of these with errors.Is.
var (
	// ErrInvalidArgument reports a bad radius, size factor, table cap,
	// malformed or mismatched row splits, an unsupported metric, an index
	// width too small for the point count, a wrong shape or a non-finite
	// coordinate.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrResourceLimitExceeded reports a table cap too small for the batch
	// or a memory budget that cannot cover the call.
	ErrResourceLimitExceeded = errors.New("resource limit exceeded")

	// ErrDeviceMismatch reports inputs on different devices, or on a device
	// this package cannot execute on.
	ErrDeviceMismatch = errors.New("device mismatch")

	// ErrPreconditionViolation reports a supplied hash table that does not
	// fit the points, row splits or radius it is used with.
	ErrPreconditionViolation = errors.New("precondition violation")
)

// ErrInvalidRowSplits describes rejected row splits.
//
// It matches ErrInvalidArgument; the underlying error can be accessed via errors.Unwrap.
type ErrInvalidRowSplits struct {
	Name   string
	Reason string
	cause  error
}

func (e *ErrInvalidRowSplits) Error() string {
	return fmt.Sprintf("invalid row splits %s: %s", e.Name, e.Reason)
}

func (e *ErrInvalidRowSplits) Unwrap() []error { return []error{ErrInvalidArgument, e.cause} }

// ErrUnsupportedMetric indicates a metric other than L1, L2 and Linf.
type ErrUnsupportedMetric struct {
	Metric string
	cause  error
}

func (e *ErrUnsupportedMetric) Error() string {
	return fmt.Sprintf("unsupported metric: %s", e.Metric)
}

func (e *ErrUnsupportedMetric) Unwrap() []error { return []error{ErrInvalidArgument, e.cause} }

// ErrIndexWidth indicates that the requested index type cannot address
// every point.
type ErrIndexWidth struct {
	Width  tensor.IndexWidth
	Points int
	cause  error
}

func (e *ErrIndexWidth) Error() string {
	return fmt.Sprintf("index width %d cannot address %d points", int(e.Width), e.Points)
}

func (e *ErrIndexWidth) Unwrap() []error { return []error{ErrInvalidArgument, e.cause} }

// ErrTableMismatch indicates a hash table that does not belong to the
// inputs it is searched with.
type ErrTableMismatch struct {
	cause error
}

func (e *ErrTableMismatch) Error() string {
	return e.cause.Error()
}

func (e *ErrTableMismatch) Unwrap() []error { return []error{ErrPreconditionViolation, e.cause} }

// errUnsupportedDevice is wrapped with ErrDeviceMismatch when all inputs
// share a device the host executor cannot reach.
var errUnsupportedDevice = errors.New("only host (cpu) tensors can be processed")

func translateError(err error) error {
	if err == nil {
		return nil
	}
	// Already classified.
	for _, sentinel := range []error{ErrInvalidArgument, ErrResourceLimitExceeded, ErrDeviceMismatch, ErrPreconditionViolation} {
		if errors.Is(err, sentinel) {
			return err
		}
	}

	var se *ragged.SplitsError
	if errors.As(err, &se) {
		return &ErrInvalidRowSplits{Name: se.Name, Reason: se.Reason, cause: err}
	}
	var um *distance.ErrUnsupportedMetric
	if errors.As(err, &um) {
		return &ErrUnsupportedMetric{Metric: um.Name, cause: err}
	}
	var iw *neighbors.IndexWidthError
	if errors.As(err, &iw) {
		return &ErrIndexWidth{Width: iw.Width, Points: iw.Points, cause: err}
	}
	if errors.Is(err, hashgrid.ErrTableMismatch) {
		return &ErrTableMismatch{cause: err}
	}

	switch {
	case errors.Is(err, ragged.ErrMalformed),
		errors.Is(err, ragged.ErrBatchMismatch),
		errors.Is(err, hashgrid.ErrInvalidRadius),
		errors.Is(err, hashgrid.ErrInvalidSizeFactor),
		errors.Is(err, hashgrid.ErrInvalidTableSize),
		errors.Is(err, hashgrid.ErrNonFinite),
		errors.Is(err, hashgrid.ErrCoordinateRange),
		errors.Is(err, tensor.ErrShape),
		errors.Is(err, snapshot.ErrCorrupt),
		errors.Is(err, snapshot.ErrVersion):
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	case errors.Is(err, hashgrid.ErrTableTooSmall),
		errors.Is(err, resource.ErrMemoryLimitExceeded):
		return fmt.Errorf("%w: %w", ErrResourceLimitExceeded, err)
	case errors.Is(err, errUnsupportedDevice):
		return fmt.Errorf("%w: %w", ErrDeviceMismatch, err)
	}

	return err
}
