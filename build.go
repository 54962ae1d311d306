package pointgrid

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/pointgrid/internal/hashgrid"
	"github.com/hupe1980/pointgrid/internal/ragged"
	"github.com/hupe1980/pointgrid/tensor"
)

// BuildSpatialHashTable indexes points, a [n, 3] tensor partitioned into
// batch items by pointsRowSplits, on a uniform grid of cell size radius.
//
// Each batch item gets its own bucket range sized from sizeFactor times its
// point count, capped by the number of cells its points span. When the sum
// exceeds maxHashTableSize every item is scaled down proportionally but
// keeps at least one bucket.
//
// Errors match ErrInvalidArgument for a bad radius, size factor, cap, row
// splits, shape or coordinate; ErrResourceLimitExceeded when the cap is
// smaller than the batch size or the call does not fit the memory budget;
// ErrDeviceMismatch when the inputs are not on one host device.
func BuildSpatialHashTable[T tensor.Float](
	ctx context.Context,
	points *tensor.Tensor[T],
	radius float64,
	pointsRowSplits *tensor.Tensor[int64],
	sizeFactor float64,
	maxHashTableSize int64,
	optFns ...Option,
) (tbl *SpatialHashTable, err error) {
	o := applyOptions(optFns)

	start := time.Now()
	var numPoints, batches int
	defer func() {
		var buckets int64
		id := ""
		if tbl != nil {
			buckets = tbl.NumBuckets()
			id = tbl.ID()
		}
		elapsed := time.Since(start)
		o.metricsCollector.RecordBuild(numPoints, buckets, elapsed, err)
		o.logger.WithRadius(radius).LogBuild(ctx, BuildEvent{
			Table:    id,
			Points:   numPoints,
			Batches:  batches,
			Buckets:  buckets,
			Duration: elapsed,
		}, err)
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if points == nil || pointsRowSplits == nil {
		return nil, fmt.Errorf("%w: points and points_row_splits must not be nil", ErrInvalidArgument)
	}
	dev, err := checkDevice(points, pointsRowSplits)
	if err != nil {
		return nil, err
	}
	if err := points.CheckShape("points", -1, 3); err != nil {
		return nil, translateError(err)
	}
	if err := pointsRowSplits.CheckShape("points_row_splits", -1); err != nil {
		return nil, translateError(err)
	}
	numPoints = points.Len()

	cfg := hashgrid.Config{Radius: radius, SizeFactor: sizeFactor, MaxTableSize: maxHashTableSize}
	if err := cfg.Validate(); err != nil {
		return nil, translateError(err)
	}
	ix, err := ragged.NewWithLookup("points_row_splits", pointsRowSplits.Data(), numPoints)
	if err != nil {
		return nil, translateError(err)
	}
	batches = ix.Batches()

	res := o.resources.Reservation()
	defer res.Release()
	if err := res.Add(buildFootprint(numPoints, batches, sizeFactor, maxHashTableSize)); err != nil {
		return nil, translateError(err)
	}
	if err := o.resources.AcquireCall(ctx); err != nil {
		return nil, err
	}
	defer o.resources.ReleaseCall()

	t, err := hashgrid.Build(points.Data(), ix, cfg, o.assembler())
	if err != nil {
		return nil, translateError(err)
	}

	return &SpatialHashTable{
		id:         uuid.New(),
		tbl:        t,
		sizeFactor: sizeFactor,
		maxSize:    maxHashTableSize,
		device:     dev,
		createdAt:  time.Now().UTC(),
	}, nil
}

// buildFootprint estimates the bytes a build allocates: the index and the
// per-point batch lookup, the bucket offsets at their upper bound, and the
// batch splits.
func buildFootprint(numPoints, batches int, sizeFactor float64, maxSize int64) int64 {
	n, b := int64(numPoints), int64(batches)
	buckets := min(maxSize, b+int64(sizeFactor*float64(n)))
	return 8*n + 4*n + 16*(buckets+1) + 8*(b+1)
}

// checkDevice returns the common device of ts. Inputs on different devices,
// or all on a device other than the host, fail with ErrDeviceMismatch.
func checkDevice(ts ...tensor.Placed) (tensor.Device, error) {
	dev, ok := tensor.SameDevice(ts...)
	if !ok {
		devices := make([]string, 0, len(ts))
		for _, t := range ts {
			if t != nil {
				devices = append(devices, t.Device().String())
			}
		}
		return dev, fmt.Errorf("%w: inputs are on %v", ErrDeviceMismatch, devices)
	}
	if !dev.IsHost() {
		return dev, translateError(fmt.Errorf("%w: got %s", errUnsupportedDevice, dev))
	}
	return dev, nil
}
