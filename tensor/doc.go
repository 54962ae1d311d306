// Package tensor provides the typed numeric buffers exchanged at the
// pointgrid boundary.
//
// A Tensor is a flat, row-major slice with a shape and a placement label
// (Device). Points and queries are [n, 3] float tensors, row splits and hash
// table arrays are 1-D int64 tensors. Only host memory executes; the Device
// label exists so that callers mixing placements are rejected instead of
// silently copied.
package tensor
