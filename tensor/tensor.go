package tensor

import (
	"errors"
	"fmt"
)

// ErrShape is returned when data and shape disagree or a shape check fails.
var ErrShape = errors.New("tensor: shape mismatch")

// Float is the element type of coordinate and distance buffers.
type Float interface {
	float32 | float64
}

// Index is the element type of neighbor index buffers.
type Index interface {
	int32 | int64
}

// Number is any supported element type.
type Number interface {
	Float | Index
}

// Tensor is a dense row-major buffer with a placement label.
// A Tensor never copies the slice it was created from.
type Tensor[T Number] struct {
	data   []T
	shape  []int
	device Device
}

// New wraps data with the given shape on the host.
func New[T Number](data []T, shape ...int) (*Tensor[T], error) {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return nil, fmt.Errorf("%w: negative dimension in %v", ErrShape, shape)
		}
		n *= d
	}
	if len(shape) == 0 {
		n = len(data)
		shape = []int{n}
	}
	if n != len(data) {
		return nil, fmt.Errorf("%w: shape %v holds %d elements, data has %d", ErrShape, shape, n, len(data))
	}
	return &Tensor[T]{data: data, shape: append([]int(nil), shape...), device: CPU}, nil
}

// Vector wraps data as a 1-D host tensor.
func Vector[T Number](data []T) *Tensor[T] {
	return &Tensor[T]{data: data, shape: []int{len(data)}, device: CPU}
}

// Points wraps a flat xyz buffer as an [n, 3] host tensor.
func Points[T Float](xyz []T) (*Tensor[T], error) {
	if len(xyz)%3 != 0 {
		return nil, fmt.Errorf("%w: point buffer length %d is not a multiple of 3", ErrShape, len(xyz))
	}
	return &Tensor[T]{data: xyz, shape: []int{len(xyz) / 3, 3}, device: CPU}, nil
}

// FromPoints copies a slice of points into a new [n, 3] host tensor.
func FromPoints[T Float](pts [][3]T) *Tensor[T] {
	data := make([]T, 0, len(pts)*3)
	for _, p := range pts {
		data = append(data, p[0], p[1], p[2])
	}
	return &Tensor[T]{data: data, shape: []int{len(pts), 3}, device: CPU}
}

// Data returns the underlying slice.
func (t *Tensor[T]) Data() []T { return t.data }

// Shape returns a copy of the shape.
func (t *Tensor[T]) Shape() []int { return append([]int(nil), t.shape...) }

// Rank returns the number of dimensions.
func (t *Tensor[T]) Rank() int { return len(t.shape) }

// Dim returns the size of dimension i.
func (t *Tensor[T]) Dim(i int) int { return t.shape[i] }

// Len returns the size of the leading dimension.
func (t *Tensor[T]) Len() int {
	if len(t.shape) == 0 {
		return 0
	}
	return t.shape[0]
}

// Device returns the placement label.
func (t *Tensor[T]) Device() Device { return t.device }

// To returns a view of t labeled with device d. The data is shared.
func (t *Tensor[T]) To(d Device) *Tensor[T] {
	return &Tensor[T]{data: t.data, shape: t.shape, device: d}
}

// Aliases reports whether t and o view the same backing buffer.
func (t *Tensor[T]) Aliases(o *Tensor[T]) bool {
	if t == nil || o == nil {
		return false
	}
	if t == o {
		return true
	}
	if len(t.data) == 0 || len(o.data) == 0 {
		return false
	}
	return &t.data[0] == &o.data[0] && len(t.data) == len(o.data)
}

// CheckShape verifies t against dims; a negative entry matches any size.
func (t *Tensor[T]) CheckShape(name string, dims ...int) error {
	if len(t.shape) != len(dims) {
		return fmt.Errorf("%w: %s has rank %d, want %d", ErrShape, name, len(t.shape), len(dims))
	}
	for i, d := range dims {
		if d >= 0 && t.shape[i] != d {
			return fmt.Errorf("%w: %s has shape %v, want dimension %d = %d", ErrShape, name, t.shape, i, d)
		}
	}
	return nil
}

func (t *Tensor[T]) String() string {
	return fmt.Sprintf("Tensor%v@%s", t.shape, t.device)
}
