package tensor

import (
	"fmt"
	"math"
)

// IndexWidth is the bit width of neighbor index buffers.
type IndexWidth int

const (
	Width32 IndexWidth = 32
	Width64 IndexWidth = 64
)

// Validate rejects widths other than 32 and 64.
func (w IndexWidth) Validate() error {
	if w != Width32 && w != Width64 {
		return fmt.Errorf("unsupported index width %d (want 32 or 64)", int(w))
	}
	return nil
}

// Max returns the largest index representable at this width.
func (w IndexWidth) Max() int64 {
	if w == Width32 {
		return math.MaxInt32
	}
	return math.MaxInt64
}

// WidthOf returns the width of index type I.
func WidthOf[I Index]() IndexWidth {
	var zero I
	switch any(zero).(type) {
	case int32:
		return Width32
	default:
		return Width64
	}
}
