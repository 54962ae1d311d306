package distance

import (
	"fmt"

	"github.com/hupe1980/pointgrid/tensor"
)

// SquaredL2 calculates the squared Euclidean distance between two 3D points.
// Assumes both slices hold at least three coordinates (caller's responsibility).
func SquaredL2[T tensor.Float](a, b []T) T {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	dz := a[2] - b[2]
	return dx*dx + dy*dy + dz*dz
}

// L1 calculates the Manhattan distance between two 3D points.
func L1[T tensor.Float](a, b []T) T {
	return abs(a[0]-b[0]) + abs(a[1]-b[1]) + abs(a[2]-b[2])
}

// Linf calculates the Chebyshev distance between two 3D points.
func Linf[T tensor.Float](a, b []T) T {
	return max(abs(a[0]-b[0]), abs(a[1]-b[1]), abs(a[2]-b[2]))
}

func abs[T tensor.Float](v T) T {
	if v < 0 {
		return -v
	}
	return v
}

// Metric represents the distance metric used for radius comparison.
type Metric int

const (
	MetricL2 Metric = iota
	MetricL1
	MetricLinf
)

func (m Metric) String() string {
	switch m {
	case MetricL2:
		return "L2"
	case MetricL1:
		return "L1"
	case MetricLinf:
		return "Linf"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// Valid reports whether m is one of the supported metrics.
func (m Metric) Valid() bool {
	return m == MetricL2 || m == MetricL1 || m == MetricLinf
}

// Threshold returns the value a distance is compared against for radius r.
// L2 distances are squared, so the threshold is r².
func (m Metric) Threshold(r float64) float64 {
	if m == MetricL2 {
		return r * r
	}
	return r
}

// ErrUnsupportedMetric indicates an unknown metric value or name.
type ErrUnsupportedMetric struct {
	Name string
}

func (e *ErrUnsupportedMetric) Error() string {
	return fmt.Sprintf("metric must be one of (L1, L2, Linf) but got %s", e.Name)
}

// ParseMetric parses the metric names "L1", "L2" and "Linf".
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "L1":
		return MetricL1, nil
	case "L2":
		return MetricL2, nil
	case "Linf":
		return MetricLinf, nil
	default:
		return 0, &ErrUnsupportedMetric{Name: s}
	}
}

// Func is a function type for distance calculation.
type Func[T tensor.Float] func(a, b []T) T

// Provider returns the distance function for the given metric.
func Provider[T tensor.Float](m Metric) (Func[T], error) {
	switch m {
	case MetricL2:
		return SquaredL2[T], nil
	case MetricL1:
		return L1[T], nil
	case MetricLinf:
		return Linf[T], nil
	default:
		return nil, &ErrUnsupportedMetric{Name: m.String()}
	}
}
