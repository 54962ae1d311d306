// Package distance provides the point-to-point metrics used for radius
// comparison.
//
// # Supported Metrics
//
//   - MetricL2: Euclidean distance, evaluated and reported in squared form
//   - MetricL1: Manhattan distance (sum of absolute differences)
//   - MetricLinf: Chebyshev distance (largest absolute difference)
//
// # Usage
//
//	m, _ := distance.ParseMetric("Linf")
//	fn, _ := distance.Provider[float32](m)
//	if fn(a, b) <= m.Threshold(radius) { ... }
package distance
