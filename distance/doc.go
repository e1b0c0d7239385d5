// Package distance provides the vector kernels used to rank candidate codes.
//
// Kernels are backed by github.com/viterin/vek, which dispatches to AVX2
// implementations on amd64 and falls back to pure Go elsewhere.
//
// # Supported Metrics
//
//   - MetricEuclidean: Euclidean (L2) distance, the ranking metric for cover detection
//   - MetricCosine: cosine distance (1 - cosine similarity)
//
// # Usage
//
//	d := distance.Euclidean(a, b)
//	fn, _ := distance.Provider(distance.MetricEuclidean)
package distance
