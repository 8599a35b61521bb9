// Package distance provides vector distance calculations and the metric names
// understood by chunkcanvas indexes.
//
// # Supported Metrics
//
//   - MetricCosine: inner product over L2-normalized vectors (default)
//   - MetricL2: squared Euclidean distance
//   - MetricIP: raw inner product
//
// Cosine is not a separate distance function: vectors are normalized once at
// write time and searched with Dot.
//
// # Usage
//
//	dist := distance.SquaredL2(a, b)
//	sim := distance.Dot(a, b)
//	distance.NormalizeL2InPlace(vec)
package distance
