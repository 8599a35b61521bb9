package distance

import (
	"errors"
	"fmt"
	"slices"

	"github.com/hupe1980/chunkcanvas/internal/math32"
)

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	return math32.Dot(a, b)
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float32) float32 {
	return math32.SquaredL2(a, b)
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float32 {
	return math32.Sqrt(math32.Dot(v, v))
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v has zero L2 norm; v is then left untouched.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	norm2 := math32.Dot(v, v)
	if norm2 == 0 {
		return false
	}
	inv := 1 / math32.Sqrt(norm2)
	math32.ScaleInPlace(v, inv)
	return true
}

// NormalizeL2Copy returns a normalized copy of src.
// A zero vector is returned as an unmodified copy.
func NormalizeL2Copy(src []float32) []float32 {
	dst := slices.Clone(src)
	NormalizeL2InPlace(dst)
	return dst
}

// Metric represents the similarity function an index is built for.
type Metric string

const (
	// MetricCosine ranks by inner product over L2-normalized vectors.
	MetricCosine Metric = "cosine"
	// MetricL2 ranks by squared Euclidean distance.
	MetricL2 Metric = "l2"
	// MetricIP ranks by raw inner product.
	MetricIP Metric = "ip"
)

// ErrUnsupportedMetric is returned for metric names other than cosine, l2 and ip.
var ErrUnsupportedMetric = errors.New("unsupported metric")

// DefaultMetric is used when no metric is configured or a stored one is unknown.
const DefaultMetric = MetricCosine

func (m Metric) String() string { return string(m) }

// Valid reports whether m is one of the supported metrics.
func (m Metric) Valid() bool {
	switch m {
	case MetricCosine, MetricL2, MetricIP:
		return true
	default:
		return false
	}
}

// Normalizes reports whether vectors must be L2-normalized before storage.
func (m Metric) Normalizes() bool { return m == MetricCosine }

// HigherIsBetter reports whether larger scores rank first.
func (m Metric) HigherIsBetter() bool { return m != MetricL2 }

// ParseMetric parses a metric name. The empty string yields DefaultMetric.
func ParseMetric(s string) (Metric, error) {
	if s == "" {
		return DefaultMetric, nil
	}
	m := Metric(s)
	if !m.Valid() {
		return "", fmt.Errorf("%w %q (want cosine, l2 or ip)", ErrUnsupportedMetric, s)
	}
	return m, nil
}

// MetricOrDefault returns the metric named by s, or DefaultMetric if s is not valid.
func MetricOrDefault(s string) Metric {
	if m := Metric(s); m.Valid() {
		return m
	}
	return DefaultMetric
}

// Func is a function type for distance calculation.
type Func func(a, b []float32) float32

// Provider returns the distance function for the given metric.
// Squared L2 backs MetricL2; inner product backs both MetricCosine and MetricIP.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricL2:
		return SquaredL2, nil
	case MetricCosine, MetricIP:
		return Dot, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedMetric, string(m))
	}
}
