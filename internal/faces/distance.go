package faces

import (
	"fmt"
	"math"
)

// DefaultTolerance is the distance at or below which two faces are
// considered the same person. Calibrated against the Euclidean distance the
// embedding service uses; 0.6 matches the upstream face model default.
const DefaultTolerance = 0.6

// Tolerance bounds accepted from configuration.
const (
	MinTolerance = 0.3
	MaxTolerance = 0.8
)

// ErrDimensionMismatch is returned when two embeddings with different
// dimensionality are compared. Surfacing this beats silently producing a
// nonsense distance.
type ErrDimensionMismatch struct {
	Want int
	Got  int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: %d vs %d", e.Want, e.Got)
}

// EuclideanDistance computes the Euclidean distance between two embeddings.
// Returns an error when the dimensions differ or either embedding is empty.
func EuclideanDistance(a, b []float32) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, fmt.Errorf("empty embedding (len %d vs %d)", len(a), len(b))
	}
	if len(a) != len(b) {
		return 0, &ErrDimensionMismatch{Want: len(a), Got: len(b)}
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// ValidTolerance reports whether t is inside the supported range.
func ValidTolerance(t float64) bool {
	return t >= MinTolerance && t <= MaxTolerance
}
