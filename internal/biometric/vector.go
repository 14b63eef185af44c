// Package biometric holds the face descriptor type and the primitives shared by
// capture, verification and persistence.
package biometric

import (
	"fmt"
	"math"
)

// DescriptorSize is the fixed length of a face descriptor produced by the detector.
const DescriptorSize = 128

// InfiniteDistance is returned by Distance for descriptors that cannot be compared.
var InfiniteDistance = math.Inf(1)

// Vector is a face descriptor.
type Vector []float64

// EnrollmentSet is the ordered list of descriptors captured for one voter.
type EnrollmentSet []Vector

// Sanitize returns a copy of v with every NaN or infinite element replaced by 0.
func Sanitize(v Vector) Vector {
	if v == nil {
		return nil
	}
	out := make(Vector, len(v))
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		out[i] = x
	}
	return out
}

// SanitizeSet sanitizes every descriptor of the set.
func SanitizeSet(set EnrollmentSet) EnrollmentSet {
	if set == nil {
		return nil
	}
	out := make(EnrollmentSet, len(set))
	for i, v := range set {
		out[i] = Sanitize(v)
	}
	return out
}

// Distance computes the Euclidean distance between two descriptors.
// Non-finite elements count as 0. Descriptors of different length are
// maximally dissimilar and yield InfiniteDistance.
func Distance(a, b Vector) float64 {
	if len(a) != len(b) {
		return InfiniteDistance
	}
	var sum float64
	for i := range a {
		d := finite(a[i]) - finite(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func finite(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}

// Validate checks that v has the descriptor length the detector produces.
func Validate(v Vector) error {
	if len(v) != DescriptorSize {
		return NewError(KindLengthMismatch,
			fmt.Sprintf("descriptor has %d elements, expected %d", len(v), DescriptorSize), nil)
	}
	return nil
}

// FromFloat32 converts a detector or database descriptor into a sanitized Vector.
func FromFloat32(v []float32) Vector {
	if v == nil {
		return nil
	}
	out := make(Vector, len(v))
	for i, x := range v {
		out[i] = finite(float64(x))
	}
	return out
}

// Float32 returns the descriptor as float32 values, the precision pgvector stores.
func (v Vector) Float32() []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(finite(x))
	}
	return out
}
