// Package vector holds the embedding type and the similarity math used to
// compare embeddings.
package vector

import (
	"fmt"
	"math"
)

// Embedding is a unit-length feature vector produced by an image encoder.
//
// Values are only produced by Normalize and are never mutated afterwards.
type Embedding []float32

// Dim returns the dimensionality of e.
func (e Embedding) Dim() int {
	return len(e)
}

// Norm returns the Euclidean norm of v, accumulated in float64.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize returns a new vector scaled to unit L2 norm.
//
// Empty, zero-norm and non-finite inputs are rejected.
func Normalize(v []float32) (Embedding, error) {
	if len(v) == 0 {
		return nil, ErrEmpty
	}
	for i, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("component %d: %w", i, ErrNonFinite)
		}
	}
	n := Norm(v)
	if n == 0 {
		return nil, ErrZeroNorm
	}
	if math.IsInf(n, 0) {
		return nil, ErrNonFinite
	}
	out := make(Embedding, len(v))
	for i := range v {
		out[i] = float32(float64(v[i]) / n)
	}
	return out, nil
}

// Dot computes the dot product of two vectors of equal length.
//
// For two Embeddings this is their cosine similarity.
func Dot(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(a), len(b))
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot, nil
}

// Cosine computes cosine similarity between two arbitrary vectors of equal length.
// It returns 0 when either vector has zero norm.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(a), len(b))
	}
	var dot, na, nb float64
	for i := 0; i < len(a); i++ {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	den := math.Sqrt(na) * math.Sqrt(nb)
	if den == 0 {
		return 0, nil
	}
	return dot / den, nil
}

// Similarity returns the cosine similarity of two embeddings, clamped to
// [-1, 1] to absorb float32 rounding.
func Similarity(a, b Embedding) (float64, error) {
	s, err := Dot(a, b)
	if err != nil {
		return 0, err
	}
	return math.Max(-1, math.Min(1, s)), nil
}
