package vector

import "errors"

var (
	// ErrLengthMismatch indicates two vectors have different dimensions.
	ErrLengthMismatch = errors.New("vector length mismatch")

	// ErrZeroNorm indicates a vector with zero Euclidean norm, which cannot be normalized.
	ErrZeroNorm = errors.New("vector has zero norm")

	// ErrNonFinite indicates a vector containing NaN or Inf.
	ErrNonFinite = errors.New("vector contains non-finite values")

	// ErrEmpty indicates a vector with no components.
	ErrEmpty = errors.New("vector is empty")
)
