package embeddings

import (
	"errors"
	"io/fs"

	"github.com/kamusis/catmatch/internal/vector"
)

var (
	// ErrUndecodable indicates a file that is not a decodable image.
	ErrUndecodable = errors.New("not a decodable image")

	// ErrModelNotReady indicates the backend is reachable but the model cannot serve requests.
	ErrModelNotReady = errors.New("model is not ready")
)

// IsInputError reports whether err was caused by the input file itself
// (missing, unreadable, undecodable, degenerate features) rather than by the
// model backend.
func IsInputError(err error) bool {
	if err == nil {
		return false
	}
	var pe *fs.PathError
	return errors.As(err, &pe) ||
		errors.Is(err, ErrUndecodable) ||
		errors.Is(err, vector.ErrZeroNorm) ||
		errors.Is(err, vector.ErrNonFinite)
}
