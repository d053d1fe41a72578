package arucogo

import "github.com/pkg/errors"

var (
	// ErrNotFound is returned when a candidate region does not hold a marker.
	// It is the normal outcome for most quadrilaterals in a frame.
	ErrNotFound = errors.New("marker not found")

	// ErrShapeMismatch is returned when codewords of different sizes are compared.
	ErrShapeMismatch = errors.New("codeword shape mismatch")

	// ErrDictionaryExhausted is returned when a dictionary with the requested
	// size and separation cannot be built.
	ErrDictionaryExhausted = errors.New("dictionary exhausted")

	// ErrPoseSolve is returned when a pose cannot be recovered from a marker's
	// corners.
	ErrPoseSolve = errors.New("pose solve failure")

	// ErrInvalidParameter is returned for out-of-range configuration values.
	ErrInvalidParameter = errors.New("invalid parameter")
)
