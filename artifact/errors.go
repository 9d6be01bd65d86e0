package artifact

import "errors"

var (
	// ErrNotFound is returned when no artifact exists for a run / name pair.
	ErrNotFound = errors.New("artifact not found")

	// ErrInvalidName is returned for names that would escape the run scope.
	ErrInvalidName = errors.New("invalid artifact name")
)
