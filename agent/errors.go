package agent

import "errors"

var (
	// ErrUnboundInputKey is returned when a stage reads a key no earlier stage produces.
	ErrUnboundInputKey = errors.New("input key not produced by an earlier stage")

	// ErrDuplicateOutputKey is returned when two stages publish the same output key.
	ErrDuplicateOutputKey = errors.New("output key produced by more than one stage")
)
