package core

import "errors"

var (
	// ErrSessionNotFound is returned when no session exists for a key.
	ErrSessionNotFound = errors.New("session not found")

	// ErrEmptyTopic is returned when a pipeline is invoked without a topic.
	ErrEmptyTopic = errors.New("topic cannot be empty")

	// ErrModelLimitExceeded is returned when a run exhausts its model call budget.
	ErrModelLimitExceeded = errors.New("exceeded max model calls")
)
