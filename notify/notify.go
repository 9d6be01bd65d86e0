package notify

import (
	"context"
	"time"
)

// Completion describes a finished pipeline invocation.
type Completion struct {
	RunID     string `json:"run_id"`
	SessionID string `json:"session_id"`
	Topic     string `json:"topic"`
	// Status is one of ok, incomplete, failed.
	Status string `json:"status"`
	// Stages maps each stage that produced output to the length of its text.
	Stages     map[string]int `json:"stages"`
	Missing    []string       `json:"missing,omitempty"`
	Error      string         `json:"error,omitempty"`
	DurationMS int64          `json:"duration_ms"`
	FinishedAt time.Time      `json:"finished_at"`
}

// Publisher delivers completion notices. Publishing is best-effort: callers
// log failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, c Completion) error
	Close() error
}

// NoopPublisher discards every notice.
type NoopPublisher struct{}

// Publish implements Publisher.
func (NoopPublisher) Publish(context.Context, Completion) error { return nil }

// Close implements Publisher.
func (NoopPublisher) Close() error { return nil }
