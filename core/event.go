package core

import (
	"time"

	"github.com/google/uuid"
)

// EventActions encodes side effects attached to an Event. The runner applies
// them before the event is persisted.
type EventActions struct {
	// StateDelta is merged into the session state.
	StateDelta map[string]any `json:"state_delta,omitempty"`
}

// Event is the record emitted by agents and consumed by the runner and the
// result aggregator. After emission it should be treated as immutable.
type Event struct {
	ID        string       `json:"id"`
	RunID     string       `json:"run_id"`
	Author    string       `json:"author"`
	Actions   EventActions `json:"actions"`
	Timestamp time.Time    `json:"timestamp"`
	Content   *Content     `json:"content,omitempty"`
	Partial   bool         `json:"partial,omitempty"`
}

// NewEvent stamps a fresh event for author within run runID.
func NewEvent(runID, author string) Event {
	return Event{
		ID:        NewID(),
		RunID:     runID,
		Author:    author,
		Timestamp: time.Now().UTC(),
	}
}

// NewMessageEvent creates an assistant message event with a single text part.
func NewMessageEvent(runID, author, message string) Event {
	e := NewEvent(runID, author)
	c := NewTextContent("assistant", message)
	e.Content = &c

	return e
}

// NewUserContentEvent creates a user-authored event with arbitrary Content.
func NewUserContentEvent(runID string, content Content) Event {
	e := NewEvent(runID, "user")
	e.Content = &content

	return e
}

// NewFunctionResponseEvent answers tool call id. A non-nil err replaces the
// result.
func NewFunctionResponseEvent(runID, author, id, functionName string, result any, err error) Event {
	resp := FunctionResponse{ID: id, Name: functionName, Response: result}
	if err != nil {
		resp.Response = nil
		resp.Error = err.Error()
	}

	e := NewEvent(runID, author)
	e.Content = &Content{Role: "tool", Parts: []Part{FunctionResponsePart{FunctionResponse: resp}}}

	return e
}

// NewID generates a new unique identifier.
func NewID() string { return uuid.NewString() }

// IsPartial reports whether this event is a streaming fragment.
func (e Event) IsPartial() bool { return e.Partial }

// Text returns the concatenated text of the event content.
func (e Event) Text() string {
	if e.Content == nil {
		return ""
	}

	return e.Content.Text()
}

// GetFunctionCalls returns the tool calls requested by the event, in order.
func (e Event) GetFunctionCalls() []FunctionCall {
	return collectParts(e.Content, func(p FunctionCallPart) FunctionCall { return p.FunctionCall })
}

// GetFunctionResponses returns the tool results carried by the event, in order.
func (e Event) GetFunctionResponses() []FunctionResponse {
	return collectParts(e.Content, func(p FunctionResponsePart) FunctionResponse { return p.FunctionResponse })
}

func collectParts[P Part, T any](c *Content, fn func(P) T) []T {
	if c == nil {
		return nil
	}

	var out []T

	for _, part := range c.Parts {
		if p, ok := part.(P); ok {
			out = append(out, fn(p))
		}
	}

	return out
}

// IsFinalResponse reports whether the event completes an agent turn: not
// partial, no pending tool calls and not itself a tool response.
func (e Event) IsFinalResponse() bool {
	if e.Partial {
		return false
	}

	if e.Content == nil {
		return true
	}

	for _, p := range e.Content.Parts {
		switch p.(type) {
		case FunctionCallPart, FunctionResponsePart:
			return false
		}
	}

	return true
}
