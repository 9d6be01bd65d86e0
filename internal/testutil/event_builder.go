package testutil

import (
	"github.com/hupe1980/writermesh/core"
)

// EventBuilder assembles events for tests:
//
//	ev := NewEventBuilder().Author("Writer").Run("run-1").AssistantText("draft").Build()
//
// Content is created on the first part added. Its role follows the last
// text or response part and defaults to "assistant".
type EventBuilder struct {
	ev core.Event
}

// NewEventBuilder starts an event authored by "agent".
func NewEventBuilder() *EventBuilder {
	return &EventBuilder{ev: core.NewEvent("", "agent")}
}

func (b *EventBuilder) Author(a string) *EventBuilder { b.ev.Author = a; return b }

func (b *EventBuilder) Run(id string) *EventBuilder { b.ev.RunID = id; return b }

func (b *EventBuilder) Partial() *EventBuilder { b.ev.Partial = true; return b }

func (b *EventBuilder) UserText(t string) *EventBuilder {
	return b.add("user", core.TextPart{Text: t})
}

func (b *EventBuilder) AssistantText(t string) *EventBuilder {
	return b.add("assistant", core.TextPart{Text: t})
}

func (b *EventBuilder) FunctionCall(id, name, args string) *EventBuilder {
	return b.add("", core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: id, Name: name, Arguments: args}})
}

// FunctionResponse adds a tool result. A non-nil err becomes its error text.
func (b *EventBuilder) FunctionResponse(id, name string, result any, err error) *EventBuilder {
	resp := core.FunctionResponse{ID: id, Name: name, Response: result}
	if err != nil {
		resp.Error = err.Error()
	}

	return b.add("tool", core.FunctionResponsePart{FunctionResponse: resp})
}

// StateDelta stages key=value on the event's actions.
func (b *EventBuilder) StateDelta(key string, value any) *EventBuilder {
	if b.ev.Actions.StateDelta == nil {
		b.ev.Actions.StateDelta = map[string]any{}
	}

	b.ev.Actions.StateDelta[key] = value

	return b
}

func (b *EventBuilder) add(role string, p core.Part) *EventBuilder {
	if b.ev.Content == nil {
		b.ev.Content = &core.Content{Role: "assistant"}
	}

	if role != "" {
		b.ev.Content.Role = role
	}

	b.ev.Content.Parts = append(b.ev.Content.Parts, p)

	return b
}

// Build returns a copy of the event; the builder may be reused.
func (b *EventBuilder) Build() core.Event {
	ev := b.ev
	if ev.Content != nil {
		c := *ev.Content
		c.Parts = append([]core.Part(nil), c.Parts...)
		ev.Content = &c
	}

	return ev
}
