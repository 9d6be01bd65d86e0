// Package flow drives a single stage's model turn loop.
//
// A flow assembles the model request through pluggable RequestProcessors,
// calls the model, executes any requested tools and repeats until the model
// produces a final response. Events are handed to the caller on a channel;
// after every non-partial event the flow waits for the runner's resume
// signal so the next turn observes persisted state.
package flow

import (
	"github.com/hupe1980/writermesh/core"
	"github.com/hupe1980/writermesh/model"
	"github.com/hupe1980/writermesh/tool"
)

// Flow defines the interface for stage execution flows.
type Flow interface {
	// Execute runs the flow. The event channel is closed when the flow ends;
	// the error channel then carries at most one error.
	Execute(runCtx *core.RunContext) (<-chan core.Event, <-chan error)
}

// FlowAgent is the view of a stage that flows need.
type FlowAgent interface {
	// GetName returns the stage identity used as event author.
	GetName() string

	// GetLLM returns the language model instance.
	GetLLM() model.Model

	// ResolveInstructions returns the unrendered instruction template.
	ResolveInstructions(runCtx *core.RunContext) (string, error)

	// InputKeys returns the session state keys the instruction reads.
	InputKeys() []string

	// GetTools returns the registered tools for function calling.
	GetTools() map[string]tool.Tool

	// IsStreamingEnabled returns whether partial responses are requested.
	IsStreamingEnabled() bool

	// GetOutputKey returns the session state key for the final text.
	GetOutputKey() string
}

// RequestProcessor processes the request before sending it to the LLM.
type RequestProcessor interface {
	// Name returns the processor's identifier.
	Name() string
	// ProcessRequest modifies the request before LLM execution.
	ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error
}
