package core

import (
	"context"
	"maps"
	"sync"

	"github.com/hupe1980/writermesh/logging"
)

// ToolContext is the constrained surface handed to tool implementations.
// State writes are staged locally and travel with the function response
// event of the call, so tools running in parallel never share a buffer.
type ToolContext struct {
	runCtx         *RunContext
	functionCallID string

	mu         sync.Mutex
	stateDelta map[string]any

	*runLogger
}

// NewToolContext binds a tool invocation to its parent RunContext.
func NewToolContext(runCtx *RunContext, functionCallID string) *ToolContext {
	return &ToolContext{
		runCtx:         runCtx,
		functionCallID: functionCallID,
		stateDelta:     map[string]any{},
		runLogger:      runCtx.runLogger,
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.runCtx.Context }

// SessionKey returns the key of the session the tool runs in.
func (tc *ToolContext) SessionKey() SessionKey { return tc.runCtx.Key }

// RunID returns the run ID associated with the tool invocation.
func (tc *ToolContext) RunID() string { return tc.runCtx.RunID }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.runLogger.Logger() }

// FunctionCallID returns the function call ID associated with the tool invocation.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// AgentName returns the name of the agent that requested the call.
func (tc *ToolContext) AgentName() string { return tc.runCtx.Agent.Name }

// GetState returns a value staged by this call or, failing that, the value
// visible to the parent RunContext.
func (tc *ToolContext) GetState(k string) (any, bool) {
	tc.mu.Lock()
	v, ok := tc.stateDelta[k]
	tc.mu.Unlock()

	if ok {
		return v, true
	}

	return tc.runCtx.GetState(k)
}

// SetState stages a state mutation for the function response event.
func (tc *ToolContext) SetState(k string, v any) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	tc.stateDelta[k] = v
}

// ApplyActions merges the staged state mutations into ev.
func (tc *ToolContext) ApplyActions(ev *Event) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if len(tc.stateDelta) == 0 {
		return
	}

	if ev.Actions.StateDelta == nil {
		ev.Actions.StateDelta = map[string]any{}
	}

	maps.Copy(ev.Actions.StateDelta, tc.stateDelta)
}
