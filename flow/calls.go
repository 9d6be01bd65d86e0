package flow

import (
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/writermesh/core"
	"github.com/hupe1980/writermesh/tool"
)

// CallExecutor answers the function calls of one model turn. It returns one
// function response event per call, in call order, and never panics.
type CallExecutor interface {
	Execute(runCtx *core.RunContext, author string, tools map[string]tool.Tool, calls []core.FunctionCall) []core.Event
}

// NewCallExecutor returns an executor running up to maxParallel calls at
// once. A value below one runs the whole batch concurrently.
func NewCallExecutor(maxParallel int) CallExecutor {
	return &callExecutor{maxParallel: maxParallel}
}

type callExecutor struct {
	maxParallel int
}

func (e *callExecutor) Execute(runCtx *core.RunContext, author string, tools map[string]tool.Tool, calls []core.FunctionCall) []core.Event {
	switch len(calls) {
	case 0:
		return nil
	case 1:
		return []core.Event{answer(runCtx, author, tools, calls[0])}
	}

	start := time.Now()
	responses := make([]core.Event, len(calls))

	var g errgroup.Group
	if e.maxParallel > 0 {
		g.SetLimit(e.maxParallel)
	}

	for i, fc := range calls {
		g.Go(func() error {
			responses[i] = answer(runCtx, author, tools, fc)
			return nil
		})
	}

	_ = g.Wait()

	runCtx.LogDebug("flow.calls.batch", "count", len(calls), "duration_ms", time.Since(start).Milliseconds())

	return responses
}

// answer runs one call. Unknown tools, undecodable arguments, panics and a
// cancelled run all become the error of the response.
func answer(runCtx *core.RunContext, author string, tools map[string]tool.Tool, fc core.FunctionCall) core.Event {
	toolCtx := core.NewToolContext(runCtx, fc.ID)
	start := time.Now()

	result, err := invoke(runCtx, toolCtx, tools, fc)

	runCtx.LogInfo("flow.call.done", "tool", fc.Name, "duration_ms", time.Since(start).Milliseconds(), "failed", err != nil)

	ev := core.NewFunctionResponseEvent(runCtx.RunID, author, fc.ID, fc.Name, result, err)
	toolCtx.ApplyActions(&ev)

	return ev
}

func invoke(runCtx *core.RunContext, toolCtx *core.ToolContext, tools map[string]tool.Tool, fc core.FunctionCall) (result any, err error) {
	if err := runCtx.Err(); err != nil {
		return nil, err
	}

	t, ok := tools[fc.Name]
	if !ok {
		return nil, fmt.Errorf("tool %s not found", fc.Name)
	}

	args := map[string]any{}
	if fc.Arguments != "" {
		if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil {
			return nil, fmt.Errorf("invalid arguments for %s: %w", fc.Name, err)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			runCtx.LogError("flow.call.panic", "tool", fc.Name, "recover", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("tool %s panicked: %v", fc.Name, r)
		}
	}()

	return t.Call(toolCtx, args)
}
