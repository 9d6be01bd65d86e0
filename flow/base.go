package flow

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/writermesh/core"
	"github.com/hupe1980/writermesh/model"
	"github.com/hupe1980/writermesh/tool"
)

// ErrNoFinalResponse is returned when the model closes its stream without a
// non-partial response.
var ErrNoFinalResponse = errors.New("model returned no final response")

// BaseFlow is a single-stage flow implementing the
// request -> LLM -> (optional tool loop) cycle with pluggable processors.
type BaseFlow struct {
	agent             FlowAgent
	requestProcessors []RequestProcessor
	executor          CallExecutor
}

// NewBaseFlow creates a new flow without processors.
func NewBaseFlow(agent FlowAgent) *BaseFlow {
	return &BaseFlow{
		agent:             agent,
		requestProcessors: []RequestProcessor{},
		executor:          NewCallExecutor(0),
	}
}

// AddRequestProcessor appends a request processor; order of registration defines execution order.
func (f *BaseFlow) AddRequestProcessor(processor RequestProcessor) {
	f.requestProcessors = append(f.requestProcessors, processor)
}

// SetCallExecutor replaces the executor used for tool calls.
func (f *BaseFlow) SetCallExecutor(executor CallExecutor) {
	f.executor = executor
}

// Execute launches the turn loop asynchronously.
func (f *BaseFlow) Execute(runCtx *core.RunContext) (<-chan core.Event, <-chan error) {
	eventCh := make(chan core.Event, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(eventCh)
		defer close(errCh)

		for turn := 1; ; turn++ {
			done, err := f.runOnce(runCtx, eventCh, turn)
			if err != nil {
				errCh <- err
				return
			}

			if done {
				return
			}
		}
	}()

	return eventCh, errCh
}

// runOnce performs one model turn including any tool executions. It reports
// whether the stage produced its final response.
func (f *BaseFlow) runOnce(runCtx *core.RunContext, eventCh chan<- core.Event, turn int) (bool, error) {
	name := f.agent.GetName()

	if err := runCtx.RefreshSession(); err != nil {
		return false, fmt.Errorf("failed to refresh session: %w", err)
	}

	req := &model.Request{Stream: f.agent.IsStreamingEnabled()}

	for _, processor := range f.requestProcessors {
		if err := processor.ProcessRequest(runCtx, req, f.agent); err != nil {
			return false, fmt.Errorf("request processor %s failed: %w", processor.Name(), err)
		}
	}

	req.Tools = toolDefinitions(f.agent.GetTools())

	modelCalls, callsLeft := 0, -1

	if runCtx.Limiter != nil {
		if err := runCtx.Limiter.Increment(); err != nil {
			return false, err
		}

		modelCalls, callsLeft = runCtx.Limiter.Count(), runCtx.Limiter.Remaining()
	}

	runCtx.LogDebug("flow.model.call", "turn", turn, "tools", len(req.Tools), "stream", req.Stream, "model_calls", modelCalls, "calls_left", callsLeft)

	respCh, errCh := f.agent.GetLLM().Generate(runCtx.Context, *req)

	final, err := f.collect(runCtx, respCh, errCh, eventCh)
	if err != nil {
		return false, err
	}

	ev := core.NewEvent(runCtx.RunID, name)
	content := final.Content
	ev.Content = &content

	calls := ev.GetFunctionCalls()
	if len(calls) == 0 {
		if key := f.agent.GetOutputKey(); key != "" {
			if text := ev.Text(); strings.TrimSpace(text) != "" {
				runCtx.SetState(key, text)
			}
		}
	}

	if err := f.emit(runCtx, eventCh, ev); err != nil {
		return false, err
	}

	if len(calls) == 0 {
		runCtx.LogDebug("flow.turn.final", "turn", turn, "length", len(ev.Text()))
		return true, nil
	}

	for _, respEv := range f.executor.Execute(runCtx, name, f.agent.GetTools(), calls) {
		if err := f.emit(runCtx, eventCh, respEv); err != nil {
			return false, err
		}
	}

	return false, nil
}

// collect drains one model call. Partial responses are forwarded as partial
// events; the last non-partial response is returned.
func (f *BaseFlow) collect(
	runCtx *core.RunContext,
	respCh <-chan model.Response,
	errCh <-chan error,
	eventCh chan<- core.Event,
) (*model.Response, error) {
	var final *model.Response

	for respCh != nil || errCh != nil {
		select {
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}

			if !resp.Partial {
				r := resp
				final = &r

				continue
			}

			ev := core.NewEvent(runCtx.RunID, f.agent.GetName())
			content := resp.Content
			ev.Content = &content
			ev.Partial = true

			if err := f.emit(runCtx, eventCh, ev); err != nil {
				return nil, err
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}

			if err != nil {
				return nil, fmt.Errorf("model call failed: %w", err)
			}
		case <-runCtx.Done():
			return nil, runCtx.Err()
		}
	}

	if final == nil {
		return nil, ErrNoFinalResponse
	}

	return final, nil
}

// emit hands ev to the caller and, for non-partial events, waits until the
// runner has persisted it. Staged state rides on the next non-partial event.
func (f *BaseFlow) emit(runCtx *core.RunContext, eventCh chan<- core.Event, ev core.Event) error {
	runCtx.FlushState(&ev)

	select {
	case <-runCtx.Done():
		return runCtx.Err()
	case eventCh <- ev:
	}

	if ev.IsPartial() {
		return nil
	}

	return runCtx.WaitForResume()
}

func toolDefinitions(tools map[string]tool.Tool) []model.ToolDefinition {
	if len(tools) == 0 {
		return nil
	}

	defs := make([]model.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}

	sort.Slice(defs, func(i, j int) bool { return defs[i].Function.Name < defs[j].Function.Name })

	return defs
}
