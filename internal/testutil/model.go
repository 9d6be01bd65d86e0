package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/writermesh/core"
	"github.com/hupe1980/writermesh/model"
)

// ErrScriptExhausted is returned by ScriptedModel once every turn was served.
var ErrScriptExhausted = errors.New("scripted model: no turns left")

// Turn is one scripted model reply.
type Turn struct {
	Text  string
	Calls []core.FunctionCall
	Err   error
	// Block waits for ctx cancellation instead of replying.
	Block bool
}

// ScriptedModel replays a fixed sequence of turns and records every request.
// It is safe for concurrent use.
type ScriptedModel struct {
	mu       sync.Mutex
	turns    []Turn
	requests []model.Request
}

// NewScriptedModel returns a model replying with turns in order.
func NewScriptedModel(turns ...Turn) *ScriptedModel {
	return &ScriptedModel{turns: turns}
}

// Generate implements model.Model.
func (m *ScriptedModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.requests = append(m.requests, req)

	var (
		turn Turn
		ok   bool
	)
	if len(m.turns) > 0 {
		turn, m.turns, ok = m.turns[0], m.turns[1:], true
	}
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)

		switch {
		case !ok:
			errCh <- ErrScriptExhausted
		case turn.Block:
			<-ctx.Done()
			errCh <- ctx.Err()
		case turn.Err != nil:
			errCh <- turn.Err
		default:
			parts := []core.Part{}
			if turn.Text != "" {
				parts = append(parts, core.TextPart{Text: turn.Text})
			}
			for _, fc := range turn.Calls {
				parts = append(parts, core.FunctionCallPart{FunctionCall: fc})
			}
			respCh <- model.Response{Content: core.Content{Role: "assistant", Parts: parts}, FinishReason: "stop"}
		}
	}()

	return respCh, errCh
}

// Info implements model.Model.
func (m *ScriptedModel) Info() model.Info {
	return model.Info{Name: "scripted", Provider: "mock", SupportsTools: true}
}

// Requests returns a copy of the requests received so far.
func (m *ScriptedModel) Requests() []model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]model.Request(nil), m.requests...)
}

// Calls returns the number of requests received so far.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.requests)
}
