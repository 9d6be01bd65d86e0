package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/writermesh/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the normalized model input produced by flows.
type Request struct {
	Instructions string           `json:"instructions"` // System prompt, already rendered
	Contents     []core.Content   `json:"contents"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"`
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "gemini", "anthropic", "mock"
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by flows to drive generation.
//
// Generate returns a response channel and an error channel. Both are closed
// when generation ends. At most one error is delivered.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// ResultText renders a function response for a model: the error when the
// call failed, strings verbatim and anything else as JSON.
func ResultText(fr core.FunctionResponse) string {
	if fr.Error != "" {
		return "error: " + fr.Error
	}

	if s, ok := fr.Response.(string); ok {
		return s
	}

	data, err := json.Marshal(fr.Response)
	if err != nil {
		return fmt.Sprintf("%v", fr.Response)
	}

	return string(data)
}

// Func adapts a plain function returning the full completion text into a
// non-streaming Model.
type Func func(ctx context.Context, req Request) (string, error)

// Generate implements Model.
func (f Func) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		text, err := f(ctx, req)
		if err != nil {
			errCh <- err
			return
		}

		respCh <- Response{
			Content:      core.NewTextContent("assistant", text),
			FinishReason: "stop",
		}
	}()

	return respCh, errCh
}

// Info implements Model.
func (f Func) Info() Info { return Info{Name: "func", Provider: "func"} }

// MockModel answers without a network. Unless a reply was pinned for the
// prompt, it quotes the last user message and the opening sentence of the
// instructions (only the latter when there are no contents), so a dry pipeline run shows each stage's role. With
// streaming enabled the reply is emitted word by word before the final
// response. It is safe for concurrent use.
type MockModel struct {
	info Info

	mu     sync.RWMutex
	pinned map[string]string
}

// NewMockModel returns a MockModel reporting name as its model name.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info:   Info{Name: name, Provider: "mock", SupportsTools: false},
		pinned: map[string]string{},
	}
}

// AddResponse pins the reply for a user prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pinned[prompt] = response
}

func (m *MockModel) reply(req Request) string {
	if len(req.Contents) == 0 {
		return "Mock response to: " + openingSentence(req.Instructions)
	}

	prompt := req.Contents[len(req.Contents)-1].Text()

	m.mu.RLock()
	r, ok := m.pinned[prompt]
	m.mu.RUnlock()

	if ok {
		return r
	}

	role := openingSentence(req.Instructions)
	if role == "" {
		return "Mock response to: " + prompt
	}

	return fmt.Sprintf("Mock response to: %s\n\n(%s)", prompt, role)
}

func openingSentence(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, ".\n"); i >= 0 {
		s = s[:i]
	}

	if r := []rune(s); len(r) > 120 {
		s = string(r[:120])
	}

	return s
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		if len(req.Contents) == 0 && strings.TrimSpace(req.Instructions) == "" {
			errCh <- errors.New("mock model: request has no contents or instructions")
			return
		}

		full := m.reply(req)

		send := func(r Response) bool {
			if err := ctx.Err(); err != nil {
				errCh <- err
				return false
			}

			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return false
			case respCh <- r:
				return true
			}
		}

		if req.Stream {
			for _, word := range strings.SplitAfter(full, " ") {
				if !send(Response{Partial: true, Content: core.NewTextContent("assistant", word)}) {
					return
				}
			}
		}

		send(Response{Content: core.NewTextContent("assistant", full), FinishReason: "stop"})
	}()

	return respCh, errCh
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
