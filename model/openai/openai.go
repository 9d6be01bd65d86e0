// Package openai adapts the OpenAI Chat Completions API to model.Model. The
// same adapter serves Gemini through Google's OpenAI-compatible endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/writermesh/core"
	"github.com/hupe1980/writermesh/model"
)

// GeminiBaseURL is Google's OpenAI-compatible Chat Completions endpoint.
const GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// ErrNoChoices is returned when a completion carries no choices.
var ErrNoChoices = errors.New("openai: completion has no choices")

// Options configures the adapter.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64

	// APIKey, BaseURL and MaxRetries only apply to clients built by NewModel
	// or NewGeminiModel.
	APIKey     string
	BaseURL    string
	MaxRetries int

	// Provider labels the backend in Info.
	Provider string
}

// Model implements model.Model on a Chat Completions client.
type Model struct {
	client *openai.Client
	opts   Options
}

// NewModel builds a client from Options. Unset credentials fall back to the
// OPENAI_API_KEY environment variable read by the SDK.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	clientOpts := []option.RequestOption{option.WithMaxRetries(opts.MaxRetries)}
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := openai.NewClient(clientOpts...)

	return &Model{client: &client, opts: opts}
}

// NewGeminiModel talks to Gemini with a Google AI Studio key.
func NewGeminiModel(apiKey string, optFns ...func(o *Options)) *Model {
	gemini := func(o *Options) {
		o.Model = "gemini-2.5-pro"
		o.APIKey = apiKey
		o.BaseURL = GeminiBaseURL
		o.Provider = "gemini"
	}

	return NewModel(append([]func(o *Options){gemini}, optFns...)...)
}

// NewModelFromClient wraps an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
		MaxRetries:          2,
		Provider:            "openai",
	}
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: m.opts.Provider, SupportsTools: true}
}

// Generate implements model.Model. Streaming requests emit text deltas as
// partial responses; both modes end with one complete response.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := m.params(req)

		var err error
		if req.Stream {
			err = m.stream(ctx, params, out)
		} else {
			err = m.complete(ctx, params, out)
		}

		if err != nil {
			errCh <- err
		}
	}()

	return out, errCh
}

func (m *Model) complete(ctx context.Context, params openai.ChatCompletionNewParams, out chan<- model.Response) error {
	completion, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return fmt.Errorf("openai: %w", err)
	}

	resp, err := toResponse(completion)
	if err != nil {
		return err
	}

	return send(ctx, out, resp)
}

func (m *Model) stream(ctx context.Context, params openai.ChatCompletionNewParams, out chan<- model.Response) error {
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}

	stream := m.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}

	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}

		partial := model.Response{ID: chunk.ID, Partial: true, Content: core.NewTextContent("assistant", chunk.Choices[0].Delta.Content)}
		if err := send(ctx, out, partial); err != nil {
			return err
		}
	}

	if err := stream.Err(); err != nil {
		return fmt.Errorf("openai stream: %w", err)
	}

	resp, err := toResponse(&acc.ChatCompletion)
	if err != nil {
		return err
	}

	return send(ctx, out, resp)
}

func send(ctx context.Context, out chan<- model.Response, r model.Response) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case out <- r:
		return nil
	}
}

func toResponse(c *openai.ChatCompletion) (model.Response, error) {
	if len(c.Choices) == 0 {
		return model.Response{}, ErrNoChoices
	}

	choice := c.Choices[0]

	parts := make([]core.Part, 0, len(choice.Message.ToolCalls)+1)
	if choice.Message.Content != "" {
		parts = append(parts, core.TextPart{Text: choice.Message.Content})
	}

	for _, tc := range choice.Message.ToolCalls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}})
	}

	return model.Response{
		ID:           c.ID,
		Content:      core.Content{Role: "assistant", Parts: parts},
		FinishReason: choice.FinishReason,
		Usage: &model.TokenUsage{
			PromptTokens:     int(c.Usage.PromptTokens),
			CompletionTokens: int(c.Usage.CompletionTokens),
			TotalTokens:      int(c.Usage.TotalTokens),
		},
	}, nil
}

func (m *Model) params(req model.Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:            messages(req),
		Model:               m.opts.Model,
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
	}

	for _, def := range req.Tools {
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        def.Function.Name,
				Description: openai.String(def.Function.Description),
				Parameters:  def.Function.Parameters,
			},
		})
	}

	return params
}

// messages maps the request onto chat messages. Every tool result follows
// the assistant message that requested it; results without a matching call
// are appended at the end.
func messages(req model.Request) []openai.ChatCompletionMessageParamUnion {
	var msgs []openai.ChatCompletionMessageParamUnion

	if req.Instructions != "" {
		msgs = append(msgs, openai.SystemMessage(req.Instructions))
	}

	results, order := toolResults(req.Contents)

	for _, c := range req.Contents {
		switch c.Role {
		case "tool":
			continue
		case "assistant":
			calls := toolCalls(c)
			if len(calls) == 0 {
				msgs = append(msgs, openai.AssistantMessage(c.Text()))
				continue
			}

			assistant := &openai.ChatCompletionAssistantMessageParam{ToolCalls: calls}
			if text := c.Text(); text != "" {
				assistant.Content.OfString = openai.String(text)
			}

			msgs = append(msgs, openai.ChatCompletionMessageParamUnion{OfAssistant: assistant})

			for _, call := range calls {
				if text, ok := results[call.ID]; ok {
					msgs = append(msgs, openai.ToolMessage(text, call.ID))
					delete(results, call.ID)
				}
			}
		default:
			if text := c.Text(); text != "" {
				msgs = append(msgs, openai.UserMessage(text))
			}
		}
	}

	for _, id := range order {
		if text, ok := results[id]; ok {
			msgs = append(msgs, openai.ToolMessage(text, id))
		}
	}

	return msgs
}

func toolCalls(c core.Content) []openai.ChatCompletionMessageToolCallParam {
	var calls []openai.ChatCompletionMessageToolCallParam

	for _, p := range c.Parts {
		if fc, ok := p.(core.FunctionCallPart); ok && fc.FunctionCall.ID != "" {
			calls = append(calls, openai.ChatCompletionMessageToolCallParam{
				ID: fc.FunctionCall.ID,
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      fc.FunctionCall.Name,
					Arguments: fc.FunctionCall.Arguments,
				},
			})
		}
	}

	return calls
}

// toolResults renders function responses by call id, first one wins.
func toolResults(contents []core.Content) (map[string]string, []string) {
	results := map[string]string{}

	var order []string

	for _, c := range contents {
		if c.Role != "tool" {
			continue
		}

		for _, p := range c.Parts {
			fr, ok := p.(core.FunctionResponsePart)
			if !ok || fr.FunctionResponse.ID == "" {
				continue
			}

			if _, seen := results[fr.FunctionResponse.ID]; seen {
				continue
			}

			results[fr.FunctionResponse.ID] = model.ResultText(fr.FunctionResponse)
			order = append(order, fr.FunctionResponse.ID)
		}
	}

	return results, order
}
