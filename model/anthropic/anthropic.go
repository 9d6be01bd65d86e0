// Package anthropic adapts the Anthropic Messages API to model.Model.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hupe1980/writermesh/core"
	"github.com/hupe1980/writermesh/model"
)

// Options configures the adapter.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	// APIKey and MaxRetries only apply to clients built by NewModel.
	APIKey     string
	MaxRetries int
}

// Model implements model.Model on a Messages client.
type Model struct {
	client *anthropic.Client
	opts   Options
}

// NewModel builds a client from Options. An unset key falls back to the
// ANTHROPIC_API_KEY environment variable read by the SDK.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	clientOpts := []option.RequestOption{option.WithMaxRetries(opts.MaxRetries)}
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Model{client: &client, opts: opts}
}

// NewModelFromClient wraps an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
		MaxRetries:  2,
	}
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: string(m.opts.Model), Provider: "anthropic", SupportsTools: true}
}

// Generate implements model.Model. Streaming requests emit text deltas as
// partial responses before the complete message.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		var (
			msg *anthropic.Message
			err error
		)

		if req.Stream {
			msg, err = m.stream(ctx, m.params(req), out)
		} else {
			msg, err = m.client.Messages.New(ctx, m.params(req))
		}

		if err != nil {
			errCh <- fmt.Errorf("anthropic: %w", err)
			return
		}

		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case out <- toResponse(msg):
		}
	}()

	return out, errCh
}

func (m *Model) stream(ctx context.Context, params anthropic.MessageNewParams, out chan<- model.Response) (*anthropic.Message, error) {
	stream := m.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	msg := anthropic.Message{}

	for stream.Next() {
		event := stream.Current()
		if err := msg.Accumulate(event); err != nil {
			return nil, err
		}

		delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}

		text, ok := delta.Delta.AsAny().(anthropic.TextDelta)
		if !ok || text.Text == "" {
			continue
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case out <- model.Response{ID: msg.ID, Partial: true, Content: core.NewTextContent("assistant", text.Text)}:
		}
	}

	if err := stream.Err(); err != nil {
		return nil, err
	}

	return &msg, nil
}

func toResponse(msg *anthropic.Message) model.Response {
	var parts []core.Part

	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			if text := block.AsText().Text; text != "" {
				parts = append(parts, core.TextPart{Text: text})
			}
		case "tool_use":
			use := block.AsToolUse()

			args := "{}"
			if data, err := json.Marshal(use.Input); err == nil && len(data) > 0 && string(data) != "null" {
				args = string(data)
			}

			parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: use.ID, Name: use.Name, Arguments: args}})
		}
	}

	finish := "stop"
	if msg.StopReason != "" {
		finish = string(msg.StopReason)
	}

	return model.Response{
		ID:           msg.ID,
		Content:      core.Content{Role: "assistant", Parts: parts},
		FinishReason: finish,
		Usage: &model.TokenUsage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}
}

func (m *Model) params(req model.Request) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:       m.opts.Model,
		Messages:    messages(req.Contents),
		MaxTokens:   m.opts.MaxTokens,
		Temperature: anthropic.Float(m.opts.Temperature),
	}

	if req.Instructions != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.Instructions}}
	}

	for _, def := range req.Tools {
		params.Tools = append(params.Tools, toolParam(def))
	}

	return params
}

// messages maps contents onto alternating turns. The results answering an
// assistant's tool calls follow it as one user message.
func messages(contents []core.Content) []anthropic.MessageParam {
	results := map[string]core.FunctionResponse{}

	for _, c := range contents {
		if c.Role != "tool" {
			continue
		}

		for _, p := range c.Parts {
			if fr, ok := p.(core.FunctionResponsePart); ok && fr.FunctionResponse.ID != "" {
				results[fr.FunctionResponse.ID] = fr.FunctionResponse
			}
		}
	}

	var msgs []anthropic.MessageParam

	for _, c := range contents {
		switch c.Role {
		case "tool":
		case "assistant":
			blocks, answers := assistantBlocks(c.Parts, results)
			if len(blocks) > 0 {
				msgs = append(msgs, anthropic.NewAssistantMessage(blocks...))
			}

			if len(answers) > 0 {
				msgs = append(msgs, anthropic.NewUserMessage(answers...))
			}
		default:
			if text := c.Text(); text != "" {
				msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))
			}
		}
	}

	return msgs
}

func assistantBlocks(parts []core.Part, results map[string]core.FunctionResponse) (blocks, answers []anthropic.ContentBlockParamUnion) {
	for _, p := range parts {
		switch part := p.(type) {
		case core.TextPart:
			if part.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(part.Text))
			}
		case core.FunctionCallPart:
			fc := part.FunctionCall

			var input any = map[string]any{}
			if fc.Arguments != "" {
				if err := json.Unmarshal([]byte(fc.Arguments), &input); err != nil {
					input = fc.Arguments
				}
			}

			blocks = append(blocks, anthropic.NewToolUseBlock(fc.ID, input, fc.Name))

			if fr, ok := results[fc.ID]; ok {
				answers = append(answers, anthropic.NewToolResultBlock(fc.ID, model.ResultText(fr), fr.Error != ""))
			}
		}
	}

	return blocks, answers
}

func toolParam(def model.ToolDefinition) anthropic.ToolUnionParam {
	schema := anthropic.ToolInputSchemaParam{}

	if props, ok := def.Function.Parameters["properties"]; ok {
		schema.Properties = props
	}

	switch req := def.Function.Parameters["required"].(type) {
	case []string:
		schema.Required = req
	case []any:
		for _, r := range req {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}

	tp := anthropic.ToolUnionParamOfTool(schema, def.Function.Name)
	if def.Function.Description != "" {
		tp.OfTool.Description = anthropic.String(def.Function.Description)
	}

	return tp
}
