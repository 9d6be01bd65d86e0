package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/writermesh/core"
	"github.com/hupe1980/writermesh/flow"
	"github.com/hupe1980/writermesh/model"
	"github.com/hupe1980/writermesh/tool"
)

const tracerName = "github.com/hupe1980/writermesh/agent"

// StageAgentOptions configures a StageAgent.
type StageAgentOptions struct {
	Instruction Instruction
	Description string
	// InputKeys defaults to the state keys a static Instruction references.
	InputKeys       []string
	OutputKey       string
	Tools           []tool.Tool
	EnableStreaming bool
	// Timeout bounds the whole stage including tool calls. Zero disables it.
	Timeout time.Duration
	// MaxParallelTools bounds concurrent tool calls per model turn.
	MaxParallelTools int
	Tracer           trace.Tracer
}

// StageAgent is a single model-backed pipeline stage.
//
// Each Run renders the instruction against session state, calls the model
// (looping through tool calls) and emits exactly one final event. When the
// final text is non-empty the event carries {OutputKey: text} as state delta.
type StageAgent struct {
	BaseAgent
	llm             model.Model
	instruction     Instruction
	inputKeys       []string
	outputKey       string
	tools           map[string]tool.Tool
	enableStreaming bool
	timeout         time.Duration
	maxParallel     int
	tracer          trace.Tracer
}

// NewStageAgent creates a stage backed by llm.
func NewStageAgent(name string, llm model.Model, optFns ...func(o *StageAgentOptions)) *StageAgent {
	opts := StageAgentOptions{
		Instruction: NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	tools := make(map[string]tool.Tool, len(opts.Tools))
	for _, t := range opts.Tools {
		tools[t.Name()] = t
	}

	inputKeys := opts.InputKeys
	if inputKeys == nil {
		inputKeys = opts.Instruction.Fields()
	}

	base := NewBaseAgent(name)
	base.SetDescription(opts.Description)

	return &StageAgent{
		BaseAgent:       base,
		llm:             llm,
		instruction:     opts.Instruction,
		inputKeys:       append([]string(nil), inputKeys...),
		outputKey:       opts.OutputKey,
		tools:           tools,
		enableStreaming: opts.EnableStreaming,
		timeout:         opts.Timeout,
		maxParallel:     opts.MaxParallelTools,
		tracer:          tracer,
	}
}

// InputKeys implements core.KeyedAgent.
func (a *StageAgent) InputKeys() []string { return append([]string(nil), a.inputKeys...) }

// OutputKey implements core.KeyedAgent.
func (a *StageAgent) OutputKey() string { return a.outputKey }

// GetName implements flow.FlowAgent.
func (a *StageAgent) GetName() string { return a.Name() }

// GetLLM implements flow.FlowAgent.
func (a *StageAgent) GetLLM() model.Model { return a.llm }

// GetOutputKey implements flow.FlowAgent.
func (a *StageAgent) GetOutputKey() string { return a.outputKey }

// IsStreamingEnabled implements flow.FlowAgent.
func (a *StageAgent) IsStreamingEnabled() bool { return a.enableStreaming }

// GetTools returns a copy of the registered tools.
func (a *StageAgent) GetTools() map[string]tool.Tool {
	tools := make(map[string]tool.Tool, len(a.tools))
	for name, t := range a.tools {
		tools[name] = t
	}

	return tools
}

// ResolveInstructions implements flow.FlowAgent.
func (a *StageAgent) ResolveInstructions(runCtx *core.RunContext) (string, error) {
	return a.instruction.Resolve(runCtx)
}

// Run implements core.Agent.
func (a *StageAgent) Run(runCtx *core.RunContext) error {
	ctx, span := a.tracer.Start(runCtx.Context, "writermesh.stage.run", trace.WithAttributes(
		attribute.String("stage.name", a.Name()),
		attribute.String("run.id", runCtx.RunID),
		attribute.String("model.provider", a.llm.Info().Provider),
	))
	defer span.End()

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)

		defer cancel()
	}

	stageCtx := runCtx.WithContext(ctx, core.AgentInfo{Name: a.Name(), Type: "stage"})
	start := time.Now()

	stageCtx.LogInfo("stage.run.start", "timeout", a.timeout.String())

	err := a.forward(stageCtx, flow.NewSingleAgentFlow(a, func(o *flow.SingleAgentFlowOptions) {
		o.MaxParallelTools = a.maxParallel
	}))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && runCtx.Err() == nil {
			err = fmt.Errorf("stage %s timed out after %s: %w", a.Name(), a.timeout, err)
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		stageCtx.LogError("stage.run.error", "error", err.Error(), "duration_ms", time.Since(start).Milliseconds())

		return err
	}

	stageCtx.LogInfo("stage.run.complete", "duration_ms", time.Since(start).Milliseconds())

	return nil
}

// forward relays flow events to the runner until the flow ends. State the
// stage staged on stageCtx rides on the next non-partial event.
func (a *StageAgent) forward(stageCtx *core.RunContext, fl flow.Flow) error {
	events, errs := fl.Execute(stageCtx)

	for ev := range events {
		if err := stageCtx.EmitEvent(ev); err != nil {
			return err
		}

		stageCtx.LogDebug(
			"stage.event.forward",
			"event_id", ev.ID,
			"partial", ev.IsPartial(),
			"fn_calls", len(ev.GetFunctionCalls()),
		)
	}

	return <-errs
}
