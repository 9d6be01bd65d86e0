package flow

import (
	"fmt"

	"github.com/hupe1980/writermesh/core"
	internalutil "github.com/hupe1980/writermesh/internal/util"
	"github.com/hupe1980/writermesh/model"
)

// InstructionsProcessor renders the stage instruction against session state.
//
// When one of the stage's declared input keys is absent from state the
// instruction is sent unrendered; upstream stages that produced nothing are
// reported by the aggregator, not here.
type InstructionsProcessor struct{}

// NewInstructionsProcessor creates a new instructions processor.
func NewInstructionsProcessor() *InstructionsProcessor { return &InstructionsProcessor{} }

// Name returns the processor's identifier.
func (p *InstructionsProcessor) Name() string { return "instructions" }

// ProcessRequest sets req.Instructions.
func (p *InstructionsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	instructions, err := agent.ResolveInstructions(runCtx)
	if err != nil {
		return fmt.Errorf("failed to resolve instruction: %w", err)
	}

	for _, key := range agent.InputKeys() {
		if _, ok := runCtx.GetState(key); !ok {
			runCtx.LogWarn("flow.instruction.input_missing", "key", key)

			req.Instructions = instructions

			return nil
		}
	}

	rendered, err := internalutil.RenderTemplate(instructions, runCtx.StateSnapshot())
	if err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}

	runCtx.LogDebug("flow.instruction.resolved", "length", len(rendered))

	req.Instructions = rendered

	return nil
}

// ContentsProcessor assembles the conversation sent to the model: the user
// topic followed by this stage's own tool exchanges in the current run. Text
// produced by other stages reaches a stage only through its instruction.
type ContentsProcessor struct{}

// NewContentsProcessor creates a new contents processor.
func NewContentsProcessor() *ContentsProcessor { return &ContentsProcessor{} }

// Name returns the processor's identifier.
func (p *ContentsProcessor) Name() string { return "contents" }

// ProcessRequest sets req.Contents.
func (p *ContentsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	var contents []core.Content

	if len(runCtx.UserContent.Parts) > 0 {
		contents = append(contents, runCtx.UserContent)
	}

	if runCtx.Session != nil {
		toolTurns := runCtx.Session.EventsWhere(func(ev core.Event) bool {
			return ev.Author == agent.GetName() && ev.RunID == runCtx.RunID && ev.Content != nil && !ev.IsFinalResponse()
		})

		for _, ev := range toolTurns {
			contents = append(contents, *ev.Content)
		}
	}

	req.Contents = contents

	return nil
}
