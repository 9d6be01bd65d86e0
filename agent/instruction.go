package agent

import (
	"github.com/hupe1980/writermesh/core"
	internalutil "github.com/hupe1980/writermesh/internal/util"
)

// Instruction is a stage's role prompt. Static text may reference session
// state as {{.key}} and is rendered by the flow just before the model call.
type Instruction struct {
	text   string
	fields []string
	fn     func(*core.RunContext) (string, error)
}

// NewInstructionFromText returns a static instruction. The state keys it
// references are recorded; text that fails to parse records none and fails
// later when rendered.
func NewInstructionFromText(text string) Instruction {
	fields, _ := internalutil.TemplateFields(text)
	return Instruction{text: text, fields: fields}
}

// NewInstructionFromFunc returns an instruction computed per run.
func NewInstructionFromFunc(fn func(*core.RunContext) (string, error)) Instruction {
	return Instruction{fn: fn}
}

// IsStatic reports whether the instruction is fixed text.
func (i Instruction) IsStatic() bool { return i.fn == nil }

// Fields returns the state keys a static instruction references.
func (i Instruction) Fields() []string { return append([]string(nil), i.fields...) }

// Resolve returns the unrendered instruction for runCtx.
func (i Instruction) Resolve(runCtx *core.RunContext) (string, error) {
	if i.fn != nil {
		return i.fn(runCtx)
	}

	return i.text, nil
}
