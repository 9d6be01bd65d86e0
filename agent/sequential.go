package agent

import (
	"fmt"

	"github.com/hupe1980/writermesh/core"
)

// SequentialAgent runs its children strictly in order over one shared
// RunContext. The first failing child stops the sequence.
//
// Children implementing core.KeyedAgent take part in key validation: every
// input key must be the output key of an earlier child and output keys must
// be unique. Invalid chains are rejected by NewSequentialAgent, before
// anything runs.
type SequentialAgent struct {
	BaseAgent
	children []core.Agent
}

// NewSequentialAgent creates a sequential coordinator over children.
func NewSequentialAgent(name string, children ...core.Agent) (*SequentialAgent, error) {
	if err := validateKeyChain(children); err != nil {
		return nil, err
	}

	return &SequentialAgent{
		BaseAgent: NewBaseAgent(name),
		children:  append([]core.Agent(nil), children...),
	}, nil
}

func validateKeyChain(children []core.Agent) error {
	produced := map[string]string{}

	for _, child := range children {
		keyed, ok := child.(core.KeyedAgent)
		if !ok {
			continue
		}

		for _, in := range keyed.InputKeys() {
			if _, ok := produced[in]; !ok {
				return fmt.Errorf("%w: stage %s reads %q", ErrUnboundInputKey, child.Name(), in)
			}
		}

		out := keyed.OutputKey()
		if out == "" {
			continue
		}

		if prev, dup := produced[out]; dup {
			return fmt.Errorf("%w: %q from %s and %s", ErrDuplicateOutputKey, out, prev, child.Name())
		}

		produced[out] = child.Name()
	}

	return nil
}

// Children returns the children in execution order.
func (s *SequentialAgent) Children() []core.Agent {
	return append([]core.Agent(nil), s.children...)
}

// Run implements core.Agent.
func (s *SequentialAgent) Run(runCtx *core.RunContext) error {
	for i, child := range s.children {
		if err := runCtx.Err(); err != nil {
			return err
		}

		runCtx.LogDebug("sequential.child.start", "agent", s.Name(), "child", child.Name(), "index", i)

		if err := child.Run(runCtx); err != nil {
			return fmt.Errorf("sequential execution failed at agent %s: %w", child.Name(), err)
		}
	}

	return nil
}
