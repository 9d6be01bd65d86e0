package flow

// SingleAgentFlowOptions configures a SingleAgentFlow.
type SingleAgentFlowOptions struct {
	// MaxParallelTools bounds concurrent tool calls of one model turn. Zero
	// runs them all at once.
	MaxParallelTools int
}

// SingleAgentFlow is the flow every stage runs: the instruction is rendered,
// this stage's contents are assembled and the shared turn loop takes over.
type SingleAgentFlow struct{ *BaseFlow }

// NewSingleAgentFlow wires the instructions and contents processors in that
// order.
func NewSingleAgentFlow(agent FlowAgent, optFns ...func(o *SingleAgentFlowOptions)) *SingleAgentFlow {
	var opts SingleAgentFlowOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	f := &SingleAgentFlow{BaseFlow: NewBaseFlow(agent)}
	f.AddRequestProcessor(NewInstructionsProcessor())
	f.AddRequestProcessor(NewContentsProcessor())
	f.SetCallExecutor(NewCallExecutor(opts.MaxParallelTools))

	return f
}
