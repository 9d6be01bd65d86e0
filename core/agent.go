package core

// Agent is the unit of work driven by the runner.
//
// Implementations must be safe for concurrent Run calls: all per-invocation
// state belongs to the RunContext, never to the agent value itself. Agents
// emit events through RunContext.EmitEvent and must respect cancellation of
// RunContext.Context.
type Agent interface {
	Name() string
	Description() string
	Run(runCtx *RunContext) error
}

// KeyedAgent is implemented by agents that read named session state keys and
// publish their result under an output key. Pipelines use it to validate the
// data dependencies between stages before anything runs.
type KeyedAgent interface {
	Agent
	InputKeys() []string
	OutputKey() string
}

// AgentInfo carries identifying details about an agent used in contexts & events.
// Name is the external identifier; Type categorizes implementation (e.g. "stage", "sequential").
type AgentInfo struct{ Name, Type string }
