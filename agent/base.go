package agent

// BaseAgent carries the name and description every agent reports. Embed it
// and add a Run method to satisfy core.Agent.
type BaseAgent struct {
	name        string
	description string
}

// NewBaseAgent names an agent. The description defaults to "Agent <name>".
func NewBaseAgent(name string) BaseAgent {
	return BaseAgent{name: name, description: "Agent " + name}
}

func (b *BaseAgent) Name() string { return b.name }

func (b *BaseAgent) Description() string { return b.description }

// SetDescription replaces the description. Empty values are ignored.
func (b *BaseAgent) SetDescription(desc string) {
	if desc != "" {
		b.description = desc
	}
}
