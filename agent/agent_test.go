package agent

import (
	"github.com/stretchr/testify/mock"

	"github.com/hupe1980/writermesh/core"
)

// MockAgent for testing composite agents
type MockAgent struct {
	mock.Mock
	name      string
	inputKeys []string
	outputKey string
}

func NewMockAgent(name string) *MockAgent {
	return &MockAgent{name: name}
}

// NewKeyedMockAgent returns a mock that declares its state keys.
func NewKeyedMockAgent(name, outputKey string, inputKeys ...string) *keyedMockAgent {
	return &keyedMockAgent{MockAgent: &MockAgent{name: name, inputKeys: inputKeys, outputKey: outputKey}}
}

func (m *MockAgent) Name() string        { return m.name }
func (m *MockAgent) Description() string { return "mock " + m.name }

func (m *MockAgent) Run(runCtx *core.RunContext) error {
	args := m.Called(runCtx)
	return args.Error(0)
}

type keyedMockAgent struct{ *MockAgent }

func (k *keyedMockAgent) InputKeys() []string { return k.inputKeys }
func (k *keyedMockAgent) OutputKey() string   { return k.outputKey }
