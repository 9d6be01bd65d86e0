package writermesh

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/writermesh/core"
	"github.com/hupe1980/writermesh/internal/testutil"
	"github.com/hupe1980/writermesh/logging"
	"github.com/hupe1980/writermesh/writer"
)

func toolContext() *core.ToolContext {
	rc := core.NewRunContext(
		context.Background(),
		core.SessionKey{AppName: "app", UserID: "user", SessionID: "root"},
		"run-root",
		core.AgentInfo{Name: OrchestratorName, Type: "stage"},
		core.Content{},
		0, nil, nil, nil, nil,
		logging.NoOpLogger{},
	)

	return core.NewToolContext(rc, "call-1")
}

func TestPipelineTool(t *testing.T) {
	p, _ := newPipeline(t, echoModel())
	pt := NewPipelineTool(p)

	assert.Equal(t, PipelineToolName, pt.Name())
	assert.Equal(t, []string{"topic"}, pt.Parameters()["required"])

	tc := toolContext()
	out, err := pt.Call(tc, map[string]any{"topic": "renewable energy"})
	require.NoError(t, err)

	runID, ok := tc.GetState(PipelineRunIDKey)
	require.True(t, ok)
	assert.NotEmpty(t, runID)

	// a second call in the same session replaces the staged run id
	_, err = pt.Call(tc, map[string]any{"topic": "wind power"})
	require.NoError(t, err)
	rerunID, ok := tc.GetState(PipelineRunIDKey)
	require.True(t, ok)
	assert.NotEqual(t, runID, rerunID)

	m, ok := out.(map[string]string)
	require.True(t, ok)
	assert.Len(t, m, 3)
	assert.Contains(t, m[writer.Editor], "E:")

	rejected := toolContext()
	out, err = pt.Call(rejected, map[string]any{"topic": " "})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"error": "Topic cannot be empty"}, out)

	_, ok = rejected.GetState(PipelineRunIDKey)
	assert.False(t, ok)
}

func TestPipelineTool_MissingTopic(t *testing.T) {
	p, _ := newPipeline(t, echoModel())

	_, err := NewPipelineTool(p).Call(toolContext(), map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parameter validation failed")
}

func TestOrchestrator_Ask(t *testing.T) {
	p, store := newPipeline(t, echoModel())

	root := testutil.NewScriptedModel(
		testutil.Turn{Calls: []core.FunctionCall{{ID: "call-1", Name: PipelineToolName, Arguments: `{"topic":"renewable energy"}`}}},
		testutil.Turn{Text: "Here is your article."},
	)

	o, err := NewOrchestrator(root, p)
	require.NoError(t, err)
	assert.Equal(t, OrchestratorName, o.Agent().Name())
	assert.Equal(t, writer.FinalArticleKey, o.Agent().OutputKey())

	answer, err := o.Ask(context.Background(), "Write me something about renewable energy")
	require.NoError(t, err)
	assert.Equal(t, "Here is your article.", answer)

	reqs := root.Requests()
	require.Len(t, reqs, 2)
	assert.Contains(t, reqs[0].Instructions, "run_writer_pipeline")
	require.Len(t, reqs[0].Tools, 1)

	// the second turn sees the tool call and its result
	var responses []core.FunctionResponse
	for _, c := range reqs[1].Contents {
		for _, part := range c.Parts {
			if fr, ok := part.(core.FunctionResponsePart); ok {
				responses = append(responses, fr.FunctionResponse)
			}
		}
	}
	require.Len(t, responses, 1)
	assert.Empty(t, responses[0].Error)

	assert.Equal(t, 0, store.Len())
}

func TestOrchestrator_EmptyRequest(t *testing.T) {
	p, _ := newPipeline(t, echoModel())

	o, err := NewOrchestrator(testutil.NewScriptedModel(), p)
	require.NoError(t, err)

	_, err = o.Ask(context.Background(), "  ")
	assert.ErrorIs(t, err, core.ErrEmptyTopic)
}

func TestNewOrchestrator_RequiresModel(t *testing.T) {
	p, _ := newPipeline(t, echoModel())

	_, err := NewOrchestrator(nil, p)
	assert.ErrorIs(t, err, ErrModelRequired)
}
