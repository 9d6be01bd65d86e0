package writer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/writermesh/agent"
	"github.com/hupe1980/writermesh/internal/testutil"
	"github.com/hupe1980/writermesh/tool"
)

func TestDefaultStages(t *testing.T) {
	stages := DefaultStages()

	assert.Equal(t, []string{Researcher, Writer, Editor}, StageNames(stages))
	assert.Empty(t, stages[0].InputKeys)
	assert.Equal(t, []string{ResearchResultsKey}, stages[1].InputKeys)
	assert.Equal(t, []string{ComprehensiveArticleKey}, stages[2].InputKeys)
	assert.Equal(t, FinalArticleKey, stages[2].OutputKey)
	assert.Contains(t, stages[1].Instruction, "{{.research_results}}")

	// fresh copies every call
	stages[1].InputKeys[0] = "mutated"
	assert.Equal(t, []string{ResearchResultsKey}, DefaultStages()[1].InputKeys)
}

func TestApplyOverrides(t *testing.T) {
	off := false

	tests := []struct {
		name      string
		overrides Overrides
		check     func(t *testing.T, stages []StageSpec)
		wantErr   error
	}{
		{
			name:      "no overrides",
			overrides: nil,
			check: func(t *testing.T, stages []StageSpec) {
				assert.Equal(t, DefaultStages(), stages)
			},
		},
		{
			name: "instruction and search",
			overrides: Overrides{
				Editor:     {Instruction: "Polish: {{.comprehensive_article}}"},
				Researcher: {Search: &off, Description: "Collects facts"},
			},
			check: func(t *testing.T, stages []StageSpec) {
				assert.Equal(t, "Polish: {{.comprehensive_article}}", stages[2].Instruction)
				assert.False(t, stages[0].Search)
				assert.Equal(t, "Collects facts", stages[0].Description)
				assert.Equal(t, DefaultStages()[1], stages[1])
			},
		},
		{
			name:      "unknown stage",
			overrides: Overrides{"Publisher": {Instruction: "x"}},
			wantErr:   ErrUnknownStage,
		},
		{
			name:      "undeclared key",
			overrides: Overrides{Editor: {Instruction: "Edit {{.research_results}}"}},
			wantErr:   ErrUndeclaredKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stages, err := ApplyOverrides(DefaultStages(), tt.overrides)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			tt.check(t, stages)
		})
	}
}

func TestApplyOverrides_InvalidTemplate(t *testing.T) {
	_, err := ApplyOverrides(DefaultStages(), Overrides{Writer: {Instruction: "Use {{.research_results"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid instruction for stage Writer")
}

func TestNewPipelineAgent(t *testing.T) {
	searcher := tool.SearcherFunc(func(context.Context, string, int) ([]tool.SearchResult, error) {
		return nil, nil
	})

	seq, err := NewPipelineAgent(testutil.NewScriptedModel(), func(o *Options) {
		o.Searcher = searcher
	})
	require.NoError(t, err)
	assert.Equal(t, PipelineName, seq.Name())

	children := seq.Children()
	require.Len(t, children, 3)

	names := make([]string, 0, len(children))
	for _, c := range children {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{Researcher, Writer, Editor}, names)

	researcher, ok := children[0].(*agent.StageAgent)
	require.True(t, ok)
	assert.Contains(t, researcher.GetTools(), tool.WebSearchToolName)

	writer, ok := children[1].(*agent.StageAgent)
	require.True(t, ok)
	assert.Empty(t, writer.GetTools())
	assert.Equal(t, ComprehensiveArticleKey, writer.OutputKey())
}

func TestNewPipelineAgent_NoSearcherNoTools(t *testing.T) {
	seq, err := NewPipelineAgent(testutil.NewScriptedModel())
	require.NoError(t, err)

	researcher := seq.Children()[0].(*agent.StageAgent)
	assert.Empty(t, researcher.GetTools())
}

func TestNewPipelineAgent_RejectsBrokenChain(t *testing.T) {
	stages := DefaultStages()
	stages[0], stages[1] = stages[1], stages[0]

	_, err := NewPipelineAgent(testutil.NewScriptedModel(), func(o *Options) { o.Stages = stages })
	assert.ErrorIs(t, err, agent.ErrUnboundInputKey)
}

func TestNewPipelineAgent_RequiresModel(t *testing.T) {
	_, err := NewPipelineAgent(nil)
	assert.ErrorIs(t, err, ErrModelRequired)
}
