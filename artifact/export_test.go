package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/writermesh/aggregate"
	"github.com/hupe1980/writermesh/writer"
)

func TestExport_AllStages(t *testing.T) {
	store := NewInMemoryStore()
	r := aggregate.Result{
		RunID:  "run-1",
		Stages: []string{writer.Researcher, writer.Writer, writer.Editor},
		Outputs: map[string]string{
			writer.Researcher: "facts",
			writer.Writer:     "draft",
			writer.Editor:     "# Article",
		},
	}

	written, err := Export(store, r)
	require.NoError(t, err)
	assert.Equal(t, []string{ResearchSummaryFile, DraftArticleFile, FinalArticleFile, FinalArticleMarkdown}, written)

	md, err := store.Get("run-1", FinalArticleMarkdown)
	require.NoError(t, err)
	assert.Equal(t, "# Article", string(md))

	draft, err := store.Get("run-1", DraftArticleFile)
	require.NoError(t, err)
	assert.Equal(t, "draft", string(draft))
}

func TestExport_SkipsMissingStages(t *testing.T) {
	store := NewInMemoryStore()
	r := aggregate.Result{
		RunID:   "run-2",
		Stages:  []string{writer.Researcher, writer.Writer, writer.Editor},
		Outputs: map[string]string{writer.Researcher: "facts"},
	}

	written, err := Export(store, r)
	require.NoError(t, err)
	assert.Equal(t, []string{ResearchSummaryFile}, written)

	names, err := store.List("run-2")
	require.NoError(t, err)
	assert.Equal(t, []string{ResearchSummaryFile}, names)
}

func TestExport_RequiresRunID(t *testing.T) {
	_, err := Export(NewInMemoryStore(), aggregate.Result{})
	assert.ErrorIs(t, err, ErrInvalidName)
}
