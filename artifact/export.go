package artifact

import (
	"fmt"

	"github.com/hupe1980/writermesh/aggregate"
	"github.com/hupe1980/writermesh/writer"
)

// Download file names.
const (
	ResearchSummaryFile  = "research_summary.txt"
	DraftArticleFile     = "draft_article.txt"
	FinalArticleFile     = "final_article.txt"
	FinalArticleMarkdown = "final_article.md"
)

var exportFiles = []struct {
	stage string
	name  string
}{
	{writer.Researcher, ResearchSummaryFile},
	{writer.Writer, DraftArticleFile},
	{writer.Editor, FinalArticleFile},
	{writer.Editor, FinalArticleMarkdown},
}

// Export saves the downloads for every stage present in r under r.RunID and
// returns the names written. Missing stages are skipped.
func Export(store Store, r aggregate.Result) ([]string, error) {
	if r.RunID == "" {
		return nil, fmt.Errorf("%w: result has no run id", ErrInvalidName)
	}

	var written []string

	for _, f := range exportFiles {
		text, ok := r.Output(f.stage)
		if !ok {
			continue
		}

		if err := store.Save(r.RunID, f.name, []byte(text)); err != nil {
			return written, fmt.Errorf("failed to export %s: %w", f.name, err)
		}

		written = append(written, f.name)
	}

	return written, nil
}
