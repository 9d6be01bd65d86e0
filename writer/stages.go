package writer

// Stage identities. They double as event authors and as keys of the
// aggregated result.
const (
	Researcher = "Researcher"
	Writer     = "Writer"
	Editor     = "Editor"
)

// Session state keys published by the stages.
const (
	ResearchResultsKey      = "research_results"
	ComprehensiveArticleKey = "comprehensive_article"
	FinalArticleKey         = "final_article"
)

// PipelineName is the name of the sequential agent running the stages.
const PipelineName = "WriterPipeline"

// StageSpec describes one pipeline stage before it is bound to a model.
type StageSpec struct {
	Name        string
	Description string
	// Instruction is a text/template rendered against session state.
	Instruction string
	InputKeys   []string
	OutputKey   string
	// Search offers the web_search tool to the stage when a searcher is
	// configured.
	Search bool
}

// DefaultStages returns the research, draft and edit stages in execution
// order. Every call returns fresh values.
func DefaultStages() []StageSpec {
	return []StageSpec{
		{
			Name:        Researcher,
			Description: "Researches about a topic",
			Instruction: "Your task is to use 'web_search' tool to find all the relevant information about a given topic and write a comprehensive report about that topic.",
			OutputKey:   ResearchResultsKey,
			Search:      true,
		},
		{
			Name:        Writer,
			Description: "Write a comprehensive article based on the provided information",
			Instruction: "Your task is to write a comprehensive article using this information: {{.research_results}}. Make sure to expand on all the topics from the provided information.",
			InputKeys:   []string{ResearchResultsKey},
			OutputKey:   ComprehensiveArticleKey,
		},
		{
			Name:        Editor,
			Description: "Perform quality check on a written article",
			Instruction: "Your task is to edit a report: {{.comprehensive_article}}. Perform a quality check on the text and improve it if necessary.",
			InputKeys:   []string{ComprehensiveArticleKey},
			OutputKey:   FinalArticleKey,
		},
	}
}

// StageNames returns the identities of stages in order.
func StageNames(stages []StageSpec) []string {
	names := make([]string, 0, len(stages))
	for _, s := range stages {
		names = append(names, s.Name)
	}

	return names
}
