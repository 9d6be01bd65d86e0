package writer

import (
	"errors"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/writermesh/agent"
	"github.com/hupe1980/writermesh/core"
	"github.com/hupe1980/writermesh/model"
	"github.com/hupe1980/writermesh/tool"
)

// ErrModelRequired is returned when a pipeline is built without a model.
var ErrModelRequired = errors.New("writer pipeline requires a model")

// Options configures NewPipelineAgent.
type Options struct {
	// Stages defaults to DefaultStages().
	Stages    []StageSpec
	Overrides Overrides
	// Searcher backs the web_search tool. Without it no stage gets tools.
	Searcher         tool.Searcher
	StageTimeout     time.Duration
	MaxParallelTools int
	EnableStreaming  bool
	Tracer           trace.Tracer
}

// NewPipelineAgent binds the stages to llm and chains them in a sequential
// agent. Key chain errors surface here, before any run.
func NewPipelineAgent(llm model.Model, optFns ...func(o *Options)) (*agent.SequentialAgent, error) {
	opts := Options{}

	for _, fn := range optFns {
		fn(&opts)
	}

	if llm == nil {
		return nil, ErrModelRequired
	}

	stages := opts.Stages
	if stages == nil {
		stages = DefaultStages()
	}

	stages, err := ApplyOverrides(stages, opts.Overrides)
	if err != nil {
		return nil, err
	}

	var search tool.Tool
	if opts.Searcher != nil {
		search = tool.NewWebSearchTool(opts.Searcher)
	}

	children := make([]core.Agent, 0, len(stages))

	for _, spec := range stages {
		children = append(children, agent.NewStageAgent(spec.Name, llm, func(o *agent.StageAgentOptions) {
			o.Instruction = agent.NewInstructionFromText(spec.Instruction)
			o.Description = spec.Description
			o.InputKeys = spec.InputKeys
			o.OutputKey = spec.OutputKey
			o.EnableStreaming = opts.EnableStreaming
			o.Timeout = opts.StageTimeout
			o.MaxParallelTools = opts.MaxParallelTools
			o.Tracer = opts.Tracer

			if spec.Search && search != nil {
				o.Tools = []tool.Tool{search}
			}
		}))
	}

	seq, err := agent.NewSequentialAgent(PipelineName, children...)
	if err != nil {
		return nil, err
	}

	seq.SetDescription("A multi-agent pipeline that researches a topic, writes an article based on the research, and then edits the article for quality.")

	return seq, nil
}
