package writermesh

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hupe1980/writermesh/agent"
	"github.com/hupe1980/writermesh/core"
	"github.com/hupe1980/writermesh/model"
	"github.com/hupe1980/writermesh/runner"
	"github.com/hupe1980/writermesh/tool"
	"github.com/hupe1980/writermesh/writer"
)

// Orchestrator identity and tool name.
const (
	OrchestratorName = "WriterMultiAgentRoot"
	PipelineToolName = "run_writer_pipeline"
)

// PipelineRunIDKey is the root session state key holding the run id of the
// last pipeline run started through the tool.
const PipelineRunIDKey = "last_pipeline_run_id"

const orchestratorInstruction = "You are the orchestrator of a multi-agent writing system. " +
	"Use the 'run_writer_pipeline' tool to research, draft, and edit " +
	"a high-quality article based on the user's topic."

type pipelineToolArgs struct {
	Topic *string `json:"topic" validate:"required" description:"The topic to research and write about"`
}

// NewPipelineTool exposes p as the run_writer_pipeline tool. The tool
// returns the caller mapping of the run; an empty topic yields the error
// mapping rather than a tool failure. The nested run id is staged under
// PipelineRunIDKey in the calling session.
func NewPipelineTool(p *Pipeline) *tool.FunctionTool {
	return tool.NewTypedTool(
		PipelineToolName,
		"Research a topic, draft an article from the research and edit it. Returns the research, draft and final article keyed by stage.",
		func(tc *core.ToolContext, args pipelineToolArgs) (any, error) {
			if prev, ok := tc.GetState(PipelineRunIDKey); ok {
				tc.LogInfo("pipeline.tool.rerun", "previous_run_id", prev)
			}

			result := p.Run(tc.Context(), *args.Topic)
			if result.RunID != "" {
				tc.SetState(PipelineRunIDKey, result.RunID)
			}

			return result.Map(), nil
		},
	)
}

// Orchestrator is a conversational root agent that delegates article
// requests to a Pipeline through the run_writer_pipeline tool.
type Orchestrator struct {
	agent  *agent.StageAgent
	runner *runner.Runner
	store  core.SessionStore
	opts   Options
}

// NewOrchestrator builds the root agent on llm around p. Its sessions live in
// p's session store.
func NewOrchestrator(llm model.Model, p *Pipeline) (*Orchestrator, error) {
	if llm == nil {
		return nil, ErrModelRequired
	}

	root := agent.NewStageAgent(OrchestratorName, llm, func(o *agent.StageAgentOptions) {
		o.Instruction = agent.NewInstructionFromText(orchestratorInstruction)
		o.Description = "Root agent for the Writer Multi-Agent system."
		o.Tools = []tool.Tool{NewPipelineTool(p)}
		o.OutputKey = writer.FinalArticleKey
		o.Tracer = p.tracer
	})

	r := runner.New(root, func(o *runner.Options) {
		o.MaxModelCalls = p.opts.MaxModelCalls
		o.SessionStore = p.store
		o.Logger = p.logger
	})

	return &Orchestrator{agent: root, runner: r, store: p.store, opts: p.opts}, nil
}

// Agent returns the root agent.
func (o *Orchestrator) Agent() *agent.StageAgent { return o.agent }

// Ask sends request to the orchestrator in a fresh session and returns its
// final answer.
func (o *Orchestrator) Ask(ctx context.Context, request string) (string, error) {
	request = strings.TrimSpace(request)
	if request == "" {
		return "", core.ErrEmptyTopic
	}

	key := core.SessionKey{
		AppName:   o.opts.AppName,
		UserID:    o.opts.UserID,
		SessionID: o.opts.SessionID + "-root-" + uuid.NewString(),
	}

	if _, err := o.store.CreateOrGet(key); err != nil {
		return "", err
	}

	defer func() {
		if err := o.store.Close(key); err != nil {
			o.opts.Logger.Error("orchestrator.session.close_failed", "session", key.String(), "error", err.Error())
		}
	}()

	_, events, errs, err := o.runner.Run(ctx, key, core.NewTextContent("user", request))
	if err != nil {
		return "", err
	}

	var answer string

	for ev := range events {
		if ev.Author == OrchestratorName && ev.IsFinalResponse() {
			answer = ev.Text()
		}
	}

	if err := <-errs; err != nil {
		return answer, err
	}

	if strings.TrimSpace(answer) == "" {
		return "", fmt.Errorf("orchestrator produced no answer")
	}

	return answer, nil
}
