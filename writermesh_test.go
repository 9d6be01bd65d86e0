package writermesh

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/hupe1980/writermesh/aggregate"
	"github.com/hupe1980/writermesh/core"
	"github.com/hupe1980/writermesh/internal/testutil"
	"github.com/hupe1980/writermesh/model"
	"github.com/hupe1980/writermesh/notify"
	"github.com/hupe1980/writermesh/session"
	"github.com/hupe1980/writermesh/writer"
)

const (
	researchInstruction = "Your task is to use 'web_search' tool to find all the relevant information about a given topic and write a comprehensive report about that topic."
	writeInstruction    = "Your task is to write a comprehensive article using this information: %s. Make sure to expand on all the topics from the provided information."
	editInstruction     = "Your task is to edit a report: %s. Perform a quality check on the text and improve it if necessary."
)

// stageOf identifies the stage a request belongs to from its instruction.
func stageOf(req model.Request) string {
	switch {
	case strings.HasPrefix(req.Instructions, "Your task is to use"):
		return writer.Researcher
	case strings.HasPrefix(req.Instructions, "Your task is to write"):
		return writer.Writer
	case strings.HasPrefix(req.Instructions, "Your task is to edit"):
		return writer.Editor
	default:
		return ""
	}
}

// echoModel answers "R:", "W:" or "E:" followed by the rendered instruction.
func echoModel() model.Func {
	return func(_ context.Context, req model.Request) (string, error) {
		return stageOf(req)[:1] + ":" + req.Instructions, nil
	}
}

// countingStore records CreateOrGet calls.
type countingStore struct {
	*session.InMemoryStore
	created atomic.Int32
}

func (c *countingStore) CreateOrGet(key core.SessionKey) (*core.Session, error) {
	c.created.Add(1)
	return c.InMemoryStore.CreateOrGet(key)
}

func newPipeline(t *testing.T, llm model.Model, optFns ...func(o *Options)) (*Pipeline, *countingStore) {
	t.Helper()

	store := &countingStore{InMemoryStore: session.NewInMemoryStore()}

	fns := append([]func(o *Options){func(o *Options) {
		o.Model = llm
		o.SessionStore = store
		o.StageTimeout = 5 * time.Second
	}}, optFns...)

	p, err := New(fns...)
	require.NoError(t, err)

	return p, store
}

func TestRun_EmptyTopic(t *testing.T) {
	llm := testutil.NewScriptedModel()
	p, store := newPipeline(t, llm)

	for _, topic := range []string{"", "   ", "\n\t"} {
		result := p.Run(context.Background(), topic)

		assert.Equal(t, map[string]string{"error": "Topic cannot be empty"}, result.Map())
		assert.ErrorIs(t, result.Failure, core.ErrEmptyTopic)
	}

	assert.Zero(t, llm.Calls())
	assert.Zero(t, store.created.Load())
}

func TestRun_LiteralExample(t *testing.T) {
	p, store := newPipeline(t, echoModel())

	result := p.Run(context.Background(), "renewable energy")

	research := "R:" + researchInstruction
	draft := "W:" + fmt.Sprintf(writeInstruction, research)
	final := "E:" + fmt.Sprintf(editInstruction, draft)

	assert.Equal(t, map[string]string{
		writer.Researcher: research,
		writer.Writer:     draft,
		writer.Editor:     final,
	}, result.Map())
	assert.True(t, result.OK())
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 0, store.Len())
}

func TestRun_AllStagesSucceed(t *testing.T) {
	llm := testutil.NewScriptedModel(
		testutil.Turn{Text: "facts"},
		testutil.Turn{Text: "draft"},
		testutil.Turn{Text: "article"},
	)
	p, _ := newPipeline(t, llm)

	m := p.RunMap(context.Background(), "renewable energy")

	assert.Equal(t, map[string]string{"Researcher": "facts", "Writer": "draft", "Editor": "article"}, m)

	// the topic reaches every stage as user content
	for _, req := range llm.Requests() {
		require.NotEmpty(t, req.Contents)
		assert.Equal(t, "renewable energy", req.Contents[0].Text())
	}
}

func TestRun_ResearcherFails(t *testing.T) {
	var calls atomic.Int32

	llm := model.Func(func(_ context.Context, req model.Request) (string, error) {
		calls.Add(1)
		if stageOf(req) == writer.Researcher {
			return "", errors.New("503 service unavailable")
		}

		return "unexpected", nil
	})
	p, store := newPipeline(t, llm)

	result := p.Run(context.Background(), "renewable energy")
	m := result.Map()

	assert.Equal(t, "failed", m["status"])
	assert.Contains(t, m["error"], "503 service unavailable")
	assert.Contains(t, m["error"], "Researcher")
	assert.NotContains(t, m, writer.Writer)
	assert.Equal(t, aggregate.KindExecution, result.Failure.Kind)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(1), store.created.Load())
	assert.Equal(t, 0, store.Len())
}

func TestRun_WriterEmpty(t *testing.T) {
	llm := model.Func(func(_ context.Context, req model.Request) (string, error) {
		switch stageOf(req) {
		case writer.Researcher:
			return "facts", nil
		case writer.Writer:
			return "", nil
		default:
			return "edited without a draft", nil
		}
	})
	p, store := newPipeline(t, llm)

	m := p.RunMap(context.Background(), "renewable energy")

	assert.NotContains(t, m, writer.Writer)
	assert.Equal(t, "facts", m[writer.Researcher])
	assert.Equal(t, "edited without a draft", m[writer.Editor])
	assert.Equal(t, "pipeline incomplete: missing output from Writer", m["warning"])
	assert.NotContains(t, m, "error")
	assert.Equal(t, 0, store.Len())
}

func TestRun_EditorSeesUnrenderedInstructionWithoutDraft(t *testing.T) {
	var editorInstruction atomic.Value

	llm := model.Func(func(_ context.Context, req model.Request) (string, error) {
		switch stageOf(req) {
		case writer.Writer:
			return "  ", nil
		case writer.Editor:
			editorInstruction.Store(req.Instructions)
		}

		return "ok", nil
	})
	p, _ := newPipeline(t, llm)

	p.Run(context.Background(), "renewable energy")

	assert.Equal(t, fmt.Sprintf(editInstruction, "{{.comprehensive_article}}"), editorInstruction.Load())
}

func TestRun_ConcurrentInvocationsAreIsolated(t *testing.T) {
	llm := model.Func(func(_ context.Context, req model.Request) (string, error) {
		switch stageOf(req) {
		case writer.Researcher:
			time.Sleep(time.Millisecond)
			return "R:" + req.Contents[0].Text(), nil
		case writer.Writer:
			return "W:" + req.Instructions, nil
		default:
			return "E:" + req.Instructions, nil
		}
	})
	p, store := newPipeline(t, llm)

	const n = 16

	results := make([]aggregate.Result, n)

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = p.Run(context.Background(), fmt.Sprintf("topic-%02d", i))
		}()
	}
	wg.Wait()

	for i, r := range results {
		require.True(t, r.OK(), r.Map())

		own := fmt.Sprintf("R:topic-%02d", i)
		draft, _ := r.Output(writer.Writer)
		assert.Equal(t, "W:"+fmt.Sprintf(writeInstruction, own), draft)

		final, _ := r.Output(writer.Editor)
		assert.Contains(t, final, own)
	}

	assert.Equal(t, int32(n), store.created.Load())
	assert.Equal(t, 0, store.Len())
}

func TestRun_Cancelled(t *testing.T) {
	llm := testutil.NewScriptedModel(testutil.Turn{Text: "facts"}, testutil.Turn{Block: true})
	p, store := newPipeline(t, llm)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	result := p.Run(ctx, "renewable energy")

	require.NotNil(t, result.Failure)
	assert.Equal(t, aggregate.KindCancelled, result.Failure.Kind)
	assert.ErrorIs(t, result.Failure, context.Canceled)

	m := result.Map()
	assert.Equal(t, "failed", m["status"])
	assert.Equal(t, "facts", m[writer.Researcher])
	assert.Equal(t, 0, store.Len())
}

func TestRun_StageTimeout(t *testing.T) {
	llm := testutil.NewScriptedModel(testutil.Turn{Block: true})
	p, _ := newPipeline(t, llm, func(o *Options) { o.StageTimeout = 20 * time.Millisecond })

	result := p.Run(context.Background(), "renewable energy")

	require.NotNil(t, result.Failure)
	assert.Equal(t, aggregate.KindExecution, result.Failure.Kind)
	assert.Contains(t, result.Failure.Message, "stage Researcher timed out")
}

func TestRun_ModelCallBudget(t *testing.T) {
	p, _ := newPipeline(t, echoModel(), func(o *Options) { o.MaxModelCalls = 2 })

	result := p.Run(context.Background(), "renewable energy")

	require.NotNil(t, result.Failure)
	assert.ErrorIs(t, result.Failure, core.ErrModelLimitExceeded)
	assert.Len(t, result.Outputs, 2)
}

type recordingPublisher struct {
	mu    sync.Mutex
	got   []notify.Completion
	err   error
	calls int
}

func (r *recordingPublisher) Publish(_ context.Context, c notify.Completion) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls++
	r.got = append(r.got, c)

	return r.err
}

func (r *recordingPublisher) Close() error { return nil }

func TestRun_PublishesCompletion(t *testing.T) {
	pub := &recordingPublisher{}
	p, _ := newPipeline(t, echoModel(), func(o *Options) { o.Publisher = pub })

	result := p.Run(context.Background(), "renewable energy")

	require.Len(t, pub.got, 1)
	c := pub.got[0]
	assert.Equal(t, result.RunID, c.RunID)
	assert.Equal(t, "ok", c.Status)
	assert.Equal(t, "renewable energy", c.Topic)
	assert.True(t, strings.HasPrefix(c.SessionID, "session-"))
	assert.Len(t, c.Stages, 3)
	assert.Empty(t, c.Missing)
}

func TestRun_PublishFailureDoesNotChangeResult(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("nats down")}
	p, _ := newPipeline(t, echoModel(), func(o *Options) { o.Publisher = pub })

	result := p.Run(context.Background(), "renewable energy")

	assert.True(t, result.OK())
	assert.Equal(t, 1, pub.calls)
}

func TestRun_OnEventSeesEveryStage(t *testing.T) {
	var (
		mu      sync.Mutex
		authors []string
	)

	p, _ := newPipeline(t, echoModel(), func(o *Options) {
		o.OnEvent = func(ev core.Event) {
			mu.Lock()
			defer mu.Unlock()
			authors = append(authors, ev.Author)
		}
	})

	require.True(t, p.Run(context.Background(), "renewable energy").OK())
	assert.Equal(t, []string{writer.Researcher, writer.Writer, writer.Editor}, authors)
}

func TestRun_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	p, _ := newPipeline(t, echoModel(), func(o *Options) { o.Tracer = tp.Tracer("test") })

	require.True(t, p.Run(context.Background(), "renewable energy").OK())

	var names []string
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
	}

	assert.ElementsMatch(t, []string{
		"writermesh.stage.run",
		"writermesh.stage.run",
		"writermesh.stage.run",
		"writermesh.pipeline.run",
	}, names)
}

func TestNew_Validation(t *testing.T) {
	_, err := New()
	assert.ErrorIs(t, err, ErrModelRequired)

	_, err = New(func(o *Options) {
		o.Model = echoModel()
		o.Overrides = writer.Overrides{"Proofreader": {Instruction: "x"}}
	})
	assert.ErrorIs(t, err, writer.ErrUnknownStage)
}

func TestNew_OverridesReachTheModel(t *testing.T) {
	llm := testutil.NewScriptedModel(
		testutil.Turn{Text: "facts"},
		testutil.Turn{Text: "draft"},
		testutil.Turn{Text: "article"},
	)
	p, _ := newPipeline(t, llm, func(o *Options) {
		o.Overrides = writer.Overrides{writer.Editor: {Instruction: "Proofread: {{.comprehensive_article}}"}}
	})

	require.True(t, p.Run(context.Background(), "renewable energy").OK())

	reqs := llm.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, "Proofread: draft", reqs[2].Instructions)
}
