// Package writermesh runs a three-stage writing pipeline: a Researcher
// gathers material on a topic, a Writer drafts an article from it and an
// Editor reviews the draft. Most applications:
//  1. Create a Pipeline via New() with a model and optional search backend
//  2. Call Run (or RunMap) once per topic, concurrently if needed
//
// Every Run executes in its own session, which is closed before Run returns.
// Run never fails: problems are reported in the returned aggregate.Result.
package writermesh

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/writermesh/aggregate"
	"github.com/hupe1980/writermesh/core"
	"github.com/hupe1980/writermesh/logging"
	"github.com/hupe1980/writermesh/model"
	"github.com/hupe1980/writermesh/notify"
	"github.com/hupe1980/writermesh/runner"
	"github.com/hupe1980/writermesh/session"
	"github.com/hupe1980/writermesh/tool"
	"github.com/hupe1980/writermesh/writer"
)

const tracerName = "github.com/hupe1980/writermesh"

// ErrModelRequired is returned by New when no model is configured.
var ErrModelRequired = errors.New("writermesh: model is required")

// Options configures a Pipeline.
type Options struct {
	// Model serves all three stages.
	Model model.Model
	// Searcher backs the Researcher's web_search tool. Optional.
	Searcher tool.Searcher

	// Session key parts. Every run appends a random suffix to SessionID.
	AppName   string
	UserID    string
	SessionID string

	// StageTimeout bounds each stage. Zero disables the bound.
	StageTimeout time.Duration
	// MaxModelCalls bounds model calls per run, tool loops included.
	MaxModelCalls int
	// MaxParallelTools bounds concurrent tool calls per model turn.
	MaxParallelTools int
	EnableStreaming  bool
	Overrides        writer.Overrides

	// SessionStore defaults to an in-memory store.
	SessionStore core.SessionStore
	// Publisher receives a notice after every run. Defaults to a no-op.
	Publisher      notify.Publisher
	PublishTimeout time.Duration
	// OnEvent observes every event of a run as it arrives, partials included.
	// It runs on the collecting goroutine and must not block.
	OnEvent func(core.Event)

	Tracer trace.Tracer
	Logger logging.Logger
}

// Pipeline runs topics through the Researcher, Writer and Editor stages.
// It is safe for concurrent use.
type Pipeline struct {
	opts   Options
	stages []string
	runner *runner.Runner
	store  core.SessionStore
	tracer trace.Tracer
	logger logging.Logger
}

// New builds the stages, validates their key chain and wires the runner.
func New(optFns ...func(o *Options)) (*Pipeline, error) {
	opts := Options{
		AppName:        "writer-multi-agent",
		UserID:         "user",
		SessionID:      "session",
		StageTimeout:   5 * time.Minute,
		MaxModelCalls:  25,
		Publisher:      notify.NoopPublisher{},
		PublishTimeout: 5 * time.Second,
		Logger:         logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Model == nil {
		return nil, ErrModelRequired
	}

	if opts.SessionStore == nil {
		opts.SessionStore = session.NewInMemoryStore(func(o *session.Options) { o.Logger = opts.Logger })
	}

	if opts.Publisher == nil {
		opts.Publisher = notify.NoopPublisher{}
	}

	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}

	stages, err := writer.ApplyOverrides(writer.DefaultStages(), opts.Overrides)
	if err != nil {
		return nil, err
	}

	root, err := writer.NewPipelineAgent(opts.Model, func(o *writer.Options) {
		o.Stages = stages
		o.Searcher = opts.Searcher
		o.StageTimeout = opts.StageTimeout
		o.MaxParallelTools = opts.MaxParallelTools
		o.EnableStreaming = opts.EnableStreaming
		o.Tracer = opts.Tracer
	})
	if err != nil {
		return nil, err
	}

	r := runner.New(root, func(o *runner.Options) {
		o.MaxModelCalls = opts.MaxModelCalls
		o.SessionStore = opts.SessionStore
		o.Logger = opts.Logger
	})

	return &Pipeline{
		opts:   opts,
		stages: writer.StageNames(stages),
		runner: r,
		store:  opts.SessionStore,
		tracer: opts.Tracer,
		logger: opts.Logger,
	}, nil
}

// Stages returns the stage identities in execution order.
func (p *Pipeline) Stages() []string { return append([]string(nil), p.stages...) }

// SessionStore returns the store runs execute in.
func (p *Pipeline) SessionStore() core.SessionStore { return p.store }

// Run researches, drafts and edits an article on topic.
//
// An empty or whitespace-only topic is rejected before any session is
// created. Otherwise the run executes in a fresh session that is closed
// before Run returns, whatever the outcome.
func (p *Pipeline) Run(ctx context.Context, topic string) aggregate.Result {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		p.logger.Warn("pipeline.run.rejected", "reason", aggregate.EmptyTopicMessage)
		return aggregate.InvalidTopic()
	}

	key := core.SessionKey{
		AppName:   p.opts.AppName,
		UserID:    p.opts.UserID,
		SessionID: p.opts.SessionID + "-" + uuid.NewString(),
	}

	ctx, span := p.tracer.Start(ctx, "writermesh.pipeline.run", trace.WithAttributes(
		attribute.String("session.key", key.String()),
		attribute.Int("topic.length", len(topic)),
	))
	defer span.End()

	start := time.Now()

	p.logger.Info("pipeline.run.start", "session", key.String())

	result := p.execute(ctx, key, topic)

	span.SetAttributes(
		attribute.String("run.id", result.RunID),
		attribute.String("pipeline.status", result.Status()),
	)

	if result.Failure != nil {
		span.RecordError(result.Failure)
		span.SetStatus(codes.Error, result.Failure.Message)

		p.logger.Error("pipeline.run.failed", "run_id", result.RunID, "kind", string(result.Failure.Kind), "error", result.Failure.Message)
	} else if result.Warning != "" {
		p.logger.Warn("pipeline.run.incomplete", "run_id", result.RunID, "missing", strings.Join(result.Missing(), ","))
	}

	duration := time.Since(start)

	p.logger.Info("pipeline.run.complete", "run_id", result.RunID, "status", result.Status(), "duration_ms", duration.Milliseconds())

	p.publish(ctx, key, topic, result, duration)

	return result
}

func (p *Pipeline) execute(ctx context.Context, key core.SessionKey, topic string) aggregate.Result {
	if _, err := p.store.CreateOrGet(key); err != nil {
		return aggregate.Failed(p.stages, err)
	}

	defer func() {
		if err := p.store.Close(key); err != nil {
			p.logger.Error("pipeline.session.close_failed", "session", key.String(), "error", err.Error())
		}
	}()

	runID, events, errs, err := p.runner.Run(ctx, key, core.NewTextContent("user", topic))
	if err != nil {
		return aggregate.Failed(p.stages, err)
	}

	if p.opts.OnEvent != nil {
		events = observe(events, p.opts.OnEvent)
	}

	result := aggregate.Collect(ctx, p.stages, events, errs)
	result.RunID = runID

	return result
}

// RunMap runs topic and returns the caller mapping: stage identities to
// text plus the warning, error and status keys when applicable.
func (p *Pipeline) RunMap(ctx context.Context, topic string) map[string]string {
	return p.Run(ctx, topic).Map()
}

func (p *Pipeline) publish(ctx context.Context, key core.SessionKey, topic string, r aggregate.Result, d time.Duration) {
	c := notify.Completion{
		RunID:      r.RunID,
		SessionID:  key.SessionID,
		Topic:      topic,
		Status:     r.Status(),
		Stages:     make(map[string]int, len(r.Outputs)),
		Missing:    r.Missing(),
		DurationMS: d.Milliseconds(),
		FinishedAt: time.Now().UTC(),
	}

	for stage, text := range r.Outputs {
		c.Stages[stage] = len(text)
	}

	if r.Failure != nil {
		c.Error = r.Failure.Message
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.PublishTimeout)
	defer cancel()

	if err := p.opts.Publisher.Publish(pubCtx, c); err != nil {
		p.logger.Warn("pipeline.notify.failed", "run_id", r.RunID, "error", err.Error())
	}
}

// observe forwards events unchanged after passing each to fn.
func observe(in <-chan core.Event, fn func(core.Event)) <-chan core.Event {
	out := make(chan core.Event)

	go func() {
		defer close(out)

		for ev := range in {
			fn(ev)
			out <- ev
		}
	}()

	return out
}
