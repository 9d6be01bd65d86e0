package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/writermesh/core"
	"github.com/hupe1980/writermesh/logging"
	"github.com/hupe1980/writermesh/session"
)

// Options configures a Runner.
type Options struct {
	// EventBufferSize buffers both the agent side and the caller side of a run.
	EventBufferSize int
	// MaxModelCalls bounds model calls per run. Zero means unlimited.
	MaxModelCalls int
	// SessionStore holds the sessions runs execute in. Defaults to an
	// in-memory store.
	SessionStore core.SessionStore
	Logger       logging.Logger
}

// Runner drives a root agent against sessions held in a SessionStore.
// Public methods are safe for concurrent use.
type Runner struct {
	agent core.Agent
	opts  Options

	mu     sync.Mutex
	active map[string]*execution
}

// New constructs a Runner for agent.
func New(agent core.Agent, optFns ...func(o *Options)) *Runner {
	opts := Options{
		EventBufferSize: 100,
		MaxModelCalls:   100,
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.SessionStore == nil {
		opts.SessionStore = session.NewInMemoryStore()
	}

	return &Runner{
		agent:  agent,
		opts:   opts,
		active: make(map[string]*execution),
	}
}

// SessionStore returns the store runs execute against.
func (r *Runner) SessionStore() core.SessionStore { return r.opts.SessionStore }

// Run starts an asynchronous run in the existing session key and returns
// its ID.
//
// The events channel delivers every emitted event in order and closes when
// the run ends. The errors channel closes after it and carries at most one
// error: the first failure of the run.
func (r *Runner) Run(ctx context.Context, key core.SessionKey, userContent core.Content) (string, <-chan core.Event, <-chan error, error) {
	sess, err := r.opts.SessionStore.Get(key)
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to get session: %w", err)
	}

	runID := core.NewID()

	if err := r.opts.SessionStore.AppendEvent(key, core.NewUserContentEvent(runID, userContent)); err != nil {
		return "", nil, nil, fmt.Errorf("failed to append user event: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)

	x := &execution{
		store:  r.opts.SessionStore,
		logger: r.opts.Logger,
		cancel: cancel,
		emit:   make(chan core.Event, r.opts.EventBufferSize),
		resume: make(chan struct{}, 1),
		events: make(chan core.Event, r.opts.EventBufferSize),
		errs:   make(chan error, 1),
	}

	x.runCtx = core.NewRunContext(
		ctx,
		key,
		runID,
		core.AgentInfo{Name: r.agent.Name(), Type: "root"},
		userContent,
		r.opts.MaxModelCalls,
		x.emit,
		x.resume,
		sess,
		r.opts.SessionStore,
		r.opts.Logger,
	)

	r.mu.Lock()
	r.active[runID] = x
	r.mu.Unlock()

	r.opts.Logger.Info("runner.run.start", "run_id", runID, "session", key.String(), "agent", r.agent.Name())

	go func() {
		defer close(x.emit)

		if err := r.agent.Run(x.runCtx); err != nil {
			x.fail(fmt.Errorf("agent execution failed: %w", err))
		}
	}()

	go func() {
		x.pump()
		cancel()

		r.mu.Lock()
		delete(r.active, runID)
		r.mu.Unlock()

		close(x.events)
		close(x.errs)

		r.opts.Logger.Info("runner.run.complete", "run_id", runID)
	}()

	return runID, x.events, x.errs, nil
}

// Cancel stops the run with the given ID.
func (r *Runner) Cancel(runID string) error {
	r.mu.Lock()
	x, ok := r.active[runID]
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("run %s not found", runID)
	}

	x.cancel()

	return nil
}

// ActiveRuns returns the number of runs still in flight.
func (r *Runner) ActiveRuns() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.active)
}

// execution is the state of a single run.
type execution struct {
	runCtx *core.RunContext
	store  core.SessionStore
	logger logging.Logger
	cancel context.CancelFunc

	emit   chan core.Event // agent -> runner
	resume chan struct{}   // runner -> agent, once per persisted event
	events chan core.Event // runner -> caller
	errs   chan error

	stopped bool
}

// fail records err unless an earlier failure was recorded.
func (x *execution) fail(err error) {
	select {
	case x.errs <- err:
	default:
	}
}

// pump drains emit until the agent is done. Once the run stopped, events are
// discarded but draining continues so the agent never blocks on emit.
func (x *execution) pump() {
	for ev := range x.emit {
		if x.stopped || x.runCtx.Err() != nil {
			continue
		}

		if err := x.persist(ev); err != nil {
			x.logger.Error("runner.event.persist_failed", "run_id", x.runCtx.RunID, "event_id", ev.ID, "error", err.Error())
			x.fail(err)
			x.cancel()
			x.stopped = true

			continue
		}

		select {
		case <-x.runCtx.Done():
			continue
		case x.events <- ev:
		}

		x.logger.Debug("runner.event.delivered", "run_id", x.runCtx.RunID, "event_id", ev.ID, "author", ev.Author, "partial", ev.IsPartial())

		if ev.IsPartial() {
			continue
		}

		select {
		case x.resume <- struct{}{}:
		default:
		}
	}
}

// persist applies the state delta of ev and appends it to the history.
// Partial events only carry deltas.
func (x *execution) persist(ev core.Event) error {
	key := x.runCtx.Key

	if len(ev.Actions.StateDelta) > 0 {
		if err := x.store.ApplyDelta(key, ev.Actions.StateDelta); err != nil {
			return fmt.Errorf("failed to apply state delta: %w", err)
		}
	}

	if ev.IsPartial() {
		return nil
	}

	if err := x.store.AppendEvent(key, ev); err != nil {
		return fmt.Errorf("failed to append event to session: %w", err)
	}

	return nil
}
