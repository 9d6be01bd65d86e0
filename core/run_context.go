package core

import (
	"context"
	"maps"
	"sync"

	"github.com/hupe1980/writermesh/logging"
)

// RunContext carries the per-invocation execution scope passed to an
// Agent's Run method. It aggregates:
//   - The ambient cancellation Context
//   - Identifiers (session key, RunID, Agent info)
//   - The user Content that started the run
//   - Emission / resumption coordination channels
//   - The live Session and its backing SessionStore
//   - A pending StateDelta merged into the next non-partial event
//
// Agents never share a RunContext across invocations, which keeps shared
// agent values free of per-run state.
type RunContext struct {
	Context      context.Context
	Key          SessionKey
	RunID        string
	Agent        AgentInfo
	UserContent  Content
	Emit         chan<- Event
	Resume       <-chan struct{}
	SessionStore SessionStore
	Session      *Session
	Limiter      *ModelLimiter
	StateDelta   map[string]any

	deltaMu *sync.Mutex
	*runLogger
}

// NewRunContext constructs a RunContext with an empty state delta.
func NewRunContext(
	ctx context.Context,
	key SessionKey,
	runID string,
	agent AgentInfo,
	userContent Content,
	maxModelCalls int,
	emit chan<- Event,
	resume <-chan struct{},
	sess *Session,
	sessionStore SessionStore,
	logger logging.Logger,
) *RunContext {
	return &RunContext{
		Context:      ctx,
		Key:          key,
		RunID:        runID,
		Agent:        agent,
		UserContent:  userContent,
		Emit:         emit,
		Resume:       resume,
		Session:      sess,
		SessionStore: sessionStore,
		Limiter:      NewModelLimiter(maxModelCalls),
		StateDelta:   map[string]any{},
		deltaMu:      &sync.Mutex{},
		runLogger:    newRunLogger(logger, runID, agent.Name),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// GetState returns a staged (delta) value if present, else the session value.
func (rc *RunContext) GetState(k string) (any, bool) {
	rc.deltaMu.Lock()
	v, ok := rc.StateDelta[k]
	rc.deltaMu.Unlock()

	if ok {
		return v, true
	}

	if rc.Session != nil {
		return rc.Session.GetState(k)
	}

	return nil, false
}

// StateSnapshot merges the session state with the staged delta.
func (rc *RunContext) StateSnapshot() map[string]any {
	state := map[string]any{}
	if rc.Session != nil {
		state = rc.Session.GetStateSnapshot()
	}

	rc.deltaMu.Lock()
	maps.Copy(state, rc.StateDelta)
	rc.deltaMu.Unlock()

	return state
}

// SetState stages a state mutation in the delta buffer.
func (rc *RunContext) SetState(k string, v any) {
	rc.deltaMu.Lock()
	defer rc.deltaMu.Unlock()

	rc.StateDelta[k] = v
}

// FlushState moves the staged delta onto ev. Partial events are left
// untouched so the delta lands on an event the runner persists.
func (rc *RunContext) FlushState(ev *Event) {
	if ev.IsPartial() {
		return
	}

	rc.deltaMu.Lock()
	pending := rc.StateDelta
	rc.StateDelta = map[string]any{}
	rc.deltaMu.Unlock()

	if len(pending) == 0 {
		return
	}

	if ev.Actions.StateDelta == nil {
		ev.Actions.StateDelta = map[string]any{}
	}

	for k, v := range pending {
		if _, set := ev.Actions.StateDelta[k]; !set {
			ev.Actions.StateDelta[k] = v
		}
	}
}

// RefreshSession reloads the live session from the SessionStore.
func (rc *RunContext) RefreshSession() error {
	if rc.SessionStore == nil {
		return nil
	}

	s, err := rc.SessionStore.Get(rc.Key)
	if err != nil {
		return err
	}

	rc.Session = s

	return nil
}

// WithContext returns a copy bound to ctx and agent with a copied delta
// buffer; log entries name the new agent. Stages use it to scope deadlines to a single stage.
func (rc *RunContext) WithContext(ctx context.Context, agent AgentInfo) *RunContext {
	c := *rc
	c.Context = ctx
	c.Agent = agent

	rc.deltaMu.Lock()
	c.StateDelta = maps.Clone(rc.StateDelta)
	rc.deltaMu.Unlock()

	c.deltaMu = &sync.Mutex{}
	c.runLogger = rc.runLogger.bind(agent.Name)

	return &c
}

// EmitEvent flushes the pending StateDelta into the event and emits it.
func (rc *RunContext) EmitEvent(ev Event) error {
	rc.FlushState(&ev)

	select {
	case <-rc.Context.Done():
		return rc.Context.Err()
	case rc.Emit <- ev:
	}

	return nil
}

// WaitForResume blocks until the runner has persisted the last emitted
// event or the context is cancelled.
func (rc *RunContext) WaitForResume() error {
	if rc.Resume == nil {
		return nil
	}

	select {
	case <-rc.Resume:
		return nil
	case <-rc.Context.Done():
		return rc.Context.Err()
	}
}
