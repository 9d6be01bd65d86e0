package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/writermesh/core"
	"github.com/hupe1980/writermesh/session"
)

// scriptAgent emits a fixed list of events, waiting for resume after each
// non-partial one, then returns err.
type scriptAgent struct {
	events []core.Event
	err    error
	block  bool
}

func (a *scriptAgent) Name() string        { return "script" }
func (a *scriptAgent) Description() string { return "emits scripted events" }

func (a *scriptAgent) Run(runCtx *core.RunContext) error {
	for _, ev := range a.events {
		ev.RunID = runCtx.RunID
		if err := runCtx.EmitEvent(ev); err != nil {
			return err
		}
		if !ev.IsPartial() {
			if err := runCtx.WaitForResume(); err != nil {
				return err
			}
		}
	}

	if a.block {
		<-runCtx.Done()
		return runCtx.Err()
	}

	return a.err
}

var key = core.SessionKey{AppName: "app", UserID: "user", SessionID: "s1"}

func newRunner(t *testing.T, agent core.Agent) (*Runner, *session.InMemoryStore) {
	t.Helper()

	store := session.NewInMemoryStore()
	_, err := store.CreateOrGet(key)
	require.NoError(t, err)

	return New(agent, func(o *Options) { o.SessionStore = store }), store
}

func collect(events <-chan core.Event, errs <-chan error) ([]core.Event, error) {
	var got []core.Event
	for ev := range events {
		got = append(got, ev)
	}

	return got, <-errs
}

func textEvent(author, text string) core.Event {
	return core.NewMessageEvent("", author, text)
}

func TestRunner_PersistsAndForwards(t *testing.T) {
	partial := textEvent("Writer", "dr")
	partial.Partial = true

	final := textEvent("Writer", "draft")
	final.Actions.StateDelta = map[string]any{"comprehensive_article": "draft"}

	r, store := newRunner(t, &scriptAgent{events: []core.Event{partial, final}})

	runID, events, errs, err := r.Run(context.Background(), key, core.NewTextContent("user", "topic"))
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	got, runErr := collect(events, errs)
	require.NoError(t, runErr)
	require.Len(t, got, 2)
	assert.True(t, got[0].IsPartial())
	assert.Equal(t, runID, got[1].RunID)

	sess, err := store.Get(key)
	require.NoError(t, err)

	v, ok := sess.GetState("comprehensive_article")
	require.True(t, ok)
	assert.Equal(t, "draft", v)

	// user event + final; partials are never persisted
	history := sess.GetEvents()
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Author)
	assert.Equal(t, "draft", history[1].Text())

	assert.Eventually(t, func() bool { return r.ActiveRuns() == 0 }, time.Second, 5*time.Millisecond)
}

func TestRunner_AgentError(t *testing.T) {
	boom := errors.New("boom")
	r, _ := newRunner(t, &scriptAgent{events: []core.Event{textEvent("Researcher", "notes")}, err: boom})

	_, events, errs, err := r.Run(context.Background(), key, core.NewTextContent("user", "topic"))
	require.NoError(t, err)

	got, runErr := collect(events, errs)
	assert.Len(t, got, 1)
	assert.ErrorIs(t, runErr, boom)
}

func TestRunner_MissingSession(t *testing.T) {
	r := New(&scriptAgent{})

	_, _, _, err := r.Run(context.Background(), key, core.NewTextContent("user", "topic"))
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestRunner_Cancel(t *testing.T) {
	r, _ := newRunner(t, &scriptAgent{block: true})

	runID, events, errs, err := r.Run(context.Background(), key, core.NewTextContent("user", "topic"))
	require.NoError(t, err)

	require.NoError(t, r.Cancel(runID))

	_, runErr := collect(events, errs)
	assert.ErrorIs(t, runErr, context.Canceled)

	assert.Error(t, r.Cancel("unknown"))
}

func TestRunner_CallerContextCancelled(t *testing.T) {
	r, _ := newRunner(t, &scriptAgent{block: true})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, events, errs, err := r.Run(ctx, key, core.NewTextContent("user", "topic"))
	require.NoError(t, err)

	_, runErr := collect(events, errs)
	assert.ErrorIs(t, runErr, context.DeadlineExceeded)
}

func TestRunner_PersistFailureStopsRun(t *testing.T) {
	store := session.NewInMemoryStore()
	_, err := store.CreateOrGet(key)
	require.NoError(t, err)

	agent := &scriptAgent{events: []core.Event{textEvent("Researcher", "notes"), textEvent("Writer", "draft")}}
	r := New(agent, func(o *Options) { o.SessionStore = &closingStore{InMemoryStore: store} })

	_, events, errs, err := r.Run(context.Background(), key, core.NewTextContent("user", "topic"))
	require.NoError(t, err)

	got, runErr := collect(events, errs)
	assert.Empty(t, got)
	assert.ErrorIs(t, runErr, core.ErrSessionNotFound)
}

// closingStore loses the session right after the user event is appended.
type closingStore struct {
	*session.InMemoryStore
	appended int
}

func (c *closingStore) AppendEvent(k core.SessionKey, ev core.Event) error {
	c.appended++
	if c.appended == 2 {
		_ = c.InMemoryStore.Close(k)
	}

	return c.InMemoryStore.AppendEvent(k, ev)
}
