package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/writermesh/core"
)

var _ core.SessionStore = (*InMemoryStore)(nil)

func testKey(id string) core.SessionKey {
	return core.SessionKey{AppName: "writer-multi-agent", UserID: "user", SessionID: id}
}

func TestInMemoryStore_CreateOrGetIsIdempotent(t *testing.T) {
	store := NewInMemoryStore()
	key := testKey("s1")

	first, err := store.CreateOrGet(key)
	require.NoError(t, err)

	second, err := store.CreateOrGet(key)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, store.Len())

	first.SetState("research_results", "facts")
	v, ok := second.GetState("research_results")
	assert.True(t, ok)
	assert.Equal(t, "facts", v)
}

func TestInMemoryStore_DistinctKeysAreIsolated(t *testing.T) {
	store := NewInMemoryStore()

	a, err := store.CreateOrGet(testKey("a"))
	require.NoError(t, err)
	b, err := store.CreateOrGet(core.SessionKey{AppName: "writer-multi-agent", UserID: "other", SessionID: "a"})
	require.NoError(t, err)

	assert.NotSame(t, a, b)

	require.NoError(t, store.ApplyDelta(a.Key, map[string]any{"k": "a"}))
	_, ok := b.GetState("k")
	assert.False(t, ok)
}

func TestInMemoryStore_UnknownKey(t *testing.T) {
	store := NewInMemoryStore()
	key := testKey("missing")

	_, err := store.Get(key)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
	assert.ErrorIs(t, store.AppendEvent(key, core.NewEvent("run", "x")), core.ErrSessionNotFound)
	assert.ErrorIs(t, store.ApplyDelta(key, map[string]any{"a": 1}), core.ErrSessionNotFound)
	assert.ErrorIs(t, store.Close(key), core.ErrSessionNotFound)
}

func TestInMemoryStore_AppendAndClose(t *testing.T) {
	store := NewInMemoryStore()
	key := testKey("s1")

	_, err := store.CreateOrGet(key)
	require.NoError(t, err)

	require.NoError(t, store.AppendEvent(key, core.NewMessageEvent("run", "Researcher", "report")))
	sess, err := store.Get(key)
	require.NoError(t, err)
	assert.Len(t, sess.GetEvents(), 1)

	require.NoError(t, store.Close(key))
	assert.Equal(t, 0, store.Len())

	_, err = store.Get(key)
	assert.ErrorIs(t, err, core.ErrSessionNotFound)

	// A closed key starts over with fresh state.
	fresh, err := store.CreateOrGet(key)
	require.NoError(t, err)
	assert.Empty(t, fresh.GetEvents())
}

func TestInMemoryStore_ConcurrentCreateOrGet(t *testing.T) {
	store := NewInMemoryStore()
	key := testKey("shared")

	const n = 32
	results := make([]*core.Session, n)

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := store.CreateOrGet(key)
			assert.NoError(t, err)
			results[i] = s
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Same(t, results[0], results[i])
	}
}

func TestInMemoryStore_ConcurrentDistinctSessions(t *testing.T) {
	store := NewInMemoryStore()

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := testKey(fmt.Sprintf("s-%d", i))
			_, err := store.CreateOrGet(key)
			assert.NoError(t, err)
			assert.NoError(t, store.ApplyDelta(key, map[string]any{"i": i}))
			assert.NoError(t, store.Close(key))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, store.Len())
}

func TestInMemoryStore_TTL(t *testing.T) {
	store := NewInMemoryStore(func(o *Options) {
		o.TTL = 20 * time.Millisecond
		o.CleanupInterval = 5 * time.Millisecond
	})

	key := testKey("ttl")
	_, err := store.CreateOrGet(key)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, err := store.Get(key)
		return err != nil
	}, time.Second, 10*time.Millisecond)
}
