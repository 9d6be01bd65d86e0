package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/hupe1980/writermesh/core"
	"github.com/hupe1980/writermesh/logging"
)

// Options configures an InMemoryStore.
type Options struct {
	// TTL expires sessions that were never closed. Zero keeps entries until
	// Close is called.
	TTL time.Duration
	// CleanupInterval controls how often expired entries are purged.
	CleanupInterval time.Duration
	// Logger receives eviction notices.
	Logger logging.Logger
}

// InMemoryStore is a volatile SessionStore backed by go-cache. It is safe
// for concurrent access. Sessions are returned by pointer: CreateOrGet with
// the same key yields the same *core.Session until Close removes it.
type InMemoryStore struct {
	cache  *cache.Cache
	closeM sync.Mutex
	logger logging.Logger
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore(optFns ...func(o *Options)) *InMemoryStore {
	opts := Options{
		TTL:             0,
		CleanupInterval: time.Minute,
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	expiration := cache.NoExpiration
	cleanup := time.Duration(0)

	if opts.TTL > 0 {
		expiration = opts.TTL
		cleanup = opts.CleanupInterval
	}

	s := &InMemoryStore{
		cache:  cache.New(expiration, cleanup),
		logger: opts.Logger,
	}

	s.cache.OnEvicted(func(k string, _ any) {
		s.logger.Debug("session.evicted", "key", k)
	})

	return s
}

// CreateOrGet returns the session for key, creating an empty one when absent.
func (s *InMemoryStore) CreateOrGet(key core.SessionKey) (*core.Session, error) {
	k := key.String()

	for {
		sess := core.NewSession(key)
		if err := s.cache.Add(k, sess, cache.DefaultExpiration); err == nil {
			s.logger.Debug("session.created", "key", k)
			return sess, nil
		}

		// Lost the race (or the key already existed): use the stored value.
		// A concurrent Close between Add and Get sends us around again.
		if existing, ok := s.lookup(k); ok {
			return existing, nil
		}
	}
}

// Get returns the live session for key.
func (s *InMemoryStore) Get(key core.SessionKey) (*core.Session, error) {
	sess, ok := s.lookup(key.String())
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrSessionNotFound, key)
	}

	return sess, nil
}

// AppendEvent adds an event to the session history.
func (s *InMemoryStore) AppendEvent(key core.SessionKey, ev core.Event) error {
	sess, err := s.Get(key)
	if err != nil {
		return err
	}

	sess.AddEvent(ev)

	return nil
}

// ApplyDelta merges a key/value delta into the session state.
func (s *InMemoryStore) ApplyDelta(key core.SessionKey, delta map[string]any) error {
	sess, err := s.Get(key)
	if err != nil {
		return err
	}

	sess.ApplyStateDelta(delta)

	return nil
}

// Close removes the session. Closing an unknown key returns
// core.ErrSessionNotFound.
func (s *InMemoryStore) Close(key core.SessionKey) error {
	s.closeM.Lock()
	defer s.closeM.Unlock()

	k := key.String()
	if _, ok := s.cache.Get(k); !ok {
		return fmt.Errorf("%w: %s", core.ErrSessionNotFound, key)
	}

	s.cache.Delete(k)
	s.logger.Debug("session.closed", "key", k)

	return nil
}

// Len reports the number of live sessions.
func (s *InMemoryStore) Len() int { return s.cache.ItemCount() }

func (s *InMemoryStore) lookup(k string) (*core.Session, bool) {
	v, ok := s.cache.Get(k)
	if !ok {
		return nil, false
	}

	sess, ok := v.(*core.Session)

	return sess, ok
}
