package core

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"
)

// SessionKey identifies a session by application, user and session id.
type SessionKey struct {
	AppName   string `json:"app_name"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

// String renders the key as app/user/session.
func (k SessionKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.AppName, k.UserID, k.SessionID)
}

// Session holds the state and event history of one conversation. It is safe
// for concurrent use; accessors return copies.
type Session struct {
	Key     SessionKey     `json:"key"`
	State   map[string]any `json:"state"`
	Events  []Event        `json:"events"`
	Created time.Time      `json:"created"`
	Updated time.Time      `json:"updated"`
	mu      sync.RWMutex
}

// NewSession creates an empty session for key.
func NewSession(key SessionKey) *Session {
	now := time.Now()

	return &Session{Key: key, State: map[string]any{}, Events: []Event{}, Created: now, Updated: now}
}

// mutate runs fn under the write lock and bumps Updated.
func (s *Session) mutate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn()
	s.Updated = time.Now()
}

// GetState looks up a state key.
func (s *Session) GetState(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.State[key]

	return v, ok
}

// SetState stores value under key.
func (s *Session) SetState(key string, value any) {
	s.mutate(func() { s.State[key] = value })
}

// ApplyStateDelta merges delta into the state. Later keys win.
func (s *Session) ApplyStateDelta(delta map[string]any) {
	s.mutate(func() { maps.Copy(s.State, delta) })
}

// GetStateSnapshot returns a shallow copy of the state.
func (s *Session) GetStateSnapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return maps.Clone(s.State)
}

// AddEvent appends ev to the history.
func (s *Session) AddEvent(ev Event) {
	s.mutate(func() { s.Events = append(s.Events, ev) })
}

// GetEvents returns the whole history.
func (s *Session) GetEvents() []Event {
	return s.EventsWhere(nil)
}

// EventsWhere returns the events keep accepts, in order. A nil keep accepts
// every event.
func (s *Session) EventsWhere(keep func(Event) bool) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if keep == nil {
		return slices.Clone(s.Events)
	}

	var out []Event

	for _, ev := range s.Events {
		if keep(ev) {
			out = append(out, ev)
		}
	}

	return out
}

// SessionStore owns sessions for the lifetime of an invocation.
//
// CreateOrGet is idempotent: the same key yields the same session until
// Close removes it. Every other method returns ErrSessionNotFound for an
// unknown key.
type SessionStore interface {
	CreateOrGet(key SessionKey) (*Session, error)
	Get(key SessionKey) (*Session, error)
	AppendEvent(key SessionKey, event Event) error
	ApplyDelta(key SessionKey, delta map[string]any) error
	Close(key SessionKey) error
}
