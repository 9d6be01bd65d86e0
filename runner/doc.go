// Package runner drives a root agent for one session.
//
// For every run the Runner appends the user event, starts the agent and
// processes what it emits: state deltas are applied, non-partial events are
// appended to the session and every event is forwarded to the caller. After
// persisting a non-partial event the Runner signals resume so the agent's
// next step observes the updated session.
//
// Runs are independent; a Runner value is safe for concurrent use.
package runner
