// Package session houses concrete implementations of core.SessionStore.
//
// InMemoryStore keeps sessions in a process-local go-cache instance. It is
// the store the pipeline owns by default: one entry per invocation, created
// when the invocation starts and closed when it ends.
package session
