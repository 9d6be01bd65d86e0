// Package core provides the domain types, interfaces and execution contexts
// shared by every writermesh package:
//
//   - Agents (stages and the sequential pipeline that composes them)
//   - Sessions (keyed state containers with an ordered event history)
//   - Events (immutable records emitted by stages)
//   - RunContext / ToolContext (scoped execution and tool sandboxing)
//
// Concrete stores, agents and model adapters live in sibling packages and
// depend on the small interfaces declared here.
package core
