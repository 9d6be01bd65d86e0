// Package agent contains the agents the writer pipeline is assembled from:
//
//  1. StageAgent runs one model-backed stage (instruction, optional tools,
//     output key) through the single-stage flow
//  2. SequentialAgent runs stages strictly in order, stopping on the first
//     failure, and validates at construction that every stage's input keys
//     are produced by an earlier stage
//
// Agents hold no per-invocation state; everything a run needs travels in the
// *core.RunContext, so one agent value serves concurrent invocations.
package agent
