// Package model defines the provider-agnostic abstractions for the text
// generation service each pipeline stage calls.
//
// Core goals:
//   - Unify streaming and non-streaming generation behind a single interface
//   - Normalize tool / function call representation (ToolDefinition)
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight stubbing (MockModel, Func)
//
// Providers live in sub-packages (openai, anthropic) so stages remain
// decoupled from vendor SDKs.
package model
