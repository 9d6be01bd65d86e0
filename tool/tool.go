// Package tool implements the function calling subsystem that lets stages
// invoke structured capabilities (web search, nested pipelines) with schema
// validated arguments and consistent error handling.
package tool

import "github.com/hupe1980/writermesh/core"

// Tool is a capability a stage offers to its model. One value serves every
// run of a pipeline, so implementations must be safe for concurrent use.
type Tool interface {
	// Name is the snake_case identifier the model calls the tool by.
	Name() string
	Description() string
	// Parameters is the JSON schema of the arguments object.
	Parameters() map[string]any
	// Call runs the tool on the decoded arguments object.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}
