package tool

import (
	"fmt"
	"strings"
)

// Error codes of a *ToolError produced by FunctionTool.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
)

// ToolError is the failure a tool reports back to the model.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
	Err     error  `json:"-"`
}

func (e *ToolError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("%s failed: %s", e.Tool, e.Message)
	}

	return fmt.Sprintf("%s failed (%s): %s", e.Tool, e.Code, e.Message)
}

func (e *ToolError) Unwrap() error { return e.Err }

// NewToolError reports message from tool under code.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}

// ValidationError describes arguments a tool rejected.
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Value   any    `json:"value,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}

	return fmt.Sprintf("field %s: %s", strings.TrimSpace(e.Field), e.Message)
}
