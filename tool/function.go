package tool

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hupe1980/writermesh/core"
)

var argsValidator = newArgsValidator()

func newArgsValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _ := jsonName(f)
		return name
	})

	return v
}

// FunctionTool exposes a Go function as a Tool. Argument problems surface as
// a *ToolError with CodeValidation and other failures as CodeExecution; a
// *ToolError returned by the function is passed through.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// NewFunctionTool builds a tool from an explicit schema. Only the presence of
// the schema's required keys is checked before fn runs.
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(toolCtx *core.ToolContext, args map[string]any) (any, error),
) *FunctionTool {
	return &FunctionTool{name: name, description: description, parameters: parameters, fn: fn}
}

// NewTypedTool builds a tool whose arguments decode into the struct T. The
// schema comes from SchemaOf and the decoded value is checked against its
// validate tags before fn runs.
func NewTypedTool[T any](name, description string, fn func(toolCtx *core.ToolContext, args T) (any, error)) *FunctionTool {
	var zero T

	return NewFunctionTool(name, description, SchemaOf(zero), func(tc *core.ToolContext, raw map[string]any) (any, error) {
		args, err := decodeArgs[T](raw)
		if err != nil {
			return nil, err
		}

		return fn(tc, args)
	})
}

func decodeArgs[T any](raw map[string]any) (T, error) {
	var args T

	data, err := json.Marshal(raw)
	if err == nil {
		err = json.Unmarshal(data, &args)
	}

	if err != nil {
		return args, &ValidationError{Message: err.Error()}
	}

	if err := argsValidator.Struct(args); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			fe := fieldErrs[0]
			return args, &ValidationError{Field: fe.Field(), Value: fe.Value(), Message: fmt.Sprintf("failed on the %q rule", fe.Tag())}
		}

		return args, &ValidationError{Message: err.Error()}
	}

	return args, nil
}

// Name implements Tool.
func (t *FunctionTool) Name() string { return t.name }

// Description implements Tool.
func (t *FunctionTool) Description() string { return t.description }

// Parameters implements Tool.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call implements Tool.
func (t *FunctionTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	logger := toolCtx.Logger()
	start := time.Now()

	for _, key := range requiredKeys(t.parameters) {
		if _, ok := args[key]; !ok {
			return nil, t.fail(toolCtx, &ValidationError{Field: key, Message: "required field is missing"})
		}
	}

	result, err := t.fn(toolCtx, args)
	if err != nil {
		return nil, t.fail(toolCtx, err)
	}

	logger.Info("tool.call.success", "tool", t.name, "fc_id", toolCtx.FunctionCallID(), "duration_ms", time.Since(start).Milliseconds())

	return result, nil
}

func (t *FunctionTool) fail(toolCtx *core.ToolContext, err error) *ToolError {
	var (
		toolErr  *ToolError
		validErr *ValidationError
	)

	switch {
	case errors.As(err, &toolErr):
	case errors.As(err, &validErr):
		toolErr = &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", validErr),
			Code:    CodeValidation,
			Details: validErr,
			Err:     validErr,
		}
	default:
		toolErr = &ToolError{Tool: t.name, Message: err.Error(), Code: CodeExecution, Err: err}
	}

	toolCtx.Logger().Warn("tool.call.failed", "tool", t.name, "fc_id", toolCtx.FunctionCallID(), "code", toolErr.Code, "error", toolErr.Message)

	return toolErr
}
