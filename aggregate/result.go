package aggregate

import (
	"maps"
	"slices"

	"github.com/hupe1980/writermesh/core"
)

// Keys of the result mapping besides the stage identities.
const (
	KeyWarning = "warning"
	KeyError   = "error"
	KeyStatus  = "status"

	StatusFailed = "failed"
)

// EmptyTopicMessage is reported for empty or whitespace-only topics.
const EmptyTopicMessage = "Topic cannot be empty"

// FailureKind classifies why a run failed.
type FailureKind string

const (
	// KindInput marks a rejected request. Nothing ran.
	KindInput FailureKind = "input"
	// KindExecution marks a stage, model or session failure.
	KindExecution FailureKind = "execution"
	// KindCancelled marks a run stopped by its caller.
	KindCancelled FailureKind = "cancelled"
)

// Failure describes why a run did not complete.
type Failure struct {
	Kind    FailureKind
	Message string
	Err     error
}

// Error implements error.
func (f *Failure) Error() string { return f.Message }

// Unwrap returns the underlying error, if any.
func (f *Failure) Unwrap() error { return f.Err }

// Result is the outcome of one pipeline invocation.
type Result struct {
	RunID string
	// Stages lists the expected stage identities in execution order.
	Stages []string
	// Outputs maps stage identities to their final text.
	Outputs map[string]string
	Warning string
	Failure *Failure
}

// Invalid returns the result for a rejected request.
func Invalid(message string, err error) Result {
	return Result{
		Outputs: map[string]string{},
		Failure: &Failure{Kind: KindInput, Message: message, Err: err},
	}
}

// Failed returns the result for a run that failed before producing events.
func Failed(stages []string, err error) Result {
	return Result{
		Stages:  append([]string(nil), stages...),
		Outputs: map[string]string{},
		Failure: &Failure{Kind: KindExecution, Message: err.Error(), Err: err},
	}
}

// InvalidTopic is the result for an empty topic.
func InvalidTopic() Result { return Invalid(EmptyTopicMessage, core.ErrEmptyTopic) }

// OK reports whether every expected stage produced output without failure.
func (r Result) OK() bool {
	return r.Failure == nil && len(r.Missing()) == 0
}

// Status is a short label for logs and transports: ok, incomplete, failed
// or invalid.
func (r Result) Status() string {
	switch {
	case r.Failure != nil && r.Failure.Kind == KindInput:
		return "invalid"
	case r.Failure != nil:
		return StatusFailed
	case r.Warning != "" || len(r.Missing()) > 0:
		return "incomplete"
	default:
		return "ok"
	}
}

// Missing returns the expected stages without output, in execution order.
func (r Result) Missing() []string {
	var missing []string

	for _, s := range r.Stages {
		if _, ok := r.Outputs[s]; !ok {
			missing = append(missing, s)
		}
	}

	return missing
}

// Output returns the text of stage.
func (r Result) Output(stage string) (string, bool) {
	text, ok := r.Outputs[stage]
	return text, ok
}

// Last returns the output of the latest stage that produced one.
func (r Result) Last() (string, bool) {
	for _, s := range slices.Backward(r.Stages) {
		if text, ok := r.Outputs[s]; ok {
			return text, true
		}
	}

	return "", false
}

// Map renders the caller mapping.
//
//   - success: exactly the stage identities
//   - incomplete: present stages plus "warning"
//   - failure: present stages plus "error" and "status": "failed"
//   - invalid input: only "error"
func (r Result) Map() map[string]string {
	if r.Failure != nil && r.Failure.Kind == KindInput {
		return map[string]string{KeyError: r.Failure.Message}
	}

	m := maps.Clone(r.Outputs)
	if m == nil {
		m = map[string]string{}
	}

	if r.Failure != nil {
		m[KeyError] = r.Failure.Message
		m[KeyStatus] = StatusFailed

		return m
	}

	if r.Warning != "" {
		m[KeyWarning] = r.Warning
	}

	return m
}
