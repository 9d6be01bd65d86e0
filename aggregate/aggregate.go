package aggregate

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/writermesh/core"
)

// StageOutput is the closed set of stage outputs an event can carry:
// Partial or Final.
type StageOutput interface {
	stageOutput()
}

// Partial is a streaming fragment of a stage's text. It is never folded
// into a Result.
type Partial struct {
	Stage string
	Text  string
}

// Final is the completed text of a stage.
type Final struct {
	Stage string
	Text  string
}

func (Partial) stageOutput() {}
func (Final) stageOutput()   {}

// Classify derives the stage output carried by ev. Tool calls and tool
// responses carry none and report false.
func Classify(ev core.Event) (StageOutput, bool) {
	switch {
	case ev.IsPartial():
		return Partial{Stage: ev.Author, Text: ev.Text()}, true
	case ev.IsFinalResponse():
		return Final{Stage: ev.Author, Text: ev.Text()}, true
	default:
		return nil, false
	}
}

// Collect folds a run's event stream into a Result.
//
// Events are consumed as they arrive until the events channel closes; the
// errors channel is read afterwards. Only Final outputs of the expected
// stages count, the last one per stage wins and blank text counts as
// missing. Collect never fails: a run error becomes a Failure and missing
// stages become a Warning.
func Collect(ctx context.Context, stages []string, events <-chan core.Event, errs <-chan error) Result {
	expected := make(map[string]struct{}, len(stages))
	for _, s := range stages {
		expected[s] = struct{}{}
	}

	result := Result{
		Stages:  append([]string(nil), stages...),
		Outputs: make(map[string]string, len(stages)),
	}

	for ev := range events {
		out, ok := Classify(ev)
		if !ok {
			continue
		}

		final, ok := out.(Final)
		if !ok {
			continue
		}

		if _, ok := expected[final.Stage]; !ok {
			continue
		}

		if strings.TrimSpace(final.Text) == "" {
			continue
		}

		result.Outputs[final.Stage] = final.Text
	}

	var err error
	if errs != nil {
		err = <-errs
	}

	switch {
	case err != nil && ctx.Err() != nil:
		result.Failure = &Failure{Kind: KindCancelled, Message: err.Error(), Err: err}
	case err != nil:
		result.Failure = &Failure{Kind: KindExecution, Message: err.Error(), Err: err}
	default:
		if missing := result.Missing(); len(missing) > 0 {
			result.Warning = fmt.Sprintf("pipeline incomplete: missing output from %s", strings.Join(missing, ", "))
		}
	}

	return result
}
