package writer

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	internalutil "github.com/hupe1980/writermesh/internal/util"
)

var (
	// ErrUnknownStage is returned when an override names a stage that does not exist.
	ErrUnknownStage = errors.New("unknown stage")
	// ErrUndeclaredKey is returned when an instruction references state the
	// stage does not read.
	ErrUndeclaredKey = errors.New("instruction references undeclared key")
)

// StageOverride replaces parts of a stage definition. Empty fields keep the
// default.
type StageOverride struct {
	Instruction string `yaml:"instruction"`
	Description string `yaml:"description"`
	// Search toggles the web_search tool for the stage.
	Search *bool `yaml:"search,omitempty"`
}

// Overrides maps stage identities to their overrides.
type Overrides map[string]StageOverride

// ApplyOverrides returns a copy of stages with overrides applied. Overridden
// instructions must parse as templates and may only reference the stage's
// input keys.
func ApplyOverrides(stages []StageSpec, overrides Overrides) ([]StageSpec, error) {
	out := make([]StageSpec, len(stages))
	index := make(map[string]int, len(stages))

	for i, s := range stages {
		s.InputKeys = append([]string(nil), s.InputKeys...)
		out[i] = s
		index[s.Name] = i
	}

	for name, o := range overrides {
		i, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownStage, name)
		}

		if instruction := strings.TrimSpace(o.Instruction); instruction != "" {
			fields, err := internalutil.TemplateFields(instruction)
			if err != nil {
				return nil, fmt.Errorf("invalid instruction for stage %s: %w", name, err)
			}

			for _, f := range fields {
				if !slices.Contains(out[i].InputKeys, f) {
					return nil, fmt.Errorf("%w: stage %s reads %q", ErrUndeclaredKey, name, f)
				}
			}

			out[i].Instruction = instruction
		}

		if o.Description != "" {
			out[i].Description = o.Description
		}

		if o.Search != nil {
			out[i].Search = *o.Search
		}
	}

	return out, nil
}
