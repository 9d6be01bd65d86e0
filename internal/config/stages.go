package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/writermesh/writer"
)

// stagesFile is the YAML layout of STAGES_FILE:
//
//	stages:
//	  Editor:
//	    instruction: "Proofread: {{.comprehensive_article}}"
//	  Researcher:
//	    search: false
type stagesFile struct {
	Stages writer.Overrides `yaml:"stages"`
}

// ParseStageOverrides decodes stage overrides from YAML. Unknown fields are
// rejected.
func ParseStageOverrides(data []byte) (writer.Overrides, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f stagesFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("config: decode stage overrides: %w", err)
	}

	return f.Stages, nil
}

// LoadStageOverrides reads overrides from path. An empty path yields none.
func LoadStageOverrides(path string) (writer.Overrides, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	return ParseStageOverrides(data)
}
