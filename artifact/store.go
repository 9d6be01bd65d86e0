package artifact

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Store persists artifacts per run. Implementations are safe for concurrent use.
type Store interface {
	Save(runID, name string, data []byte) error
	Get(runID, name string) ([]byte, error)
	List(runID string) ([]string, error)
	Delete(runID, name string) error
}

func validateName(kind, name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return fmt.Errorf("%w: %s %q", ErrInvalidName, kind, name)
	}

	return nil
}
