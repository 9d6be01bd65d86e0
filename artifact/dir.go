package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
)

// DirStore writes artifacts to <root>/<runID>/<name>.
type DirStore struct {
	root string
}

// NewDirStore returns a store rooted at root. The directory is created on
// first save.
func NewDirStore(root string) *DirStore { return &DirStore{root: root} }

// Root returns the base directory.
func (d *DirStore) Root() string { return d.root }

// Path returns the file path of an artifact.
func (d *DirStore) Path(runID, name string) string {
	return filepath.Join(d.root, runID, name)
}

// Save implements Store. Files are written through a temp file and renamed
// into place.
func (d *DirStore) Save(runID, name string, data []byte) error {
	if err := validateName("run id", runID); err != nil {
		return err
	}

	if err := validateName("name", name); err != nil {
		return err
	}

	dir := filepath.Join(d.root, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create artifact dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to write artifact %s: %w", name, err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to close artifact %s: %w", name, err)
	}

	if err := os.Rename(tmp.Name(), d.Path(runID, name)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to move artifact %s into place: %w", name, err)
	}

	return nil
}

// Get implements Store.
func (d *DirStore) Get(runID, name string) ([]byte, error) {
	if err := validateName("name", name); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(d.Path(runID, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}

	return data, err
}

// List implements Store. Temp files are skipped.
func (d *DirStore) List(runID string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(d.root, runID))
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}

	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))

	for _, e := range entries {
		if e.IsDir() || e.Name()[0] == '.' {
			continue
		}

		names = append(names, e.Name())
	}

	slices.Sort(names)

	return names, nil
}

// Delete implements Store.
func (d *DirStore) Delete(runID, name string) error {
	if err := validateName("name", name); err != nil {
		return err
	}

	err := os.Remove(d.Path(runID, name))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}

	return err
}
