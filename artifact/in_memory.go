package artifact

import (
	"slices"
	"sync"
)

type memKey struct{ runID, name string }

// InMemoryStore keeps artifacts in process memory. Bytes are copied in and
// out so callers never share a buffer with the store.
type InMemoryStore struct {
	mu   sync.RWMutex
	data map[memKey][]byte
}

// NewInMemoryStore returns an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{data: make(map[memKey][]byte)}
}

// Save implements Store. An existing artifact is replaced.
func (a *InMemoryStore) Save(runID, name string, data []byte) error {
	for _, v := range [][2]string{{"run id", runID}, {"name", name}} {
		if err := validateName(v[0], v[1]); err != nil {
			return err
		}
	}

	a.mu.Lock()
	a.data[memKey{runID, name}] = slices.Clone(data)
	a.mu.Unlock()

	return nil
}

// Get implements Store.
func (a *InMemoryStore) Get(runID, name string) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if data, ok := a.data[memKey{runID, name}]; ok {
		return slices.Clone(data), nil
	}

	return nil, ErrNotFound
}

// List implements Store. Names come back sorted; an unknown run lists
// nothing.
func (a *InMemoryStore) List(runID string) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := []string{}

	for k := range a.data {
		if k.runID == runID {
			names = append(names, k.name)
		}
	}

	slices.Sort(names)

	return names, nil
}

// Delete implements Store.
func (a *InMemoryStore) Delete(runID, name string) error {
	k := memKey{runID, name}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.data[k]; !ok {
		return ErrNotFound
	}

	delete(a.data, k)

	return nil
}
