package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Store = (*DirStore)(nil)

func TestDirStore_RoundTrip(t *testing.T) {
	store := NewDirStore(t.TempDir())

	require.NoError(t, store.Save("run-1", "final_article.md", []byte("# Title")))

	raw, err := os.ReadFile(filepath.Join(store.Root(), "run-1", "final_article.md"))
	require.NoError(t, err)
	assert.Equal(t, "# Title", string(raw))

	data, err := store.Get("run-1", "final_article.md")
	require.NoError(t, err)
	assert.Equal(t, "# Title", string(data))

	require.NoError(t, store.Save("run-1", "final_article.md", []byte("# Edited")))
	data, err = store.Get("run-1", "final_article.md")
	require.NoError(t, err)
	assert.Equal(t, "# Edited", string(data))

	names, err := store.List("run-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"final_article.md"}, names)

	require.NoError(t, store.Delete("run-1", "final_article.md"))
	_, err = store.Get("run-1", "final_article.md")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete("run-1", "final_article.md"), ErrNotFound)
}

func TestDirStore_ListUnknownRun(t *testing.T) {
	names, err := NewDirStore(t.TempDir()).List("nope")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestDirStore_RejectsTraversal(t *testing.T) {
	store := NewDirStore(t.TempDir())

	assert.ErrorIs(t, store.Save("run-1", "../escape.txt", []byte("x")), ErrInvalidName)
	assert.ErrorIs(t, store.Save("..", "a.txt", []byte("x")), ErrInvalidName)
}
