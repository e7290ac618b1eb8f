package persist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStorageRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")

	s, err := NewFileStorage(path)
	require.NoError(t, err)

	_, ok, err := s.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set("a", "one"))
	require.NoError(t, s.Set("b", "two"))
	require.NoError(t, s.Delete("a"))

	// A fresh handle sees the persisted state.
	reopened, err := NewFileStorage(path)
	require.NoError(t, err)

	_, ok, err = reopened.Get("a")
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err := reopened.Get("b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "two", v)
}

func TestFileStorageMissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	s, err := NewFileStorage(filepath.Join(t.TempDir(), "nope", "state.json"))
	require.NoError(t, err)
	_, ok, err := s.Get("anything")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStorageRejectsGarbage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileStorage(path)
	require.Error(t, err)
}
