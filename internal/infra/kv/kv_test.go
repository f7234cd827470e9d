package kv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_GetSetDelete(t *testing.T) {
	s := NewMemory()

	_, ok, err := s.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set("k", []byte(`{"a":1}`)))

	v, ok, err := s.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(v))

	require.NoError(t, s.Delete("k"))
	_, ok, err = s.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting an absent key is not an error.
	require.NoError(t, s.Delete("k"))
}

func TestMemory_CopiesValues(t *testing.T) {
	s := NewMemory()
	val := []byte(`"x"`)
	require.NoError(t, s.Set("k", val))

	val[1] = 'y' // mutate caller's slice

	got, ok, err := s.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `"x"`, string(got))
}

func TestFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	s, err := NewFile(path)
	require.NoError(t, err)

	require.NoError(t, s.Set("numba_cart", []byte(`[]`)))
	require.NoError(t, s.Set("numba_play_counts", []byte(`{"r-track-1":3}`)))

	// Reopen and verify persistence.
	s2, err := NewFile(path)
	require.NoError(t, err)

	v, ok, err := s2.Get("numba_play_counts")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"r-track-1":3}`, string(v))
}

func TestFile_MissingFileIsEmpty(t *testing.T) {
	s, err := NewFile(filepath.Join(t.TempDir(), "nope", "state.json"))
	require.NoError(t, err)

	_, ok, err := s.Get("anything")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFile_CorruptFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("not json at all"), 0o644))

	s, err := NewFile(path)
	require.NoError(t, err)

	_, ok, err := s.Get("key")
	require.NoError(t, err)
	assert.False(t, ok)

	// The store is writable after recovering from corruption.
	require.NoError(t, s.Set("key", []byte(`true`)))
}

func TestFile_RejectsInvalidJSON(t *testing.T) {
	s, err := NewFile(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	assert.Error(t, s.Set("key", []byte("{broken")))
}
