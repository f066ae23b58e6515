package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shayan-nathan/airbyte/pkg/connector/core"
	"github.com/shayan-nathan/airbyte/pkg/errors"
)

func TestLoadMissingFile(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "state.json"))
	st, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, st)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	s := NewStore(path)

	want := core.State{
		"pages":    {"last_edited_time": "2021-10-10T04:40:00.000Z"},
		"comments": {"page_last_edited_time": "2021-10-11T00:00:00.000Z"},
	}
	require.NoError(t, s.Save(want))

	got, err := NewStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must not be left behind")
}

func TestUpdateMergesStreams(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, s.Save(core.State{"pages": {"last_edited_time": "2021-01-01T00:00:00.000Z"}}))

	st, err := s.Update("blocks", core.StreamState{"last_edited_time": "2021-02-01T00:00:00.000Z"})
	require.NoError(t, err)
	assert.Len(t, st, 2)

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "2021-02-01T00:00:00.000Z", loaded["blocks"]["last_edited_time"])
	assert.Equal(t, "2021-01-01T00:00:00.000Z", loaded["pages"]["last_edited_time"])
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewStore(path).Load()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o600))

	st, err := NewStore(path).Load()
	require.NoError(t, err)
	assert.Empty(t, st)
}
