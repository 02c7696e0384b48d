package atomicwrite

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWriteFile_ReplacesContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data.json")

	require.NoError(t, AtomicWriteFile(path, []byte("one"), 0o600))
	require.NoError(t, AtomicWriteFile(path, []byte("two"), 0o600))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(got))

	// no quedan temporales
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")
	require.NoError(t, WriteJSON(path, map[string]int{"a": 1}, 0o600))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var out map[string]int
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, 1, out["a"])

	assert.Error(t, WriteJSON(path, func() {}, 0o600))
}
