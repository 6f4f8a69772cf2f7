package filex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "app.db")
	require.NoError(t, EnsureParentDir(path))

	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestReadOrCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "device.key")
	calls := 0
	gen := func() []byte {
		calls++
		return []byte("generated")
	}

	first, err := ReadOrCreate(path, gen)
	require.NoError(t, err)
	assert.Equal(t, []byte("generated"), first)

	second, err := ReadOrCreate(path, gen)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestReadOrCreate_UnreadablePath(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadOrCreate(dir, func() []byte { return nil })
	require.Error(t, err)
}
