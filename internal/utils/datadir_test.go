package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandDefaultPath(t *testing.T) {
	assert.Equal(t, filepath.Join(".data", "storage.sql"), ExpandDefaultPath(".data", "", "storage.sql"))
	assert.Equal(t, "/custom.sql", ExpandDefaultPath(".data", "/custom.sql", "storage.sql"))
}

func TestExpandHomeDir(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".data"), ExpandHomeDir("~/.data"))
	assert.Equal(t, "/tmp/data", ExpandHomeDir("/tmp/data"))
}

func TestCreateDirIfNotExists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "liquid-testnet", "enc_cache")
	require.False(t, FileExists(dir))
	require.NoError(t, CreateDirIfNotExists(dir))
	require.True(t, FileExists(dir))
	require.NoError(t, CreateDirIfNotExists(dir))
}
