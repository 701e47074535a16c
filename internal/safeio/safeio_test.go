package safeio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFileWithinRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))

	fsys, err := New(root)
	require.NoError(t, err)

	data, err := fsys.ReadFile("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	fsys, err := New(root)
	require.NoError(t, err)

	_, err = fsys.ReadFile("../outside.txt")
	assert.Error(t, err)
	_, err = fsys.ReadFile("")
	assert.Error(t, err)
}

func TestReadDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "f.go"), []byte("x"), 0o644))

	fsys, err := New(root)
	require.NoError(t, err)

	entries, err := fsys.ReadDir("sub")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "f.go", entries[0].Name())
}

func TestNewRejectsMissingRoot(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
