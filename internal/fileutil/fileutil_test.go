package fileutil

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteIfChangedTracked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deploy", "hello", "AAA.symbolMap")

	wrote, err := WriteIfChangedTracked(path, []byte("one"))
	require.NoError(t, err)
	assert.True(t, wrote)

	wrote, err = WriteIfChangedTracked(path, []byte("one"))
	require.NoError(t, err)
	assert.False(t, wrote)

	wrote, err = WriteIfChangedTracked(path, []byte("two"))
	require.NoError(t, err)
	assert.True(t, wrote)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestWriteIfChangedFailsWhenParentIsAFile(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "deploy")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := WriteIfChangedTracked(filepath.Join(blocker, "out.json"), []byte("{}"))
	assert.Error(t, err)
}

func TestHashes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	fromFile, err := HashFile(path)
	require.NoError(t, err)
	assert.Len(t, fromFile, 16)
	assert.Equal(t, HashBytes([]byte("hello")), fromFile)
	assert.NotEqual(t, HashBytes([]byte("hello!")), fromFile)
}

func TestJSONHelpers(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSONL(&buf, []map[string]string{{"a": "<b>"}, {"c": "d"}}))
	assert.Equal(t, "{\"a\":\"<b>\"}\n{\"c\":\"d\"}\n", buf.String())

	buf.Reset()
	require.NoError(t, PrintJSON(&buf, map[string]int{"n": 1}))
	assert.Equal(t, "{\n  \"n\": 1\n}\n", buf.String())
}

func TestStrings(t *testing.T) {
	assert.Equal(t, []string{"b", "a"}, DedupeStrings([]string{"b", "a", "b"}))
	assert.Equal(t, []string{"a", "b"}, SortedKeys(map[string]bool{"b": true, "a": false}))
}
