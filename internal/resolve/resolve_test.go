package resolve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morozRed/maplink/internal/artifact"
	"github.com/morozRed/maplink/internal/ignore"
)

func writeSource(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestResolvePrefersGeneratedSources(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "com/example/Gen.java", "on disk")

	set := artifact.NewSet(
		artifact.NewEmitted("com/example/Gen.java", []byte("generated"), artifact.Source),
		artifact.NewEmitted("com/example/Other.java", []byte("private copy"), artifact.Private),
	)
	r := New(set, NewDirLoader(root), nil)

	content, found, err := r.Resolve("com/example/Gen.java")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "generated", content)

	_, found, err = r.Resolve("com/example/Other.java")
	require.NoError(t, err)
	assert.False(t, found, "only Source visibility artifacts are consulted")
}

func TestResolveFallsBackToSourcePathInOrder(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	writeSource(t, second, "com/example/Hello.java", "second")
	writeSource(t, second, "com/example/Shared.java", "second shared")
	writeSource(t, first, "com/example/Shared.java", "first shared")

	r := New(artifact.NewSet(), NewDirLoader(first, "", second), nil)

	content, found, err := r.Resolve("com/example/Hello.java")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "second", content)

	content, found, err = r.Resolve("com/example/Shared.java")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "first shared", content)
}

func TestResolveMissingIsNotAnError(t *testing.T) {
	r := New(nil, NewDirLoader(t.TempDir()), nil)
	content, found, err := r.Resolve("com/example/Missing.java")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, content)

	_, found, err = New(nil, nil, nil).Resolve("anything.java")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestResolveExclusions(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "com/secret/Key.java", "secret")
	writeSource(t, root, "com/example/Hello.java", "hello")

	r := New(nil, NewDirLoader(root), ignore.NewMatcher([]string{"com/secret/"}))

	_, found, err := r.Resolve("com/secret/Key.java")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = r.Resolve("com/example/Hello.java")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestDirLoaderStaysInsideRoots(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "src")
	require.NoError(t, os.MkdirAll(root, 0o755))
	writeSource(t, parent, "outside.java", "nope")

	loader := NewDirLoader(root)
	for _, name := range []string{"../outside.java", "a/../../outside.java", "..", ""} {
		_, found, err := loader.Load(name)
		require.NoError(t, err, name)
		assert.False(t, found, name)
	}
}

func TestDirLoaderSkipsDirectories(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(first, "com", "Dir.java"), 0o755))
	writeSource(t, second, "com/Dir.java", "file")

	content, found, err := NewDirLoader(first, second).Load("com/Dir.java")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "file", content)
}
