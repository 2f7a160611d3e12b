package symindex

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morozRed/maplink/internal/compilation"
	"github.com/morozRed/maplink/internal/symbolmap"
)

func writeSymbolMap(t *testing.T, dir string, rec *compilation.Record) string {
	t.Helper()
	path := filepath.Join(dir, symbolmap.FileName(rec.StrongName))
	var buf bytes.Buffer
	require.NoError(t, symbolmap.NewWriter().Write(&buf, rec))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func fixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeSymbolMap(t, dir, &compilation.Record{
		PermutationID: 0,
		StrongName:    "AAA",
		PropertyMaps:  []map[string]string{{"user.agent": "safari"}},
		Symbols: []compilation.SymbolEntry{
			{SymbolName: "a", ClassName: "com.example.Foo", MemberName: "run", SourceURI: "Foo.java", SourceLine: 12},
			{SymbolName: "b", ClassName: "com.example.Bar", SourceLine: 3, FragmentNumber: 1},
		},
	})
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	writeSymbolMap(t, sub, &compilation.Record{
		PermutationID: 1,
		StrongName:    "BBB",
		PropertyMaps:  []map[string]string{{"user.agent": "gecko1_8"}},
		Symbols: []compilation.SymbolEntry{
			{SymbolName: "a", ClassName: "com.example.Other", MemberName: "go", SourceLine: 7},
		},
	})
	return dir
}

func TestRebuildAndLookup(t *testing.T) {
	dir := fixtureDir(t)
	ctx := context.Background()

	ix, stats, err := Rebuild(ctx, dir, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ix.Close() })
	assert.Equal(t, Stats{Maps: 2, Symbols: 3}, stats)

	entries, err := ix.Lookup(ctx, "a", Query{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "AAA", entries[0].StrongName)
	assert.Equal(t, 0, entries[0].PermutationID)
	assert.Equal(t, "com.example.Foo", entries[0].ClassName)
	assert.Equal(t, "run", entries[0].MemberName)
	assert.Equal(t, "Foo.java", entries[0].SourceURI)
	assert.Equal(t, 12, entries[0].SourceLine)
	assert.Equal(t, "{ 'user.agent' : 'safari' }", entries[0].Properties)
	assert.Equal(t, "BBB", entries[1].StrongName)
	assert.Equal(t, 1, entries[1].PermutationID)

	scoped, err := ix.Lookup(ctx, "a", Query{StrongName: "BBB"})
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "com.example.Other", scoped[0].ClassName)

	limited, err := ix.Lookup(ctx, "a", Query{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := ix.Lookup(ctx, "zzz", Query{})
	require.NoError(t, err)
	assert.Empty(t, none)

	n, err := ix.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRebuildSkipsMalformedMaps(t *testing.T) {
	dir := fixtureDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "BAD.symbolMap"),
		[]byte("# { 2 }\n"+symbolmap.ColumnHeader+"\nx,,Weird,Class,name,,1,0\n"), 0o644))

	ix, stats, err := Rebuild(context.Background(), dir, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ix.Close() })
	assert.Equal(t, 2, stats.Maps)
	assert.Equal(t, 1, stats.Skipped)
}

func TestOpenRebuildsOnlyWhenStale(t *testing.T) {
	dir := fixtureDir(t)
	ctx := context.Background()
	assert.True(t, IsStale(dir))

	ix, stats, err := Open(ctx, dir, false, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Maps)
	require.NoError(t, ix.Close())
	assert.False(t, IsStale(dir))

	ix, stats, err = Open(ctx, dir, false, nil)
	require.NoError(t, err)
	assert.Zero(t, stats.Maps, "fresh index is reused")
	require.NoError(t, ix.Close())

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "AAA.symbolMap"), later, later))
	assert.True(t, IsStale(dir))

	ix, stats, err = Open(ctx, dir, false, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Maps)
	require.NoError(t, ix.Close())
}
