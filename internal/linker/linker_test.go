package linker

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morozRed/maplink/internal/artifact"
	"github.com/morozRed/maplink/internal/compilation"
	"github.com/morozRed/maplink/internal/edits"
	"github.com/morozRed/maplink/internal/resolve"
	"github.com/morozRed/maplink/internal/sourcemap"
)

const rawMap = `{"version":3,"file":"frag.js","sources":["com/example/Hello.java","com/example/Gen.java"],"names":["hello"],"mappings":"AAAA,IAAIA;ACCA","x_gwt":1}`

type recordingObserver struct {
	events []string
}

func (o *recordingObserver) Begin(ctx context.Context, phase Phase) (context.Context, func()) {
	o.events = append(o.events, "begin "+string(phase))
	return ctx, func() { o.events = append(o.events, "end "+string(phase)) }
}

func record(id int, strongName string, soft ...map[string]string) *compilation.Record {
	rec := &compilation.Record{
		PermutationID: id,
		StrongName:    strongName,
		PropertyMaps:  []map[string]string{{"user.agent": "safari"}},
		Symbols: []compilation.SymbolEntry{
			{SymbolName: "foo.bar", ClassName: "Bar", MemberName: "bar", SourceURI: "Bar.java", SourceLine: 10},
		},
	}
	for i, props := range soft {
		rec.SoftPermutations = append(rec.SoftPermutations, compilation.SoftPermutation{ID: i, Properties: props})
	}
	return rec
}

func prefixed(strongName string, fragment int, scripts ...string) *edits.Set {
	set := edits.NewSet(strongName, fragment)
	for _, script := range scripts {
		set.PrefixLines(script)
	}
	return set
}

func emitted(t *testing.T, set *artifact.Set, path string) *artifact.Emitted {
	t.Helper()
	a, ok := set.Get(artifact.EmittedKey(path))
	require.True(t, ok, "missing %s", path)
	e, ok := a.(*artifact.Emitted)
	require.True(t, ok)
	return e
}

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func TestLinkEmitsSymbolMaps(t *testing.T) {
	in := artifact.NewSet(record(3, "ABCDEF"))
	out, result, err := New(Options{}).Link(context.Background(), in, true)
	require.NoError(t, err)

	symbolMap := emitted(t, out, "ABCDEF.symbolMap")
	assert.Equal(t, artifact.LegacyDeploy, symbolMap.Visibility)
	assert.Equal(t, "# { 3 }\n"+
		"# { 'user.agent' : 'safari' }\n"+
		"# jsName, jsniIdent, className, memberName, sourceUri, sourceLine, fragmentNumber\n"+
		"foo.bar,,Bar,bar,Bar.java,10,0\n", string(symbolMap.Contents))
	assert.Equal(t, 1, result.SymbolMapsWritten)
	assert.Equal(t, 1, in.Len(), "input set is not modified")
}

func TestLinkSymbolMapSwitchLastWriteWins(t *testing.T) {
	in := artifact.NewSet(
		record(0, "OFF", map[string]string{compilation.SymbolMapsProperty: "true"}, map[string]string{compilation.SymbolMapsProperty: "false"}),
		record(1, "ON", map[string]string{compilation.SymbolMapsProperty: "false"}, map[string]string{compilation.SymbolMapsProperty: "TRUE"}),
		record(2, "DEFAULT", map[string]string{"other": "x"}),
	)
	out, result, err := New(Options{}).Link(context.Background(), in, true)
	require.NoError(t, err)

	_, ok := out.Get(artifact.EmittedKey("OFF.symbolMap"))
	assert.False(t, ok)
	emitted(t, out, "ON.symbolMap")
	emitted(t, out, "DEFAULT.symbolMap")
	assert.Equal(t, 2, result.SymbolMapsWritten)
	assert.Equal(t, 1, result.SymbolMapsSkipped)
	assert.Equal(t, 3, result.Permutations)
}

func TestLinkSharedBufferDoesNotLeakBetweenPermutations(t *testing.T) {
	long := record(0, "LONG")
	for i := 0; i < 50; i++ {
		long.Symbols = append(long.Symbols, compilation.SymbolEntry{SymbolName: "x", ClassName: "Y"})
	}
	short := record(1, "SHORT")

	out, _, err := New(Options{}).Link(context.Background(), artifact.NewSet(long, short), true)
	require.NoError(t, err)
	assert.Equal(t, 4, bytes.Count(emitted(t, out, "SHORT.symbolMap").Contents, []byte("\n")))
	assert.Equal(t, 54, bytes.Count(emitted(t, out, "LONG.symbolMap").Contents, []byte("\n")))
}

func TestLinkPassesThroughUneditedSourceMaps(t *testing.T) {
	raw := &sourcemap.Artifact{PermutationID: 3, Fragment: 2, Contents: []byte(rawMap), SourceRoot: "https://ignored/"}
	out, result, err := New(Options{}).Link(context.Background(), artifact.NewSet(record(3, "ABCDEF"), raw), true)
	require.NoError(t, err)

	linked := emitted(t, out, "ABCDEF_sourceMap2.json")
	assert.Equal(t, rawMap, string(linked.Contents))
	assert.Equal(t, artifact.LegacyDeploy, linked.Visibility)
	assert.Empty(t, artifact.Find[*sourcemap.Artifact](out))
	assert.Equal(t, 1, result.SourceMapsPassedThrough)
}

func TestLinkShiftsEditedSourceMaps(t *testing.T) {
	raw := &sourcemap.Artifact{PermutationID: 3, Fragment: 2, Contents: []byte(rawMap), SourceRoot: "https://src.example/"}
	in := artifact.NewSet(record(3, "ABCDEF"), raw, prefixed("ABCDEF", 2, "\n\n\n"), prefixed("ABCDEF", 0, "\n"))

	out, result, err := New(Options{}).Link(context.Background(), in, true)
	require.NoError(t, err)

	linked, err := sourcemap.Parse(emitted(t, out, "ABCDEF_sourceMap2.json").Contents)
	require.NoError(t, err)
	original, err := sourcemap.Parse([]byte(rawMap))
	require.NoError(t, err)

	require.Len(t, linked.Mappings, len(original.Mappings))
	for i, m := range original.Mappings {
		assert.Equal(t, m.GeneratedLine+3, linked.Mappings[i].GeneratedLine)
		assert.Equal(t, m.GeneratedColumn, linked.Mappings[i].GeneratedColumn)
	}
	assert.Equal(t, "https://src.example/", linked.SourceRoot)
	assert.Contains(t, linked.Extensions, "x_gwt")

	_, ok := out.Get(edits.Key("ABCDEF", 2))
	assert.False(t, ok, "matched edit set is consumed")
	_, ok = out.Get(edits.Key("ABCDEF", 0))
	assert.True(t, ok, "unmatched edit set stays")
	assert.Equal(t, 1, result.SourceMapsMerged)
}

func TestLinkCountsUnappliedEdits(t *testing.T) {
	set := prefixed("ABCDEF", 0, "a\nb\n")
	set.Append(edits.InsertOp(10, "x\n"))
	set.Append(edits.RemoveOp(3, 2))
	raw := &sourcemap.Artifact{PermutationID: 0, Fragment: 0, Contents: []byte(rawMap)}

	out, result, err := New(Options{}).Link(context.Background(), artifact.NewSet(record(0, "ABCDEF"), raw, set), true)
	require.NoError(t, err)
	assert.Equal(t, 2, result.UnappliedEdits)

	linked, err := sourcemap.Parse(emitted(t, out, "ABCDEF_sourceMap0.json").Contents)
	require.NoError(t, err)
	assert.Equal(t, 2, linked.Mappings[0].GeneratedLine)
}

func TestLinkDropsMalformedSourceMaps(t *testing.T) {
	logger, logs := bufferLogger()
	in := artifact.NewSet(
		record(0, "AAA"),
		&sourcemap.Artifact{PermutationID: 0, Fragment: 0, Contents: []byte(`{"version":3`)},
		prefixed("AAA", 0, "\n"),
		&sourcemap.Artifact{PermutationID: 0, Fragment: 1, Contents: []byte(rawMap)},
		prefixed("AAA", 1, "\n"),
	)

	out, result, err := New(Options{Logger: logger}).Link(context.Background(), in, true)
	require.NoError(t, err)

	_, ok := out.Get(artifact.EmittedKey("AAA_sourceMap0.json"))
	assert.False(t, ok)
	emitted(t, out, "AAA_sourceMap1.json")
	assert.Equal(t, 1, result.SourceMapsDropped)
	assert.Equal(t, 1, result.SourceMapsMerged)
	assert.Contains(t, logs.String(), "AAA_sourceMap0.json")
	assert.Contains(t, logs.String(), "level=WARN")
}

func TestLinkDropsSourceMapsOfUnknownPermutations(t *testing.T) {
	logger, logs := bufferLogger()
	raw := &sourcemap.Artifact{PermutationID: 9, Fragment: 0, Contents: []byte(rawMap)}

	out, result, err := New(Options{Logger: logger}).Link(context.Background(), artifact.NewSet(record(0, "AAA"), raw), true)
	require.NoError(t, err)
	assert.Empty(t, artifact.Find[*sourcemap.Artifact](out))
	assert.Equal(t, 1, result.SourceMapsDropped)
	assert.Contains(t, logs.String(), "unknown permutation")
}

func TestLinkEmbedsSourcesWithWarnings(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "com", "example"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "com", "example", "Hello.java"), []byte("class Hello {}"), 0o644))

	logger, logs := bufferLogger()
	raw := &sourcemap.Artifact{PermutationID: 0, Fragment: 0, Contents: []byte(rawMap)}
	in := artifact.NewSet(record(0, "AAA"), raw, prefixed("AAA", 0, "\n"))

	driver := New(Options{EmbedContents: true, Loader: resolve.NewDirLoader(root), Logger: logger})
	out, result, err := driver.Link(context.Background(), in, true)
	require.NoError(t, err)

	linked, err := sourcemap.Parse(emitted(t, out, "AAA_sourceMap0.json").Contents)
	require.NoError(t, err)
	require.Len(t, linked.SourcesContent, 2)
	require.NotNil(t, linked.SourcesContent[0])
	assert.Equal(t, "class Hello {}", *linked.SourcesContent[0])
	assert.Nil(t, linked.SourcesContent[1])
	assert.Equal(t, 1, result.SourcesEmbedded)
	assert.Equal(t, 1, result.SourcesMissing)
	assert.Contains(t, logs.String(), "com/example/Gen.java")
}

func TestLinkEmbedsGeneratedSources(t *testing.T) {
	raw := &sourcemap.Artifact{PermutationID: 0, Fragment: 0, Contents: []byte(rawMap)}
	in := artifact.NewSet(
		record(0, "AAA"), raw, prefixed("AAA", 0, "\n"),
		artifact.NewEmitted("com/example/Gen.java", []byte("generated"), artifact.Source),
	)

	out, result, err := New(Options{EmbedContents: true}).Link(context.Background(), in, true)
	require.NoError(t, err)
	linked, err := sourcemap.Parse(emitted(t, out, "AAA_sourceMap0.json").Contents)
	require.NoError(t, err)
	require.NotNil(t, linked.SourcesContent[1])
	assert.Equal(t, "generated", *linked.SourcesContent[1])
	assert.Equal(t, 1, result.SourcesEmbedded)
}

func TestLinkBatchedDefersSourceMaps(t *testing.T) {
	raw := &sourcemap.Artifact{PermutationID: 0, Fragment: 0, Contents: []byte(rawMap)}
	editSet := prefixed("AAA", 0, "\n")
	out, result, err := New(Options{}).Link(context.Background(), artifact.NewSet(record(0, "AAA"), raw, editSet), false)
	require.NoError(t, err)

	emitted(t, out, "AAA.symbolMap")
	assert.Len(t, artifact.Find[*sourcemap.Artifact](out), 1)
	_, ok := out.Get(editSet.ArtifactKey())
	assert.True(t, ok)
	assert.Equal(t, 1, result.SourceMapsDeferred)
}

func TestLinkRejectsDuplicateStrongNames(t *testing.T) {
	_, _, err := New(Options{}).Link(context.Background(), artifact.NewSet(record(0, "SAME"), record(1, "SAME")), true)
	assert.ErrorIs(t, err, ErrDuplicateStrongName)
}

func TestLinkObserverBracketsPhasesInOrder(t *testing.T) {
	observer := &recordingObserver{}
	_, _, err := New(Options{Observer: observer}).Link(context.Background(), artifact.NewSet(record(0, "AAA")), true)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"begin symbol_maps", "end symbol_maps",
		"begin source_maps", "end source_maps",
	}, observer.events)
}

func TestLinkOutputIndependentOfObserver(t *testing.T) {
	build := func() *artifact.Set {
		raw := &sourcemap.Artifact{PermutationID: 0, Fragment: 0, Contents: []byte(rawMap)}
		return artifact.NewSet(record(0, "AAA"), raw, prefixed("AAA", 0, "\n\n"))
	}
	withNop, _, err := New(Options{}).Link(context.Background(), build(), true)
	require.NoError(t, err)
	withRecorder, _, err := New(Options{Observer: &recordingObserver{}}).Link(context.Background(), build(), true)
	require.NoError(t, err)

	assert.Equal(t,
		emitted(t, withNop, "AAA_sourceMap0.json").Contents,
		emitted(t, withRecorder, "AAA_sourceMap0.json").Contents)
}
