package symbolmap

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morozRed/maplink/internal/compilation"
)

func render(t *testing.T, rec *compilation.Record) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, NewWriter().Write(&buf, rec))
	return buf.Bytes()
}

func TestWriteScenario(t *testing.T) {
	rec := &compilation.Record{
		PermutationID: 3,
		StrongName:    "ABCDEF",
		PropertyMaps:  []map[string]string{{"user.agent": "safari"}},
		Symbols: []compilation.SymbolEntry{
			{SymbolName: "foo.bar", ClassName: "Bar", MemberName: "bar", SourceURI: "Bar.java", SourceLine: 10},
		},
	}

	want := "# { 3 }\n" +
		"# { 'user.agent' : 'safari' }\n" +
		"# jsName, jsniIdent, className, memberName, sourceUri, sourceLine, fragmentNumber\n" +
		"foo.bar,,Bar,bar,Bar.java,10,0\n"
	assert.Equal(t, want, string(render(t, rec)))
}

func TestWriteLineCountsAndOrder(t *testing.T) {
	rec := &compilation.Record{
		PermutationID: 1,
		PropertyMaps: []map[string]string{
			{"locale": "en", "user.agent": "gecko1_8"},
			{"locale": "fr", "user.agent": "gecko1_8"},
		},
	}
	for i := 0; i < 50; i++ {
		rec.Symbols = append(rec.Symbols, compilation.SymbolEntry{
			SymbolName:     fmt.Sprintf("z%d", 50-i),
			ClassName:      "com.example.C",
			SourceLine:     i,
			FragmentNumber: i % 3,
		})
	}

	lines := strings.Split(strings.TrimSuffix(string(render(t, rec)), "\n"), "\n")
	headers := 1 + len(rec.PropertyMaps)
	require.Len(t, lines, headers+1+len(rec.Symbols))
	assert.Equal(t, ColumnHeader, lines[headers])

	for i, sym := range rec.Symbols {
		assert.True(t, strings.HasPrefix(lines[headers+1+i], sym.SymbolName+","), "entry %d out of order", i)
	}
}

func TestPropertyMapStringSortsByName(t *testing.T) {
	got := PropertyMapString(map[string]string{"user.agent": "ie9", "locale": "de", "a": "1"})
	assert.Equal(t, "'a' : '1' , 'locale' : 'de' , 'user.agent' : 'ie9'", got)
	assert.Equal(t, "", PropertyMapString(nil))
}

func TestWriteKeepsFormatFragility(t *testing.T) {
	rec := &compilation.Record{
		Symbols: []compilation.SymbolEntry{{SymbolName: "a", ClassName: "Weird,Name", SourceLine: 1}},
	}
	out := string(render(t, rec))
	assert.Contains(t, out, "a,,Weird,Name,,,1,0\n")

	_, err := Parse(strings.NewReader(out))
	assert.True(t, errors.Is(err, ErrMalformedLine))
}

func TestWriterReusesBufferAcrossRecords(t *testing.T) {
	w := NewWriter()
	long := &compilation.Record{Symbols: []compilation.SymbolEntry{{SymbolName: strings.Repeat("x", 4096), ClassName: "C"}}}
	short := &compilation.Record{PermutationID: 2, Symbols: []compilation.SymbolEntry{{SymbolName: "y", ClassName: "D"}}}

	var first, second bytes.Buffer
	require.NoError(t, w.Write(&first, long))
	capacity := cap(w.line)
	require.NoError(t, w.Write(&second, short))

	assert.Equal(t, capacity, cap(w.line))
	assert.Equal(t, render(t, short), second.Bytes())
}

func TestParseReadsWrittenMap(t *testing.T) {
	rec := &compilation.Record{
		PermutationID: 9,
		PropertyMaps:  []map[string]string{{"locale": "en", "user.agent": "safari"}, {}},
		Symbols: []compilation.SymbolEntry{
			{SymbolName: "Ab", JsniIdent: "@com.Foo::bar()", ClassName: "com.Foo", MemberName: "bar", SourceURI: "com/Foo.java", SourceLine: 12, FragmentNumber: 1},
			{SymbolName: "Cd", ClassName: "com.Foo"},
		},
	}

	doc, err := Parse(bytes.NewReader(render(t, rec)))
	require.NoError(t, err)
	assert.Equal(t, 9, doc.PermutationID)
	assert.Equal(t, []map[string]string{{"locale": "en", "user.agent": "safari"}, {}}, doc.PropertyMaps)
	assert.Equal(t, rec.Symbols, doc.Symbols)
}

func TestParseRejectsBadNumbers(t *testing.T) {
	input := "# { 1 }\n" + ColumnHeader + "\na,,C,,,ten,0\n"
	_, err := Parse(strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "ABCDEF.symbolMap", FileName("ABCDEF"))
}
