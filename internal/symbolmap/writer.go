// Package symbolmap reads and writes the line-oriented symbol map format
// consumed by stack-trace deobfuscators.
//
// The format has no quoting. A comma or newline inside an identifier or URI
// shifts the fields of that line; consumers have always lived with this and
// the writer keeps it that way.
package symbolmap

import (
	"io"
	"sort"
	"strconv"

	"github.com/morozRed/maplink/internal/compilation"
)

const (
	// Suffix is appended to a strong name to form the symbol map file name.
	Suffix = ".symbolMap"

	// ColumnHeader names the fields of every data line.
	ColumnHeader = "# jsName, jsniIdent, className, memberName, sourceUri, sourceLine, fragmentNumber"
)

// FileName returns the symbol map file name for a strong name.
func FileName(strongName string) string {
	return strongName + Suffix
}

// Writer renders symbol maps. The line buffer grows to the longest entry seen
// and is reused across entries and records; a Writer is not safe for
// concurrent use.
type Writer struct {
	line []byte
}

func NewWriter() *Writer {
	return &Writer{line: make([]byte, 0, 1024)}
}

// Write renders rec to w.
func (sw *Writer) Write(w io.Writer, rec *compilation.Record) error {
	sw.line = sw.line[:0]
	sw.line = append(sw.line, "# { "...)
	sw.line = strconv.AppendInt(sw.line, int64(rec.PermutationID), 10)
	sw.line = append(sw.line, " }\n"...)

	for _, props := range rec.PropertyMaps {
		sw.line = append(sw.line, "# { "...)
		sw.line = appendPropertyMap(sw.line, props)
		sw.line = append(sw.line, " }\n"...)
	}
	sw.line = append(sw.line, ColumnHeader...)
	sw.line = append(sw.line, '\n')
	if _, err := w.Write(sw.line); err != nil {
		return err
	}

	for i := range rec.Symbols {
		sw.line = appendEntry(sw.line[:0], &rec.Symbols[i])
		if _, err := w.Write(sw.line); err != nil {
			return err
		}
	}
	return nil
}

// PropertyMapString renders one property map as `'name' : 'value' , ...`
// with entries sorted by name.
func PropertyMapString(props map[string]string) string {
	return string(appendPropertyMap(nil, props))
}

func appendPropertyMap(dst []byte, props map[string]string) []byte {
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		if i > 0 {
			dst = append(dst, " , "...)
		}
		dst = append(dst, '\'')
		dst = append(dst, name...)
		dst = append(dst, "' : '"...)
		dst = append(dst, props[name]...)
		dst = append(dst, '\'')
	}
	return dst
}

func appendEntry(dst []byte, sym *compilation.SymbolEntry) []byte {
	dst = append(dst, sym.SymbolName...)
	dst = append(dst, ',')
	dst = append(dst, sym.JsniIdent...)
	dst = append(dst, ',')
	dst = append(dst, sym.ClassName...)
	dst = append(dst, ',')
	dst = append(dst, sym.MemberName...)
	dst = append(dst, ',')
	dst = append(dst, sym.SourceURI...)
	dst = append(dst, ',')
	dst = strconv.AppendInt(dst, int64(sym.SourceLine), 10)
	dst = append(dst, ',')
	dst = strconv.AppendInt(dst, int64(sym.FragmentNumber), 10)
	return append(dst, '\n')
}
