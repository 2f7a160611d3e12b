package symbolmap

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/morozRed/maplink/internal/compilation"
)

// ErrMalformedLine is returned for lines that do not fit the format.
var ErrMalformedLine = errors.New("malformed symbol map line")

const fieldCount = 7

// Document is a parsed symbol map.
type Document struct {
	PermutationID int
	PropertyMaps  []map[string]string
	Symbols       []compilation.SymbolEntry
}

// Parse reads a symbol map. Data lines must carry exactly seven fields, so
// an identifier containing a comma surfaces as ErrMalformedLine.
func Parse(r io.Reader) (*Document, error) {
	doc := &Document{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	lineNo := 0
	sawPermutation := false
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "#") {
			if line == ColumnHeader {
				continue
			}
			body, ok := braced(line)
			if !ok {
				continue
			}
			if !sawPermutation {
				id, err := strconv.Atoi(body)
				if err != nil {
					return nil, fmt.Errorf("line %d: %w: bad permutation id %q", lineNo, ErrMalformedLine, body)
				}
				doc.PermutationID = id
				sawPermutation = true
				continue
			}
			props, err := parsePropertyMap(body)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			doc.PropertyMaps = append(doc.PropertyMaps, props)
			continue
		}

		fields := strings.Split(line, ",")
		if len(fields) != fieldCount {
			return nil, fmt.Errorf("line %d: %w: want %d fields, got %d", lineNo, ErrMalformedLine, fieldCount, len(fields))
		}
		sourceLine, err := strconv.Atoi(fields[5])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w: bad source line %q", lineNo, ErrMalformedLine, fields[5])
		}
		fragment, err := strconv.Atoi(fields[6])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w: bad fragment %q", lineNo, ErrMalformedLine, fields[6])
		}
		doc.Symbols = append(doc.Symbols, compilation.SymbolEntry{
			SymbolName:     fields[0],
			JsniIdent:      fields[1],
			ClassName:      fields[2],
			MemberName:     fields[3],
			SourceURI:      fields[4],
			SourceLine:     sourceLine,
			FragmentNumber: fragment,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read symbol map: %w", err)
	}
	return doc, nil
}

func braced(line string) (string, bool) {
	if !strings.HasPrefix(line, "# { ") || !strings.HasSuffix(line, " }") {
		return "", false
	}
	return line[len("# { ") : len(line)-len(" }")], true
}

func parsePropertyMap(body string) (map[string]string, error) {
	props := make(map[string]string)
	if body == "" {
		return props, nil
	}
	for _, pair := range strings.Split(body, " , ") {
		name, value, ok := strings.Cut(pair, "' : '")
		if !ok || !strings.HasPrefix(name, "'") || !strings.HasSuffix(value, "'") {
			return nil, fmt.Errorf("%w: bad property %q", ErrMalformedLine, pair)
		}
		props[name[1:]] = value[:len(value)-1]
	}
	return props, nil
}
