package compilation

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrMissingStrongName is returned for records that cannot name their outputs.
var ErrMissingStrongName = errors.New("compilation record has no strong name")

const maxLineSize = 64 * 1024 * 1024

// Reader decodes a JSONL stream of compilation records.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), maxLineSize)
	return &Reader{scanner: scanner}
}

// Next returns the next record, or io.EOF once the stream is exhausted.
func (r *Reader) Next() (*Record, error) {
	for r.scanner.Scan() {
		r.line++
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("compilation record line %d: %w", r.line, err)
		}
		rec.StrongName = strings.TrimSpace(rec.StrongName)
		if rec.StrongName == "" {
			return nil, fmt.Errorf("compilation record line %d: %w", r.line, ErrMissingStrongName)
		}
		return &rec, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read compilation records: %w", err)
	}
	return nil, io.EOF
}

// ReadAll drains the stream.
func (r *Reader) ReadAll() ([]*Record, error) {
	var out []*Record
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

// ReadFile reads every record stored in a JSONL file.
func ReadFile(path string) ([]*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open compilation records: %w", err)
	}
	defer f.Close()

	return NewReader(f).ReadAll()
}
