package fileutil

import (
	"encoding/json"
	"io"
)

// WriteJSONL writes one compact JSON document per line.
func WriteJSONL[T any](w io.Writer, records []T) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	for i := range records {
		if err := encoder.Encode(records[i]); err != nil {
			return err
		}
	}
	return nil
}
