package helpers

import (
	"bytes"
	"encoding/json"
)

// MarshalJson encodes v as indented JSON without HTML escaping, so globs
// like "!**/_*.scss" print as written.
func MarshalJson(v any) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	err := enc.Encode(v)
	return buf.Bytes(), err
}
