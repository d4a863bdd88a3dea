// Package canonical produces the deterministic JSON form used as the exact
// byte sequence for every signing and verification operation. Object keys are
// sorted lexicographically at every nesting level; array order is preserved.
// Two logically equal values always canonicalize to byte-identical output.
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Marshal returns the canonical JSON string for any JSON-compatible value.
// The input is never mutated; structs are accepted and normalized through
// their JSON representation first.
func Marshal(value any) (string, error) {
	normalized, err := normalize(value)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return "", fmt.Errorf("encoding canonical form: %w", err)
	}
	// Encoder appends a newline that is not part of the canonical bytes.
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// normalize round-trips the value through JSON into a map/slice tree so that
// encoding/json's sorted map-key iteration yields deterministic output.
// json.Number keeps numeric literals byte-exact instead of forcing float64
// formatting.
func normalize(value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("serializing value: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("normalizing value: %w", err)
	}
	return tree, nil
}
