// Package codec implements the deterministic canonical serialization
// that gives every transaction and block header its consensus
// identity: a JSON-like object with keys in lexicographic order and
// minimal separators, UTF-8 encoded, with array element order
// preserved.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Canonical marshals v (anything JSON-marshalable — structs, maps,
// slices) into its canonical byte form: object keys sorted
// lexicographically at every nesting level, no insignificant
// whitespace. Strings keep encoding/json's default HTML escaping, so
// <, > and & are written as JSON unicode escape sequences. Struct field order in source is
// irrelevant; only the marshaled key names are sorted.
func Canonical(v interface{}) ([]byte, error) {
	// First pass: let encoding/json apply struct tags and produce a
	// generic tree (maps/slices/scalars) we can then re-order and
	// re-emit byte-for-byte deterministically.
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal: %w", err)
	}

	var generic interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("codec: decode intermediate: %w", err)
	}

	var buf []byte
	buf = appendCanonical(buf, generic)
	return buf, nil
}

func appendCanonical(buf []byte, v interface{}) []byte {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf = append(buf, '{')
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			keyBytes, _ := json.Marshal(k)
			buf = append(buf, keyBytes...)
			buf = append(buf, ':')
			buf = appendCanonical(buf, val[k])
		}
		buf = append(buf, '}')
		return buf

	case []interface{}:
		buf = append(buf, '[')
		for i, elem := range val {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = appendCanonical(buf, elem)
		}
		buf = append(buf, ']')
		return buf

	default:
		// Scalars: string, json.Number, bool, nil. json.Marshal on
		// these produces minimal, deterministic output already.
		b, _ := json.Marshal(val)
		return append(buf, b...)
	}
}
