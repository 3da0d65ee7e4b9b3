// Dot-separated field-path extraction over decoded JSON values, used by
// secondary-index construction/maintenance and by the query engine's
// residual-predicate evaluation. Generalises the teacher's fixed-offset
// label() byte scan (record.go) from a single well-known field to an
// arbitrary nested path — that trick only works because folio's _l field
// always lands at the same byte offset in every record; an arbitrary
// caller-supplied path has no such guarantee, so this decodes fully.
package stratum

import (
	"strings"

	json "github.com/goccy/go-json"
)

// decodeValue parses raw JSON bytes into a generic tree of map[string]any,
// []any, float64, string, bool, and nil — the representation field-path
// extraction and structural equality both operate over.
func decodeValue(raw []byte) (any, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// extractField resolves a dot-separated field path against a decoded JSON
// value. A missing segment at any point resolves to JSON null, per spec §3.
func extractField(path string, value any) any {
	if path == "" {
		return value
	}
	cur := value
	for _, segment := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		next, present := obj[segment]
		if !present {
			return nil
		}
		cur = next
	}
	return cur
}

// jsonEqual reports structural JSON equality between two decoded values,
// used by Eq/Ne predicates. Numbers compare as float64; objects and arrays
// compare member-wise and order-sensitively (arrays) or by key set
// (objects) — the shapes json.Unmarshal into `any` already produces.
func jsonEqual(a, b any) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !jsonEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, present := bv[k]
			if !present || !jsonEqual(v, other) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// normalizeOperand converts v into the same representation decodeValue
// produces for the equivalent JSON literal, so Eq/Ne can compare a caller's
// Go literal (an int, a struct, ...) against a field extracted from a
// decoded document with jsonEqual's type switch. Values already in that
// representation (nil, bool, float64, string, []any, map[string]any) pass
// through unchanged; everything else — int/uint/float32 and friends, or a
// composite Go type — round-trips through JSON encode/decode.
func normalizeOperand(v any) any {
	switch v.(type) {
	case nil, bool, float64, string, []any, map[string]any:
		return v
	}
	buf, err := json.Marshal(v)
	if err != nil {
		return v
	}
	decoded, err := decodeValue(buf)
	if err != nil {
		return v
	}
	return decoded
}

// canonicalKey renders a decoded JSON value into a stable string suitable
// for use as a secondary-index bucket key. goccy/go-json sorts object keys
// when marshalling map[string]any, so equal values always canonicalise to
// the same string regardless of original field order.
func canonicalKey(value any) (string, error) {
	buf, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}
