// The predicate vocabulary of the query language: comparisons, equality,
// and an escape hatch for caller-supplied closures. A predicate always
// carries the field path it applies to, even a Closure predicate that can
// never be indexed — spec §9 preserves the path "for future extension".
package stratum

// PredicateKind enumerates the comparison a Predicate performs.
type PredicateKind int

const (
	PredGt PredicateKind = iota
	PredGte
	PredLt
	PredLte
	PredEq
	PredNe
	PredClosure
)

// Predicate is one clause of a Query. Value holds the comparison operand
// for every kind except PredClosure, which instead calls Fn with the
// extracted JSON value and treats its bool result as the match.
type Predicate struct {
	Field string
	Kind  PredicateKind
	Value any
	Fn    func(any) bool
}

// Gt builds a "field > n" predicate. The extracted field must be a JSON
// number; anything else fails the predicate with ErrFieldNotNumber.
func Gt(field string, n float64) Predicate { return Predicate{Field: field, Kind: PredGt, Value: n} }

// Gte builds a "field >= n" predicate.
func Gte(field string, n float64) Predicate { return Predicate{Field: field, Kind: PredGte, Value: n} }

// Lt builds a "field < n" predicate.
func Lt(field string, n float64) Predicate { return Predicate{Field: field, Kind: PredLt, Value: n} }

// Lte builds a "field <= n" predicate.
func Lte(field string, n float64) Predicate { return Predicate{Field: field, Kind: PredLte, Value: n} }

// Eq builds a "field == v" predicate using structural JSON equality; v may
// be a number, string, bool, nil, or any JSON-marshalable composite. A Go
// numeric literal (int, int64, float32, ...) is normalised to float64 so it
// compares correctly against a field decoded from JSON, which never yields
// anything but float64 for a number.
func Eq(field string, v any) Predicate {
	return Predicate{Field: field, Kind: PredEq, Value: normalizeOperand(v)}
}

// Ne builds a "field != v" predicate. See Eq for operand normalisation.
func Ne(field string, v any) Predicate {
	return Predicate{Field: field, Kind: PredNe, Value: normalizeOperand(v)}
}

// Field builds a bare-field predicate: "field == true", the DSL shorthand
// for testing a boolean flag.
func Field(field string) Predicate { return Eq(field, true) }

// Closure builds a predicate backed by an opaque caller function over the
// extracted JSON value. It is always residual — never eligible for index
// optimisation — regardless of whether Field has a registered index.
func Closure(field string, fn func(any) bool) Predicate {
	return Predicate{Field: field, Kind: PredClosure, Fn: fn}
}

// directMatch evaluates a predicate against an already-extracted JSON
// value — the shape used when iterating a secondary-index bucket, whose
// key already *is* the field value, with no record decode needed.
func directMatch(p Predicate, value any) (bool, error) {
	if p.Kind == PredClosure {
		return p.Fn(value), nil
	}
	if isOrderingKind(p.Kind) {
		fv, ok := value.(float64)
		if !ok {
			return false, ErrFieldNotNumber
		}
		want, ok := p.Value.(float64)
		if !ok {
			return false, ErrFieldNotNumber
		}
		return compareOrdering(p.Kind, fv, want), nil
	}
	switch p.Kind {
	case PredEq:
		return jsonEqual(value, p.Value), nil
	case PredNe:
		return !jsonEqual(value, p.Value), nil
	default:
		return false, nil
	}
}

// indexedMatch extracts Field from a fully decoded record and evaluates the
// predicate against it.
func indexedMatch(p Predicate, decoded any) (bool, error) {
	return directMatch(p, extractField(p.Field, decoded))
}

func isOrderingKind(k PredicateKind) bool {
	return k == PredGt || k == PredGte || k == PredLt || k == PredLte
}

func compareOrdering(k PredicateKind, have, want float64) bool {
	switch k {
	case PredGt:
		return have > want
	case PredGte:
		return have >= want
	case PredLt:
		return have < want
	case PredLte:
		return have <= want
	default:
		return false
	}
}
