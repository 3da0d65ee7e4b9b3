// The query language: a list of predicates combined by one top-level
// connective. Per spec §4.C there is no nesting of mixed connectives — an
// AND query and an OR query compose only by building a further query, not
// by embedding one inside the other.
package stratum

// Connective selects how a Query's predicates combine.
type Connective int

const (
	And Connective = iota
	Or
)

// Query is a flat list of predicates under one connective.
type Query struct {
	Connective Connective
	Predicates []Predicate
}

// AllOf builds a conjunction: every predicate must match.
func AllOf(predicates ...Predicate) Query {
	return Query{Connective: And, Predicates: predicates}
}

// AnyOf builds a disjunction: at least one predicate must match.
func AnyOf(predicates ...Predicate) Query {
	return Query{Connective: Or, Predicates: predicates}
}

// And extends the query with more predicates under AND. It fails with
// ErrMixedConnective if the receiver already has predicates under OR —
// callers who want to mix connectives must compose separate queries and
// filter/union the results themselves, per spec §4.C.
func (q Query) And(predicates ...Predicate) (Query, error) {
	if q.Connective == Or && len(q.Predicates) > 0 {
		return Query{}, ErrMixedConnective
	}
	merged := make([]Predicate, 0, len(q.Predicates)+len(predicates))
	merged = append(merged, q.Predicates...)
	merged = append(merged, predicates...)
	return Query{Connective: And, Predicates: merged}, nil
}

// Or extends the query with more predicates under OR. It fails with
// ErrMixedConnective if the receiver already has predicates under AND.
func (q Query) Or(predicates ...Predicate) (Query, error) {
	if q.Connective == And && len(q.Predicates) > 0 {
		return Query{}, ErrMixedConnective
	}
	merged := make([]Predicate, 0, len(q.Predicates)+len(predicates))
	merged = append(merged, q.Predicates...)
	merged = append(merged, predicates...)
	return Query{Connective: Or, Predicates: merged}, nil
}
