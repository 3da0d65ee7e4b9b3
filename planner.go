// The query planner: picks an optimised (index-driven) or linear (full
// scan) execution strategy per spec §4.C, then executes it into a sorted
// list of matching offsets. Grounded on the index-then-residual-filter
// shape of other_examples/b1fd15b6_chaturanga836-storage_system__internal-
// storage-index-secondary_index.go.go, adapted to the AND "appears at
// least |P_idx| times" / OR "appears at least once" collapse rule spec'd
// here.
package stratum

import "sort"

// partitionPredicates splits a query's predicates into those with a
// registered secondary index and the rest. A Closure predicate is always
// residual, even if its field happens to have an index (spec §9).
func (db *dbCore) partitionPredicates(predicates []Predicate) (indexed, residual []Predicate) {
	for _, p := range predicates {
		if p.Kind != PredClosure {
			if _, ok := db.secondary[p.Field]; ok {
				indexed = append(indexed, p)
				continue
			}
		}
		residual = append(residual, p)
	}
	return indexed, residual
}

// isOptimisable reports whether q qualifies for the optimised path: a
// conjunction with at least one indexed predicate, or a disjunction where
// every predicate is indexed.
func (db *dbCore) isOptimisable(q Query) (indexed, residual []Predicate, ok bool) {
	indexed, residual = db.partitionPredicates(q.Predicates)
	switch q.Connective {
	case And:
		return indexed, residual, len(indexed) > 0
	case Or:
		return indexed, residual, len(residual) == 0 && len(indexed) == len(q.Predicates)
	default:
		return indexed, residual, false
	}
}

// planOffsets executes q against the current indexes and returns the
// matching primary offsets in ascending order.
func (db *dbCore) planOffsets(q Query, decode func(offset int64) (any, error)) ([]int64, error) {
	indexed, residual, optimised := db.isOptimisable(q)
	if optimised {
		return db.executeOptimised(q.Connective, indexed, residual, decode)
	}
	return db.executeLinear(q, decode)
}

// executeOptimised implements spec §4.C's collapse rule: walk each indexed
// predicate's secondary index, testing every bucket directly; a candidate
// offset survives AND iff it was contributed by every indexed predicate,
// or survives OR iff it was contributed by at least one.
func (db *dbCore) executeOptimised(conn Connective, indexed, residual []Predicate, decode func(offset int64) (any, error)) ([]int64, error) {
	counts := make(map[int64]int)
	for _, p := range indexed {
		si := db.secondary[p.Field]
		for _, b := range si.buckets {
			match, err := directMatch(p, b.value)
			if err != nil {
				return nil, err
			}
			if !match {
				continue
			}
			b.offsets.Ascend(func(off int64) bool {
				counts[off]++
				return true
			})
		}
	}

	threshold := 1
	if conn == And {
		threshold = len(indexed)
	}

	var offsets []int64
	for off, c := range counts {
		if c >= threshold {
			offsets = append(offsets, off)
		}
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })

	if len(residual) == 0 {
		return offsets, nil
	}

	filtered := offsets[:0]
	for _, off := range offsets {
		decoded, err := decode(off)
		if err != nil {
			return nil, err
		}
		keep := true
		for _, p := range residual {
			match, err := indexedMatch(p, decoded)
			if err != nil {
				return nil, err
			}
			if !match {
				keep = false
				break
			}
		}
		if keep {
			filtered = append(filtered, off)
		}
	}
	return filtered, nil
}

// executeLinear scans every primary offset, decoding each value and
// evaluating the full query against it.
func (db *dbCore) executeLinear(q Query, decode func(offset int64) (any, error)) ([]int64, error) {
	all := make([]int64, 0, len(db.primary))
	for _, off := range db.primary {
		all = append(all, off)
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })

	var matched []int64
	for _, off := range all {
		decoded, err := decode(off)
		if err != nil {
			return nil, err
		}
		ok, err := evaluateQuery(q, decoded)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, off)
		}
	}
	return matched, nil
}

// evaluateQuery applies a query's connective across all of its predicates
// against one fully decoded value.
func evaluateQuery(q Query, decoded any) (bool, error) {
	switch q.Connective {
	case And:
		for _, p := range q.Predicates {
			ok, err := indexedMatch(p, decoded)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case Or:
		for _, p := range q.Predicates {
			ok, err := indexedMatch(p, decoded)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, nil
	}
}
