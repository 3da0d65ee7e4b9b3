package stratum

import "testing"

// seedCore builds a bare dbCore over a memory source with docs already
// written and loaded, for exercising the planner directly without going
// through DB[T].
func seedCore(t *testing.T, docs map[string]string) *dbCore {
	t.Helper()
	src := newMemorySource()
	for key, doc := range docs {
		if _, err := src.writeEntry(key, []byte(doc)); err != nil {
			t.Fatalf("writeEntry: %v", err)
		}
	}
	primary, err := src.loadIndexes(0, 0)
	if err != nil {
		t.Fatalf("loadIndexes: %v", err)
	}
	return &dbCore{src: src, primary: primary, secondary: make(map[string]*secondaryIndex)}
}

func (core *dbCore) decodeAt(offset int64) (any, error) {
	_, raw, err := core.src.readEntry(offset)
	if err != nil {
		return nil, err
	}
	return decodeValue(raw)
}

func withIndex(t *testing.T, core *dbCore, field string) {
	t.Helper()
	si, err := buildSecondaryIndex(core.src, core.primary, field, 0)
	if err != nil {
		t.Fatalf("buildSecondaryIndex(%s): %v", field, err)
	}
	core.secondary[field] = si
}

var composers = map[string]string{
	"bach":   `{"born":1685,"era":"baroque"}`,
	"handel": `{"born":1685,"era":"baroque"}`,
	"haydn":  `{"born":1732,"era":"classical"}`,
	"mozart": `{"born":1756,"era":"classical"}`,
	"brahms": `{"born":1833,"era":"romantic"}`,
}

func TestPartitionPredicatesSeparatesIndexedFromResidual(t *testing.T) {
	core := seedCore(t, composers)
	withIndex(t, core, "born")

	indexed, residual := core.partitionPredicates([]Predicate{
		Gt("born", 1700),
		Eq("era", "classical"),
	})
	if len(indexed) != 1 || indexed[0].Field != "born" {
		t.Fatalf("indexed = %+v, want just born", indexed)
	}
	if len(residual) != 1 || residual[0].Field != "era" {
		t.Fatalf("residual = %+v, want just era", residual)
	}
}

func TestPartitionPredicatesClosureAlwaysResidual(t *testing.T) {
	core := seedCore(t, composers)
	withIndex(t, core, "born")

	indexed, residual := core.partitionPredicates([]Predicate{
		Closure("born", func(v any) bool { return true }),
	})
	if len(indexed) != 0 || len(residual) != 1 {
		t.Fatalf("a closure predicate must always be residual even with an index on its field: indexed=%+v residual=%+v", indexed, residual)
	}
}

// TestIsOptimisableAndNeedsOneIndexedPredicate verifies spec §4.C's
// collapse rule for conjunctions: any indexed predicate at all qualifies
// the whole query for the optimised path, even with residual predicates
// alongside it.
func TestIsOptimisableAndNeedsOneIndexedPredicate(t *testing.T) {
	core := seedCore(t, composers)
	withIndex(t, core, "born")

	_, _, ok := core.isOptimisable(AllOf(Gt("born", 1700), Eq("era", "classical")))
	if !ok {
		t.Fatal("an AND query with one indexed predicate must be optimisable")
	}

	_, _, ok = core.isOptimisable(AllOf(Eq("era", "classical")))
	if ok {
		t.Fatal("an AND query with zero indexed predicates must not be optimisable")
	}
}

// TestIsOptimisableOrNeedsEveryPredicateIndexed verifies the disjunction
// half of the collapse rule: an OR query only qualifies when every one of
// its predicates has a registered index, since a single residual
// predicate can't be safely excluded by bucket membership alone.
func TestIsOptimisableOrNeedsEveryPredicateIndexed(t *testing.T) {
	core := seedCore(t, composers)
	withIndex(t, core, "born")
	withIndex(t, core, "era")

	_, _, ok := core.isOptimisable(AnyOf(Gt("born", 1800), Eq("era", "baroque")))
	if !ok {
		t.Fatal("an OR query with every predicate indexed must be optimisable")
	}

	core2 := seedCore(t, composers)
	withIndex(t, core2, "born")
	_, _, ok = core2.isOptimisable(AnyOf(Gt("born", 1800), Eq("era", "baroque")))
	if ok {
		t.Fatal("an OR query with one unindexed predicate must not be optimisable")
	}
}

func TestExecuteOptimisedAndConjunction(t *testing.T) {
	core := seedCore(t, composers)
	withIndex(t, core, "born")
	withIndex(t, core, "era")

	q := AllOf(Gt("born", 1700), Eq("era", "classical"))
	offsets, err := core.planOffsets(q, core.decodeAt)
	if err != nil {
		t.Fatalf("planOffsets: %v", err)
	}
	if len(offsets) != 2 {
		t.Fatalf("got %d matches, want 2 (haydn, mozart)", len(offsets))
	}
}

func TestExecuteOptimisedOrDisjunction(t *testing.T) {
	core := seedCore(t, composers)
	withIndex(t, core, "born")
	withIndex(t, core, "era")

	q := AnyOf(Eq("era", "baroque"), Gt("born", 1800))
	offsets, err := core.planOffsets(q, core.decodeAt)
	if err != nil {
		t.Fatalf("planOffsets: %v", err)
	}
	if len(offsets) != 3 {
		t.Fatalf("got %d matches, want 3 (bach, handel, brahms)", len(offsets))
	}
}

func TestExecuteLinearFallsBackWithoutAnyIndex(t *testing.T) {
	core := seedCore(t, composers)

	q := AllOf(Gt("born", 1700))
	offsets, err := core.planOffsets(q, core.decodeAt)
	if err != nil {
		t.Fatalf("planOffsets: %v", err)
	}
	if len(offsets) != 3 {
		t.Fatalf("got %d matches, want 3 (haydn, mozart, brahms)", len(offsets))
	}
}

func TestResultsAreOffsetOrdered(t *testing.T) {
	core := seedCore(t, composers)
	withIndex(t, core, "era")

	offsets, err := core.planOffsets(AllOf(Gt("born", 0), Eq("era", "baroque")), core.decodeAt)
	if err != nil {
		t.Fatalf("planOffsets: %v", err)
	}
	for i := 1; i < len(offsets); i++ {
		if offsets[i] <= offsets[i-1] {
			t.Fatalf("offsets not strictly ascending: %v", offsets)
		}
	}
}
