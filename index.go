// Secondary-index maintenance: a mapping from (field path, extracted JSON
// value) to an ordered collection of primary offsets. Per spec §9, the
// ordered collection must support O(log n) insert, O(log n) removal of a
// specific element, and in-order iteration — a balanced ordered set keyed
// by offset. google/btree's generic BTreeG gives exactly that, and is a
// dependency the rest of the example pack already reaches for whenever it
// needs an ordered in-memory structure (cuemby-warren, launix-de-memcp,
// chodges15-loki, perkeep-perkeep all vendor it).
package stratum

import "github.com/google/btree"

// btreeDegree controls node fan-out. 32 is a conventional middle ground for
// in-memory ordered sets of this size — wide enough to keep tree height low
// for tens of thousands of offsets without the memmove cost of very wide
// nodes on insert/delete.
const btreeDegree = 32

func offsetLess(a, b int64) bool { return a < b }

// bucket holds every primary offset whose extracted field value canonicalises
// to one particular key, plus that value itself (needed for direct matching
// during query planning, where a predicate is tested against the bucket's
// value rather than against a freshly-decoded record).
type bucket struct {
	value   any
	offsets *btree.BTreeG[int64]
}

func newBucket(value any) *bucket {
	return &bucket{value: value, offsets: btree.NewG(btreeDegree, offsetLess)}
}

// secondaryIndex is the full mapping for one registered field path.
type secondaryIndex struct {
	field   string
	buckets map[string]*bucket
}

func newSecondaryIndex(field string) *secondaryIndex {
	return &secondaryIndex{field: field, buckets: make(map[string]*bucket)}
}

// insert adds offset to the bucket for fieldValue, creating the bucket if
// this is its first member.
func (si *secondaryIndex) insert(offset int64, fieldValue any) error {
	key, err := canonicalKey(fieldValue)
	if err != nil {
		return err
	}
	b, ok := si.buckets[key]
	if !ok {
		b = newBucket(fieldValue)
		si.buckets[key] = b
	}
	b.offsets.ReplaceOrInsert(offset)
	return nil
}

// remove deletes offset from the bucket for fieldValue, dropping the bucket
// entirely once it is empty so stale empty buckets never accumulate.
func (si *secondaryIndex) remove(offset int64, fieldValue any) error {
	key, err := canonicalKey(fieldValue)
	if err != nil {
		return err
	}
	b, ok := si.buckets[key]
	if !ok {
		return nil
	}
	b.offsets.Delete(offset)
	if b.offsets.Len() == 0 {
		delete(si.buckets, key)
	}
	return nil
}

// membership reports which bucket, if any, currently contains offset. Used
// by tests and by invariant checks; not on any query hot path.
func (si *secondaryIndex) membership(offset int64) (value any, found bool) {
	for _, b := range si.buckets {
		if _, ok := b.offsets.Get(offset); ok {
			return b.value, true
		}
	}
	return nil, false
}

// buildSecondaryIndex scans the full primary index, decoding each live
// value and extracting field, to construct a secondary index from scratch.
// This is what WithIndex runs immediately on registration (spec §4.E) and
// what a post-migration re-registration runs, since migration does not
// carry secondary indexes across (spec §4.E: "schema changes likely
// invalidate their field paths").
func buildSecondaryIndex(src source, primary map[string]int64, field string, maxEntrySize int64) (*secondaryIndex, error) {
	si := newSecondaryIndex(field)
	for key, offset := range primary {
		_, raw, err := src.readEntry(offset)
		if err != nil {
			return nil, err
		}
		decoded, err := decodeValue(raw)
		if err != nil {
			return nil, err
		}
		fv := extractField(field, decoded)
		if err := si.insert(offset, fv); err != nil {
			return nil, err
		}
		_ = key
	}
	return si, nil
}
