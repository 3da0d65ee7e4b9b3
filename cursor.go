// Cursor: a lazy, pull-style iterator over a query's or Iter's result set.
// It holds a snapshot of matching offsets collected at construction time
// (spec §5: "the cursor holds a collected offset list") and reads/decodes
// one value per Next() call — memory proportional to the result set's size
// in offsets, not in decoded values.
package stratum

import (
	"iter"

	json "github.com/goccy/go-json"
)

// Pair is one (key, value) result yielded by a Cursor.
type Pair[T any] struct {
	Key   string
	Value T
}

// Cursor walks a fixed, pre-collected list of primary offsets, decoding
// each into T on demand.
type Cursor[T any] struct {
	core    *dbCore
	offsets []int64
	pos     int
}

func newCursor[T any](core *dbCore, offsets []int64) *Cursor[T] {
	return &Cursor[T]{core: core, offsets: offsets}
}

// Next advances the cursor and decodes the next result. ok is false once
// the cursor is exhausted, at which point err is always nil.
func (c *Cursor[T]) Next() (key string, value T, ok bool, err error) {
	if c.pos >= len(c.offsets) {
		return "", value, false, nil
	}
	off := c.offsets[c.pos]
	c.pos++

	k, raw, err := c.core.src.readEntry(off)
	if err != nil {
		return "", value, false, err
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", value, false, err
	}
	return k, value, true, nil
}

// Len reports the total number of results the cursor will yield,
// regardless of how many have already been consumed via Next.
func (c *Cursor[T]) Len() int {
	return len(c.offsets)
}

// Seq adapts the cursor to iter.Seq2 for range-over-func callers, mirroring
// the teacher's all.go All() idiom. A read or decode error surfaces as
// the second element of one iteration and stops the sequence.
func (c *Cursor[T]) Seq() iter.Seq2[Pair[T], error] {
	return func(yield func(Pair[T], error) bool) {
		for {
			key, value, ok, err := c.Next()
			if err != nil {
				yield(Pair[T]{}, err)
				return
			}
			if !ok {
				return
			}
			if !yield(Pair[T]{Key: key, Value: value}, nil) {
				return
			}
		}
	}
}
