// In-memory storage source: a growable byte buffer standing in for the
// file back-end. The DB's own single-writer RWMutex discipline (db.go)
// already serialises access, so the buffer itself needs no locking of its
// own — matching spec §5's "the in-memory back-end ... [is] non-blocking".
package stratum

import (
	"bytes"
	"sort"
)

// memorySource is the in-memory back-end.
type memorySource struct {
	buf []byte
}

func newMemorySource() *memorySource {
	return &memorySource{}
}

// newMemorySourceFrom seeds a memory source from an existing byte range,
// used by snapshot conversions (IntoMemory) — a copy, not a live mirror.
func newMemorySourceFrom(data []byte) *memorySource {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &memorySource{buf: buf}
}

func (s *memorySource) ReadAt(p []byte, off int64) (int, error) {
	return bytes.NewReader(s.buf).ReadAt(p, off)
}

func (s *memorySource) readEntry(offset int64) (string, []byte, error) {
	key, value, _, err := decodeEntryAt(bytes.NewReader(s.buf), offset, 0)
	return key, value, err
}

func (s *memorySource) writeEntry(key string, value []byte) (int64, error) {
	offset := int64(len(s.buf))
	s.buf = append(s.buf, encodeEntry(key, value)...)
	return offset, nil
}

func (s *memorySource) len() int64 {
	return int64(len(s.buf))
}

func (s *memorySource) loadIndexes(maxEntrySize int64, readBuffer int) (map[string]int64, error) {
	return buildPrimaryIndex(bytes.NewReader(s.buf), 0, int64(len(s.buf)), maxEntrySize, readBuffer)
}

func (s *memorySource) close() error {
	return nil
}

// rewrite replaces the buffer with exactly the keep entries, in ascending
// offset order, mirroring the file back-end's deterministic layout. There
// is no sibling-rename dance to perform: the swap is a single assignment
// under the caller's write lock, which is as atomic as this back-end gets.
func (s *memorySource) rewrite(keep []string, primary map[string]int64, transform func(key string, value []byte) ([]byte, error)) (map[string]int64, error) {
	sorted := make([]string, len(keep))
	copy(sorted, keep)
	sort.Slice(sorted, func(i, j int) bool { return primary[sorted[i]] < primary[sorted[j]] })

	newOffsets := make(map[string]int64, len(sorted))
	var next bytes.Buffer
	for _, key := range sorted {
		offset, ok := primary[key]
		if !ok {
			continue
		}
		_, value, err := s.readEntry(offset)
		if err != nil {
			return nil, err
		}
		if transform != nil {
			value, err = transform(key, value)
			if err != nil {
				return nil, err
			}
		}
		newOffsets[key] = int64(next.Len())
		next.Write(encodeEntry(key, value))
	}

	s.buf = next.Bytes()
	return newOffsets, nil
}
