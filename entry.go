// Log entry framing.
//
// Every entry on the log is two length-prefixed byte strings: a key and a
// value, each preceded by an 8-byte little-endian length. The value bytes
// are the UTF-8 JSON serialisation of the user's value; a logical delete is
// an entry whose value is exactly the four ASCII bytes "null". The offset of
// an entry is the byte position of its key-length field, which is also the
// only position any index is ever allowed to point at.
package stratum

import (
	"encoding/binary"
	"fmt"
	"io"
)

// lenPrefixSize is the width of each length prefix: an 8-byte little-endian
// uint64, per spec.
const lenPrefixSize = 8

// deleteMarker is the literal value bytes of a logical delete. It is
// indistinguishable from any value type whose JSON serialisation happens to
// equal exactly these four bytes — the type layer must disallow that.
var deleteMarker = []byte("null")

// isDeleteMarker reports whether value bytes are exactly the delete marker.
func isDeleteMarker(value []byte) bool {
	return len(value) == len(deleteMarker) && string(value) == string(deleteMarker)
}

// encodeEntry frames a key/value pair for appending to the log.
func encodeEntry(key string, value []byte) []byte {
	buf := make([]byte, 0, lenPrefixSize+len(key)+lenPrefixSize+len(value))
	var lenBuf [lenPrefixSize]byte

	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(key)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, key...)

	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(value)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, value...)

	return buf
}

// encodedLen returns the on-disk size of an entry with the given key/value
// lengths, without allocating.
func encodedLen(keyLen, valueLen int) int64 {
	return int64(lenPrefixSize + keyLen + lenPrefixSize + valueLen)
}

// readLenPrefixed reads one length-prefixed byte string starting at the
// current position of r, enforcing maxSize to bound allocation from a
// corrupt or hostile length field.
func readLenPrefixed(r io.Reader, maxSize int64) ([]byte, error) {
	var lenBuf [lenPrefixSize]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("%w: length prefix: %w", ErrCorruptEntry, err)
	}
	n := binary.LittleEndian.Uint64(lenBuf[:])
	if maxSize > 0 && n > uint64(maxSize) {
		return nil, fmt.Errorf("%w: length %d exceeds maximum %d", ErrCorruptEntry, n, maxSize)
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("%w: payload: %w", ErrCorruptEntry, err)
	}
	return buf, nil
}

// decodeEntryAt reads one complete entry starting at offset in src,
// returning the key, the value bytes, and the total encoded length.
func decodeEntryAt(src io.ReaderAt, offset int64, maxEntrySize int64) (key string, value []byte, total int64, err error) {
	sr := io.NewSectionReader(src, offset, maxSectionSize(maxEntrySize))

	keyBytes, err := readLenPrefixed(sr, maxEntrySize)
	if err != nil {
		return "", nil, 0, err
	}
	valueBytes, err := readLenPrefixed(sr, maxEntrySize)
	if err != nil {
		return "", nil, 0, err
	}

	total = encodedLen(len(keyBytes), len(valueBytes))
	return string(keyBytes), valueBytes, total, nil
}

// maxSectionSize bounds the io.SectionReader used to decode a single entry.
// A zero maxEntrySize (unbounded) still needs a finite section length, so
// fall back to a generous ceiling that two length prefixes plus two payloads
// of maxEntrySize could never exceed.
func maxSectionSize(maxEntrySize int64) int64 {
	if maxEntrySize <= 0 {
		maxEntrySize = defaultMaxEntrySize
	}
	return 2*lenPrefixSize + 2*maxEntrySize
}
