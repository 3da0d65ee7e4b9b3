// Storage source abstraction: an append-only byte container with random
// read by offset. Two back-ends implement this contract: a file (source_file.go)
// and an in-memory buffer (source_memory.go). Both share the full-log
// scanning and primary-index build in this file; each back-end implements
// its own rewrite for compaction and migration.
package stratum

import (
	"bufio"
	"io"
)

// defaultMaxEntrySize bounds a single entry's key+value payload when the
// caller hasn't set Config.MaxEntrySize. 16MiB mirrors the teacher's
// MaxRecordSize default for the same reason: bound scanner/section-reader
// allocation against a corrupt length prefix.
const defaultMaxEntrySize = 16 * 1024 * 1024

// defaultReadBuffer sizes the bufio.Reader used by the full-log scan in
// loadIndexes.
const defaultReadBuffer = 64 * 1024

// source is the storage back-end contract. Every method operates on raw
// key/value bytes; the generic DB[T] layer is responsible for JSON
// (de)serialisation and delete-marker semantics.
type source interface {
	io.ReaderAt

	// readEntry reads the key and value bytes of the entry whose key-length
	// field starts at offset.
	readEntry(offset int64) (key string, value []byte, err error)

	// writeEntry appends a well-formed entry and returns the offset of its
	// key-length field.
	writeEntry(key string, value []byte) (offset int64, err error)

	// len reports the logical length of the source in bytes.
	len() int64

	// loadIndexes performs a full linear scan from offset 0, honouring
	// delete-marker semantics, and returns the resulting primary index.
	loadIndexes(maxEntrySize int64, readBuffer int) (map[string]int64, error)

	// rewrite replaces the source's contents with exactly the entries
	// named by keep, in ascending order of their current offsets in
	// primary, returning each key's new offset.
	// For the file back-end this is the sibling-rename dance of spec §4.A;
	// for memory it is an atomic buffer swap. transform, if non-nil, is
	// applied to each value before it is re-written (used by migrate);
	// nil means copy bytes unchanged (used by compact).
	rewrite(keep []string, primary map[string]int64, transform func(key string, value []byte) ([]byte, error)) (map[string]int64, error)

	// close releases any resources (file handles). A no-op for memory.
	close() error
}

// scanEntries walks src from start to end, invoking fn with each entry's
// key, value, offset and encoded length. It reads sequentially through a
// bufio.Reader sized by readBuffer (falling back to defaultReadBuffer when
// readBuffer <= 0) rather than issuing one ReadAt per entry, since a full
// scan is the one access pattern that is always sequential. It stops and
// returns fn's error immediately if fn returns a non-nil error.
func scanEntries(src io.ReaderAt, start, end, maxEntrySize int64, readBuffer int, fn func(key string, value []byte, offset, length int64) error) error {
	if readBuffer <= 0 {
		readBuffer = defaultReadBuffer
	}
	sr := io.NewSectionReader(src, start, end-start)
	r := bufio.NewReaderSize(sr, readBuffer)

	offset := start
	for offset < end {
		keyBytes, err := readLenPrefixed(r, maxEntrySize)
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		valueBytes, err := readLenPrefixed(r, maxEntrySize)
		if err != nil {
			return err
		}
		length := encodedLen(len(keyBytes), len(valueBytes))
		if err := fn(string(keyBytes), valueBytes, offset, length); err != nil {
			return err
		}
		offset += length
	}
	return nil
}

// buildPrimaryIndex performs the §3/§4.A scan-to-build-primary-index
// algorithm shared by both back-ends: later entries supersede earlier ones,
// and a delete-marker value removes the key.
func buildPrimaryIndex(src io.ReaderAt, start, end, maxEntrySize int64, readBuffer int) (map[string]int64, error) {
	primary := make(map[string]int64)
	err := scanEntries(src, start, end, maxEntrySize, readBuffer, func(key string, value []byte, offset, length int64) error {
		if isDeleteMarker(value) {
			delete(primary, key)
		} else {
			primary[key] = offset
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return primary, nil
}
