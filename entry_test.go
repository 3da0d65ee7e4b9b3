package stratum

import (
	"bytes"
	"strings"
	"testing"
)

func TestEncodeDecodeEntryRoundTrip(t *testing.T) {
	buf := encodeEntry("alice", []byte(`{"age":30}`))

	key, value, total, err := decodeEntryAt(bytes.NewReader(buf), 0, 0)
	if err != nil {
		t.Fatalf("decodeEntryAt: %v", err)
	}
	if key != "alice" {
		t.Errorf("key = %q, want %q", key, "alice")
	}
	if string(value) != `{"age":30}` {
		t.Errorf("value = %q", value)
	}
	if total != int64(len(buf)) {
		t.Errorf("total = %d, want %d", total, len(buf))
	}
}

func TestIsDeleteMarker(t *testing.T) {
	if !isDeleteMarker([]byte("null")) {
		t.Error("literal null value must be the delete marker")
	}
	if isDeleteMarker([]byte("nullx")) {
		t.Error("a longer value must not match the delete marker")
	}
	if isDeleteMarker([]byte(`"null"`)) {
		t.Error("the JSON string \"null\" is not the delete marker, only bare null")
	}
}

// TestDecodeEntryAtCorruptLengthPrefix verifies that a length prefix
// claiming more bytes than maxEntrySize allows fails fast with
// ErrCorruptEntry instead of attempting a huge allocation.
func TestDecodeEntryAtCorruptLengthPrefix(t *testing.T) {
	var lenBuf [8]byte
	lenBuf[0] = 0xff
	lenBuf[1] = 0xff
	lenBuf[2] = 0xff
	lenBuf[3] = 0xff
	lenBuf[4] = 0xff

	_, _, _, err := decodeEntryAt(bytes.NewReader(lenBuf[:]), 0, 1024)
	if err == nil || !strings.Contains(err.Error(), "corrupt") {
		t.Fatalf("expected a corrupt-entry error, got %v", err)
	}
}

func TestDecodeEntryAtTruncated(t *testing.T) {
	full := encodeEntry("k", []byte("v"))
	_, _, _, err := decodeEntryAt(bytes.NewReader(full[:len(full)-1]), 0, 0)
	if err == nil {
		t.Fatal("expected an error decoding a truncated entry")
	}
}
