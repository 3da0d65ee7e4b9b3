package stratum

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileSourceCreateOpenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.log")

	s, err := createFileSource(path)
	if err != nil {
		t.Fatalf("createFileSource: %v", err)
	}
	off, err := s.writeEntry("k", []byte("v"))
	if err != nil {
		t.Fatalf("writeEntry: %v", err)
	}
	if err := s.close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := openFileSource(path)
	if err != nil {
		t.Fatalf("openFileSource: %v", err)
	}
	defer reopened.close()

	key, value, err := reopened.readEntry(off)
	if err != nil || key != "k" || string(value) != "v" {
		t.Fatalf("readEntry after reopen = %q, %q, %v", key, value, err)
	}
}

// TestFileSourceSecondLockFails verifies that a second fileSource opened
// against the same path while the first is still open is rejected with
// ErrLocked, turning what spec §5 calls undefined multi-process behaviour
// into an early, diagnosable error.
func TestFileSourceSecondLockFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.log")

	first, err := createFileSource(path)
	if err != nil {
		t.Fatalf("createFileSource: %v", err)
	}
	defer first.close()

	_, err = openFileSource(path)
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("opening an already-open path = %v, want ErrLocked", err)
	}
}

func TestFileSourceLoadIndexesAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.log")
	s, err := createFileSource(path)
	if err != nil {
		t.Fatalf("createFileSource: %v", err)
	}
	s.writeEntry("a", []byte("1"))
	s.writeEntry("a", deleteMarker)
	s.writeEntry("b", []byte("2"))
	if err := s.close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := openFileSource(path)
	if err != nil {
		t.Fatalf("openFileSource: %v", err)
	}
	defer reopened.close()

	primary, err := reopened.loadIndexes(0, 0)
	if err != nil {
		t.Fatalf("loadIndexes: %v", err)
	}
	if _, ok := primary["a"]; ok {
		t.Error("a was deleted and must not survive a reload")
	}
	if _, ok := primary["b"]; !ok {
		t.Error("b must survive a reload")
	}
}

func TestFileSourceRewriteSiblingDance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.log")
	s, err := createFileSource(path)
	if err != nil {
		t.Fatalf("createFileSource: %v", err)
	}
	defer s.close()

	s.writeEntry("a", []byte("1"))
	s.writeEntry("a", []byte("2"))
	s.writeEntry("b", []byte("3"))

	primary, err := s.loadIndexes(0, 0)
	if err != nil {
		t.Fatalf("loadIndexes: %v", err)
	}

	newPrimary, err := s.rewrite([]string{"a", "b"}, primary, nil)
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	_, value, err := s.readEntry(newPrimary["a"])
	if err != nil || string(value) != "2" {
		t.Fatalf("post-rewrite read of a = %q, %v, want \"2\"", value, err)
	}

	if _, err := os.Stat(path + tmpSuffix); err == nil {
		t.Error("a successful rewrite must not leave a .tmp sibling behind")
	}
	if _, err := os.Stat(path + oldSuffix); err == nil {
		t.Error("a successful rewrite must not leave a .old sibling behind")
	}
}

func TestMemoryAndFileSourceProduceIdenticalEncoding(t *testing.T) {
	mem := newMemorySource()
	mem.writeEntry("k", []byte(`{"n":1}`))

	path := filepath.Join(t.TempDir(), "db.log")
	fs, err := createFileSource(path)
	if err != nil {
		t.Fatalf("createFileSource: %v", err)
	}
	defer fs.close()
	fs.writeEntry("k", []byte(`{"n":1}`))

	fileBytes, err := snapshotBytes(fs)
	if err != nil {
		t.Fatalf("snapshotBytes: %v", err)
	}
	if !bytes.Equal(mem.buf, fileBytes) {
		t.Error("the file and memory back-ends must frame identical entries identically")
	}
}
