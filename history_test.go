package stratum

import "testing"

func TestHistoryDisabledByDefault(t *testing.T) {
	db, _ := NewInMemory[composer](Config{})
	db.Set("bach", composer{Born: 1685, Era: "baroque"})
	db.Set("bach", composer{Born: 1685, Era: "baroque-revised"})

	versions, err := db.History("bach")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if versions != nil {
		t.Errorf("History with KeepHistory unset must return nil, got %v", versions)
	}
}

func TestHistoryRetainsSupersededValuesOldestFirst(t *testing.T) {
	db, err := NewInMemory[composer](Config{KeepHistory: 2})
	if err != nil {
		t.Fatalf("NewInMemory: %v", err)
	}

	db.Set("bach", composer{Born: 1685, Era: "v1"})
	db.Set("bach", composer{Born: 1685, Era: "v2"})
	db.Set("bach", composer{Born: 1685, Era: "v3"})

	versions, err := db.History("bach")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("got %d retained versions, want 2 (KeepHistory caps at 2)", len(versions))
	}
	if versions[0].Value.Era != "v1" || versions[1].Value.Era != "v2" {
		t.Fatalf("versions out of order or wrong: %+v", versions)
	}

	// The live value itself is not part of History's result.
	current, err := db.Get("bach")
	if err != nil || current.Era != "v3" {
		t.Fatalf("Get = %+v, %v, want v3", current, err)
	}
}

func TestHistoryRecordsValueBeforeDelete(t *testing.T) {
	db, _ := NewInMemory[composer](Config{KeepHistory: 5})
	db.Set("bach", composer{Born: 1685, Era: "baroque"})
	db.Delete("bach")

	versions, err := db.History("bach")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(versions) != 1 || versions[0].Value.Era != "baroque" {
		t.Fatalf("got %+v, want the pre-delete value retained", versions)
	}
}

// TestHistorySkipsDuplicateConsecutiveWrites verifies that overwriting a
// key with byte-identical value content does not grow its history, since
// xxh3 hashing lets recordHistory detect the duplicate cheaply.
func TestHistorySkipsDuplicateConsecutiveWrites(t *testing.T) {
	db, _ := NewInMemory[composer](Config{KeepHistory: 10})
	db.Set("bach", composer{Born: 1685, Era: "baroque"})
	db.Set("bach", composer{Born: 1685, Era: "baroque"})
	db.Set("bach", composer{Born: 1685, Era: "baroque"})
	db.Set("bach", composer{Born: 1685, Era: "baroque-final"})

	versions, err := db.History("bach")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(versions) != 1 {
		t.Fatalf("got %d versions, want 1 (three identical overwrites must collapse)", len(versions))
	}
}

func TestHistoryOnKeyNeverOverwrittenIsEmpty(t *testing.T) {
	db, _ := NewInMemory[composer](Config{KeepHistory: 3})
	db.Set("bach", composer{Born: 1685, Era: "baroque"})

	versions, err := db.History("bach")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(versions) != 0 {
		t.Fatalf("got %d versions for a key never overwritten, want 0", len(versions))
	}
}
