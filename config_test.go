package stratum

import "testing"

func TestConfigWithDefaultsResolvesZeroValues(t *testing.T) {
	c := Config{}.withDefaults()
	if c.ReadBuffer != defaultReadBuffer {
		t.Errorf("ReadBuffer = %d, want default %d", c.ReadBuffer, defaultReadBuffer)
	}
	if c.MaxEntrySize != defaultMaxEntrySize {
		t.Errorf("MaxEntrySize = %d, want default %d", c.MaxEntrySize, defaultMaxEntrySize)
	}
}

func TestConfigWithDefaultsPreservesExplicitValues(t *testing.T) {
	c := Config{ReadBuffer: 1024, MaxEntrySize: 2048}.withDefaults()
	if c.ReadBuffer != 1024 || c.MaxEntrySize != 2048 {
		t.Errorf("withDefaults overwrote explicit values: %+v", c)
	}
}

func TestMaxEntrySizeRejectsOversizedEntryOnLoad(t *testing.T) {
	src := newMemorySource()
	src.writeEntry("k", make([]byte, 1024))

	_, err := src.loadIndexes(64, 0)
	if err == nil {
		t.Fatal("expected a corrupt/oversized entry error with a small MaxEntrySize")
	}
}
