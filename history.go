// Version history: an opt-in, in-memory-only record of superseded values
// per key, enabled via Config.KeepHistory. Not part of spec.md's original
// scope — grounded in the teacher's compressed-_h-field idiom (the teacher
// keeps every record's prior content inline, zstd-compressed, in a header
// field), adapted here to the log format spec.md defines rather than to an
// extra record field: the two-length-prefix entry framing has no room for
// one, so retained versions live in dbCore.history instead of on the log,
// and do not survive a process restart (Open/New do not attempt to
// reconstruct history from prior log generations).
package stratum

import (
	"bytes"
	"encoding/ascii85"
	"fmt"
	"io"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
)

// Version is one superseded value retained for a key.
type Version[T any] struct {
	Value T
}

// History returns every retained superseded version of key, oldest first,
// not including its current live value (use Get for that). It returns nil,
// not an error, when KeepHistory is 0, and an empty slice, not an error,
// for a key with no retained history because it has never been
// overwritten or deleted.
func (db *DB[T]) History(key string) ([]Version[T], error) {
	core := db.core
	core.mu.RLock()
	defer core.mu.RUnlock()

	if core.closed {
		return nil, ErrClosed
	}
	if core.history == nil {
		return nil, nil
	}

	versions := core.history[key]
	out := make([]Version[T], 0, len(versions))
	for _, v := range versions {
		raw, err := decompressVersion(v.encoded)
		if err != nil {
			return nil, err
		}
		var value T
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, err
		}
		out = append(out, Version[T]{Value: value})
	}
	return out, nil
}

// A retained version is stored zstd-compressed then ascii85-encoded into a
// plain Go string, so dbCore.history needs no byte-slice bookkeeping beyond
// what a map already gives it. ascii85 over base64 for the same reason the
// teacher picks it: it adds 25% to the payload where base64 adds about 33%.
// Unlike the teacher's _h field, nothing here ever touches the log itself,
// so there's no newline-safety constraint driving the choice — it's purely
// about keeping retained snapshots small in memory when KeepHistory is set
// to a large value on a hot key.
var (
	historyEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	historyDecoder, _ = zstd.NewReader(nil)
)

// compressVersion is called from recordHistory on every overwriting Set and
// every Delete that retains a new version once KeepHistory is enabled, so
// it favours encode speed (SpeedFastest) over
// ratio; decompressVersion only runs when a caller actually reads History,
// which is comparatively rare.
func compressVersion(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	compressed := historyEncoder.EncodeAll(data, nil)

	var encoded bytes.Buffer
	enc := ascii85.NewEncoder(&encoded)
	_, _ = enc.Write(compressed) // bytes.Buffer.Write never errors
	_ = enc.Close()              // flushes trailing ascii85 padding
	return encoded.String()
}

func decompressVersion(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, nil
	}

	dec := ascii85.NewDecoder(bytes.NewReader([]byte(encoded)))
	compressed, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: ascii85: %w", ErrDecompress, err)
	}

	out, err := historyDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %w", ErrDecompress, err)
	}
	return out, nil
}
