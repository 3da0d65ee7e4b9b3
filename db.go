// The database facade: Config, the non-generic dbCore that planner.go,
// replica.go and cursor.go all operate on, and the generic DB[T] wrapper
// that owns JSON (de)serialisation. Splitting state this way is what lets
// Go's "no new type parameters on methods" rule coexist with a generic
// public API — everything that doesn't need to know T lives on *dbCore.
package stratum

import (
	"fmt"
	"os"
	"sort"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/zeebo/xxh3"
)

// Config tunes engine behaviour. The zero value is usable: every field
// resolves to a documented default inside Open/Create/New/NewInMemory,
// matching the teacher's db.go Open path.
type Config struct {
	// ReadBuffer sizes the buffered reads of the full-log scan that builds
	// the primary index when a database is opened, created or converted.
	// Secondary-index construction, compaction and migration read entries
	// one at a time by offset and do not use it. Zero resolves to 64KiB.
	ReadBuffer int

	// MaxEntrySize bounds a single entry's key+value payload, guarding
	// scanner allocation against a corrupt length prefix. Zero resolves
	// to 16MiB.
	MaxEntrySize int64

	// SyncWrites calls Sync() after every write_entry when true. spec §1
	// mandates no fsync policy; this is an opt-in knob, off by default.
	SyncWrites bool

	// KeepHistory retains the last N superseded values per key, available
	// via DB[T].History. Zero disables history tracking entirely — the
	// spec-default "no history" behaviour.
	KeepHistory int

	// ReplicaQueueSize sizes an asynchronous replica's message queue.
	// Zero resolves to a generously sized default rather than an
	// unbuffered channel.
	ReplicaQueueSize int
}

func (c Config) withDefaults() Config {
	if c.ReadBuffer <= 0 {
		c.ReadBuffer = defaultReadBuffer
	}
	if c.MaxEntrySize <= 0 {
		c.MaxEntrySize = defaultMaxEntrySize
	}
	return c
}

// historyVersion is one retained superseded value, compressed for storage.
// hash lets recordHistory skip appending a second entry for a run of
// identical writes without decompressing the most recent one.
type historyVersion struct {
	encoded string
	hash    uint64
}

// dbCore is the generics-free heart of a database: every field the planner,
// replica fan-out, and index maintenance touch, none of which need to know
// the user's value type T.
type dbCore struct {
	mu sync.RWMutex

	src       source
	primary   map[string]int64
	secondary map[string]*secondaryIndex
	config    Config
	closed    bool

	replicas []replicaBinding

	history map[string][]historyVersion

	autoCompact bool
	deadEntries int64
}

// DB is the generic facade over a dbCore for one JSON value type T.
type DB[T any] struct {
	core *dbCore
}

func newCore(src source, config Config) (*dbCore, error) {
	primary, err := src.loadIndexes(config.MaxEntrySize, config.ReadBuffer)
	if err != nil {
		return nil, err
	}
	core := &dbCore{
		src:       src,
		primary:   primary,
		secondary: make(map[string]*secondaryIndex),
		config:    config,
	}
	if config.KeepHistory > 0 {
		core.history = make(map[string][]historyVersion)
	}
	return core, nil
}

// Open opens an existing file-backed database. It fails with ErrNotExist if
// path does not exist.
func Open[T any](path string, config Config) (*DB[T], error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("stratum: stat: %w", err)
	}
	src, err := openFileSource(path)
	if err != nil {
		return nil, err
	}
	core, err := newCore(src, config.withDefaults())
	if err != nil {
		src.close()
		return nil, err
	}
	return &DB[T]{core: core}, nil
}

// Create creates a new file-backed database at path. It fails with
// ErrExists if path already exists; a zero-length file is a valid empty
// database, same as one just Create'd.
func Create[T any](path string, config Config) (*DB[T], error) {
	if _, err := os.Stat(path); err == nil {
		return nil, ErrExists
	}
	src, err := createFileSource(path)
	if err != nil {
		return nil, err
	}
	core, err := newCore(src, config.withDefaults())
	if err != nil {
		src.close()
		return nil, err
	}
	return &DB[T]{core: core}, nil
}

// New opens path if it exists, or creates it if it does not — the
// open-or-create convenience spec §6 describes alongside Open/Create.
func New[T any](path string, config Config) (*DB[T], error) {
	if _, err := os.Stat(path); err == nil {
		return Open[T](path, config)
	}
	return Create[T](path, config)
}

// NewInMemory creates a database backed by an in-memory buffer instead of
// a file. It never fails on the resolved config alone.
func NewInMemory[T any](config Config) (*DB[T], error) {
	src := newMemorySource()
	core, err := newCore(src, config.withDefaults())
	if err != nil {
		return nil, err
	}
	return &DB[T]{core: core}, nil
}

// WithIndex registers a secondary index over field, built immediately from
// every currently-live value. Subsequent Set/Delete calls maintain it
// incrementally.
func (db *DB[T]) WithIndex(field string) (*DB[T], error) {
	core := db.core
	core.mu.Lock()
	defer core.mu.Unlock()

	if core.closed {
		return nil, ErrClosed
	}
	si, err := buildSecondaryIndex(core.src, core.primary, field, core.config.MaxEntrySize)
	if err != nil {
		return nil, err
	}
	core.secondary[field] = si
	return db, nil
}

// WithCompaction runs compact once, immediately, rewriting the log down to
// its live entries and reloading every index from the result. It also
// leaves auto-compaction enabled going forward: once enough Set/Delete
// calls have piled up dead entries again, the next write triggers another
// compaction before returning.
func (db *DB[T]) WithCompaction() (*DB[T], error) {
	core := db.core
	core.mu.Lock()
	defer core.mu.Unlock()
	if core.closed {
		return nil, ErrClosed
	}
	if err := core.compact(); err != nil {
		return nil, err
	}
	core.deadEntries = 0
	core.autoCompact = true
	return db, nil
}

// WithReplica attaches a synchronous replica: every Set/Delete mirrors to
// it inline, and a replica error is surfaced to the calling write.
func (db *DB[T]) WithReplica(r Replica) (*DB[T], error) {
	core := db.core
	core.mu.Lock()
	defer core.mu.Unlock()
	if core.closed {
		return nil, ErrClosed
	}
	core.replicas = append(core.replicas, replicaBinding{sync: r})
	return db, nil
}

// WithAsyncReplica attaches an asynchronous replica: writes are mirrored
// through a buffered queue and a dedicated worker goroutine. The calling
// Set/Delete waits only while the queue is full, and errors returned by
// the replica itself never reach it.
func (db *DB[T]) WithAsyncReplica(r Replica) (*DB[T], error) {
	core := db.core
	core.mu.Lock()
	defer core.mu.Unlock()
	if core.closed {
		return nil, ErrClosed
	}
	core.replicas = append(core.replicas, replicaBinding{async: newAsyncReplica(r, core.config.ReplicaQueueSize)})
	return db, nil
}

// Get returns the live value stored under key, or ErrInvalidKey if key is
// absent from the primary index.
func (db *DB[T]) Get(key string) (T, error) {
	var zero T
	core := db.core
	core.mu.RLock()
	defer core.mu.RUnlock()

	if core.closed {
		return zero, ErrClosed
	}
	offset, ok := core.primary[key]
	if !ok {
		return zero, ErrInvalidKey
	}
	_, raw, err := core.src.readEntry(offset)
	if err != nil {
		return zero, err
	}
	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		return zero, err
	}
	return value, nil
}

// Set writes value under key, maintaining every registered secondary
// index and fanning the write out to every attached replica. Per spec
// §4.B, when secondary indexes exist the old value (if any) is decoded
// first so its bucket memberships can be removed before the new ones are
// inserted.
func (db *DB[T]) Set(key string, value T) error {
	core := db.core
	core.mu.Lock()
	defer core.mu.Unlock()

	if core.closed {
		return ErrClosed
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if isDeleteMarker(raw) {
		return ErrReservedValue
	}
	if limit := core.config.MaxEntrySize; limit > 0 && encodedLen(len(key), len(raw)) > limit {
		return ErrEntryTooLarge
	}

	oldOffset, hadOld := core.primary[key]
	var oldRaw []byte
	var oldDecoded any
	if hadOld && (len(core.secondary) > 0 || core.history != nil) {
		_, oldRaw, err = core.src.readEntry(oldOffset)
		if err != nil {
			return err
		}
		if len(core.secondary) > 0 {
			oldDecoded, err = decodeValue(oldRaw)
			if err != nil {
				return err
			}
			for field, si := range core.secondary {
				if err := si.remove(oldOffset, extractField(field, oldDecoded)); err != nil {
					return err
				}
			}
		}
	}

	newOffset, err := core.src.writeEntry(key, raw)
	if err != nil {
		return err
	}
	if core.config.SyncWrites {
		if err := core.sync(); err != nil {
			return err
		}
	}
	core.primary[key] = newOffset

	if len(core.secondary) > 0 {
		decoded, err := decodeValue(raw)
		if err != nil {
			return err
		}
		for field, si := range core.secondary {
			if err := si.insert(newOffset, extractField(field, decoded)); err != nil {
				return err
			}
		}
	}

	if hadOld {
		core.deadEntries++
	}
	if core.history != nil && hadOld {
		core.recordHistory(key, oldRaw)
	}

	if err := core.fanOut(key, raw); err != nil {
		return err
	}
	return core.maybeCompact()
}

// Delete removes key, writing a delete marker so readers reconstructing
// the primary index from the log see the same absence this call produces
// in memory.
func (db *DB[T]) Delete(key string) error {
	core := db.core
	core.mu.Lock()
	defer core.mu.Unlock()

	if core.closed {
		return ErrClosed
	}
	oldOffset, ok := core.primary[key]
	if !ok {
		return ErrInvalidKey
	}

	_, oldRaw, err := core.src.readEntry(oldOffset)
	if err != nil {
		return err
	}
	if len(core.secondary) > 0 {
		decoded, err := decodeValue(oldRaw)
		if err != nil {
			return err
		}
		for field, si := range core.secondary {
			if err := si.remove(oldOffset, extractField(field, decoded)); err != nil {
				return err
			}
		}
	}

	if _, err := core.src.writeEntry(key, deleteMarker); err != nil {
		return err
	}
	if core.config.SyncWrites {
		if err := core.sync(); err != nil {
			return err
		}
	}
	delete(core.primary, key)
	core.deadEntries++

	if core.history != nil {
		core.recordHistory(key, oldRaw)
	}

	if err := core.fanOut(key, deleteMarker); err != nil {
		return err
	}
	return core.maybeCompact()
}

// recordHistory appends oldRaw to key's retained version list, trimming to
// Config.KeepHistory entries and skipping the append entirely if it would
// duplicate the most recently retained version.
func (core *dbCore) recordHistory(key string, oldRaw []byte) {
	hash := xxh3.Hash(oldRaw)
	versions := core.history[key]
	if n := len(versions); n > 0 && versions[n-1].hash == hash {
		return
	}
	versions = append(versions, historyVersion{encoded: compressVersion(oldRaw), hash: hash})
	if over := len(versions) - core.config.KeepHistory; over > 0 {
		versions = versions[over:]
	}
	core.history[key] = versions
}

// maybeCompact runs a compaction inline when auto-compaction is enabled
// and the log has accumulated at least as many dead (superseded or
// deleted) entries as live ones, and at least 16 of them. Called with
// core.mu already held for writing.
func (core *dbCore) maybeCompact() error {
	if !core.autoCompact {
		return nil
	}
	if core.deadEntries < int64(len(core.primary)) || core.deadEntries < 16 {
		return nil
	}
	if err := core.compact(); err != nil {
		return err
	}
	core.deadEntries = 0
	return nil
}

// sync calls Sync on the underlying file, a no-op for the memory backend.
func (core *dbCore) sync() error {
	if fs, ok := core.src.(*fileSource); ok {
		return fs.writer.Sync()
	}
	return nil
}

// Iter returns a cursor over every live (key, value) pair in ascending
// offset order.
func (db *DB[T]) Iter() (*Cursor[T], error) {
	core := db.core
	core.mu.RLock()
	defer core.mu.RUnlock()
	if core.closed {
		return nil, ErrClosed
	}
	offsets := make([]int64, 0, len(core.primary))
	for _, off := range core.primary {
		offsets = append(offsets, off)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })
	return newCursor[T](core, offsets), nil
}

// Query returns a cursor over every live value matching q, in ascending
// offset order, using the optimised index-driven path when possible and
// falling back to a full linear scan otherwise.
func (db *DB[T]) Query(q Query) (*Cursor[T], error) {
	core := db.core
	core.mu.RLock()
	defer core.mu.RUnlock()
	if core.closed {
		return nil, ErrClosed
	}
	decode := func(offset int64) (any, error) {
		_, raw, err := core.src.readEntry(offset)
		if err != nil {
			return nil, err
		}
		return decodeValue(raw)
	}
	offsets, err := core.planOffsets(q, decode)
	if err != nil {
		return nil, err
	}
	return newCursor[T](core, offsets), nil
}

// Compact rewrites the log to contain only live entries, reclaiming the
// space held by superseded and deleted entries, and rebuilds every
// registered secondary index against the rewritten offsets.
func (db *DB[T]) Compact() error {
	core := db.core
	core.mu.Lock()
	defer core.mu.Unlock()
	if core.closed {
		return ErrClosed
	}
	if err := core.compact(); err != nil {
		return err
	}
	core.deadEntries = 0
	return nil
}

// Close releases the database's resources. It joins every asynchronous
// replica's worker before returning, so no mirrored write is lost by a
// clean shutdown. Close is idempotent.
func (db *DB[T]) Close() error {
	core := db.core
	core.mu.Lock()
	defer core.mu.Unlock()
	if core.closed {
		return nil
	}
	core.shutdownReplicas()
	core.closed = true
	return core.src.close()
}

// snapshotBytes reads the full current byte range of src.
func snapshotBytes(src source) ([]byte, error) {
	n := src.len()
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}
	if _, err := src.ReadAt(buf, 0); err != nil {
		return nil, fmt.Errorf("stratum: snapshot: %w", err)
	}
	return buf, nil
}

// IntoMemory returns a new in-memory database seeded with a snapshot of
// the current log bytes. The receiver is left open and usable; the two
// databases do not share state afterwards.
func (db *DB[T]) IntoMemory() (*DB[T], error) {
	core := db.core
	core.mu.RLock()
	defer core.mu.RUnlock()
	if core.closed {
		return nil, ErrClosed
	}
	data, err := snapshotBytes(core.src)
	if err != nil {
		return nil, err
	}
	newCore, err := newCore(newMemorySourceFrom(data), core.config)
	if err != nil {
		return nil, err
	}
	return &DB[T]{core: newCore}, nil
}

// IntoFile writes a snapshot of the current log to a new file-backed
// database at path, which must not already exist.
func (db *DB[T]) IntoFile(path string) (*DB[T], error) {
	core := db.core
	core.mu.RLock()
	data, err := snapshotBytes(core.src)
	config := core.config
	closed := core.closed
	core.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); err == nil {
		return nil, ErrExists
	}
	fs, err := createFileSource(path)
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		if _, err := fs.writer.WriteAt(data, 0); err != nil {
			fs.close()
			return nil, fmt.Errorf("stratum: into file: %w", err)
		}
		fs.tail = int64(len(data))
	}
	newCore, err := newCore(fs, config)
	if err != nil {
		fs.close()
		return nil, err
	}
	return &DB[T]{core: newCore}, nil
}
