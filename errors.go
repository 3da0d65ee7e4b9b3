// Package stratum provides an embeddable, document-oriented, log-structured
// key-value store. Records are JSON values addressed by string keys; the
// engine layers durable point writes, secondary indexes, a predicate query
// planner, compaction, schema migration, and replication on top of a single
// append-only log.
package stratum

import "errors"

// Sentinel errors returned by engine operations, grouped by the kind
// taxonomy the package documents: Io, Index, InvalidKey, JsonError,
// ReplicaError. Callers use errors.Is against these, never string matching.
var (
	// ErrNotExist is returned by Open when the target path does not exist.
	ErrNotExist = errors.New("stratum: database does not exist")

	// ErrExists is returned by Create when the target path already exists.
	ErrExists = errors.New("stratum: database already exists")

	// ErrClosed is returned by any operation on a closed database.
	ErrClosed = errors.New("stratum: database is closed")

	// ErrInvalidKey is returned when a Get/Delete target key is absent from
	// the primary index, or a decode at a stored offset finds a delete
	// marker where a live entry was expected.
	ErrInvalidKey = errors.New("stratum: invalid key")

	// ErrCorruptEntry is returned when a length-prefixed entry cannot be
	// read in full from its recorded offset.
	ErrCorruptEntry = errors.New("stratum: corrupt log entry")

	// ErrIndexConsistency is raised when index reconstruction or offset
	// arithmetic produces an internally inconsistent state. A raw replica
	// write against a database with secondary indexes registered returns
	// ErrIndexedReplica instead.
	ErrIndexConsistency = errors.New("stratum: index inconsistency")

	// ErrIndexedReplica is returned when the raw-write replica fast path
	// is used on a database with secondary indexes registered. It belongs
	// to the same Index kind as ErrIndexConsistency but is a separate
	// sentinel that does not wrap it.
	ErrIndexedReplica = errors.New("stratum: replica fast path cannot bypass a database with secondary indexes")

	// ErrReplicaClosed is returned by an asynchronous replica whose
	// worker queue has already been torn down.
	ErrReplicaClosed = errors.New("stratum: replica queue is closed")

	// ErrReservedValue is returned when a write's value would serialise
	// to exactly the four-byte delete marker ("null"), which the type
	// layer must disallow at the top level.
	ErrReservedValue = errors.New("stratum: value serialises to the reserved delete marker")

	// ErrFieldNotNumber is returned when a numeric comparison predicate is
	// evaluated against a field whose extracted JSON value is not a number.
	ErrFieldNotNumber = errors.New("stratum: field value is not a number")

	// ErrEntryTooLarge is returned by Set when the encoded key+value would
	// exceed Config.MaxEntrySize, before anything is written to the log.
	ErrEntryTooLarge = errors.New("stratum: entry exceeds MaxEntrySize")

	// ErrDecompress is returned by History when a stored version snapshot's
	// ascii85/zstd framing cannot be reversed, distinguishing a corrupt
	// history snapshot from a corrupt primary log entry.
	ErrDecompress = errors.New("stratum: corrupt history snapshot")

	// ErrLocked is returned by Open/Create when another process already
	// holds the advisory lock on the target path.
	ErrLocked = errors.New("stratum: database path is locked by another process")

	// ErrMixedConnective is returned when a query attempts to combine AND
	// and OR predicates in a single flat list instead of running separate
	// queries.
	ErrMixedConnective = errors.New("stratum: query predicates must share one top-level connective")
)
