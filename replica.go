// Replication fan-out: a per-database list of replicas, each synchronous
// (inline, errors surfaced to the writing caller) or asynchronous (a
// dedicated worker draining a message queue). Grounded on the
// Replicator/worker-dispatch shape of other_examples/7871adb5_taitelee-
// kvstore__internal-kv-engine.go.go, adapted from fire-and-forget dispatch
// to the joinable, drain-on-shutdown worker spec §4.D requires.
package stratum

import "sync"

// Replica is any sink for mirrored writes. It receives the same raw,
// already-serialised value bytes the writing engine persisted — it never
// sees the user's T. A logical delete arrives as Set(key, []byte("null")),
// identically to how the primary engine's own log represents it.
type Replica interface {
	Set(key string, value []byte) error
}

// replicaMsg is the unit of work handed to an asynchronous replica's
// worker. shutdown is the sentinel spec §4.D calls for: drain pending
// messages, then exit.
type replicaMsg struct {
	key      string
	value    []byte
	shutdown bool
}

// asyncReplica owns a worker goroutine and a bounded queue for one
// attached replica.
type asyncReplica struct {
	target Replica
	queue  chan replicaMsg
	wg     sync.WaitGroup
	closed bool
	mu     sync.Mutex // guards closed; enqueue must not race a concurrent shutdown
}

// newAsyncReplica spawns the worker. queueSize <= 0 falls back to a
// generously sized buffer rather than an unbuffered channel, so that a
// burst of writes does not make every Set block on replica throughput —
// spec permits either a bounded or unbounded queue.
func newAsyncReplica(target Replica, queueSize int) *asyncReplica {
	if queueSize <= 0 {
		queueSize = 4096
	}
	ar := &asyncReplica{target: target, queue: make(chan replicaMsg, queueSize)}
	ar.wg.Add(1)
	go ar.run()
	return ar
}

func (ar *asyncReplica) run() {
	defer ar.wg.Done()
	for msg := range ar.queue {
		if msg.shutdown {
			return
		}
		// Asynchronous replicas are fire-and-forget: the writing caller
		// already returned before this message is processed, so there is
		// no one left to hand a per-message error to. A failing replica
		// simply falls behind; detecting and surfacing that is a concern
		// for whatever monitors the replica, not this engine.
		_ = ar.target.Set(msg.key, msg.value)
	}
}

// enqueue hands one write to the worker. It returns ErrReplicaClosed once
// shutdown has been initiated.
func (ar *asyncReplica) enqueue(key string, value []byte) error {
	ar.mu.Lock()
	if ar.closed {
		ar.mu.Unlock()
		return ErrReplicaClosed
	}
	ar.queue <- replicaMsg{key: key, value: value}
	ar.mu.Unlock()
	return nil
}

// shutdown enqueues the sentinel and blocks until the worker has drained
// every pending message and exited. Safe to call more than once.
func (ar *asyncReplica) shutdown() {
	ar.mu.Lock()
	if ar.closed {
		ar.mu.Unlock()
		return
	}
	ar.closed = true
	ar.queue <- replicaMsg{shutdown: true}
	ar.mu.Unlock()
	ar.wg.Wait()
}

// replicaBinding is one attached replica, either synchronous (async is
// nil) or asynchronous (async owns the worker).
type replicaBinding struct {
	sync  Replica
	async *asyncReplica
}

// fanOut mirrors one write to every attached replica. A synchronous
// replica's error is returned to the caller immediately, aborting any
// remaining fan-out (matching spec §4.D: "an error is surfaced to the
// caller"). For an asynchronous replica the call waits only while its
// queue is full, and fails only with ErrReplicaClosed once the replica
// has been shut down.
func (core *dbCore) fanOut(key string, value []byte) error {
	for _, rb := range core.replicas {
		if rb.async != nil {
			if err := rb.async.enqueue(key, value); err != nil {
				return err
			}
			continue
		}
		if err := rb.sync.Set(key, value); err != nil {
			return err
		}
	}
	return nil
}

// shutdownReplicas joins every asynchronous replica's worker. Called from
// Close; if the engine is not cleanly torn down, undelivered async
// messages are lost, per spec §4.D.
func (core *dbCore) shutdownReplicas() {
	for _, rb := range core.replicas {
		if rb.async != nil {
			rb.async.shutdown()
		}
	}
}

// engineReplica adapts a *DB[T] into a Replica, implementing the default
// "engine as replica" fast path of spec §4.D: writes land on the log via
// the raw bytes the source writer already accepts, bypassing secondary-
// index maintenance entirely. Using it for a database that itself has
// secondary indexes registered is a misuse — see spec §4.D — so every
// write through it is rejected with ErrIndexedReplica while that database
// has any secondary index, rather than silently leaving those indexes
// inconsistent.
type engineReplica[T any] struct {
	db *DB[T]
}

// AsReplica wraps db so it can be attached as another database's replica
// via WithReplica/WithAsyncReplica.
func AsReplica[T any](db *DB[T]) Replica {
	return engineReplica[T]{db: db}
}

func (e engineReplica[T]) Set(key string, value []byte) error {
	core := e.db.core
	core.mu.Lock()
	defer core.mu.Unlock()

	if core.closed {
		return ErrClosed
	}
	if len(core.secondary) > 0 {
		return ErrIndexedReplica
	}

	if isDeleteMarker(value) {
		delete(core.primary, key)
		if _, err := core.src.writeEntry(key, value); err != nil {
			return err
		}
		return nil
	}

	offset, err := core.src.writeEntry(key, value)
	if err != nil {
		return err
	}
	core.primary[key] = offset
	return nil
}
