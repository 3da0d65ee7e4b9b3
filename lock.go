// Advisory, process-exclusive file locking for the file-backed source.
//
// spec §5 leaves concurrent access from multiple *processes* to the same
// path as undefined behaviour — the engine itself only promises correctness
// within one process's in-memory primary/secondary indexes. An OS-level
// advisory lock turns that undefined behaviour into an early, diagnosable
// Open/Create error instead of silent index/log divergence across two
// processes racing the same file. Purely ambient robustness: nothing in
// spec.md requires it, and the in-memory back-end has no file to lock.
package stratum

// fileLock is acquired for the lifetime of a fileSource and released on
// close. acquireLock/unlock are implemented per-platform (lock_unix.go,
// lock_windows.go).
type fileLock struct {
	path string
	fd   uintptr
}
