// Schema migration: rewrite every live value through a transform function,
// yielding a database of a new value type. A free function rather than a
// method, since Go forbids a method from introducing a type parameter the
// receiver doesn't already have (U has no home on DB[T]). Per spec §4.E,
// secondary indexes do not carry across a migration — a schema change
// likely invalidates their field paths — so the new database starts with
// none registered; callers re-register via WithIndex against the new type.
package stratum

import json "github.com/goccy/go-json"

// Migrate consumes db, applying transform to every live value and writing
// the result to a new database sharing db's storage back-end (file or
// memory) and rewritten in place. On success db is closed and every later
// call on it returns ErrClosed; on failure db is left open.
func Migrate[T, U any](db *DB[T], transform func(T) U) (*DB[U], error) {
	core := db.core
	core.mu.Lock()
	defer core.mu.Unlock()

	if core.closed {
		return nil, ErrClosed
	}

	keep := make([]string, 0, len(core.primary))
	for key := range core.primary {
		keep = append(keep, key)
	}

	transformBytes := func(key string, value []byte) ([]byte, error) {
		var oldValue T
		if err := json.Unmarshal(value, &oldValue); err != nil {
			return nil, err
		}
		newValue := transform(oldValue)
		raw, err := json.Marshal(newValue)
		if err != nil {
			return nil, err
		}
		if isDeleteMarker(raw) {
			return nil, ErrReservedValue
		}
		return raw, nil
	}

	newPrimary, err := core.src.rewrite(keep, core.primary, transformBytes)
	if err != nil {
		return nil, err
	}

	migrated := &dbCore{
		src:       core.src,
		primary:   newPrimary,
		secondary: make(map[string]*secondaryIndex),
		config:    core.config,
	}
	if core.config.KeepHistory > 0 {
		migrated.history = make(map[string][]historyVersion)
	}

	core.closed = true
	return &DB[U]{core: migrated}, nil
}
