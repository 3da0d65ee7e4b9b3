//go:build !windows

package stratum

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// acquireLock takes a non-blocking exclusive flock on fd. It fails
// immediately with ErrLocked if another process already holds it, rather
// than blocking the caller indefinitely.
func acquireLock(path string, fd uintptr) (*fileLock, error) {
	if err := unix.Flock(int(fd), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		if err == unix.EWOULDBLOCK {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("stratum: flock: %w", err)
	}
	return &fileLock{path: path, fd: fd}, nil
}

func (l *fileLock) unlock() error {
	if l == nil {
		return nil
	}
	if err := unix.Flock(int(l.fd), unix.LOCK_UN); err != nil {
		return fmt.Errorf("stratum: funlock: %w", err)
	}
	return nil
}
