//go:build windows

package stratum

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// acquireLock takes a non-blocking exclusive byte-range lock over the whole
// file via LockFileEx, the Windows equivalent of flock(LOCK_EX|LOCK_NB).
func acquireLock(path string, fd uintptr) (*fileLock, error) {
	ol := new(windows.Overlapped)
	const lockAll = ^uint32(0)
	err := windows.LockFileEx(windows.Handle(fd), windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY, 0, lockAll, lockAll, ol)
	if err != nil {
		if err == windows.ERROR_LOCK_VIOLATION {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("stratum: lockfileex: %w", err)
	}
	return &fileLock{path: path, fd: fd}, nil
}

func (l *fileLock) unlock() error {
	if l == nil {
		return nil
	}
	ol := new(windows.Overlapped)
	const lockAll = ^uint32(0)
	if err := windows.UnlockFileEx(windows.Handle(l.fd), 0, lockAll, lockAll, ol); err != nil {
		return fmt.Errorf("stratum: unlockfileex: %w", err)
	}
	return nil
}
