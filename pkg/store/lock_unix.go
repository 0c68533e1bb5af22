//go:build !windows

// pkg/store/lock_unix.go
package store

import (
	"os"

	"golang.org/x/sys/unix"
)

// lockFile acquires a non-blocking advisory exclusive lock on f. It
// returns ErrStoreLocked if another process already holds the lock,
// enforcing the single-writer assumption in spec.md §5.
func lockFile(f *os.File) error {
	err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err != nil {
		if err == unix.EWOULDBLOCK {
			return ErrStoreLocked
		}
		return err
	}
	return nil
}

// unlockFile releases the lock acquired by lockFile.
func unlockFile(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
