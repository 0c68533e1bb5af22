//go:build windows

// pkg/store/lock_other.go
package store

import "os"

// lockFile is a no-op on platforms without flock support. The
// single-writer assumption in spec.md §5 still applies; it simply isn't
// enforced here.
func lockFile(f *os.File) error {
	return nil
}

// unlockFile is the no-op counterpart of lockFile.
func unlockFile(f *os.File) error {
	return nil
}
