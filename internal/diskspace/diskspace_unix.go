//go:build !windows

package diskspace

import (
	"path/filepath"
	"syscall"
)

// CheckAvailableSpace verifies that the filesystem holding path can
// absorb requiredBytes plus a safety margin. A nil error means the
// write may proceed. Stat failures are ignored so that an exotic
// filesystem never blocks uploads; the write itself will surface any
// real problem.
func CheckAvailableSpace(path string, requiredBytes int64, safetyMargin float64) error {
	dir := filepath.Dir(path)

	var stat syscall.Statfs_t
	if err := syscall.Statfs(dir, &stat); err != nil {
		return nil
	}

	availableBytes := int64(stat.Bavail) * int64(stat.Bsize)
	required := int64(float64(requiredBytes) * safetyMargin)

	if availableBytes < required {
		return &InsufficientSpaceError{
			Path:           dir,
			RequiredBytes:  required,
			AvailableBytes: availableBytes,
		}
	}
	return nil
}

// GetAvailableSpace returns the free bytes on the filesystem holding
// path, or 0 if it cannot be determined.
func GetAvailableSpace(path string) int64 {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0
	}
	return int64(stat.Bavail) * int64(stat.Bsize)
}
