//go:build windows

package diskspace

import (
	"path/filepath"
	"syscall"
	"unsafe"
)

var (
	kernel32            = syscall.NewLazyDLL("kernel32.dll")
	getDiskFreeSpaceExW = kernel32.NewProc("GetDiskFreeSpaceExW")
)

// CheckAvailableSpace verifies that the volume holding path can absorb
// requiredBytes plus a safety margin. A nil error means the write may
// proceed. Query failures are ignored so that an unreadable volume
// never blocks uploads; the write itself will surface any real problem.
func CheckAvailableSpace(path string, requiredBytes int64, safetyMargin float64) error {
	dir := filepath.Dir(path)

	availableBytes := queryFreeBytes(dir)
	if availableBytes == 0 {
		return nil
	}

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

// GetAvailableSpace returns the free bytes on the volume holding path,
// or 0 if it cannot be determined.
func GetAvailableSpace(path string) int64 {
	return queryFreeBytes(path)
}

func queryFreeBytes(path string) int64 {
	var freeBytesAvailable, totalBytes, totalFreeBytes uint64

	pathPtr, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return 0
	}

	ret, _, _ := getDiskFreeSpaceExW.Call(
		uintptr(unsafe.Pointer(pathPtr)),
		uintptr(unsafe.Pointer(&freeBytesAvailable)),
		uintptr(unsafe.Pointer(&totalBytes)),
		uintptr(unsafe.Pointer(&totalFreeBytes)),
	)

	if ret == 0 {
		return 0
	}

	return int64(freeBytesAvailable)
}
