// Package diskspace reports free space on the filesystem backing the
// blob store, so an upload can be refused up front instead of failing
// halfway through a write.
package diskspace

import "fmt"

// DefaultSafetyMargin is the slack factor applied over the exact blob
// size when deciding whether a write fits.
const DefaultSafetyMargin = 1.1

// InsufficientSpaceError reports that the storage filesystem cannot
// absorb a blob of the required size.
type InsufficientSpaceError struct {
	Path           string
	RequiredBytes  int64
	AvailableBytes int64
}

func (e *InsufficientSpaceError) Error() string {
	requiredMB := float64(e.RequiredBytes) / (1024 * 1024)
	availableMB := float64(e.AvailableBytes) / (1024 * 1024)
	return fmt.Sprintf("insufficient disk space for %s: need %.2f MB, have %.2f MB available",
		e.Path, requiredMB, availableMB)
}
