// Package storage owns the on-disk blob layout: one directory per upload
// identifier holding a single encrypted file, plus a temp scratch area.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/embershare/ember/internal/util/sanitize"
	"github.com/embershare/ember/internal/validation"
)

// TempDirName is the scratch directory kept alongside upload directories.
// The orphan reaper must never treat it as an upload.
const TempDirName = "temp"

// Paths maps identifiers and filenames onto the storage tree:
// <base>/<identifier>/<sanitized filename>.
type Paths struct {
	base string
}

// NewPaths creates the storage root and its temp scratch directory if
// needed and resolves base to an absolute path so later containment
// checks are stable.
func NewPaths(base string) (*Paths, error) {
	if err := os.MkdirAll(base, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create storage root %q: %w", base, err)
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(abs, TempDirName), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	return &Paths{base: abs}, nil
}

// Base returns the absolute storage root.
func (p *Paths) Base() string {
	return p.base
}

// TempDir returns the scratch directory path.
func (p *Paths) TempDir() string {
	return filepath.Join(p.base, TempDirName)
}

// UploadDir returns the directory that holds the blob for id.
func (p *Paths) UploadDir(id string) string {
	return filepath.Join(p.base, id)
}

// FilePath resolves the blob path for an identifier and filename. The
// filename is sanitized before joining, and the result must stay inside
// the upload's own directory.
func (p *Paths) FilePath(id, filename string) (string, error) {
	if err := validation.ValidateFilename(id); err != nil {
		return "", fmt.Errorf("invalid identifier %q: %w", id, err)
	}

	safe := sanitize.Filename(filename)
	if err := validation.ValidateFilename(safe); err != nil {
		return "", fmt.Errorf("invalid filename: %w", err)
	}

	dir := p.UploadDir(id)
	path := filepath.Join(dir, safe)
	if err := validation.ValidatePathInDirectory(path, dir); err != nil {
		return "", err
	}
	return path, nil
}
