package storage

import (
	"crypto/rand"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/embershare/ember/internal/constants"
	"github.com/embershare/ember/internal/logging"
)

// shredChunkSize bounds the buffer used when overwriting file contents.
const shredChunkSize = 32 * 1024

// Repository reads and writes encrypted blobs on the local filesystem.
// Deletion always overwrites contents with random bytes before unlinking.
// On copy-on-write filesystems the overwrite may land in new extents; the
// passes still run and completion is logged.
type Repository struct {
	log    *logging.Logger
	passes int
}

// NewRepository returns a Repository that shreds with the given number of
// overwrite passes. Values below 1 fall back to the default.
func NewRepository(log *logging.Logger, passes int) *Repository {
	if passes < 1 {
		passes = constants.DefaultShredPasses
	}
	return &Repository{log: log, passes: passes}
}

// Save writes data to path, creating parent directories as needed. An
// existing file at path is replaced.
func (r *Repository) Save(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %q: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %q: %w", path, err)
	}
	return nil
}

// Read returns the full contents of path.
func (r *Repository) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}
	return data, nil
}

// Exists reports whether path exists.
func (r *Repository) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Delete securely erases the file at path: every byte is overwritten with
// crypto-random data, synced per pass, then the file is unlinked. Missing
// files are not an error.
func (r *Repository) Delete(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat %q: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%q is a directory, not a file", path)
	}

	if err := r.shred(path, info.Size()); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove %q: %w", path, err)
	}

	r.log.Info().
		Str("path", path).
		Int("passes", r.passes).
		Msg("Securely deleted file")
	return nil
}

// DeleteDirectory shreds every regular file under path, then removes the
// tree. Missing directories are not an error.
func (r *Repository) DeleteDirectory(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		return r.Delete(p)
	})
	if err != nil {
		return fmt.Errorf("failed to shred contents of %q: %w", path, err)
	}

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to remove directory %q: %w", path, err)
	}
	return nil
}

// DirInfo describes an immediate subdirectory of a scan root.
type DirInfo struct {
	Name    string
	Path    string
	ModTime time.Time
}

// ListDirectories returns the immediate subdirectories of root with their
// modification times. Callers decide which entries matter.
func (r *Repository) ListDirectories(root string) ([]DirInfo, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %q: %w", root, err)
	}

	dirs := make([]DirInfo, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		dirs = append(dirs, DirInfo{
			Name:    e.Name(),
			Path:    filepath.Join(root, e.Name()),
			ModTime: info.ModTime(),
		})
	}
	return dirs, nil
}

// shred overwrites size bytes of the file with random data, passes times,
// syncing after each pass.
func (r *Repository) shred(path string, size int64) error {
	if size == 0 {
		return nil
	}

	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("failed to open %q for overwrite: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, shredChunkSize)
	for pass := 0; pass < r.passes; pass++ {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("failed to rewind %q: %w", path, err)
		}
		remaining := size
		for remaining > 0 {
			n := int64(len(buf))
			if remaining < n {
				n = remaining
			}
			if _, err := rand.Read(buf[:n]); err != nil {
				return fmt.Errorf("failed to generate overwrite data: %w", err)
			}
			if _, err := f.Write(buf[:n]); err != nil {
				return fmt.Errorf("failed to overwrite %q: %w", path, err)
			}
			remaining -= n
		}
		if err := f.Sync(); err != nil {
			return fmt.Errorf("failed to sync %q after overwrite: %w", path, err)
		}
	}
	return nil
}
