package objectstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/book-expert/text-improver/internal/core"
)

const (
	filePermissions = 0o600
	dirPermissions  = 0o750
)

// ErrInvalidKey is returned for keys that would escape the store directory.
var ErrInvalidKey = errors.New("invalid object key")

var _ core.ObjectStore = (*DirStore)(nil)

// DirStore keeps each object as a file in one directory, by default a fresh
// directory under os.TempDir.
type DirStore struct {
	dir       string
	temporary bool
}

// NewDirStore uses dir, creating it if needed. An empty dir creates a new
// temporary directory.
func NewDirStore(dir string) (*DirStore, error) {
	if dir == "" {
		tempDir, err := os.MkdirTemp("", "text-improver-audio-*")
		if err != nil {
			return nil, fmt.Errorf("failed to create temporary audio directory: %w", err)
		}

		return &DirStore{dir: tempDir, temporary: true}, nil
	}

	err := os.MkdirAll(dir, dirPermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio directory '%s': %w", dir, err)
	}

	return &DirStore{dir: dir}, nil
}

// Dir returns the backing directory.
func (d *DirStore) Dir() string {
	return d.dir
}

// Download reads the file for key.
func (d *DirStore) Download(_ context.Context, key string) ([]byte, error) {
	path, err := d.path(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read object '%s': %w", key, err)
	}

	return data, nil
}

// Upload writes data to the file for key.
func (d *DirStore) Upload(_ context.Context, key string, data []byte) error {
	path, err := d.path(key)
	if err != nil {
		return err
	}

	err = os.WriteFile(path, data, filePermissions)
	if err != nil {
		return fmt.Errorf("failed to write object '%s': %w", key, err)
	}

	return nil
}

// Delete removes the file for key. A missing file is not an error.
func (d *DirStore) Delete(_ context.Context, key string) error {
	path, err := d.path(key)
	if err != nil {
		return err
	}

	err = os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete object '%s': %w", key, err)
	}

	return nil
}

// Close removes the directory when NewDirStore created it as a temporary
// directory. A configured directory is left in place.
func (d *DirStore) Close() error {
	if !d.temporary {
		return nil
	}

	err := os.RemoveAll(d.dir)
	if err != nil {
		return fmt.Errorf("failed to remove temporary audio directory '%s': %w", d.dir, err)
	}

	return nil
}

// Location returns the file path for key.
func (d *DirStore) Location(key string) string {
	return filepath.Join(d.dir, filepath.Base(key))
}

func (d *DirStore) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	return filepath.Join(d.dir, key), nil
}
