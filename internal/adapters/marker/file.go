package marker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// File keeps the marker as decimal text in a local file.
type File struct {
	path string
}

// NewFile returns a file-backed marker. Parent directories are created on Save.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the marker location.
func (f *File) Path() string { return f.path }

func (f *File) Load(_ context.Context) (int64, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, ErrNoMarker
		}
		return 0, fmt.Errorf("read marker %s: %w", f.path, err)
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrCorrupt, raw)
	}
	return v, nil
}

// Save writes through a temp file and rename so a reader never sees a partial value.
func (f *File) Save(_ context.Context, epoch int64) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create marker dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".marker-*")
	if err != nil {
		return fmt.Errorf("create marker temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(strconv.FormatInt(epoch, 10)); err != nil {
		tmp.Close()
		return fmt.Errorf("write marker: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close marker: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace marker: %w", err)
	}
	return nil
}
