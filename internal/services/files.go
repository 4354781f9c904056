package services

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileSaver writes exported assets into a download directory.
type FileSaver struct {
	dir string
}

// NewFileSaver creates a new FileSaver writing into dir. The directory is created if it doesn't exist.
func NewFileSaver(dir string) (FileSaver, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return FileSaver{}, fmt.Errorf("failed to create download directory: %w", err)
	}
	return FileSaver{dir: dir}, nil
}

// Dir returns the download directory.
func (f FileSaver) Dir() string {
	return f.dir
}

// Save writes data under name in the download directory and returns the path of the file. The file is
// written to a temporary file first and renamed into place, so a reader never sees a partial asset.
func (f FileSaver) Save(name string, data []byte) (string, error) {
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	path := filepath.Join(f.dir, name)

	tmp, err := os.CreateTemp(f.dir, ".download-")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return "", fmt.Errorf("failed to write asset: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("failed to sync asset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close asset: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return "", fmt.Errorf("failed to set asset permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return "", fmt.Errorf("failed to move asset into place: %w", err)
	}

	success = true
	return path, nil
}
