package common

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// FileManager provides small file helpers shared across components.
type FileManager struct {
	logger zerolog.Logger
}

// NewFileManager creates a new FileManager
func NewFileManager(logger zerolog.Logger) *FileManager {
	return &FileManager{
		logger: logger.With().Str("component", "FileManager").Logger(),
	}
}

// FileExists checks whether the given path exists and is a regular file.
func (fm *FileManager) FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// ReadFile reads the entire file content.
func (fm *FileManager) ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapErrorf(err, "failed to read file '%s'", path)
	}
	return data, nil
}

// EnsureDir creates the directory (and parents) if it does not exist.
func (fm *FileManager) EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return WrapErrorf(err, "failed to create directory '%s'", dir)
	}
	return nil
}

// WriteFileAtomic writes data to a temporary file in the target directory and
// renames it over the destination, so a crash mid-write never leaves a
// truncated file behind.
func (fm *FileManager) WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := fm.EnsureDir(dir); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return WrapErrorf(err, "failed to create temp file in '%s'", dir)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return WrapErrorf(err, "failed to write temp file '%s'", tmpName)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return WrapErrorf(err, "failed to sync temp file '%s'", tmpName)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return WrapErrorf(err, "failed to close temp file '%s'", tmpName)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return WrapErrorf(err, "failed to rename temp file to '%s'", path)
	}
	return nil
}
