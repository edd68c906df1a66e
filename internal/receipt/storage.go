package receipt

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Storage defines the two-stage file lifecycle for uploaded documents: a
// transient copy that exists only for the duration of one pipeline call, and
// a permanent copy created when the document is accepted.
type Storage interface {
	// SaveTemp writes an uploaded document to the transient area and
	// returns its absolute path
	SaveTemp(filename string, data []byte) (string, error)

	// Promote moves a transient file into permanent storage under
	// finalName and returns the permanent path. The transient path no
	// longer exists afterwards.
	Promote(tempPath string, finalName string) (string, error)

	// Delete removes a file by absolute path
	Delete(path string) error

	// Get reads a stored file
	Get(path string) ([]byte, error)
}

// LocalStorage implements Storage on the local filesystem
type LocalStorage struct {
	tempDir  string
	finalDir string
}

// NewLocalStorage creates a LocalStorage with the given transient and
// permanent directories, creating them when missing.
func NewLocalStorage(tempDir, finalDir string) (*LocalStorage, error) {
	for _, dir := range []string{tempDir, finalDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating storage directory: %w", err)
		}
	}
	return &LocalStorage{tempDir: tempDir, finalDir: finalDir}, nil
}

// SaveTemp writes an uploaded document to the transient directory
func (l *LocalStorage) SaveTemp(filename string, data []byte) (string, error) {
	path := filepath.Join(l.tempDir, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing transient file: %w", err)
	}
	return path, nil
}

// Promote moves a transient file into permanent storage. Rename can fail
// across filesystems, so it falls back to copy-then-remove.
func (l *LocalStorage) Promote(tempPath string, finalName string) (string, error) {
	finalPath := filepath.Join(l.finalDir, finalName)
	if err := os.Rename(tempPath, finalPath); err == nil {
		return finalPath, nil
	}

	src, err := os.Open(tempPath)
	if err != nil {
		return "", fmt.Errorf("opening transient file: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(finalPath)
	if err != nil {
		return "", fmt.Errorf("creating permanent file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(finalPath)
		return "", fmt.Errorf("copying to permanent storage: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("closing permanent file: %w", err)
	}
	if err := os.Remove(tempPath); err != nil {
		return "", fmt.Errorf("removing transient file: %w", err)
	}
	return finalPath, nil
}

// Delete removes a file by absolute path
func (l *LocalStorage) Delete(path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

// Get reads a stored file
func (l *LocalStorage) Get(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}
