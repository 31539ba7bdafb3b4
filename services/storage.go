package services

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"docqa-platform/internal/logger"
)

var pdfMagic = []byte("%PDF")

// IsPDF checks the file magic. Cheap first-line validation before any bytes
// reach the extractor.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, pdfMagic)
}

// FileStore keeps the original uploads on local disk so documents can be
// reprocessed without a re-upload. One file per document, named by doc ID.
type FileStore struct {
	baseDir string
}

func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// Save writes the upload atomically (temp file then rename) and returns the
// stored path. A later save for the same doc ID replaces the previous file.
func (fs *FileStore) Save(docID string, data []byte) (string, error) {
	path := filepath.Join(fs.baseDir, docID+".pdf")

	tmp, err := os.CreateTemp(fs.baseDir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close upload: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("store upload: %w", err)
	}
	return path, nil
}

func (fs *FileStore) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stored file: %w", err)
	}
	return data, nil
}

// Remove is idempotent; a missing file is not an error.
func (fs *FileStore) Remove(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to remove stored file", "path", path, "error", err)
	}
}
