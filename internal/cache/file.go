package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// FileStore keeps the cache as a JSON document keyed by CNPJ
type FileStore struct {
	path   string
	logger *logrus.Logger
}

// NewFileStore creates a store backed by the JSON file at path
func NewFileStore(path string, logger *logrus.Logger) *FileStore {
	return &FileStore{
		path:   path,
		logger: logger,
	}
}

// Name implements Store
func (s *FileStore) Name() string { return "file" }

// Path returns the backing file location
func (s *FileStore) Path() string { return s.path }

// Load implements Store
func (s *FileStore) Load(_ context.Context) (Entries, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.WithField("path", s.path).Debug("Cache file not found, starting empty")
		return Entries{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file %s: %w", s.path, err)
	}

	entries := Entries{}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode cache file %s: %w", s.path, err)
	}

	s.logger.WithFields(logrus.Fields{
		"path":    s.path,
		"entries": len(entries),
	}).Debug("Cache file loaded")

	return entries, nil
}

// Save implements Store. The document is written to a temporary file in the
// same directory and renamed over the previous one.
func (s *FileStore) Save(_ context.Context, entries Entries) error {
	if entries == nil {
		entries = Entries{}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary cache file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close cache file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace cache file %s: %w", s.path, err)
	}

	s.logger.WithFields(logrus.Fields{
		"path":    s.path,
		"entries": len(entries),
	}).Debug("Cache file saved")

	return nil
}
