package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

const sessionFileName = "session.json"

// document is the on-disk layout of the session file.
type document struct {
	Version int               `json:"version"`
	Values  map[string]string `json:"values"`
}

// FileStore implements Store as a single JSON document on the local filesystem.
type FileStore struct {
	baseDir string

	mu sync.Mutex
}

// NewFileStore creates a file backed store.
// If baseDir is empty, uses ~/.recipes/
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".recipes")
	}

	// Create directory with 0700 permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	log.Debug().Str("baseDir", baseDir).Msg("file token store initialized")

	return &FileStore{baseDir: baseDir}, nil
}

// Path returns the location of the session file.
func (f *FileStore) Path() string {
	return filepath.Join(f.baseDir, sessionFileName)
}

func (f *FileStore) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return "", err
	}

	value, ok := doc.Values[key]
	if !ok {
		return "", ErrNotFound
	}

	return value, nil
}

func (f *FileStore) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}

	doc.Values[key] = value

	return f.save(doc)
}

func (f *FileStore) Remove(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}

	if _, ok := doc.Values[key]; !ok {
		return nil
	}

	delete(doc.Values, key)

	return f.save(doc)
}

// load reads the session file. A missing file is an empty document and a
// corrupt one is discarded, so a damaged file never locks the user out.
func (f *FileStore) load() (*document, error) {
	doc := &document{Version: 1, Values: make(map[string]string)}

	data, err := os.ReadFile(f.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return doc, nil
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	if err := json.Unmarshal(data, doc); err != nil {
		log.Warn().Err(err).Str("path", f.Path()).Msg("discarding corrupt session file")
		return &document{Version: 1, Values: make(map[string]string)}, nil
	}

	if doc.Values == nil {
		doc.Values = make(map[string]string)
	}

	return doc, nil
}

// save writes the session file atomically.
func (f *FileStore) save(doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session file: %w", err)
	}

	// Write to temp file first
	path := f.Path()
	tempPath := path + ".tmp"

	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save session file: %w", err)
	}

	return nil
}
