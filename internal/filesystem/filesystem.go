// Package filesystem provides a directory-backed document store for vault
// activity data.
package filesystem

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vault-md/vaultheat/internal/storage"
)

// Store keeps each document as a file under Root.
type Store struct {
	root       string
	ensureOnce sync.Once
	ensureErr  error
}

var (
	_ storage.DocumentStore = (*Store)(nil)
	_ storage.Describer     = (*Store)(nil)
)

// New creates a store rooted at dir. The directory is created on first write.
func New(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the base directory.
func (s *Store) Root() string {
	return s.root
}

// ensureRoot initialises the root directory the first time it is needed.
func (s *Store) ensureRoot() error {
	s.ensureOnce.Do(func() {
		s.ensureErr = os.MkdirAll(s.root, 0o750)
	})
	return s.ensureErr
}

// Path returns the file path for a key.
func (s *Store) Path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid document key %q", key)
	}
	return filepath.Join(s.root, clean), nil
}

// Load reads the document stored under key.
func (s *Store) Load(_ context.Context, key string) ([]byte, error) {
	path, err := s.Path(key)
	if err != nil {
		return nil, err
	}

	//nolint:gosec // G304: path is derived from a validated document key
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

// Save replaces the document under key. The content is written to a temp
// file in the same directory and renamed over the target.
func (s *Store) Save(ctx context.Context, key string, data []byte) error {
	if err := s.EnsureFolder(ctx, key); err != nil {
		return err
	}

	path, err := s.Path(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", key, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to sync %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", key, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", key, err)
	}
	return nil
}

// EnsureFolder creates the directory that will hold key.
func (s *Store) EnsureFolder(_ context.Context, key string) error {
	if err := s.ensureRoot(); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	path, err := s.Path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create folder for %s: %w", key, err)
	}
	return nil
}

// Exists reports whether a document is stored under key.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	path, err := s.Path(key)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

// Describe returns size, modification time and SHA-256 of a document.
func (s *Store) Describe(ctx context.Context, key string) (storage.DocumentInfo, error) {
	path, err := s.Path(key)
	if err != nil {
		return storage.DocumentInfo{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return storage.DocumentInfo{}, storage.ErrNotFound
		}
		return storage.DocumentInfo{}, err
	}

	data, err := s.Load(ctx, key)
	if err != nil {
		return storage.DocumentInfo{}, err
	}

	return storage.DocumentInfo{
		Key:     key,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Hash:    calculateHash(data),
	}, nil
}

func calculateHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
