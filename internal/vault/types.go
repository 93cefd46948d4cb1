// Package vault provides access to the markdown files of a vault directory.
package vault

import (
	"context"
	"errors"
	"time"
)

// ErrNotTracked indicates a path that exists but is not a tracked vault file.
var ErrNotTracked = errors.New("vault: file is not tracked")

// File describes one tracked file of the vault.
type File struct {
	// Path is the vault-relative path with forward slashes. It is the key
	// used for checkpoints.
	Path    string
	AbsPath string
	Size    int64
	ModTime time.Time
}

// MTime returns the modification time in unix milliseconds.
func (f File) MTime() int64 {
	return f.ModTime.UnixMilli()
}

// Vault is the host collaborator that lists files and reads their content.
type Vault interface {
	ListFiles(ctx context.Context) ([]File, error)
	Stat(ctx context.Context, path string) (File, error)
	ReadContent(ctx context.Context, f File) (string, error)
}
