package vault

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultExtensions lists the file extensions tracked when none are configured.
var DefaultExtensions = []string{"md"}

// defaultIgnores are directory names never descended into.
var defaultIgnores = []string{
	".git",
	".obsidian",
	".trash",
	".vaultheat",
	"node_modules",
}

// Dir implements Vault over a directory on the local filesystem.
type Dir struct {
	root    string
	exts    map[string]bool
	ignores map[string]bool
}

// NewDir creates a vault rooted at root that tracks files with the given
// extensions (without the leading dot).
func NewDir(root string, extensions []string) (*Dir, error) {
	if strings.HasPrefix(root, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		root = filepath.Join(home, root[1:])
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vault path: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to open vault: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault path is not a directory: %s", absRoot)
	}

	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	exts := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		exts[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}

	ignores := make(map[string]bool, len(defaultIgnores))
	for _, name := range defaultIgnores {
		ignores[name] = true
	}

	return &Dir{root: absRoot, exts: exts, ignores: ignores}, nil
}

// Root returns the absolute vault directory.
func (d *Dir) Root() string {
	return d.root
}

// ListFiles walks the vault and returns every tracked file sorted by path.
// Unreadable entries are skipped so one bad directory does not hide the rest.
func (d *Dir) ListFiles(ctx context.Context) ([]File, error) {
	var files []File

	err := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			return nil
		}

		if entry.IsDir() {
			if path != d.root && d.ignores[entry.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		if entry.Type()&fs.ModeSymlink != 0 || !d.Tracks(path) {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			return nil
		}

		files = append(files, d.fileFromInfo(path, info))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk vault: %w", err)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})

	return files, nil
}

// Stat returns the current state of the file at the vault-relative path.
func (d *Dir) Stat(_ context.Context, path string) (File, error) {
	abs := d.Abs(path)
	if !d.Tracks(abs) {
		return File{}, fmt.Errorf("%w: %s", ErrNotTracked, path)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return File{}, err
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%w: %s is a directory", ErrNotTracked, path)
	}

	return d.fileFromInfo(abs, info), nil
}

// ReadContent returns the file's text.
func (d *Dir) ReadContent(_ context.Context, f File) (string, error) {
	abs := f.AbsPath
	if abs == "" {
		abs = d.Abs(f.Path)
	}

	//nolint:gosec // G304: path is resolved inside the vault root
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Tracks reports whether a path has a tracked extension and lies outside
// ignored directories.
func (d *Dir) Tracks(path string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if !d.exts[ext] {
		return false
	}

	rel, err := d.Rel(path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(rel, "/") {
		if d.ignores[part] {
			return false
		}
	}
	return true
}

// Rel converts an absolute or vault-relative path to the vault-relative,
// slash-separated form used as checkpoint key.
func (d *Dir) Rel(path string) (string, error) {
	if !filepath.IsAbs(path) {
		return filepath.ToSlash(filepath.Clean(path)), nil
	}

	rel, err := filepath.Rel(d.root, path)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside the vault", path)
	}
	return filepath.ToSlash(rel), nil
}

// Abs converts a vault-relative path into an absolute one.
func (d *Dir) Abs(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(d.root, filepath.FromSlash(path))
}

func (d *Dir) fileFromInfo(abs string, info fs.FileInfo) File {
	rel, err := d.Rel(abs)
	if err != nil {
		rel = filepath.ToSlash(abs)
	}
	return File{
		Path:    rel,
		AbsPath: abs,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
}
