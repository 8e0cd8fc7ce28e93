package fs

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/fwojciec/codeshell"
)

// Compile-time interface verification.
var _ codeshell.Storage = (*Storage)(nil)

// ErrOutsideRoot is returned for paths that climb above the storage root.
var ErrOutsideRoot = errors.New("path escapes storage root")

// Storage implements codeshell.Storage on a directory of the local file
// system. Workspace paths are slash separated and relative to the root.
type Storage struct {
	root string
}

// NewStorage returns a Storage rooted at dir.
func NewStorage(dir string) (*Storage, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", abs)
	}
	return &Storage{root: abs}, nil
}

// Root returns the absolute directory the storage is rooted at.
func (s *Storage) Root() string {
	return s.root
}

func (s *Storage) abs(path string) (string, error) {
	p := codeshell.ParsePath(path)
	if !p.Within(nil) {
		return "", &iofs.PathError{Op: "resolve", Path: path, Err: ErrOutsideRoot}
	}
	return filepath.Join(s.root, filepath.FromSlash(p.String())), nil
}

func (s *Storage) Read(_ context.Context, path string) (string, error) {
	abs, err := s.abs(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Write replaces the content of path, creating it if needed.
func (s *Storage) Write(_ context.Context, path, text string) error {
	abs, err := s.abs(path)
	if err != nil {
		return err
	}
	mode := iofs.FileMode(0o644)
	if info, err := os.Stat(abs); err == nil {
		if info.IsDir() {
			return &iofs.PathError{Op: "write", Path: path, Err: errors.New("is a directory")}
		}
		mode = info.Mode().Perm()
	}
	return os.WriteFile(abs, []byte(text), mode)
}

// CreateFile creates path and any missing parent folders. It fails if
// path already exists.
func (s *Storage) CreateFile(_ context.Context, path, text string) error {
	abs, err := s.abs(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(text); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (s *Storage) CreateFolder(_ context.Context, path string) error {
	abs, err := s.abs(path)
	if err != nil {
		return err
	}
	return os.MkdirAll(abs, 0o755)
}

// Delete removes a file, or a folder with everything under it.
func (s *Storage) Delete(_ context.Context, path string) error {
	abs, err := s.abs(path)
	if err != nil {
		return err
	}
	if abs == s.root {
		return &iofs.PathError{Op: "delete", Path: path, Err: iofs.ErrPermission}
	}
	if _, err := os.Lstat(abs); err != nil {
		return err
	}
	return os.RemoveAll(abs)
}

// Rename moves a file or folder. It fails if the target exists.
func (s *Storage) Rename(_ context.Context, oldPath, newPath string) error {
	from, err := s.abs(oldPath)
	if err != nil {
		return err
	}
	to, err := s.abs(newPath)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(to); err == nil {
		return &iofs.PathError{Op: "rename", Path: newPath, Err: iofs.ErrExist}
	}
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return err
	}
	return os.Rename(from, to)
}

func (s *Storage) Stat(_ context.Context, path string) (codeshell.FileInfo, error) {
	abs, err := s.abs(path)
	if err != nil {
		return codeshell.FileInfo{}, err
	}
	info, err := os.Stat(abs)
	if errors.Is(err, iofs.ErrNotExist) {
		return codeshell.FileInfo{}, nil
	}
	if err != nil {
		return codeshell.FileInfo{}, err
	}
	return codeshell.FileInfo{Exists: true, IsDirectory: info.IsDir()}, nil
}

func (s *Storage) ReadDir(_ context.Context, path string) ([]string, error) {
	abs, err := s.abs(path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
