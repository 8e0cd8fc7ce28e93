// Package memory implements an in-memory storage provider, the virtual
// file tree used by the browser shell and by tests.
package memory

import (
	"context"
	"errors"
	"io/fs"
	"sort"
	"sync"

	"github.com/fwojciec/codeshell"
)

// Ensure Storage implements codeshell.Storage.
var _ codeshell.Storage = (*Storage)(nil)

var errIsDir = errors.New("is a directory")

// Call is one recorded storage invocation.
type Call struct {
	Op      string
	Path    string
	NewPath string
}

// Mutating reports whether the call changes storage.
func (c Call) Mutating() bool {
	switch c.Op {
	case "read", "stat", "readdir":
		return false
	}
	return true
}

// Storage is a thread-safe in-memory file tree. Directories holding files
// exist implicitly; empty ones are tracked explicitly.
type Storage struct {
	mu       sync.Mutex
	files    map[string]string
	dirs     map[string]bool
	calls    []Call
	failures map[Call]error
}

// New returns a Storage holding files, keyed by slash-separated path.
func New(files map[string]string) *Storage {
	s := &Storage{
		files:    make(map[string]string, len(files)),
		dirs:     make(map[string]bool),
		failures: make(map[Call]error),
	}
	for p, text := range files {
		s.files[codeshell.CleanPath(p)] = text
	}
	return s
}

// FailOn makes the next call of op on path return err. For renames path
// is the source.
func (s *Storage) FailOn(op, path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[Call{Op: op, Path: codeshell.CleanPath(path)}] = err
}

// Calls returns every call made so far.
func (s *Storage) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// MutatingCalls returns the calls that changed storage.
func (s *Storage) MutatingCalls() []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Mutating() {
			out = append(out, c)
		}
	}
	return out
}

// Files returns a snapshot of every file.
func (s *Storage) Files() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.files))
	for k, v := range s.files {
		out[k] = v
	}
	return out
}

// record logs a call and returns an injected failure, if any.
func (s *Storage) record(op, path, newPath string) error {
	s.calls = append(s.calls, Call{Op: op, Path: path, NewPath: newPath})
	key := Call{Op: op, Path: path}
	if err, ok := s.failures[key]; ok {
		delete(s.failures, key)
		return err
	}
	return nil
}

func (s *Storage) isDir(p string) bool {
	if p == "" || s.dirs[p] {
		return true
	}
	dir := codeshell.ParsePath(p)
	for k := range s.files {
		if codeshell.ParsePath(k).IsDescendant(dir) {
			return true
		}
	}
	return false
}

func (s *Storage) Read(_ context.Context, path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := codeshell.CleanPath(path)
	if err := s.record("read", p, ""); err != nil {
		return "", err
	}
	text, ok := s.files[p]
	if !ok {
		return "", &fs.PathError{Op: "read", Path: p, Err: fs.ErrNotExist}
	}
	return text, nil
}

func (s *Storage) Write(_ context.Context, path, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := codeshell.CleanPath(path)
	if err := s.record("write", p, ""); err != nil {
		return err
	}
	if s.isDir(p) {
		return &fs.PathError{Op: "write", Path: p, Err: errIsDir}
	}
	s.files[p] = text
	return nil
}

func (s *Storage) CreateFile(_ context.Context, path, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := codeshell.CleanPath(path)
	if err := s.record("create", p, ""); err != nil {
		return err
	}
	if _, ok := s.files[p]; ok || s.isDir(p) {
		return &fs.PathError{Op: "create", Path: p, Err: fs.ErrExist}
	}
	s.files[p] = text
	return nil
}

func (s *Storage) CreateFolder(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := codeshell.CleanPath(path)
	if err := s.record("mkdir", p, ""); err != nil {
		return err
	}
	if _, ok := s.files[p]; ok {
		return &fs.PathError{Op: "mkdir", Path: p, Err: fs.ErrExist}
	}
	s.dirs[p] = true
	return nil
}

func (s *Storage) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := codeshell.CleanPath(path)
	if err := s.record("delete", p, ""); err != nil {
		return err
	}
	if _, ok := s.files[p]; ok {
		delete(s.files, p)
		return nil
	}
	if !s.isDir(p) || p == "" {
		return &fs.PathError{Op: "delete", Path: p, Err: fs.ErrNotExist}
	}
	dir := codeshell.ParsePath(p)
	for k := range s.files {
		if codeshell.ParsePath(k).IsDescendant(dir) {
			delete(s.files, k)
		}
	}
	for k := range s.dirs {
		if codeshell.ParsePath(k).HasPrefix(dir) {
			delete(s.dirs, k)
		}
	}
	return nil
}

func (s *Storage) Rename(_ context.Context, oldPath, newPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	from, to := codeshell.CleanPath(oldPath), codeshell.CleanPath(newPath)
	if err := s.record("rename", from, to); err != nil {
		return err
	}
	if _, ok := s.files[to]; ok || s.isDir(to) {
		return &fs.PathError{Op: "rename", Path: to, Err: fs.ErrExist}
	}
	if text, ok := s.files[from]; ok {
		delete(s.files, from)
		s.files[to] = text
		return nil
	}
	if !s.isDir(from) || from == "" {
		return &fs.PathError{Op: "rename", Path: from, Err: fs.ErrNotExist}
	}
	src, dst := codeshell.ParsePath(from), codeshell.ParsePath(to)
	files := make(map[string]string)
	for k, v := range s.files {
		if p, ok := codeshell.ParsePath(k).Rebase(src, dst); ok {
			delete(s.files, k)
			files[p.String()] = v
		}
	}
	for k, v := range files {
		s.files[k] = v
	}
	dirs := make(map[string]bool)
	for k := range s.dirs {
		if p, ok := codeshell.ParsePath(k).Rebase(src, dst); ok {
			delete(s.dirs, k)
			dirs[p.String()] = true
		}
	}
	for k := range dirs {
		s.dirs[k] = true
	}
	return nil
}

func (s *Storage) Stat(_ context.Context, path string) (codeshell.FileInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := codeshell.CleanPath(path)
	if err := s.record("stat", p, ""); err != nil {
		return codeshell.FileInfo{}, err
	}
	if _, ok := s.files[p]; ok {
		return codeshell.FileInfo{Exists: true}, nil
	}
	if s.isDir(p) {
		return codeshell.FileInfo{Exists: true, IsDirectory: true}, nil
	}
	return codeshell.FileInfo{}, nil
}

func (s *Storage) ReadDir(_ context.Context, path string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := codeshell.CleanPath(path)
	if err := s.record("readdir", p, ""); err != nil {
		return nil, err
	}
	if !s.isDir(p) {
		return nil, &fs.PathError{Op: "readdir", Path: p, Err: fs.ErrNotExist}
	}
	dir := codeshell.ParsePath(p)
	seen := make(map[string]bool)
	collect := func(k string) {
		kp := codeshell.ParsePath(k)
		if kp.IsDescendant(dir) {
			seen[kp[len(dir)]] = true
		}
	}
	for k := range s.files {
		collect(k)
	}
	for k := range s.dirs {
		collect(k)
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}
