// Package workspace ties buffers, diagnostics and staged batches together
// into one explicitly owned editing session.
package workspace

import (
	"sort"
	"sync"

	"github.com/fwojciec/codeshell"
)

// Ensure Buffers implements codeshell.BufferStore.
var _ codeshell.BufferStore = (*Buffers)(nil)

// Buffers is an in-memory open-buffer store. It is safe for concurrent use.
type Buffers struct {
	mu    sync.RWMutex
	files map[string]codeshell.Buffer
}

// NewBuffers returns an empty store.
func NewBuffers() *Buffers {
	return &Buffers{files: make(map[string]codeshell.Buffer)}
}

// Open records a clean buffer holding text.
func (s *Buffers) Open(path, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[codeshell.CleanPath(path)] = codeshell.Buffer{Text: text}
}

// Edit replaces the text of an open buffer and marks it dirty. It reports
// false when path is not open.
func (s *Buffers) Edit(path, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := codeshell.CleanPath(path)
	if _, ok := s.files[p]; !ok {
		return false
	}
	s.files[p] = codeshell.Buffer{Text: text, Dirty: true}
	return true
}

func (s *Buffers) Buffer(path string) (codeshell.Buffer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.files[codeshell.CleanPath(path)]
	return b, ok
}

func (s *Buffers) SetBuffer(path string, b codeshell.Buffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[codeshell.CleanPath(path)] = b
	return nil
}

func (s *Buffers) CloseBuffer(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, codeshell.CleanPath(path))
	return nil
}

func (s *Buffers) BufferPaths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, 0, len(s.files))
	for p := range s.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
