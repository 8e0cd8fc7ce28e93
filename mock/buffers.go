package mock

import (
	"github.com/fwojciec/codeshell"
)

// Compile-time interface verification.
var _ codeshell.BufferStore = (*BufferStore)(nil)

// BufferStore is a mock implementation of codeshell.BufferStore.
type BufferStore struct {
	BufferFn      func(path string) (codeshell.Buffer, bool)
	SetBufferFn   func(path string, b codeshell.Buffer) error
	CloseBufferFn func(path string) error
	BufferPathsFn func() []string
}

func (s *BufferStore) Buffer(path string) (codeshell.Buffer, bool) {
	return s.BufferFn(path)
}

func (s *BufferStore) SetBuffer(path string, b codeshell.Buffer) error {
	return s.SetBufferFn(path, b)
}

func (s *BufferStore) CloseBuffer(path string) error {
	return s.CloseBufferFn(path)
}

func (s *BufferStore) BufferPaths() []string {
	return s.BufferPathsFn()
}
