// Package mock provides test doubles for codeshell interfaces.
package mock

import (
	"context"

	"github.com/fwojciec/codeshell"
)

// Compile-time interface verification.
var _ codeshell.Storage = (*Storage)(nil)

// Storage is a mock implementation of codeshell.Storage.
type Storage struct {
	ReadFn         func(ctx context.Context, path string) (string, error)
	WriteFn        func(ctx context.Context, path, text string) error
	CreateFileFn   func(ctx context.Context, path, text string) error
	CreateFolderFn func(ctx context.Context, path string) error
	DeleteFn       func(ctx context.Context, path string) error
	RenameFn       func(ctx context.Context, oldPath, newPath string) error
	StatFn         func(ctx context.Context, path string) (codeshell.FileInfo, error)
	ReadDirFn      func(ctx context.Context, path string) ([]string, error)
}

func (s *Storage) Read(ctx context.Context, path string) (string, error) {
	return s.ReadFn(ctx, path)
}

func (s *Storage) Write(ctx context.Context, path, text string) error {
	return s.WriteFn(ctx, path, text)
}

func (s *Storage) CreateFile(ctx context.Context, path, text string) error {
	return s.CreateFileFn(ctx, path, text)
}

func (s *Storage) CreateFolder(ctx context.Context, path string) error {
	return s.CreateFolderFn(ctx, path)
}

func (s *Storage) Delete(ctx context.Context, path string) error {
	return s.DeleteFn(ctx, path)
}

func (s *Storage) Rename(ctx context.Context, oldPath, newPath string) error {
	return s.RenameFn(ctx, oldPath, newPath)
}

func (s *Storage) Stat(ctx context.Context, path string) (codeshell.FileInfo, error) {
	return s.StatFn(ctx, path)
}

func (s *Storage) ReadDir(ctx context.Context, path string) ([]string, error) {
	return s.ReadDirFn(ctx, path)
}
