package mock

import (
	"context"

	"github.com/fwojciec/codeshell"
)

// Compile-time interface verification.
var _ codeshell.GitRunner = (*GitRunner)(nil)

// GitRunner is a mock implementation of codeshell.GitRunner.
type GitRunner struct {
	TopLevelFn     func(ctx context.Context, dir string) (string, error)
	ChangedFilesFn func(ctx context.Context, dir string) ([]string, error)
}

func (g *GitRunner) TopLevel(ctx context.Context, dir string) (string, error) {
	return g.TopLevelFn(ctx, dir)
}

func (g *GitRunner) ChangedFiles(ctx context.Context, dir string) ([]string, error) {
	return g.ChangedFilesFn(ctx, dir)
}
