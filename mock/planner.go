package mock

import (
	"context"

	"github.com/fwojciec/codeshell"
)

// Compile-time interface verification.
var (
	_ codeshell.Planner            = (*Planner)(nil)
	_ codeshell.OperationExtractor = (*OperationExtractor)(nil)
	_ codeshell.Patcher            = (*Patcher)(nil)
	_ codeshell.Reviewer           = (*Reviewer)(nil)
)

// Planner is a mock implementation of codeshell.Planner.
type Planner struct {
	ProposeFn func(ctx context.Context, instruction string, files []codeshell.FileSnapshot) ([]codeshell.Operation, error)
}

func (p *Planner) Propose(ctx context.Context, instruction string, files []codeshell.FileSnapshot) ([]codeshell.Operation, error) {
	return p.ProposeFn(ctx, instruction, files)
}

// OperationExtractor is a mock implementation of codeshell.OperationExtractor.
type OperationExtractor struct {
	ExtractFn func(text string) ([]codeshell.Operation, error)
}

func (e *OperationExtractor) Extract(text string) ([]codeshell.Operation, error) {
	return e.ExtractFn(text)
}

// Patcher is a mock implementation of codeshell.Patcher.
type Patcher struct {
	PatchFn func(path, before, diff string) (string, error)
}

func (p *Patcher) Patch(path, before, diff string) (string, error) {
	return p.PatchFn(path, before, diff)
}

// Reviewer is a mock implementation of codeshell.Reviewer.
type Reviewer struct {
	ReviewFn func(ctx context.Context, batch *codeshell.Batch) (bool, error)
}

func (r *Reviewer) Review(ctx context.Context, batch *codeshell.Batch) (bool, error) {
	return r.ReviewFn(ctx, batch)
}
