package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/fwojciec/codeshell"
)

// commit replays the actions of b in order. On failure FailedAt holds the
// index of the failing action.
func (c *Controller) commit(ctx context.Context, b *codeshell.Batch) (codeshell.CommitResult, error) {
	res := codeshell.CommitResult{FailedAt: -1}
	for i, a := range b.Actions {
		if err := c.apply(ctx, a); err != nil {
			res.FailedAt = i
			ferr := codeshell.WrapError(codeshell.ErrStorageFailure, err, "action %d (%s) failed", i, a.Summary)

			applied := b.Actions[:i]
			if c.rollback {
				if rerr := c.revert(ctx, applied); rerr != nil {
					return res, errors.Join(ferr, rerr, c.resync(applied))
				}
				res.RolledBack = true
				return res, ferr
			}
			return res, errors.Join(ferr, c.resync(applied))
		}
		res.Applied++
	}
	return res, nil
}

// revert undoes applied actions in reverse order and stops at the first
// failure.
func (c *Controller) revert(ctx context.Context, applied []codeshell.StagedAction) error {
	for i := len(applied) - 1; i >= 0; i-- {
		for _, inv := range invert(applied[i]) {
			if err := c.apply(ctx, inv); err != nil {
				return fmt.Errorf("rollback %s: %w", applied[i].Summary, err)
			}
		}
	}
	return nil
}

// apply performs one action against storage.
func (c *Controller) apply(ctx context.Context, a codeshell.StagedAction) error {
	switch a.Type {
	case codeshell.ActionApplyEdit:
		return c.storage.Write(ctx, a.Path, deref(a.After))
	case codeshell.ActionCreateFile:
		if a.After == nil {
			return c.storage.CreateFolder(ctx, a.Path)
		}
		return c.storage.CreateFile(ctx, a.Path, *a.After)
	case codeshell.ActionDeleteFile:
		return c.storage.Delete(ctx, a.Path)
	case codeshell.ActionRenameFile:
		return c.storage.Rename(ctx, a.Path, a.NewPath)
	default:
		return fmt.Errorf("unknown action type %q", a.Type)
	}
}

// invert returns the actions that undo a, in order. Undoing a directory
// delete recreates the directory, then its folders, then its files.
func invert(a codeshell.StagedAction) []codeshell.StagedAction {
	inv := codeshell.StagedAction{Path: a.Path, Summary: "undo " + a.Summary}
	switch a.Type {
	case codeshell.ActionApplyEdit:
		inv.Type = codeshell.ActionApplyEdit
		inv.Before, inv.After = a.After, a.Before
	case codeshell.ActionCreateFile:
		inv.Type = codeshell.ActionDeleteFile
		inv.Before = a.After
	case codeshell.ActionDeleteFile:
		inv.Type = codeshell.ActionCreateFile
		inv.After = a.Before
		if a.Before == nil {
			return append([]codeshell.StagedAction{inv}, restoreTree(a)...)
		}
	case codeshell.ActionRenameFile:
		inv.Type = codeshell.ActionRenameFile
		inv.Path, inv.NewPath = a.NewPath, a.Path
	}
	return []codeshell.StagedAction{inv}
}

// restoreTree recreates the contents of a deleted directory.
func restoreTree(a codeshell.StagedAction) []codeshell.StagedAction {
	out := make([]codeshell.StagedAction, 0, len(a.Folders)+len(a.Files))
	for _, dir := range a.Folders {
		out = append(out, codeshell.StagedAction{
			Type:    codeshell.ActionCreateFile,
			Path:    dir,
			Summary: "undo " + a.Summary + ": " + dir + "/",
		})
	}
	for _, f := range a.Files {
		out = append(out, codeshell.StagedAction{
			Type:    codeshell.ActionCreateFile,
			Path:    f.Path,
			After:   &f.Text,
			Summary: "undo " + a.Summary + ": " + f.Path,
		})
	}
	return out
}

// resync brings open buffers in line with applied actions: written files
// get their new text marked clean, deleted paths are closed and renamed
// paths move along with everything beneath them.
func (c *Controller) resync(actions []codeshell.StagedAction) error {
	if c.buffers == nil {
		return nil
	}
	var errs []error
	for _, a := range actions {
		switch a.Type {
		case codeshell.ActionApplyEdit, codeshell.ActionCreateFile:
			if a.After == nil {
				continue
			}
			if _, ok := c.buffers.Buffer(a.Path); ok {
				errs = append(errs, c.buffers.SetBuffer(a.Path, codeshell.Buffer{Text: *a.After}))
			}
		case codeshell.ActionDeleteFile:
			dir := codeshell.ParsePath(a.Path)
			for _, p := range c.buffers.BufferPaths() {
				if codeshell.ParsePath(p).HasPrefix(dir) {
					errs = append(errs, c.buffers.CloseBuffer(p))
				}
			}
		case codeshell.ActionRenameFile:
			from, to := codeshell.ParsePath(a.Path), codeshell.ParsePath(a.NewPath)
			for _, p := range c.buffers.BufferPaths() {
				moved, ok := codeshell.ParsePath(p).Rebase(from, to)
				if !ok {
					continue
				}
				b, open := c.buffers.Buffer(p)
				if !open {
					continue
				}
				errs = append(errs, c.buffers.SetBuffer(moved.String(), b), c.buffers.CloseBuffer(p))
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("resync buffers: %w", err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
