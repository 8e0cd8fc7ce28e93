package batch

import (
	"context"
	"fmt"

	"github.com/fwojciec/codeshell"
	"github.com/fwojciec/codeshell/overlay"
	"github.com/google/uuid"
)

// Plan validates ops in order against a fresh overlay and stages the ones
// that pass. Each operation sees the effects of the operations staged
// before it. A failing operation is recorded in Batch.Failures and the rest
// of the batch is still planned. Plan never writes to storage; the only
// error it returns is the context's.
func (c *Controller) Plan(ctx context.Context, ops []codeshell.Operation) (*codeshell.Batch, error) {
	b := &codeshell.Batch{
		ID:        uuid.NewString(),
		Root:      c.root.String(),
		State:     codeshell.BatchPlanning,
		CreatedAt: c.now(),
		FailedAt:  -1,
	}
	p := &planner{c: c, ov: overlay.New(c.storage, c.buffers)}

	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		action, err := p.stage(ctx, op)
		if err != nil {
			b.Failures = append(b.Failures, codeshell.OperationFailure{Index: i, Op: op, Err: err})
			continue
		}
		b.Actions = append(b.Actions, action)
	}

	b.State = codeshell.BatchStaged
	return b, nil
}

// planner stages the operations of one batch.
type planner struct {
	c  *Controller
	ov *overlay.Overlay
}

func (p *planner) stage(ctx context.Context, op codeshell.Operation) (codeshell.StagedAction, error) {
	path, err := p.scoped(op.Path)
	if err != nil {
		return codeshell.StagedAction{}, err
	}

	switch op.Type {
	case codeshell.OpEdit:
		return p.edit(ctx, path, op.Selector, op.Content)
	case codeshell.OpWrite:
		ok, err := p.ov.Exists(ctx, path)
		if err != nil {
			return codeshell.StagedAction{}, err
		}
		if ok {
			return p.edit(ctx, path, codeshell.FullSelector(), op.Content)
		}
		return p.create(ctx, path, op.Content)
	case codeshell.OpCreate:
		return p.create(ctx, path, op.Content)
	case codeshell.OpDelete:
		return p.delete(ctx, op, path)
	case codeshell.OpRename:
		newPath, err := p.scoped(op.NewPath)
		if err != nil {
			return codeshell.StagedAction{}, err
		}
		return p.rename(ctx, op, path, newPath)
	case codeshell.OpPatch:
		return p.patch(ctx, path, op.Diff)
	default:
		return codeshell.StagedAction{}, codeshell.Errorf(codeshell.ErrInvalidSelector, "unknown operation type %q", op.Type)
	}
}

// scoped checks that path lies inside the controller root and maps it
// through the renames staged so far.
func (p *planner) scoped(path string) (string, error) {
	pp := codeshell.ParsePath(path)
	if len(pp) == len(p.c.root) || !pp.Within(p.c.root) {
		return "", codeshell.Errorf(codeshell.ErrOutOfScope, "%q is outside %q", path, p.c.root.String())
	}
	return p.ov.Resolve(pp.String()).String(), nil
}

// describe names a path the way the operation asked for it, adding where
// earlier renames in the batch redirected it.
func describe(requested, resolved string) string {
	if codeshell.CleanPath(requested) == resolved {
		return resolved
	}
	return fmt.Sprintf("%s (resolved to %s by an earlier rename)", requested, resolved)
}

func (p *planner) readExisting(ctx context.Context, path string) (string, error) {
	text, ok, err := p.ov.ReadFile(ctx, path)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", codeshell.Errorf(codeshell.ErrNotFound, "%s does not exist", path)
	}
	return text, nil
}

func (p *planner) edit(ctx context.Context, path string, sel codeshell.Selector, content string) (codeshell.StagedAction, error) {
	before, err := p.readExisting(ctx, path)
	if err != nil {
		return codeshell.StagedAction{}, err
	}
	r, err := codeshell.Resolve(before, sel)
	if err != nil {
		return codeshell.StagedAction{}, err
	}

	changed := changedLines(before, r, content)
	if r.Kind != codeshell.SelectSearch && changed > p.c.maxChangedLines {
		return codeshell.StagedAction{}, codeshell.Errorf(codeshell.ErrEditTooLarge,
			"edit of %s changes %d lines (limit %d)", path, changed, p.c.maxChangedLines)
	}

	after := codeshell.ReplaceRange(before, r, content)
	p.ov.SetFile(path, after)

	return codeshell.StagedAction{
		Type:         codeshell.ActionApplyEdit,
		Path:         path,
		Before:       &before,
		After:        &after,
		Range:        &r,
		ChangedLines: changed,
		Preview:      preview(after, codeshell.LineOf(after, r.Start)),
		Summary:      fmt.Sprintf("edit %s (%s, %d lines)", path, r.Label, changed),
		Diff:         unifiedDiff(path, path, before, after),
	}, nil
}

// changedLines counts the lines an edit touches: the larger of the
// replaced span and the replacement.
func changedLines(before string, r codeshell.ResolvedRange, content string) int {
	replaced := 0
	if r.End > r.Start {
		start, end := codeshell.LineSpan(before, r.Start, r.End)
		replaced = end - start + 1
	}
	return max(replaced, codeshell.LineCount(content))
}

func (p *planner) create(ctx context.Context, path, content string) (codeshell.StagedAction, error) {
	ok, err := p.ov.Exists(ctx, path)
	if err != nil {
		return codeshell.StagedAction{}, err
	}
	if ok {
		return codeshell.StagedAction{}, codeshell.Errorf(codeshell.ErrAlreadyExists, "%s already exists", path)
	}
	p.ov.CreateFile(path, content)

	after := content
	n := codeshell.LineCount(content)
	return codeshell.StagedAction{
		Type:         codeshell.ActionCreateFile,
		Path:         path,
		After:        &after,
		ChangedLines: n,
		Preview:      preview(after, 1),
		Summary:      fmt.Sprintf("create %s (%d lines)", path, n),
		Diff:         unifiedDiff(path, path, "", after),
	}, nil
}

func (p *planner) delete(ctx context.Context, op codeshell.Operation, path string) (codeshell.StagedAction, error) {
	info, err := p.ov.Stat(ctx, path)
	if err != nil {
		return codeshell.StagedAction{}, err
	}
	if !info.Exists {
		return codeshell.StagedAction{}, codeshell.Errorf(codeshell.ErrNotFound, "%s does not exist", describe(op.Path, path))
	}

	action := codeshell.StagedAction{
		Type:    codeshell.ActionDeleteFile,
		Path:    path,
		Summary: fmt.Sprintf("delete %s/", path),
	}
	if info.IsDirectory {
		action.Folders, action.Files, err = p.ov.Walk(ctx, path)
		if err != nil {
			return codeshell.StagedAction{}, err
		}
		for _, f := range action.Files {
			action.ChangedLines += codeshell.LineCount(f.Text)
		}
		action.Summary = fmt.Sprintf("delete %s/ (%d files)", path, len(action.Files))
	} else {
		before, err := p.readExisting(ctx, path)
		if err != nil {
			return codeshell.StagedAction{}, err
		}
		action.Before = &before
		action.ChangedLines = codeshell.LineCount(before)
		action.Preview = preview(before, 1)
		action.Summary = fmt.Sprintf("delete %s (%d lines)", path, action.ChangedLines)
		action.Diff = unifiedDiff(path, path, before, "")
	}
	p.ov.DeleteFile(path)
	return action, nil
}

func (p *planner) rename(ctx context.Context, op codeshell.Operation, oldPath, newPath string) (codeshell.StagedAction, error) {
	ok, err := p.ov.Exists(ctx, oldPath)
	if err != nil {
		return codeshell.StagedAction{}, err
	}
	if !ok {
		return codeshell.StagedAction{}, codeshell.Errorf(codeshell.ErrNotFound, "%s does not exist", describe(op.Path, oldPath))
	}
	ok, err = p.ov.Exists(ctx, newPath)
	if err != nil {
		return codeshell.StagedAction{}, err
	}
	if ok {
		return codeshell.StagedAction{}, codeshell.Errorf(codeshell.ErrAlreadyExists, "%s already exists", describe(op.NewPath, newPath))
	}
	if err := p.ov.RenameFile(oldPath, newPath); err != nil {
		return codeshell.StagedAction{}, err
	}
	return codeshell.StagedAction{
		Type:    codeshell.ActionRenameFile,
		Path:    oldPath,
		NewPath: newPath,
		Summary: fmt.Sprintf("rename %s -> %s", oldPath, newPath),
	}, nil
}

func (p *planner) patch(ctx context.Context, path, diff string) (codeshell.StagedAction, error) {
	before, err := p.readExisting(ctx, path)
	if err != nil {
		return codeshell.StagedAction{}, err
	}
	if p.c.patcher == nil {
		return codeshell.StagedAction{}, codeshell.Errorf(codeshell.ErrPatchRejected, "patches are not enabled")
	}
	after, err := p.c.patcher.Patch(path, before, diff)
	if err != nil {
		return codeshell.StagedAction{}, codeshell.WrapError(codeshell.ErrPatchRejected, err, "patch %s", path)
	}
	p.ov.SetFile(path, after)

	r := codeshell.ResolvedRange{Start: 0, End: len(before), Kind: codeshell.SelectFull, Label: "patch"}
	first := firstDifference(before, after)
	changed := diffLines(before, after)
	return codeshell.StagedAction{
		Type:         codeshell.ActionApplyEdit,
		Path:         path,
		Before:       &before,
		After:        &after,
		Range:        &r,
		ChangedLines: changed,
		Preview:      preview(after, codeshell.LineOf(after, first)),
		Summary:      fmt.Sprintf("patch %s (%d lines)", path, changed),
		Diff:         unifiedDiff(path, path, before, after),
	}, nil
}
