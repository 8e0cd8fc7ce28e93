package batch_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/fwojciec/codeshell"
	"github.com/fwojciec/codeshell/batch"
	"github.com/fwojciec/codeshell/memory"
	"github.com/fwojciec/codeshell/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buffers returns a BufferStore mock backed by a map.
func buffers(open map[string]codeshell.Buffer) *mock.BufferStore {
	return &mock.BufferStore{
		BufferFn: func(path string) (codeshell.Buffer, bool) {
			b, ok := open[path]
			return b, ok
		},
		SetBufferFn: func(path string, b codeshell.Buffer) error {
			open[path] = b
			return nil
		},
		CloseBufferFn: func(path string) error {
			delete(open, path)
			return nil
		},
		BufferPathsFn: func() []string {
			paths := make([]string, 0, len(open))
			for p := range open {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			return paths
		},
	}
}

func lines(n int) string {
	var sb strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&sb, "line %d\n", i)
	}
	return sb.String()
}

func plan(t *testing.T, c *batch.Controller, ops ...codeshell.Operation) *codeshell.Batch {
	t.Helper()
	b, err := c.Plan(context.Background(), ops)
	require.NoError(t, err)
	require.Equal(t, codeshell.BatchStaged, b.State)
	return b
}

func failureCodes(b *codeshell.Batch) []codeshell.ErrorCodeValue {
	var codes []codeshell.ErrorCodeValue
	for _, f := range b.Failures {
		codes = append(codes, f.Code())
	}
	return codes
}

func TestController_Plan(t *testing.T) {
	t.Parallel()

	t.Run("line edit keeps line structure", func(t *testing.T) {
		t.Parallel()

		store := memory.New(map[string]string{"f.txt": "one\ntwo\nthree\n"})
		c := batch.NewController(store, nil, "")

		b := plan(t, c, codeshell.Operation{Type: codeshell.OpEdit, Path: "f.txt", Selector: codeshell.LineSelector(2, 2), Content: "TWO"})

		require.Len(t, b.Actions, 1)
		a := b.Actions[0]
		assert.Equal(t, codeshell.ActionApplyEdit, a.Type)
		assert.Equal(t, "one\ntwo\nthree\n", *a.Before)
		assert.Equal(t, "one\nTWO\nthree\n", *a.After)
		assert.Equal(t, 1, a.ChangedLines)
		assert.Equal(t, "edit f.txt (line 2, 1 lines)", a.Summary)
		assert.Contains(t, a.Diff, "-two")
		assert.Contains(t, a.Diff, "+TWO")
		assert.Equal(t, []string{"one", "TWO", "three"}, a.Preview)
		assert.NotEmpty(t, b.ID)
		assert.Empty(t, store.MutatingCalls())
	})

	t.Run("full replacement of exactly the limit is accepted", func(t *testing.T) {
		t.Parallel()

		store := memory.New(map[string]string{"big.txt": lines(220)})
		c := batch.NewController(store, nil, "")

		b := plan(t, c, codeshell.Operation{Type: codeshell.OpEdit, Path: "big.txt", Content: "short\n"})

		assert.Empty(t, b.Failures)
		require.Len(t, b.Actions, 1)
		assert.Equal(t, 220, b.Actions[0].ChangedLines)
	})

	t.Run("full replacement above the limit is too large", func(t *testing.T) {
		t.Parallel()

		store := memory.New(map[string]string{"big.txt": lines(221)})
		c := batch.NewController(store, nil, "")

		b := plan(t, c, codeshell.Operation{Type: codeshell.OpEdit, Path: "big.txt", Content: "short\n"})

		assert.Empty(t, b.Actions)
		assert.Equal(t, []codeshell.ErrorCodeValue{codeshell.ErrEditTooLarge}, failureCodes(b))
	})

	t.Run("line ranges are guarded but search matches are not", func(t *testing.T) {
		t.Parallel()

		store := memory.New(map[string]string{"big.txt": lines(30)})
		c := batch.NewController(store, nil, "", batch.WithMaxChangedLines(5))

		b := plan(t, c,
			codeshell.Operation{Type: codeshell.OpEdit, Path: "big.txt", Selector: codeshell.LineSelector(1, 6), Content: "x"},
			codeshell.Operation{Type: codeshell.OpEdit, Path: "big.txt", Selector: codeshell.SearchSelector("line 3\n", 1), Content: lines(10)},
		)

		assert.Equal(t, []codeshell.ErrorCodeValue{codeshell.ErrEditTooLarge}, failureCodes(b))
		require.Len(t, b.Actions, 1)
		assert.Equal(t, codeshell.SelectSearch, b.Actions[0].Range.Kind)
	})

	t.Run("failures do not abort sibling operations", func(t *testing.T) {
		t.Parallel()

		store := memory.New(map[string]string{"a.txt": "a\n", "b.txt": "b\n"})
		c := batch.NewController(store, nil, "src")

		b := plan(t, c,
			codeshell.Operation{Type: codeshell.OpCreate, Path: "src/new.txt", Content: "n\n"},
			codeshell.Operation{Type: codeshell.OpEdit, Path: "a.txt", Content: "x"},
			codeshell.Operation{Type: codeshell.OpEdit, Path: "src/../../etc/passwd", Content: "x"},
			codeshell.Operation{Type: codeshell.OpCreate, Path: "src/new.txt", Content: "again"},
			codeshell.Operation{Type: codeshell.OpDelete, Path: "src/missing.txt"},
			codeshell.Operation{Type: codeshell.OpEdit, Path: "src/new.txt", Selector: codeshell.SearchSelector("zzz", 1), Content: "x"},
		)

		require.Len(t, b.Actions, 1)
		assert.Equal(t, codeshell.ActionCreateFile, b.Actions[0].Type)
		assert.Equal(t, []codeshell.ErrorCodeValue{
			codeshell.ErrOutOfScope,
			codeshell.ErrOutOfScope,
			codeshell.ErrAlreadyExists,
			codeshell.ErrNotFound,
			codeshell.ErrPatternNotFound,
		}, failureCodes(b))
		assert.Equal(t, 1, b.Failures[0].Index)
		assert.Equal(t, 5, b.Failures[4].Index)
	})

	t.Run("operations see earlier staged operations", func(t *testing.T) {
		t.Parallel()

		store := memory.New(map[string]string{"old/x.txt": "content\n"})
		c := batch.NewController(store, nil, "")

		b := plan(t, c,
			codeshell.Operation{Type: codeshell.OpRename, Path: "old", NewPath: "new"},
			codeshell.Operation{Type: codeshell.OpEdit, Path: "new/x.txt", Selector: codeshell.SearchSelector("content", 1), Content: "changed"},
			codeshell.Operation{Type: codeshell.OpEdit, Path: "old/x.txt", Selector: codeshell.SearchSelector("changed", 1), Content: "again"},
		)

		assert.Empty(t, b.Failures)
		require.Len(t, b.Actions, 3)
		assert.Equal(t, "rename old -> new", b.Actions[0].Summary)
		assert.Equal(t, "changed\n", *b.Actions[1].After)
		assert.Equal(t, "new/x.txt", b.Actions[2].Path)
		assert.Equal(t, "again\n", *b.Actions[2].After)
	})

	t.Run("rename onto an existing path fails", func(t *testing.T) {
		t.Parallel()

		store := memory.New(map[string]string{"a.txt": "a", "b.txt": "b"})
		c := batch.NewController(store, nil, "")

		b := plan(t, c, codeshell.Operation{Type: codeshell.OpRename, Path: "a.txt", NewPath: "b.txt"})

		assert.Equal(t, []codeshell.ErrorCodeValue{codeshell.ErrAlreadyExists}, failureCodes(b))
	})

	t.Run("rename errors name the requested path", func(t *testing.T) {
		t.Parallel()

		store := memory.New(map[string]string{"a.txt": "a", "b.txt": "b"})
		c := batch.NewController(store, nil, "")

		b := plan(t, c,
			codeshell.Operation{Type: codeshell.OpRename, Path: "b.txt", NewPath: "c.txt"},
			codeshell.Operation{Type: codeshell.OpRename, Path: "a.txt", NewPath: "b.txt"},
		)

		require.Len(t, b.Failures, 1)
		assert.Equal(t, 1, b.Failures[0].Index)
		assert.Equal(t, codeshell.ErrAlreadyExists, b.Failures[0].Code())
		assert.Contains(t, b.Failures[0].Err.Error(), "b.txt (resolved to c.txt by an earlier rename) already exists")
	})

	t.Run("write upserts", func(t *testing.T) {
		t.Parallel()

		store := memory.New(map[string]string{"a.txt": "old\n"})
		c := batch.NewController(store, nil, "")

		b := plan(t, c,
			codeshell.Operation{Type: codeshell.OpWrite, Path: "a.txt", Content: "new\n"},
			codeshell.Operation{Type: codeshell.OpWrite, Path: "b.txt", Content: "fresh\n"},
		)

		require.Len(t, b.Actions, 2)
		assert.Equal(t, codeshell.ActionApplyEdit, b.Actions[0].Type)
		assert.Equal(t, codeshell.ActionCreateFile, b.Actions[1].Type)
		assert.Nil(t, b.Actions[1].Before)
	})

	t.Run("edits read open buffers", func(t *testing.T) {
		t.Parallel()

		store := memory.New(map[string]string{"a.txt": "disk\n"})
		open := map[string]codeshell.Buffer{"a.txt": {Text: "unsaved\n", Dirty: true}}
		c := batch.NewController(store, buffers(open), "")

		b := plan(t, c, codeshell.Operation{Type: codeshell.OpEdit, Path: "a.txt", Selector: codeshell.SearchSelector("unsaved", 1), Content: "saved"})

		require.Len(t, b.Actions, 1)
		assert.Equal(t, "unsaved\n", *b.Actions[0].Before)
	})

	t.Run("patch operations use the patcher", func(t *testing.T) {
		t.Parallel()

		store := memory.New(map[string]string{"a.txt": "a\nb\n"})
		patcher := &mock.Patcher{
			PatchFn: func(path, before, diff string) (string, error) {
				if diff == "bad" {
					return "", errors.New("hunk does not apply")
				}
				return strings.Replace(before, "b", "B", 1), nil
			},
		}
		c := batch.NewController(store, nil, "", batch.WithPatcher(patcher))

		b := plan(t, c,
			codeshell.Operation{Type: codeshell.OpPatch, Path: "a.txt", Diff: "good"},
			codeshell.Operation{Type: codeshell.OpPatch, Path: "a.txt", Diff: "bad"},
		)

		require.Len(t, b.Actions, 1)
		assert.Equal(t, "a\nB\n", *b.Actions[0].After)
		assert.Equal(t, 1, b.Actions[0].ChangedLines)
		assert.Equal(t, []codeshell.ErrorCodeValue{codeshell.ErrPatchRejected}, failureCodes(b))
	})

	t.Run("patch without a patcher is rejected", func(t *testing.T) {
		t.Parallel()

		c := batch.NewController(memory.New(map[string]string{"a.txt": "a"}), nil, "")

		b := plan(t, c, codeshell.Operation{Type: codeshell.OpPatch, Path: "a.txt", Diff: "x"})

		assert.Equal(t, []codeshell.ErrorCodeValue{codeshell.ErrPatchRejected}, failureCodes(b))
	})

	t.Run("stops on a cancelled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		c := batch.NewController(memory.New(nil), nil, "")

		_, err := c.Plan(ctx, []codeshell.Operation{{Type: codeshell.OpCreate, Path: "a.txt"}})

		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestController_Reject(t *testing.T) {
	t.Parallel()

	store := memory.New(map[string]string{"a.txt": "a\n", "dir/b.txt": "b\n"})
	c := batch.NewController(store, nil, "")
	b := plan(t, c,
		codeshell.Operation{Type: codeshell.OpEdit, Path: "a.txt", Content: "x"},
		codeshell.Operation{Type: codeshell.OpCreate, Path: "c.txt", Content: "c"},
		codeshell.Operation{Type: codeshell.OpRename, Path: "dir", NewPath: "moved"},
		codeshell.Operation{Type: codeshell.OpDelete, Path: "moved/b.txt"},
	)
	require.Len(t, b.Actions, 4)

	require.NoError(t, c.Reject(b))

	assert.Equal(t, codeshell.BatchRejected, b.State)
	assert.Empty(t, store.MutatingCalls())
	assert.ErrorIs(t, c.Reject(b), batch.ErrNotStaged)
	_, err := c.Approve(context.Background(), b)
	assert.ErrorIs(t, err, batch.ErrNotStaged)
}

func TestController_Approve(t *testing.T) {
	t.Parallel()

	t.Run("replays actions in order and resyncs buffers", func(t *testing.T) {
		t.Parallel()

		store := memory.New(map[string]string{"a.txt": "a\n", "dir/b.txt": "b\n", "gone.txt": "g\n"})
		open := map[string]codeshell.Buffer{
			"a.txt":     {Text: "a\n"},
			"dir/b.txt": {Text: "b\n"},
			"gone.txt":  {Text: "g\n", Dirty: true},
		}
		c := batch.NewController(store, buffers(open), "")
		b := plan(t, c,
			codeshell.Operation{Type: codeshell.OpEdit, Path: "a.txt", Content: "A\n"},
			codeshell.Operation{Type: codeshell.OpCreate, Path: "c.txt", Content: "c\n"},
			codeshell.Operation{Type: codeshell.OpRename, Path: "dir", NewPath: "moved"},
			codeshell.Operation{Type: codeshell.OpDelete, Path: "gone.txt"},
		)

		res, err := c.Approve(context.Background(), b)

		require.NoError(t, err)
		assert.Equal(t, codeshell.CommitResult{Applied: 4, FailedAt: -1}, res)
		assert.Equal(t, codeshell.BatchApplied, b.State)
		assert.Equal(t, map[string]string{"a.txt": "A\n", "c.txt": "c\n", "moved/b.txt": "b\n"}, store.Files())
		assert.Equal(t, []memory.Call{
			{Op: "write", Path: "a.txt"},
			{Op: "create", Path: "c.txt"},
			{Op: "rename", Path: "dir", NewPath: "moved"},
			{Op: "delete", Path: "gone.txt"},
		}, store.MutatingCalls())
		assert.Equal(t, map[string]codeshell.Buffer{
			"a.txt":       {Text: "A\n"},
			"moved/b.txt": {Text: "b\n"},
		}, open)
	})

	t.Run("halts on the first storage failure", func(t *testing.T) {
		t.Parallel()

		store := memory.New(map[string]string{"a.txt": "a\n", "b.txt": "b\n", "c.txt": "c\n"})
		store.FailOn("write", "b.txt", errors.New("disk full"))
		c := batch.NewController(store, nil, "")
		b := plan(t, c,
			codeshell.Operation{Type: codeshell.OpEdit, Path: "a.txt", Content: "A\n"},
			codeshell.Operation{Type: codeshell.OpEdit, Path: "b.txt", Content: "B\n"},
			codeshell.Operation{Type: codeshell.OpEdit, Path: "c.txt", Content: "C\n"},
		)

		res, err := c.Approve(context.Background(), b)

		assert.Equal(t, codeshell.ErrStorageFailure, codeshell.ErrorCode(err))
		assert.Equal(t, codeshell.CommitResult{Applied: 1, FailedAt: 1}, res)
		assert.Equal(t, codeshell.BatchFailed, b.State)
		assert.Equal(t, 1, b.FailedAt)
		assert.Equal(t, map[string]string{"a.txt": "A\n", "b.txt": "b\n", "c.txt": "c\n"}, store.Files())
		assert.False(t, c.CanUndo())
	})

	t.Run("rolls back applied actions when enabled", func(t *testing.T) {
		t.Parallel()

		store := memory.New(map[string]string{"a.txt": "a\n", "d.txt": "d\n", "z.txt": "z\n"})
		store.FailOn("write", "z.txt", errors.New("disk full"))
		c := batch.NewController(store, nil, "", batch.WithRollback())
		b := plan(t, c,
			codeshell.Operation{Type: codeshell.OpEdit, Path: "a.txt", Content: "A\n"},
			codeshell.Operation{Type: codeshell.OpCreate, Path: "new.txt", Content: "n\n"},
			codeshell.Operation{Type: codeshell.OpDelete, Path: "d.txt"},
			codeshell.Operation{Type: codeshell.OpEdit, Path: "z.txt", Content: "Z\n"},
		)

		res, err := c.Approve(context.Background(), b)

		require.Error(t, err)
		assert.True(t, res.RolledBack)
		assert.Equal(t, 3, res.FailedAt)
		assert.Equal(t, map[string]string{"a.txt": "a\n", "d.txt": "d\n", "z.txt": "z\n"}, store.Files())
	})

	t.Run("rollback restores the contents of a deleted directory", func(t *testing.T) {
		t.Parallel()

		store := memory.New(map[string]string{"d/x.txt": "x\n", "d/sub/y.txt": "y\n", "a.txt": "a\n"})
		store.FailOn("write", "a.txt", errors.New("disk full"))
		c := batch.NewController(store, nil, "", batch.WithRollback())
		b := plan(t, c,
			codeshell.Operation{Type: codeshell.OpDelete, Path: "d"},
			codeshell.Operation{Type: codeshell.OpEdit, Path: "a.txt", Content: "A\n"},
		)
		del := b.Actions[0]
		assert.Equal(t, []string{"d/sub"}, del.Folders)
		assert.Equal(t, []codeshell.FileSnapshot{{Path: "d/sub/y.txt", Text: "y\n"}, {Path: "d/x.txt", Text: "x\n"}}, del.Files)
		assert.Equal(t, "delete d/ (2 files)", del.Summary)

		res, err := c.Approve(context.Background(), b)

		require.Error(t, err)
		assert.Equal(t, codeshell.CommitResult{Applied: 1, FailedAt: 1, RolledBack: true}, res)
		assert.Equal(t, map[string]string{"d/x.txt": "x\n", "d/sub/y.txt": "y\n", "a.txt": "a\n"}, store.Files())
	})

	t.Run("journals applied and failed batches", func(t *testing.T) {
		t.Parallel()

		var records []codeshell.BatchRecord
		journal := &mock.Journal{
			AppendFn: func(r codeshell.BatchRecord) error {
				records = append(records, r)
				return nil
			},
		}
		at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		store := memory.New(map[string]string{"a.txt": "a\n"})
		c := batch.NewController(store, nil, "", batch.WithJournal(journal), batch.WithClock(func() time.Time { return at }))

		ok := plan(t, c, codeshell.Operation{Type: codeshell.OpEdit, Path: "a.txt", Content: "A\n"})
		_, err := c.Approve(context.Background(), ok)
		require.NoError(t, err)

		store.FailOn("create", "b.txt", errors.New("denied"))
		bad := plan(t, c, codeshell.Operation{Type: codeshell.OpCreate, Path: "b.txt", Content: "b"})
		_, err = c.Approve(context.Background(), bad)
		require.Error(t, err)

		require.Len(t, records, 2)
		assert.Equal(t, codeshell.BatchApplied, records[0].State)
		assert.Equal(t, ok.ID, records[0].ID)
		assert.Equal(t, at, records[0].AppliedAt)
		assert.Equal(t, codeshell.BatchFailed, records[1].State)
		assert.Equal(t, 0, records[1].FailedAt)
	})

	t.Run("journal failures are reported after a successful commit", func(t *testing.T) {
		t.Parallel()

		journal := &mock.Journal{
			AppendFn: func(codeshell.BatchRecord) error { return errors.New("read-only") },
		}
		store := memory.New(map[string]string{"a.txt": "a\n"})
		c := batch.NewController(store, nil, "", batch.WithJournal(journal))
		b := plan(t, c, codeshell.Operation{Type: codeshell.OpEdit, Path: "a.txt", Content: "A\n"})

		_, err := c.Approve(context.Background(), b)

		require.Error(t, err)
		assert.Equal(t, codeshell.BatchApplied, b.State)
		assert.Equal(t, "A\n", store.Files()["a.txt"])
	})
}

func TestController_Undo(t *testing.T) {
	t.Parallel()

	t.Run("reverts the last applied batch", func(t *testing.T) {
		t.Parallel()

		store := memory.New(map[string]string{"a.txt": "a\n", "dir/b.txt": "b\n", "gone.txt": "g\n"})
		open := map[string]codeshell.Buffer{"a.txt": {Text: "a\n"}, "dir/b.txt": {Text: "b\n"}}
		c := batch.NewController(store, buffers(open), "")
		b := plan(t, c,
			codeshell.Operation{Type: codeshell.OpEdit, Path: "a.txt", Content: "A\n"},
			codeshell.Operation{Type: codeshell.OpCreate, Path: "c.txt", Content: "c\n"},
			codeshell.Operation{Type: codeshell.OpRename, Path: "dir", NewPath: "moved"},
			codeshell.Operation{Type: codeshell.OpDelete, Path: "gone.txt"},
		)
		_, err := c.Approve(context.Background(), b)
		require.NoError(t, err)

		undone, err := c.Undo(context.Background())

		require.NoError(t, err)
		assert.Equal(t, b.ID, undone.ID)
		assert.Equal(t, map[string]string{"a.txt": "a\n", "dir/b.txt": "b\n", "gone.txt": "g\n"}, store.Files())
		assert.Equal(t, map[string]codeshell.Buffer{"a.txt": {Text: "a\n"}, "dir/b.txt": {Text: "b\n"}}, open)
		assert.False(t, c.CanUndo())

		_, err = c.Undo(context.Background())
		assert.ErrorIs(t, err, batch.ErrNothingToUndo)
	})

	t.Run("keeps a bounded history", func(t *testing.T) {
		t.Parallel()

		store := memory.New(map[string]string{"a.txt": "0"})
		c := batch.NewController(store, nil, "", batch.WithUndoDepth(2))
		for i := 1; i <= 3; i++ {
			b := plan(t, c, codeshell.Operation{Type: codeshell.OpEdit, Path: "a.txt", Content: fmt.Sprint(i)})
			_, err := c.Approve(context.Background(), b)
			require.NoError(t, err)
		}

		for range 2 {
			_, err := c.Undo(context.Background())
			require.NoError(t, err)
		}

		assert.Equal(t, "1", store.Files()["a.txt"])
		assert.False(t, c.CanUndo())
	})

	t.Run("restores a deleted directory with its folders and files", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		store := memory.New(map[string]string{"d/x.txt": "x\n", "d/sub/y.txt": "y\n"})
		require.NoError(t, store.CreateFolder(ctx, "d/empty"))
		c := batch.NewController(store, nil, "")
		b := plan(t, c, codeshell.Operation{Type: codeshell.OpDelete, Path: "d"})
		_, err := c.Approve(ctx, b)
		require.NoError(t, err)
		require.Empty(t, store.Files())

		_, err = c.Undo(ctx)

		require.NoError(t, err)
		assert.Equal(t, map[string]string{"d/x.txt": "x\n", "d/sub/y.txt": "y\n"}, store.Files())
		info, err := store.Stat(ctx, "d/empty")
		require.NoError(t, err)
		assert.True(t, info.IsDirectory)
	})

	t.Run("a failed undo is reverted and can be retried", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		store := memory.New(map[string]string{"a.txt": "a\n", "b.txt": "b\n"})
		c := batch.NewController(store, nil, "")
		b := plan(t, c,
			codeshell.Operation{Type: codeshell.OpEdit, Path: "a.txt", Content: "A\n"},
			codeshell.Operation{Type: codeshell.OpEdit, Path: "b.txt", Content: "B\n"},
		)
		_, err := c.Approve(ctx, b)
		require.NoError(t, err)

		store.FailOn("write", "a.txt", errors.New("disk full"))
		_, err = c.Undo(ctx)

		require.Error(t, err)
		assert.Equal(t, codeshell.ErrStorageFailure, codeshell.ErrorCode(err))
		assert.Contains(t, err.Error(), "failed at action 1")
		assert.Equal(t, map[string]string{"a.txt": "A\n", "b.txt": "B\n"}, store.Files())
		require.True(t, c.CanUndo())

		undone, err := c.Undo(ctx)

		require.NoError(t, err)
		assert.Equal(t, b.ID, undone.ID)
		assert.Equal(t, map[string]string{"a.txt": "a\n", "b.txt": "b\n"}, store.Files())
	})
}
