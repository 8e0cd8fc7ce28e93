// Package batch plans, commits and reverts groups of file operations.
//
// Planning validates every operation against a fresh overlay and never
// touches storage. Approval replays the staged actions in order against the
// storage provider and resynchronizes open buffers.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fwojciec/codeshell"
)

// ErrNotStaged is returned when approving or rejecting a batch that is not
// awaiting approval.
var ErrNotStaged = errors.New("batch is not staged")

// ErrNothingToUndo is returned by Undo when no applied batch is retained.
var ErrNothingToUndo = errors.New("nothing to undo")

// Controller owns the lifecycle of staged batches for one workspace root.
type Controller struct {
	storage codeshell.Storage
	buffers codeshell.BufferStore // optional
	root    codeshell.Path

	maxChangedLines int
	patcher         codeshell.Patcher
	journal         codeshell.Journal
	rollback        bool
	undoDepth       int
	now             func() time.Time

	mu   sync.Mutex
	undo []*codeshell.Batch
}

// Option configures a Controller.
type Option func(*Controller)

// WithMaxChangedLines sets the line threshold above which full-file and
// line-range edits are refused.
func WithMaxChangedLines(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.maxChangedLines = n
		}
	}
}

// WithPatcher enables patch operations.
func WithPatcher(p codeshell.Patcher) Option {
	return func(c *Controller) {
		c.patcher = p
	}
}

// WithJournal records every committed batch in j.
func WithJournal(j codeshell.Journal) Option {
	return func(c *Controller) {
		c.journal = j
	}
}

// WithRollback restores the pre-images of already applied actions, in
// reverse order, when a commit fails part way.
func WithRollback() Option {
	return func(c *Controller) {
		c.rollback = true
	}
}

// WithUndoDepth bounds the number of applied batches kept for Undo.
func WithUndoDepth(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.undoDepth = n
		}
	}
}

// WithClock overrides the time source used for batch timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// NewController returns a Controller that confines operations to root, a
// slash-separated path inside storage ("" admits the whole tree). buffers
// may be nil.
func NewController(storage codeshell.Storage, buffers codeshell.BufferStore, root string, opts ...Option) *Controller {
	c := &Controller{
		storage:         storage,
		buffers:         buffers,
		root:            codeshell.ParsePath(root),
		maxChangedLines: codeshell.DefaultMaxChangedLines,
		undoDepth:       codeshell.DefaultUndoDepth,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Root returns the directory operations are confined to.
func (c *Controller) Root() string {
	return c.root.String()
}

// Approve commits a staged batch. Actions run sequentially; the first
// storage failure halts the commit, marks the batch failed and returns a
// storage_failure error. Already applied actions stay applied unless the
// controller was built WithRollback.
func (c *Controller) Approve(ctx context.Context, b *codeshell.Batch) (codeshell.CommitResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if b.State != codeshell.BatchStaged {
		return codeshell.CommitResult{FailedAt: -1}, fmt.Errorf("approve %s: %w", b.ID, ErrNotStaged)
	}

	res, err := c.commit(ctx, b)
	if err != nil {
		b.State = codeshell.BatchFailed
		b.FailedAt = res.FailedAt
		if jerr := c.record(b); jerr != nil {
			err = errors.Join(err, jerr)
		}
		return res, err
	}

	b.State = codeshell.BatchApplied
	b.FailedAt = -1
	c.push(b)

	var errs []error
	if rerr := c.resync(b.Actions); rerr != nil {
		errs = append(errs, rerr)
	}
	if jerr := c.record(b); jerr != nil {
		errs = append(errs, jerr)
	}
	return res, errors.Join(errs...)
}

// Reject discards a staged batch. No I/O happens.
func (c *Controller) Reject(b *codeshell.Batch) error {
	if b.State != codeshell.BatchStaged {
		return fmt.Errorf("reject %s: %w", b.ID, ErrNotStaged)
	}
	b.State = codeshell.BatchRejected
	return nil
}

// Undo reverts the most recently applied batch by replaying the inverse of
// its actions in reverse order, and returns it. When an inverse action
// fails, the ones already replayed are reverted and the batch stays
// available to Undo. If that revert fails too the batch is dropped, since
// storage no longer matches either side of it.
func (c *Controller) Undo(ctx context.Context) (*codeshell.Batch, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.undo) == 0 {
		return nil, ErrNothingToUndo
	}
	b := c.undo[len(c.undo)-1]
	c.undo = c.undo[:len(c.undo)-1]

	var inverse []codeshell.StagedAction
	for i := len(b.Actions) - 1; i >= 0; i-- {
		inverse = append(inverse, invert(b.Actions[i])...)
	}
	for i, a := range inverse {
		if err := c.apply(ctx, a); err != nil {
			uerr := codeshell.WrapError(codeshell.ErrStorageFailure, err, "undo %s failed at action %d (%s)", b.ID, i, a.Summary)
			if rerr := c.revert(ctx, inverse[:i]); rerr != nil {
				return b, errors.Join(uerr, rerr, c.resync(inverse[:i]))
			}
			c.undo = append(c.undo, b)
			return b, uerr
		}
	}
	return b, c.resync(inverse)
}

// CanUndo reports whether an applied batch is available to Undo.
func (c *Controller) CanUndo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.undo) > 0
}

// push retains b for Undo, dropping the oldest batch past the depth.
func (c *Controller) push(b *codeshell.Batch) {
	c.undo = append(c.undo, b)
	if len(c.undo) > c.undoDepth {
		c.undo = append(c.undo[:0], c.undo[len(c.undo)-c.undoDepth:]...)
	}
}

func (c *Controller) record(b *codeshell.Batch) error {
	if c.journal == nil {
		return nil
	}
	if err := c.journal.Append(b.Record(c.now())); err != nil {
		return fmt.Errorf("journal batch %s: %w", b.ID, err)
	}
	return nil
}
