package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fwojciec/codeshell"
	"github.com/fwojciec/codeshell/batch"
	"github.com/fwojciec/codeshell/diagnostics"
)

// Session owns the state of one editing workspace: open buffers, their
// diagnostics and the batches awaiting approval. Diagnostics exist exactly
// for the open buffers; closing a buffer clears them. A Session is safe for
// concurrent use.
type Session struct {
	storage    codeshell.Storage
	buffers    codeshell.BufferStore
	model      *diagnostics.Model
	controller *batch.Controller
	checkers   []codeshell.Checker
	listener   func(*codeshell.DiagnosticSet)

	mu      sync.Mutex
	pending map[string]*codeshell.Batch
}

// Option configures a Session.
type Option func(*Session)

// WithChecker adds an external checker run by Check.
func WithChecker(c codeshell.Checker) Option {
	return func(s *Session) {
		s.checkers = append(s.checkers, c)
	}
}

// WithListener registers fn to receive every recomputed diagnostic set.
// fn is called without the session lock held.
func WithListener(fn func(*codeshell.DiagnosticSet)) Option {
	return func(s *Session) {
		s.listener = fn
	}
}

// NewSession creates a session over storage. The controller must share
// buffers so that commits resynchronize the same store.
func NewSession(storage codeshell.Storage, buffers codeshell.BufferStore, model *diagnostics.Model, controller *batch.Controller, opts ...Option) *Session {
	s := &Session{
		storage:    storage,
		buffers:    buffers,
		model:      model,
		controller: controller,
		pending:    make(map[string]*codeshell.Batch),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Buffers returns the open-buffer store.
func (s *Session) Buffers() codeshell.BufferStore {
	return s.buffers
}

// Open loads path into a buffer, unless it is already open, and returns
// its diagnostics.
func (s *Session) Open(ctx context.Context, path string) (*codeshell.DiagnosticSet, error) {
	path = codeshell.CleanPath(path)
	b, ok := s.buffers.Buffer(path)
	if !ok {
		text, err := s.storage.Read(ctx, path)
		if err != nil {
			return nil, codeshell.WrapError(codeshell.ErrStorageFailure, err, "open %s", path)
		}
		b = codeshell.Buffer{Text: text}
		if err := s.buffers.SetBuffer(path, b); err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
	}

	s.mu.Lock()
	set := s.model.Update(path, b.Text)
	s.mu.Unlock()

	s.notify(set)
	return set, nil
}

// Change replaces the text of an open buffer, marks it dirty and
// recomputes its diagnostics.
func (s *Session) Change(path, text string) (*codeshell.DiagnosticSet, error) {
	path = codeshell.CleanPath(path)
	if _, ok := s.buffers.Buffer(path); !ok {
		return nil, codeshell.Errorf(codeshell.ErrNotFound, "%s is not open", path)
	}
	if err := s.buffers.SetBuffer(path, codeshell.Buffer{Text: text, Dirty: true}); err != nil {
		return nil, fmt.Errorf("change %s: %w", path, err)
	}

	s.mu.Lock()
	set := s.model.Update(path, text)
	s.mu.Unlock()

	s.notify(set)
	return set, nil
}

// Close drops the buffer at path together with all its diagnostics.
func (s *Session) Close(path string) error {
	path = codeshell.CleanPath(path)
	s.mu.Lock()
	s.model.Close(path)
	s.mu.Unlock()
	return s.buffers.CloseBuffer(path)
}

// Save writes an open buffer to storage and marks it clean.
func (s *Session) Save(ctx context.Context, path string) error {
	path = codeshell.CleanPath(path)
	b, ok := s.buffers.Buffer(path)
	if !ok {
		return codeshell.Errorf(codeshell.ErrNotFound, "%s is not open", path)
	}
	if err := s.storage.Write(ctx, path, b.Text); err != nil {
		return codeshell.WrapError(codeshell.ErrStorageFailure, err, "save %s", path)
	}
	b.Dirty = false
	return s.buffers.SetBuffer(path, b)
}

// List returns the entries of the storage folder dir. Folder names end
// in a slash.
func (s *Session) List(ctx context.Context, dir string) ([]string, error) {
	dir = codeshell.CleanPath(dir)
	names, err := s.storage.ReadDir(ctx, dir)
	if err != nil {
		return nil, codeshell.WrapError(codeshell.ErrStorageFailure, err, "list %s", dir)
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		info, err := s.storage.Stat(ctx, codeshell.ParsePath(dir).Join(n).String())
		if err != nil {
			return nil, codeshell.WrapError(codeshell.ErrStorageFailure, err, "list %s", dir)
		}
		if info.IsDirectory {
			n += "/"
		}
		out = append(out, n)
	}
	return out, nil
}

// Publish stores diagnostics from an external producer. An empty slice
// retracts that producer's findings for path.
func (s *Session) Publish(producer, path string, ds []codeshell.Diagnostic) *codeshell.DiagnosticSet {
	s.mu.Lock()
	set := s.model.Publish(producer, path, ds)
	s.mu.Unlock()

	s.notify(set)
	return set
}

// Diagnostics returns the current set for path.
func (s *Session) Diagnostics(path string) (*codeshell.DiagnosticSet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.Set(path)
}

// Check runs every configured checker over path and publishes their
// results. A failing checker retracts nothing and is reported after the
// others have run.
func (s *Session) Check(ctx context.Context, path string) (*codeshell.DiagnosticSet, error) {
	path = codeshell.CleanPath(path)
	var (
		set  *codeshell.DiagnosticSet
		errs []error
	)
	for _, c := range s.checkers {
		ds, err := c.Check(ctx, path)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Producer(), err))
			continue
		}
		if ds == nil {
			ds = []codeshell.Diagnostic{}
		}
		set = s.Publish(c.Producer(), path, ds)
	}
	if set == nil {
		set, _ = s.Diagnostics(path)
	}
	return set, errors.Join(errs...)
}

// Plan stages ops and keeps the batch pending until it is approved or
// rejected.
func (s *Session) Plan(ctx context.Context, ops []codeshell.Operation) (*codeshell.Batch, error) {
	b, err := s.controller.Plan(ctx, ops)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.pending[b.ID] = b
	s.mu.Unlock()
	return b, nil
}

// Batch returns a pending batch.
func (s *Session) Batch(id string) (*codeshell.Batch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.pending[id]
	return b, ok
}

// Approve commits the pending batch id and refreshes the diagnostics of
// every affected buffer. A batch planned against buffer text that has
// since been edited is refused with stale_buffer and stays pending.
func (s *Session) Approve(ctx context.Context, id string) (*codeshell.Batch, codeshell.CommitResult, error) {
	b, err := s.take(id)
	if err != nil {
		return nil, codeshell.CommitResult{FailedAt: -1}, err
	}
	if err := s.stale(b); err != nil {
		s.mu.Lock()
		s.pending[b.ID] = b
		s.mu.Unlock()
		return b, codeshell.CommitResult{FailedAt: -1}, err
	}
	res, err := s.controller.Approve(ctx, b)
	s.reconcile()
	return b, res, err
}

// Reject discards the pending batch id.
func (s *Session) Reject(id string) (*codeshell.Batch, error) {
	b, err := s.take(id)
	if err != nil {
		return nil, err
	}
	return b, s.controller.Reject(b)
}

// Undo reverts the most recently applied batch.
func (s *Session) Undo(ctx context.Context) (*codeshell.Batch, error) {
	b, err := s.controller.Undo(ctx)
	s.reconcile()
	return b, err
}

// stale reports the first open buffer whose text no longer matches the
// text the batch was planned against. Only the first action touching a
// path is compared; later ones see earlier staged text.
func (s *Session) stale(b *codeshell.Batch) error {
	seen := make(map[string]bool)
	check := func(path string, before *string) error {
		if seen[path] {
			return nil
		}
		seen[path] = true
		if before == nil {
			return nil
		}
		if buf, ok := s.buffers.Buffer(path); ok && buf.Text != *before {
			return codeshell.Errorf(codeshell.ErrStaleBuffer, "%s was edited after the batch was planned", path)
		}
		return nil
	}
	for _, a := range b.Actions {
		if err := check(a.Path, a.Before); err != nil {
			return err
		}
		for _, f := range a.Files {
			if err := check(f.Path, &f.Text); err != nil {
				return err
			}
		}
		if a.NewPath != "" {
			seen[a.NewPath] = true
		}
	}
	return nil
}

func (s *Session) take(id string) (*codeshell.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.pending[id]
	if !ok {
		return nil, codeshell.Errorf(codeshell.ErrNotFound, "no pending batch %q", id)
	}
	delete(s.pending, id)
	return b, nil
}

// reconcile brings the diagnostics model in line with the buffer store
// after a commit moved, rewrote or closed buffers.
func (s *Session) reconcile() {
	var changed []*codeshell.DiagnosticSet

	s.mu.Lock()
	open := make(map[string]bool)
	for _, p := range s.buffers.BufferPaths() {
		open[p] = true
		b, ok := s.buffers.Buffer(p)
		if !ok {
			continue
		}
		if text, seen := s.model.Text(p); !seen || text != b.Text {
			changed = append(changed, s.model.Update(p, b.Text))
		}
	}
	for _, p := range s.model.Paths() {
		if !open[p] {
			s.model.Close(p)
		}
	}
	s.mu.Unlock()

	for _, set := range changed {
		s.notify(set)
	}
}

func (s *Session) notify(set *codeshell.DiagnosticSet) {
	if s.listener != nil && set != nil {
		s.listener(set)
	}
}
