package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fwojciec/codeshell"
	"github.com/fwojciec/codeshell/batch"
	"github.com/fwojciec/codeshell/color"
	"github.com/fwojciec/codeshell/diagnostics"
	"github.com/fwojciec/codeshell/lexical"
	"github.com/fwojciec/codeshell/toml"
	"github.com/fwojciec/codeshell/web"
	"github.com/fwojciec/codeshell/workspace"
	"golang.org/x/sync/errgroup"
)

// ErrProblems is returned by Check when a file has errors.
var ErrProblems = errors.New("problems found")

// ErrUnreviewed is returned when a batch would be applied without review.
var ErrUnreviewed = errors.New("no terminal to review the batch: pass --yes to apply or --dry-run to preview")

// ErrNoOperations is returned when the input holds no operations.
var ErrNoOperations = errors.New("no operations found in input")

// checkConcurrency bounds how many files Check analyzes at once.
const checkConcurrency = 8

// App encapsulates the application logic for testing.
type App struct {
	Out     io.Writer
	Err     io.Writer
	Printer *color.Printer

	Config codeshell.Config
	Dir    string // working directory command-line paths are relative to

	Storage   codeshell.Storage
	Buffers   codeshell.BufferStore // optional, an in-memory store by default
	Detector  codeshell.LanguageDetector
	Checkers  []codeshell.Checker
	Patcher   codeshell.Patcher
	Journal   codeshell.Journal            // optional
	Reviewer  codeshell.Reviewer           // nil when there is no terminal
	Planner   codeshell.Planner            // required by Propose
	Extractor codeshell.OperationExtractor // decodes non-JSON operation input
	Git       codeshell.GitRunner          // optional, picks files for Propose
}

// ApplyOptions controls how a staged batch is settled.
type ApplyOptions struct {
	DryRun bool // print the batch and its diffs, then reject it
	Yes    bool // approve without review
}

func (a *App) session(opts ...workspace.Option) *workspace.Session {
	cfg := a.Config
	buffers := a.Buffers
	if buffers == nil {
		buffers = workspace.NewBuffers()
	}
	model := diagnostics.NewModel(
		lexical.New(lexical.WithSizeCeiling(cfg.Diagnostics.SizeCeiling)),
		a.Detector,
		diagnostics.WithMaxItems(cfg.Diagnostics.MaxItems),
		diagnostics.WithAuthoritative(cfg.Diagnostics.Authoritative...),
	)
	copts := []batch.Option{
		batch.WithMaxChangedLines(cfg.Batch.MaxChangedLines),
		batch.WithUndoDepth(cfg.Batch.UndoDepth),
	}
	if a.Patcher != nil {
		copts = append(copts, batch.WithPatcher(a.Patcher))
	}
	if a.Journal != nil {
		copts = append(copts, batch.WithJournal(a.Journal))
	}
	if cfg.Batch.Rollback {
		copts = append(copts, batch.WithRollback())
	}
	controller := batch.NewController(a.Storage, buffers, "", copts...)
	for _, c := range a.Checkers {
		opts = append(opts, workspace.WithChecker(c))
	}
	return workspace.NewSession(a.Storage, buffers, model, controller, opts...)
}

// rel converts a command-line path to a workspace path.
func (a *App) rel(arg string) (string, error) {
	p := arg
	if !filepath.IsAbs(p) {
		p = filepath.Join(a.Dir, p)
	}
	rel, err := filepath.Rel(a.Config.Root, p)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", codeshell.Errorf(codeshell.ErrOutOfScope, "%s is outside the workspace %s", arg, a.Config.Root)
	}
	return codeshell.CleanPath(rel), nil
}

// Check analyzes files and prints their diagnostics. It returns
// ErrProblems when any file has errors.
func (a *App) Check(ctx context.Context, args []string) error {
	paths := make([]string, len(args))
	for i, arg := range args {
		p, err := a.rel(arg)
		if err != nil {
			return err
		}
		paths[i] = p
	}

	sess := a.session()
	sets := make([]*codeshell.DiagnosticSet, len(paths))
	texts := make([]string, len(paths))
	var (
		mu       sync.Mutex
		warnings []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(checkConcurrency)
	for i, p := range paths {
		g.Go(func() error {
			set, err := sess.Open(gctx, p)
			if err != nil {
				return err
			}
			if len(a.Checkers) > 0 {
				checked, err := sess.Check(gctx, p)
				if err != nil {
					mu.Lock()
					warnings = append(warnings, err)
					mu.Unlock()
				}
				if checked != nil {
					set = checked
				}
			}
			b, _ := sess.Buffers().Buffer(p)
			sets[i], texts[i] = set, b.Text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, w := range warnings {
		fmt.Fprintf(a.Err, "warning: %v\n", w)
	}
	failed := false
	for i, set := range sets {
		a.Printer.Diagnostics(set, texts[i])
		if set.Errors > 0 {
			failed = true
		}
	}
	if failed {
		return ErrProblems
	}
	return nil
}

// ReadOperations decodes operations from JSON, either a list or an object
// with an "operations" field, or extracts them from markdown.
func (a *App) ReadOperations(r io.Reader) ([]codeshell.Operation, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(string(data))

	var ops []codeshell.Operation
	switch {
	case strings.HasPrefix(text, "["):
		err = json.Unmarshal([]byte(text), &ops)
	case strings.HasPrefix(text, "{"):
		var wrapped struct {
			Operations []codeshell.Operation `json:"operations"`
		}
		err = json.Unmarshal([]byte(text), &wrapped)
		ops = wrapped.Operations
	case a.Extractor != nil:
		ops, err = a.Extractor.Extract(string(data))
	default:
		return nil, errors.New("input is not JSON")
	}
	if err != nil {
		return nil, fmt.Errorf("read operations: %w", err)
	}
	if len(ops) == 0 {
		return nil, ErrNoOperations
	}
	return ops, nil
}

// Apply stages ops, settles the batch as opts ask and prints the outcome.
func (a *App) Apply(ctx context.Context, ops []codeshell.Operation, opts ApplyOptions) error {
	if !opts.DryRun && !opts.Yes && a.Reviewer == nil {
		return ErrUnreviewed
	}

	sess := a.session()
	b, err := sess.Plan(ctx, ops)
	if err != nil {
		return err
	}

	approve := opts.Yes
	switch {
	case opts.DryRun:
		a.Printer.Batch(b)
		a.Printer.Diff(b)
		_, err := sess.Reject(b.ID)
		return err
	case len(b.Actions) == 0:
		a.Printer.Batch(b)
		_, err := sess.Reject(b.ID)
		return err
	case !opts.Yes:
		approve, err = a.Reviewer.Review(ctx, b)
		if err != nil {
			return err
		}
	}

	if !approve {
		b, err = sess.Reject(b.ID)
		if err != nil {
			return err
		}
		a.Printer.Batch(b)
		return nil
	}

	b, res, err := sess.Approve(ctx, b.ID)
	if b != nil {
		a.Printer.Batch(b)
	}
	a.Printer.Result(res, err)
	return err
}

// Propose asks the planner for operations carrying out instruction on
// the given files, or on the files git reports as changed, and applies
// them as opts ask.
func (a *App) Propose(ctx context.Context, instruction string, args []string, opts ApplyOptions) error {
	if a.Planner == nil {
		return errors.New("no planner configured")
	}
	var paths []string
	for _, arg := range args {
		p, err := a.rel(arg)
		if err != nil {
			return err
		}
		paths = append(paths, p)
	}
	if len(paths) == 0 && a.Git != nil {
		changed, err := a.Git.ChangedFiles(ctx, a.Config.Root)
		if err != nil {
			return err
		}
		paths = changed
	}

	files := make([]codeshell.FileSnapshot, 0, len(paths))
	for _, p := range paths {
		text, err := a.Storage.Read(ctx, p)
		if err != nil {
			return codeshell.WrapError(codeshell.ErrStorageFailure, err, "read %s", p)
		}
		files = append(files, codeshell.FileSnapshot{Path: p, Text: text})
	}

	ops, err := a.Planner.Propose(ctx, instruction, files)
	if err != nil {
		return err
	}
	if len(ops) == 0 {
		return ErrNoOperations
	}
	return a.Apply(ctx, ops, opts)
}

// Serve runs the browser bridge on ln until ctx is cancelled.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	var srv *web.Server
	sess := a.session(workspace.WithListener(func(set *codeshell.DiagnosticSet) {
		srv.Broadcast(set)
	}))
	srv = web.NewServer(sess,
		web.WithLogger(log.New(a.Err, "codeshell: ", log.LstdFlags)),
		web.WithAllowedOrigins(a.Config.Server.Origins...),
	)

	httpSrv := &http.Server{
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpSrv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// History prints the journaled batches, oldest first.
func (a *App) History() error {
	if a.Journal == nil {
		return errors.New("no journal configured")
	}
	records, err := a.Journal.Load()
	if err != nil {
		return err
	}
	for _, r := range records {
		fmt.Fprintf(a.Out, "%s  %s  %-8s %d actions\n", r.AppliedAt.Format(time.RFC3339), r.ID, r.State, len(r.Actions))
		for _, act := range r.Actions {
			fmt.Fprintf(a.Out, "    %s\n", act.Summary)
		}
	}
	return nil
}

// Init writes the default configuration into the working directory.
func (a *App) Init() (string, error) {
	path := filepath.Join(a.Dir, toml.FileName)
	data, err := toml.Encode(codeshell.DefaultConfig())
	if err != nil {
		return "", err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%s already exists", path)
		}
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}
