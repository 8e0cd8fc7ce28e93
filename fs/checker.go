package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"fortio.org/safecast"
	"github.com/fwojciec/codeshell"
	"github.com/vmihailenco/msgpack/v5"
)

// Compile-time interface verification.
var _ codeshell.Checker = (*Checker)(nil)

// checkerCacheSchema is bumped whenever cachedResult changes shape.
const checkerCacheSchema uint16 = 1

// Checker wraps a codeshell.Checker with a disk cache keyed by the file
// content, so unchanged files are not checked again.
type Checker struct {
	mu       sync.RWMutex
	inner    codeshell.Checker
	storage  codeshell.Storage
	cacheDir string
}

// cachedResult is the msgpack payload of one cache entry.
type cachedResult struct {
	Schema   uint16
	Producer string
	Items    []cachedDiagnostic
}

type cachedDiagnostic struct {
	Line       uint32
	Col        uint32
	Severity   uint8
	Kind       uint8
	Code       string
	Message    string
	Suggestion string
}

// NewChecker creates a new caching checker. File content is read from
// storage to compute the cache key.
func NewChecker(inner codeshell.Checker, storage codeshell.Storage, cacheDir string) *Checker {
	return &Checker{
		inner:    inner,
		storage:  storage,
		cacheDir: cacheDir,
	}
}

// Producer returns the producer of the wrapped checker.
func (c *Checker) Producer() string {
	return c.inner.Producer()
}

// Check returns cached diagnostics or delegates to the inner checker.
func (c *Checker) Check(ctx context.Context, path string) ([]codeshell.Diagnostic, error) {
	text, err := c.storage.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	key := c.key(path, text)

	if cached, ok := c.load(key); ok {
		return cached, nil
	}

	result, err := c.inner.Check(ctx, path)
	if err != nil {
		return nil, err
	}

	// Store in cache (best-effort)
	_ = c.save(key, result)

	return result, nil
}

func (c *Checker) key(path, text string) string {
	h := sha256.New()
	for _, s := range []string{c.inner.Producer(), codeshell.CleanPath(path), text} {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Checker) cachePath(key string) string {
	return filepath.Join(c.cacheDir, "checks", key[:2], key+".mp")
}

func (c *Checker) load(key string) ([]codeshell.Diagnostic, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.cachePath(key))
	if err != nil {
		return nil, false
	}
	var payload cachedResult
	if err := msgpack.Unmarshal(data, &payload); err != nil {
		return nil, false
	}
	if payload.Schema != checkerCacheSchema || payload.Producer != c.inner.Producer() {
		return nil, false
	}

	items := make([]codeshell.Diagnostic, len(payload.Items))
	for i, d := range payload.Items {
		items[i] = codeshell.Diagnostic{
			Line:       int(d.Line),
			Col:        int(d.Col),
			Severity:   codeshell.Severity(d.Severity),
			Kind:       codeshell.Kind(d.Kind),
			Code:       d.Code,
			Message:    d.Message,
			Suggestion: d.Suggestion,
		}
	}
	return items, true
}

func (c *Checker) save(key string, items []codeshell.Diagnostic) error {
	payload := cachedResult{
		Schema:   checkerCacheSchema,
		Producer: c.inner.Producer(),
		Items:    make([]cachedDiagnostic, len(items)),
	}
	for i, d := range items {
		line, err := safecast.Conv[uint32](d.Line)
		if err != nil {
			return err
		}
		col, err := safecast.Conv[uint32](d.Col)
		if err != nil {
			return err
		}
		sev, err := safecast.Conv[uint8](int(d.Severity))
		if err != nil {
			return err
		}
		kind, err := safecast.Conv[uint8](int(d.Kind))
		if err != nil {
			return err
		}
		payload.Items[i] = cachedDiagnostic{
			Line:       line,
			Col:        col,
			Severity:   sev,
			Kind:       kind,
			Code:       d.Code,
			Message:    d.Message,
			Suggestion: d.Suggestion,
		}
	}
	data, err := msgpack.Marshal(&payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.cachePath(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), p)
}

// Purge removes every cached result.
func (c *Checker) Purge() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := os.RemoveAll(filepath.Join(c.cacheDir, "checks"))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
