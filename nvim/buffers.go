// Package nvim exposes the buffers of a running Neovim instance as a
// codeshell.BufferStore.
package nvim

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fwojciec/codeshell"
	"github.com/neovim/go-client/nvim"
)

// Compile-time interface verification.
var _ codeshell.BufferStore = (*Buffers)(nil)

// Buffers maps workspace paths to Neovim buffers. Paths are relative to
// root; Neovim buffers outside root are not listed.
type Buffers struct {
	nvim *nvim.Nvim
	root string
}

// New wraps a connected Neovim client.
func New(v *nvim.Nvim, root string) (*Buffers, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &Buffers{nvim: v, root: abs}, nil
}

// Dial connects to the Neovim instance listening on addr, usually the
// value of $NVIM.
func Dial(addr, root string) (*Buffers, error) {
	v, err := nvim.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("connect to nvim at %s: %w", addr, err)
	}
	return New(v, root)
}

// Close disconnects from Neovim.
func (b *Buffers) Close() error {
	return b.nvim.Close()
}

// Buffer implements codeshell.BufferStore.
func (b *Buffers) Buffer(path string) (codeshell.Buffer, bool) {
	buf, ok := b.find(path)
	if !ok {
		return codeshell.Buffer{}, false
	}
	lines, err := b.nvim.BufferLines(buf, 0, -1, true)
	if err != nil {
		return codeshell.Buffer{}, false
	}
	var modified bool
	if err := b.nvim.BufferOption(buf, "modified", &modified); err != nil {
		return codeshell.Buffer{}, false
	}
	return codeshell.Buffer{Text: joinLines(lines), Dirty: modified}, true
}

// SetBuffer loads path into a buffer if needed and replaces its lines.
func (b *Buffers) SetBuffer(path string, state codeshell.Buffer) error {
	buf, ok := b.find(path)
	if !ok {
		var n int
		if err := b.nvim.Call("bufadd", &n, b.abs(path)); err != nil {
			return fmt.Errorf("add buffer %s: %w", path, err)
		}
		if err := b.nvim.Call("bufload", nil, n); err != nil {
			return fmt.Errorf("load buffer %s: %w", path, err)
		}
		buf = nvim.Buffer(n)
	}

	batch := b.nvim.NewBatch()
	batch.SetBufferLines(buf, 0, -1, true, splitLines(state.Text))
	batch.SetBufferOption(buf, "modified", state.Dirty)
	if err := batch.Execute(); err != nil {
		return fmt.Errorf("set buffer %s: %w", path, err)
	}
	return nil
}

// CloseBuffer wipes the buffer, discarding unsaved changes.
func (b *Buffers) CloseBuffer(path string) error {
	buf, ok := b.find(path)
	if !ok {
		return nil
	}
	if err := b.nvim.Command(fmt.Sprintf("bwipeout! %d", int(buf))); err != nil {
		return fmt.Errorf("close buffer %s: %w", path, err)
	}
	return nil
}

// BufferPaths implements codeshell.BufferStore.
func (b *Buffers) BufferPaths() []string {
	bufs, err := b.nvim.Buffers()
	if err != nil {
		return nil
	}
	var paths []string
	for _, buf := range bufs {
		if p, ok := b.rel(buf); ok {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths
}

func (b *Buffers) find(path string) (nvim.Buffer, bool) {
	want := codeshell.CleanPath(path)
	bufs, err := b.nvim.Buffers()
	if err != nil {
		return 0, false
	}
	for _, buf := range bufs {
		if p, ok := b.rel(buf); ok && p == want {
			return buf, true
		}
	}
	return 0, false
}

// rel returns the workspace path of a loaded buffer.
func (b *Buffers) rel(buf nvim.Buffer) (string, bool) {
	loaded, err := b.nvim.IsBufferLoaded(buf)
	if err != nil || !loaded {
		return "", false
	}
	name, err := b.nvim.BufferName(buf)
	if err != nil || name == "" {
		return "", false
	}
	rel, err := filepath.Rel(b.root, name)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return codeshell.CleanPath(filepath.ToSlash(rel)), true
}

func (b *Buffers) abs(path string) string {
	return filepath.Join(b.root, filepath.FromSlash(codeshell.CleanPath(path)))
}

// joinLines renders buffer lines as text ending in a newline, which is
// how Neovim writes them with 'eol' set.
func joinLines(lines [][]byte) string {
	if len(lines) == 1 && len(lines[0]) == 0 {
		return ""
	}
	return string(bytes.Join(lines, []byte("\n"))) + "\n"
}

func splitLines(text string) [][]byte {
	if text == "" {
		return [][]byte{}
	}
	parts := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	lines := make([][]byte, len(parts))
	for i, p := range parts {
		lines[i] = []byte(p)
	}
	return lines
}
