// Package overlay simulates file mutations in memory on top of a storage
// provider. Reads fall through to storage and open buffers; writes never
// leave the overlay, so discarding it has no side effects.
package overlay

import (
	"context"
	"sort"

	"github.com/fwojciec/codeshell"
)

type rename struct {
	from, to codeshell.Path
}

// Overlay is a transient view of the workspace used to validate one batch.
// It is not safe for concurrent use.
type Overlay struct {
	storage codeshell.Storage
	buffers codeshell.BufferStore // optional

	content map[string]string
	deleted map[string]bool
	missing map[string]bool // storage reported no such file
	created map[string]bool
	folders map[string]bool
	renames []rename
}

// New returns an empty overlay over storage. buffers may be nil.
func New(storage codeshell.Storage, buffers codeshell.BufferStore) *Overlay {
	return &Overlay{
		storage: storage,
		buffers: buffers,
		content: make(map[string]string),
		deleted: make(map[string]bool),
		missing: make(map[string]bool),
		created: make(map[string]bool),
		folders: make(map[string]bool),
	}
}

// Resolve maps path through every rename recorded so far, in order. A
// rename of a directory redirects all paths beneath it.
func (o *Overlay) Resolve(path string) codeshell.Path {
	p := codeshell.ParsePath(path)
	for _, r := range o.renames {
		p, _ = p.Rebase(r.from, r.to)
	}
	return p
}

// origin maps a resolved path back to where its content lives in storage
// by undoing the renames in reverse.
func (o *Overlay) origin(p codeshell.Path) codeshell.Path {
	for i := len(o.renames) - 1; i >= 0; i-- {
		r := o.renames[i]
		p, _ = p.Rebase(r.to, r.from)
	}
	return p
}

// deletedAncestor reports whether a strict ancestor of p was deleted.
func (o *Overlay) deletedAncestor(p codeshell.Path) bool {
	for n := len(p) - 1; n > 0; n-- {
		if o.deleted[p[:n].String()] {
			return true
		}
	}
	return false
}

// ReadFile returns the overlay view of path. ok is false when the file
// does not exist. Storage reads are cached so repeated reads in one
// planning session agree even if the disk changes underneath.
func (o *Overlay) ReadFile(ctx context.Context, path string) (text string, ok bool, err error) {
	return o.read(ctx, o.Resolve(path))
}

func (o *Overlay) read(ctx context.Context, p codeshell.Path) (text string, ok bool, err error) {
	key := p.String()

	if o.deleted[key] {
		return "", false, nil
	}
	if text, ok := o.content[key]; ok {
		return text, true, nil
	}
	if o.deletedAncestor(p) || o.missing[key] {
		return "", false, nil
	}

	src := o.origin(p).String()
	if o.buffers != nil {
		if b, ok := o.buffers.Buffer(src); ok {
			o.content[key] = b.Text
			return b.Text, true, nil
		}
	}

	info, err := o.storage.Stat(ctx, src)
	if err != nil {
		return "", false, codeshell.WrapError(codeshell.ErrStorageFailure, err, "stat %s", src)
	}
	if !info.Exists || info.IsDirectory {
		o.missing[key] = true
		return "", false, nil
	}
	text, err = o.storage.Read(ctx, src)
	if err != nil {
		return "", false, codeshell.WrapError(codeshell.ErrStorageFailure, err, "read %s", src)
	}
	o.content[key] = text
	return text, true, nil
}

// Stat returns the overlay view of path.
func (o *Overlay) Stat(ctx context.Context, path string) (codeshell.FileInfo, error) {
	return o.stat(ctx, o.Resolve(path))
}

func (o *Overlay) stat(ctx context.Context, p codeshell.Path) (codeshell.FileInfo, error) {
	key := p.String()

	switch {
	case len(p) == 0:
		return codeshell.FileInfo{Exists: true, IsDirectory: true}, nil
	case o.deleted[key]:
		return codeshell.FileInfo{}, nil
	case hasKey(o.content, key):
		return codeshell.FileInfo{Exists: true}, nil
	case o.folders[key] || o.hasContentBelow(p):
		return codeshell.FileInfo{Exists: true, IsDirectory: true}, nil
	case o.deletedAncestor(p) || o.missing[key]:
		return codeshell.FileInfo{}, nil
	}

	src := o.origin(p).String()
	if o.buffers != nil {
		if _, ok := o.buffers.Buffer(src); ok {
			return codeshell.FileInfo{Exists: true}, nil
		}
	}
	info, err := o.storage.Stat(ctx, src)
	if err != nil {
		return codeshell.FileInfo{}, codeshell.WrapError(codeshell.ErrStorageFailure, err, "stat %s", src)
	}
	return info, nil
}

// Exists reports whether path is a file or directory in the overlay view.
func (o *Overlay) Exists(ctx context.Context, path string) (bool, error) {
	info, err := o.Stat(ctx, path)
	return info.Exists, err
}

// IsDir reports whether path is a directory in the overlay view.
func (o *Overlay) IsDir(ctx context.Context, path string) (bool, error) {
	info, err := o.Stat(ctx, path)
	return info.Exists && info.IsDirectory, err
}

// Walk lists everything beneath the directory at path in the overlay view.
// Folders come before their contents and names are visited in sorted
// order. Returned paths are resolved.
func (o *Overlay) Walk(ctx context.Context, path string) (folders []string, files []codeshell.FileSnapshot, err error) {
	err = o.walk(ctx, o.Resolve(path), &folders, &files)
	return folders, files, err
}

func (o *Overlay) walk(ctx context.Context, dir codeshell.Path, folders *[]string, files *[]codeshell.FileSnapshot) error {
	names, err := o.children(ctx, dir)
	if err != nil {
		return err
	}
	for _, name := range names {
		p := dir.Join(name)
		info, err := o.stat(ctx, p)
		if err != nil {
			return err
		}
		switch {
		case !info.Exists:
		case info.IsDirectory:
			*folders = append(*folders, p.String())
			if err := o.walk(ctx, p, folders, files); err != nil {
				return err
			}
		default:
			text, ok, err := o.read(ctx, p)
			if err != nil {
				return err
			}
			if ok {
				*files = append(*files, codeshell.FileSnapshot{Path: p.String(), Text: text})
			}
		}
	}
	return nil
}

// children returns candidate names directly beneath dir: what storage holds
// at its origin plus whatever the overlay put there. Candidates may no
// longer exist and must be checked with stat.
func (o *Overlay) children(ctx context.Context, dir codeshell.Path) ([]string, error) {
	seen := make(map[string]bool)
	add := func(p codeshell.Path) {
		if p.IsDescendant(dir) {
			seen[p[len(dir)]] = true
		}
	}
	for k := range o.content {
		add(codeshell.ParsePath(k))
	}
	for k := range o.folders {
		add(codeshell.ParsePath(k))
	}
	for _, r := range o.renames {
		add(r.to)
	}

	src := o.origin(dir)
	if o.buffers != nil {
		for _, k := range o.buffers.BufferPaths() {
			if p, ok := codeshell.ParsePath(k).Rebase(src, dir); ok {
				add(p)
			}
		}
	}
	info, err := o.storage.Stat(ctx, src.String())
	if err != nil {
		return nil, codeshell.WrapError(codeshell.ErrStorageFailure, err, "stat %s", src)
	}
	if info.Exists && info.IsDirectory {
		names, err := o.storage.ReadDir(ctx, src.String())
		if err != nil {
			return nil, codeshell.WrapError(codeshell.ErrStorageFailure, err, "list %s", src)
		}
		for _, n := range names {
			seen[n] = true
		}
	}

	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

// SetFile records text as the content of path.
func (o *Overlay) SetFile(path, text string) {
	key := o.Resolve(path).String()
	o.content[key] = text
	delete(o.deleted, key)
	delete(o.missing, key)
}

// CreateFile records a new file at path.
func (o *Overlay) CreateFile(path, text string) {
	o.SetFile(path, text)
	o.created[o.Resolve(path).String()] = true
}

// CreateFolder records a new directory at path.
func (o *Overlay) CreateFolder(path string) {
	key := o.Resolve(path).String()
	o.folders[key] = true
	delete(o.deleted, key)
	delete(o.missing, key)
}

// Created reports whether path was created within this overlay.
func (o *Overlay) Created(path string) bool {
	return o.created[o.Resolve(path).String()]
}

// DeleteFile marks path, and everything beneath it, deleted.
func (o *Overlay) DeleteFile(path string) {
	p := o.Resolve(path)
	key := p.String()
	o.deleted[key] = true
	delete(o.content, key)
	delete(o.created, key)
	delete(o.folders, key)
	for k := range o.content {
		if codeshell.ParsePath(k).IsDescendant(p) {
			delete(o.content, k)
		}
	}
	for _, m := range []map[string]bool{o.created, o.folders} {
		for k := range m {
			if codeshell.ParsePath(k).IsDescendant(p) {
				delete(m, k)
			}
		}
	}
}

// RenameFile moves oldPath, and everything beneath it, to newPath. Later
// operations on oldPath or its descendants are redirected to newPath.
func (o *Overlay) RenameFile(oldPath, newPath string) error {
	from, to := o.Resolve(oldPath), o.Resolve(newPath)
	if len(from) == 0 || len(to) == 0 {
		return codeshell.Errorf(codeshell.ErrInvalidRange, "cannot rename the workspace root")
	}
	if to.IsDescendant(from) {
		return codeshell.Errorf(codeshell.ErrInvalidRange, "cannot move %s into itself", from)
	}
	if from.Equal(to) {
		return nil
	}

	moveKeys(o.content, from, to)
	moveKeys(o.created, from, to)
	moveKeys(o.folders, from, to)
	moveKeys(o.deleted, from, to)
	moveKeys(o.missing, from, to)

	o.deleted[from.String()] = true
	delete(o.deleted, to.String())
	o.renames = append(o.renames, rename{from: from, to: to})
	return nil
}

// moveKeys rebases every key of m under from onto to. Keys are collected
// first so a rebased key is never visited again.
func moveKeys[V any](m map[string]V, from, to codeshell.Path) {
	moved := make(map[string]V)
	for k, v := range m {
		if p, ok := codeshell.ParsePath(k).Rebase(from, to); ok {
			delete(m, k)
			moved[p.String()] = v
		}
	}
	for k, v := range moved {
		m[k] = v
	}
}

func (o *Overlay) hasContentBelow(p codeshell.Path) bool {
	for k := range o.content {
		if codeshell.ParsePath(k).IsDescendant(p) {
			return true
		}
	}
	return false
}

func hasKey(m map[string]string, k string) bool {
	_, ok := m[k]
	return ok
}
