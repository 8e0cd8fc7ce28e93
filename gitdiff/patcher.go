// Package gitdiff applies unified diffs using bluekeyes/go-gitdiff.
package gitdiff

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
	"github.com/fwojciec/codeshell"
)

// Compile-time interface verification.
var _ codeshell.Patcher = (*Patcher)(nil)

// ErrNoFile is returned when a diff holds no changes for the patched path.
var ErrNoFile = errors.New("diff does not touch file")

// Patcher applies unified diffs to file content.
type Patcher struct{}

// NewPatcher creates a new Patcher.
func NewPatcher() *Patcher {
	return &Patcher{}
}

// Patch applies the part of diff that targets path to before. A diff
// touching a single file is applied whatever name it carries.
func (p *Patcher) Patch(path, before, diff string) (string, error) {
	files, _, err := gitdiff.Parse(strings.NewReader(diff))
	if err != nil {
		return "", fmt.Errorf("parse diff: %w", err)
	}
	f := match(files, path)
	if f == nil {
		return "", fmt.Errorf("%s: %w", path, ErrNoFile)
	}
	if f.IsBinary {
		return "", fmt.Errorf("%s: binary patches are not supported", path)
	}

	var out bytes.Buffer
	if err := gitdiff.Apply(&out, strings.NewReader(before), f); err != nil {
		return "", fmt.Errorf("apply to %s: %w", path, err)
	}
	return out.String(), nil
}

// Targets lists the paths a diff modifies, creates or renames to, in the
// order they appear.
func Targets(diff string) ([]string, error) {
	files, _, err := gitdiff.Parse(strings.NewReader(diff))
	if err != nil {
		return nil, fmt.Errorf("parse diff: %w", err)
	}
	paths := make([]string, 0, len(files))
	for _, f := range files {
		if name := fileName(f); name != "" {
			paths = append(paths, name)
		}
	}
	return paths, nil
}

func match(files []*gitdiff.File, path string) *gitdiff.File {
	if len(files) == 1 {
		return files[0]
	}
	want := codeshell.CleanPath(path)
	for _, f := range files {
		if fileName(f) == want {
			return f
		}
	}
	return nil
}

// fileName returns the cleaned name f applies to, without the a/ and b/
// prefixes of traditional headers.
func fileName(f *gitdiff.File) string {
	name := f.NewName
	if f.IsDelete || name == "" {
		name = f.OldName
	}
	name = strings.TrimPrefix(name, "a/")
	name = strings.TrimPrefix(name, "b/")
	return codeshell.CleanPath(name)
}
