// Package gcc runs GCC-compatible compilers in syntax-only mode and
// reports their output as diagnostics.
package gcc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/fwojciec/codeshell"
)

// Compile-time interface verification.
var _ codeshell.Checker = (*Checker)(nil)

// Checker implements codeshell.Checker by running a compiler with
// -fsyntax-only on files under root.
type Checker struct {
	root   string
	cc     string // C compiler
	cxx    string // C++ compiler
	flags  []string
	detect codeshell.LanguageDetector
}

// Option configures a Checker.
type Option func(*Checker)

// WithCompilers sets the C and C++ compiler commands, "gcc" and "g++" by default.
func WithCompilers(cc, cxx string) Option {
	return func(c *Checker) {
		c.cc, c.cxx = cc, cxx
	}
}

// WithFlags adds compiler flags such as -Wall or include paths.
func WithFlags(flags ...string) Option {
	return func(c *Checker) {
		c.flags = append(c.flags, flags...)
	}
}

// NewChecker creates a Checker for files under root.
func NewChecker(root string, detect codeshell.LanguageDetector, opts ...Option) *Checker {
	c := &Checker{root: root, cc: "gcc", cxx: "g++", detect: detect}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Producer implements codeshell.Checker.
func (c *Checker) Producer() string {
	return "gcc"
}

// Check compiles path and returns the diagnostics reported against it.
// Files that are neither C nor C++ yield no diagnostics.
func (c *Checker) Check(ctx context.Context, path string) ([]codeshell.Diagnostic, error) {
	var bin, lang string
	switch c.detect.DetectFromPath(path) {
	case codeshell.LangC:
		bin, lang = c.cc, "c"
	case codeshell.LangCPP:
		bin, lang = c.cxx, "c++"
	default:
		return nil, nil
	}

	rel := codeshell.CleanPath(path)
	args := append([]string{"-fsyntax-only", "-fdiagnostics-color=never", "-fno-diagnostics-show-caret", "-x", lang}, c.flags...)
	args = append(args, filepath.FromSlash(rel))
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = c.root
	out, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("run %s: %w", bin, err)
		}
		// A non-zero exit only means errors were reported.
	}
	return Parse(string(out), rel), nil
}

var lineRe = regexp.MustCompile(`^(.+?):(\d+):(?:(\d+):)? (fatal error|error|warning): (.*)$`)

var flagRe = regexp.MustCompile(` \[(-W[^\]]+|-f[^\]]+)\]$`)

// Parse extracts the diagnostics for path from compiler output. Notes and
// messages about other files, such as included headers, are dropped.
func Parse(output, path string) []codeshell.Diagnostic {
	want := codeshell.CleanPath(path)
	var ds []codeshell.Diagnostic
	sc := bufio.NewScanner(strings.NewReader(output))
	for sc.Scan() {
		m := lineRe.FindStringSubmatch(sc.Text())
		if m == nil || codeshell.CleanPath(filepath.ToSlash(m[1])) != want {
			continue
		}
		line, _ := strconv.Atoi(m[2])
		col := 1
		if m[3] != "" {
			col, _ = strconv.Atoi(m[3])
		}
		d := codeshell.Diagnostic{
			Line:     line,
			Col:      col,
			Severity: codeshell.SeverityError,
			Code:     "gcc",
			Message:  m[5],
			Kind:     codeshell.KindCompiler,
		}
		if m[4] == "warning" {
			d.Severity = codeshell.SeverityWarning
		}
		if f := flagRe.FindStringSubmatch(d.Message); f != nil {
			d.Code = "gcc:" + strings.TrimPrefix(f[1], "-")
			d.Message = strings.TrimSuffix(d.Message, f[0])
		}
		ds = append(ds, d)
	}
	codeshell.SortDiagnostics(ds)
	return ds
}
