// Package markdown extracts file operations from fenced code blocks in
// markdown text using goldmark.
package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/fwojciec/codeshell"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Compile-time interface verification.
var _ codeshell.OperationExtractor = (*Extractor)(nil)

// Extractor turns an assistant reply into operations. A fenced block whose
// info string or preceding paragraph names a path becomes a write of that
// path. A block tagged diff or patch becomes one patch per file it touches.
type Extractor struct {
	targets func(diff string) ([]string, error)
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithDiffTargets sets the function that lists the files a diff touches.
// By default the +++ header lines are read.
func WithDiffTargets(fn func(diff string) ([]string, error)) Option {
	return func(e *Extractor) {
		e.targets = fn
	}
}

// NewExtractor creates a new Extractor.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{targets: headerTargets}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// block is a fenced code block with the paragraph right before it.
type block struct {
	hint    string
	info    string
	content string
}

// Extract implements codeshell.OperationExtractor. Blocks naming no path
// are ignored.
func (e *Extractor) Extract(s string) ([]codeshell.Operation, error) {
	blocks, err := codeBlocks([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("parse markdown: %w", err)
	}

	var ops []codeshell.Operation
	for _, b := range blocks {
		lang, infoPath := splitInfo(b.info)
		if lang == "diff" || lang == "patch" {
			paths, err := e.targets(b.content)
			if err != nil {
				return nil, err
			}
			for _, p := range paths {
				ops = append(ops, codeshell.Operation{Type: codeshell.OpPatch, Path: p, Diff: b.content})
			}
			continue
		}
		p := infoPath
		if p == "" {
			p = pathFromHint(b.hint)
		}
		if p == "" {
			continue
		}
		ops = append(ops, codeshell.Operation{
			Type:     codeshell.OpWrite,
			Path:     p,
			Selector: codeshell.FullSelector(),
			Content:  b.content,
		})
	}
	return ops, nil
}

func codeBlocks(source []byte) ([]block, error) {
	var blocks []block
	root := goldmark.DefaultParser().Parse(text.NewReader(source))

	err := ast.Walk(root, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fenced, ok := node.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		var b block
		if fenced.Info != nil {
			b.info = string(fenced.Info.Segment.Value(source))
		}
		var content bytes.Buffer
		lines := fenced.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			content.Write(line.Value(source))
		}
		b.content = content.String()

		if p, ok := fenced.PreviousSibling().(*ast.Paragraph); ok {
			b.hint = paragraphText(p, source)
		}
		blocks = append(blocks, b)
		return ast.WalkSkipChildren, nil
	})
	return blocks, err
}

// paragraphText returns the raw source lines of p, keeping the backticks
// that inline code spans drop.
func paragraphText(p *ast.Paragraph, source []byte) string {
	var sb strings.Builder
	lines := p.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		sb.WriteString(strings.TrimSpace(string(line.Value(source))))
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}

// splitInfo splits an info string such as "go cmd/main.go" into the
// language and an optional path.
func splitInfo(info string) (lang, path string) {
	fields := strings.Fields(info)
	if len(fields) == 0 {
		return "", ""
	}
	if l, p, ok := strings.Cut(fields[0], ":"); ok && looksLikePath(p) {
		return strings.ToLower(l), codeshell.CleanPath(p)
	}
	lang = strings.ToLower(fields[0])
	for _, f := range fields[1:] {
		if v, ok := strings.CutPrefix(f, "title="); ok {
			f = strings.Trim(v, `"'`)
		}
		if looksLikePath(f) {
			return lang, codeshell.CleanPath(f)
		}
	}
	return lang, ""
}

// pathFromHint picks the last path-like word of the paragraph before a
// block, preferring one set in backticks.
func pathFromHint(hint string) string {
	if hint == "" {
		return ""
	}
	last := strings.TrimSpace(hint[strings.LastIndex(hint, "\n")+1:])
	if parts := strings.Split(last, "`"); len(parts) >= 3 {
		for i := len(parts) - 2; i > 0; i -= 2 {
			if looksLikePath(parts[i]) {
				return codeshell.CleanPath(parts[i])
			}
		}
	}
	words := strings.Fields(last)
	for i := len(words) - 1; i >= 0; i-- {
		w := strings.Trim(words[i], "*_:,;()\"'")
		if looksLikePath(w) {
			return codeshell.CleanPath(w)
		}
	}
	return ""
}

func looksLikePath(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t<>|") || strings.Contains(s, "://") {
		return false
	}
	base := s[strings.LastIndex(s, "/")+1:]
	dot := strings.LastIndex(base, ".")
	return dot > 0 && dot < len(base)-1 || strings.Contains(s, "/") && base != ""
}

// headerTargets lists the new-file names from the +++ lines of a diff.
func headerTargets(diff string) ([]string, error) {
	var paths []string
	for _, line := range strings.Split(diff, "\n") {
		name, ok := strings.CutPrefix(line, "+++ ")
		if !ok {
			continue
		}
		name, _, _ = strings.Cut(name, "\t")
		name = strings.TrimSpace(name)
		if name == "/dev/null" {
			continue
		}
		name = strings.TrimPrefix(name, "b/")
		paths = append(paths, codeshell.CleanPath(name))
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("diff has no file headers")
	}
	return paths, nil
}
