// Package color prints diagnostics and batches to a terminal with ANSI
// colors using fatih/color.
package color

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/fwojciec/codeshell"
	"github.com/mattn/go-runewidth"
)

// Printer writes human-readable reports.
type Printer struct {
	out io.Writer

	header  *color.Color
	path    *color.Color
	err     *color.Color
	warn    *color.Color
	muted   *color.Color
	added   *color.Color
	deleted *color.Color
	hunk    *color.Color
	success *color.Color

	addedWord   *color.Color
	deletedWord *color.Color
	words       codeshell.WordDiffer
}

// Option configures a Printer.
type Option func(*Printer)

// WithWordDiff emphasizes the changed words of paired removed and added
// lines in diffs.
func WithWordDiff(d codeshell.WordDiffer) Option {
	return func(p *Printer) {
		p.words = d
	}
}

// NewPrinter creates a Printer writing to out. Colors follow the
// fatih/color detection of the terminal unless forced with enabled.
func NewPrinter(out io.Writer, enabled *bool, opts ...Option) *Printer {
	p := &Printer{
		out:     out,
		header:  color.New(color.FgBlue, color.Bold),
		path:    color.New(color.Bold),
		err:     color.New(color.FgRed, color.Bold),
		warn:    color.New(color.FgYellow, color.Bold),
		muted:   color.New(color.Faint),
		added:   color.New(color.FgGreen),
		deleted: color.New(color.FgRed),
		hunk:    color.New(color.FgCyan),
		success: color.New(color.FgGreen, color.Bold),

		addedWord:   color.New(color.FgGreen, color.Bold, color.Underline),
		deletedWord: color.New(color.FgRed, color.Bold, color.Underline),
	}
	for _, opt := range opts {
		opt(p)
	}
	if enabled != nil {
		for _, c := range []*color.Color{p.header, p.path, p.err, p.warn, p.muted, p.added, p.deleted, p.hunk, p.success, p.addedWord, p.deletedWord} {
			if *enabled {
				c.EnableColor()
			} else {
				c.DisableColor()
			}
		}
	}
	return p
}

// Diagnostics prints set in the compiler style
//
//	path:line:col: severity[code]: message
//
// followed by the offending source line and a caret when text is given.
func (p *Printer) Diagnostics(set *codeshell.DiagnosticSet, text string) {
	var lines []string
	if text != "" {
		lines = strings.Split(text, "\n")
	}
	for _, d := range set.Items {
		sev := p.warn
		if d.Severity == codeshell.SeverityError {
			sev = p.err
		}
		fmt.Fprintf(p.out, "%s %s %s\n",
			p.path.Sprintf("%s:%d:%d:", set.Path, d.Line, d.Col),
			sev.Sprintf("%s[%s]:", d.Severity, d.Code),
			d.Message)
		if d.Line >= 1 && d.Line <= len(lines) {
			src := strings.ReplaceAll(lines[d.Line-1], "\t", "    ")
			fmt.Fprintf(p.out, "  %s\n", src)
			fmt.Fprintf(p.out, "  %s%s\n", strings.Repeat(" ", caretColumn(lines[d.Line-1], d.Col)), sev.Sprint("^"))
		}
		if d.Suggestion != "" {
			fmt.Fprintf(p.out, "  %s\n", p.muted.Sprintf("help: %s", d.Suggestion))
		}
	}
	p.summary(set)
}

func (p *Printer) summary(set *codeshell.DiagnosticSet) {
	var parts []string
	if set.Errors > 0 {
		parts = append(parts, p.err.Sprint(plural(set.Errors, "error")))
	}
	if set.Warnings > 0 {
		parts = append(parts, p.warn.Sprint(plural(set.Warnings, "warning")))
	}
	switch {
	case set.Skipped:
		parts = append(parts, p.muted.Sprint("lexical analysis skipped"))
	case len(parts) == 0:
		parts = append(parts, p.success.Sprint("no problems"))
	}
	if set.Truncated {
		parts = append(parts, p.muted.Sprintf("showing first %d", len(set.Items)))
	}
	fmt.Fprintf(p.out, "%s: %s\n", set.Path, strings.Join(parts, ", "))
}

// caretColumn is the display offset of the 1-based rune column col,
// with tabs expanded to four spaces.
func caretColumn(line string, col int) int {
	w := 0
	i := 1
	for _, r := range line {
		if i >= col {
			break
		}
		if r == '\t' {
			w += 4
		} else {
			w += runewidth.RuneWidth(r)
		}
		i++
	}
	return w
}

// Batch prints the actions and rejected operations of b.
func (p *Printer) Batch(b *codeshell.Batch) {
	fmt.Fprintln(p.out, p.header.Sprintf("batch %s (%s)", b.ID, b.State))
	for i, a := range b.Actions {
		mark := p.hunk.Sprint("~")
		switch a.Type {
		case codeshell.ActionCreateFile:
			mark = p.added.Sprint("+")
		case codeshell.ActionDeleteFile:
			mark = p.deleted.Sprint("-")
		case codeshell.ActionRenameFile:
			mark = p.hunk.Sprint(">")
		}
		line := fmt.Sprintf("%3d. %s %s", i+1, mark, a.Summary)
		if b.FailedAt >= 0 && i >= b.FailedAt {
			line = p.muted.Sprint(line)
			if i == b.FailedAt {
				line += " " + p.err.Sprint("failed")
			}
		}
		fmt.Fprintln(p.out, line)
	}
	for _, f := range b.Failures {
		fmt.Fprintf(p.out, "  %s op %d %s %s: %s\n",
			p.err.Sprint("✗"), f.Index+1, f.Op.Type, f.Op.Path, codeshell.ErrorMessage(f.Err))
	}
	if len(b.Actions) == 0 {
		fmt.Fprintln(p.out, p.warn.Sprint("nothing to apply"))
	}
}

// Diff prints the unified diffs of every action of b.
func (p *Printer) Diff(b *codeshell.Batch) {
	for _, a := range b.Actions {
		if a.Diff == "" {
			continue
		}
		lines := strings.Split(strings.TrimSuffix(a.Diff, "\n"), "\n")
		for i := 0; i < len(lines); i++ {
			line := lines[i]
			switch {
			case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
				fmt.Fprintln(p.out, p.path.Sprint(line))
			case strings.HasPrefix(line, "@@"):
				fmt.Fprintln(p.out, p.hunk.Sprint(line))
			case strings.HasPrefix(line, "-"):
				if n := p.pairedRun(lines[i:]); n > 0 {
					p.wordDiff(lines[i:i+n], lines[i+n:i+2*n])
					i += 2*n - 1
					continue
				}
				fmt.Fprintln(p.out, p.deleted.Sprint(line))
			case strings.HasPrefix(line, "+"):
				fmt.Fprintln(p.out, p.added.Sprint(line))
			default:
				fmt.Fprintln(p.out, line)
			}
		}
	}
}

// pairedRun returns the length of the run of removed lines at the start
// of lines when it is followed by as many added lines, or 0.
func (p *Printer) pairedRun(lines []string) int {
	if p.words == nil {
		return 0
	}
	n := 0
	for n < len(lines) && strings.HasPrefix(lines[n], "-") {
		n++
	}
	m := 0
	for n+m < len(lines) && strings.HasPrefix(lines[n+m], "+") {
		m++
	}
	if m != n {
		return 0
	}
	return n
}

func (p *Printer) wordDiff(removed, added []string) {
	oldSegs := make([][]codeshell.Segment, len(removed))
	newSegs := make([][]codeshell.Segment, len(added))
	for i := range removed {
		oldSegs[i], newSegs[i] = p.words.Diff(removed[i][1:], added[i][1:])
	}
	for _, segs := range oldSegs {
		p.segments("-", segs, p.deleted, p.deletedWord)
	}
	for _, segs := range newSegs {
		p.segments("+", segs, p.added, p.addedWord)
	}
}

func (p *Printer) segments(prefix string, segs []codeshell.Segment, base, emph *color.Color) {
	var sb strings.Builder
	sb.WriteString(base.Sprint(prefix))
	for _, s := range segs {
		if s.Changed {
			sb.WriteString(emph.Sprint(s.Text))
		} else {
			sb.WriteString(base.Sprint(s.Text))
		}
	}
	fmt.Fprintln(p.out, sb.String())
}

// Result prints the outcome of a commit.
func (p *Printer) Result(res codeshell.CommitResult, err error) {
	switch {
	case err == nil:
		fmt.Fprintln(p.out, p.success.Sprintf("applied %s", plural(res.Applied, "action")))
	case res.FailedAt >= 0:
		msg := fmt.Sprintf("stopped at action %d after %s: %v", res.FailedAt+1, plural(res.Applied, "action"), err)
		if res.RolledBack {
			msg += " (rolled back)"
		}
		fmt.Fprintln(p.out, p.err.Sprint(msg))
	default:
		fmt.Fprintln(p.out, p.warn.Sprintf("applied %s with warnings: %v", plural(res.Applied, "action"), err))
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
