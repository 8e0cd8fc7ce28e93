package lexical

import (
	"github.com/fwojciec/codeshell"
)

// collector accumulates findings from every pass over one buffer,
// dropping repeats of the same (severity, line, col, code, message).
type collector struct {
	index *codeshell.LineIndex
	seen  map[codeshell.DiagnosticKey]struct{}
	items []codeshell.Diagnostic
}

func newCollector(text string) *collector {
	return &collector{
		index: codeshell.NewLineIndex(text),
		seen:  make(map[codeshell.DiagnosticKey]struct{}),
	}
}

// add records a finding at a byte offset of the original text.
func (c *collector) add(offset int, sev codeshell.Severity, code, msg, suggestion string) {
	line, col := c.index.Position(offset)
	c.addAt(line, col, sev, code, msg, suggestion)
}

func (c *collector) addAt(line, col int, sev codeshell.Severity, code, msg, suggestion string) {
	d := codeshell.Diagnostic{
		Line:       line,
		Col:        col,
		Severity:   sev,
		Code:       code,
		Message:    msg,
		Suggestion: suggestion,
		Kind:       codeshell.KindHeuristic,
	}
	k := d.Key()
	if _, ok := c.seen[k]; ok {
		return
	}
	c.seen[k] = struct{}{}
	c.items = append(c.items, d)
}

func (c *collector) errorf(offset int, code, msg string) {
	c.add(offset, codeshell.SeverityError, code, msg, "")
}

func (c *collector) warn(offset int, code, msg, suggestion string) {
	c.add(offset, codeshell.SeverityWarning, code, msg, suggestion)
}

// diagnostics returns the collected findings in display order.
func (c *collector) diagnostics() []codeshell.Diagnostic {
	out := make([]codeshell.Diagnostic, len(c.items))
	copy(out, c.items)
	codeshell.SortDiagnostics(out)
	return out
}
