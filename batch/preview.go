package batch

import (
	"strings"

	"github.com/aymanbagabas/go-udiff"
	"github.com/mattn/go-runewidth"
)

const (
	previewLines = 7
	previewWidth = 100
)

// preview returns up to previewLines lines of text around line, each
// truncated to previewWidth display cells.
func preview(text string, line int) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	start := max(0, line-3)
	if start > len(lines)-1 {
		start = max(0, len(lines)-previewLines)
	}
	end := min(len(lines), start+previewLines)

	out := make([]string, 0, end-start)
	for _, l := range lines[start:end] {
		out = append(out, runewidth.Truncate(l, previewWidth, "…"))
	}
	return out
}

func unifiedDiff(oldPath, newPath, before, after string) string {
	return udiff.Unified("a/"+oldPath, "b/"+newPath, before, after)
}

// diffLines counts the lines a change touches: the larger of the removed
// and added line counts of its unified diff.
func diffLines(before, after string) int {
	var added, removed int
	for _, l := range strings.Split(udiff.Unified("a", "b", before, after), "\n") {
		switch {
		case strings.HasPrefix(l, "+++"), strings.HasPrefix(l, "---"):
		case strings.HasPrefix(l, "+"):
			added++
		case strings.HasPrefix(l, "-"):
			removed++
		}
	}
	return max(added, removed)
}

// firstDifference returns the byte offset of the first byte where a and b
// differ.
func firstDifference(a, b string) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}
