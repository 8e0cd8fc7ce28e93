package codeshell

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// SelectorKind tags the variant of a Selector.
type SelectorKind int

// Selector kinds.
const (
	SelectFull   SelectorKind = iota // entire file
	SelectLines                      // inclusive 1-indexed line range
	SelectSearch                     // Nth literal occurrence of a pattern
)

func (k SelectorKind) String() string {
	switch k {
	case SelectLines:
		return "line"
	case SelectSearch:
		return "search"
	default:
		return "full"
	}
}

// Selector symbolically describes the span of text an edit replaces.
// The zero value selects the full file.
type Selector struct {
	Kind       SelectorKind
	StartLine  int    // SelectLines
	EndLine    int    // SelectLines
	Pattern    string // SelectSearch
	Occurrence int    // SelectSearch; 0 means 1
}

// FullSelector selects the entire file.
func FullSelector() Selector {
	return Selector{Kind: SelectFull}
}

// LineSelector selects lines start through end, inclusive.
func LineSelector(start, end int) Selector {
	return Selector{Kind: SelectLines, StartLine: start, EndLine: end}
}

// SearchSelector selects the k-th non-overlapping occurrence of pattern.
func SearchSelector(pattern string, k int) Selector {
	return Selector{Kind: SelectSearch, Pattern: pattern, Occurrence: k}
}

type selectorJSON struct {
	Type       string `json:"type"`
	StartLine  int    `json:"startLine,omitempty"`
	EndLine    int    `json:"endLine,omitempty"`
	Pattern    string `json:"pattern,omitempty"`
	Occurrence int    `json:"occurrence,omitempty"`
}

// MarshalJSON encodes the selector in its object form.
func (s Selector) MarshalJSON() ([]byte, error) {
	v := selectorJSON{Type: s.Kind.String()}
	switch s.Kind {
	case SelectLines:
		v.StartLine, v.EndLine = s.StartLine, s.EndLine
	case SelectSearch:
		v.Pattern, v.Occurrence = s.Pattern, s.Occurrence
	}
	return json.Marshal(v)
}

// UnmarshalJSON decodes the selector shapes accepted at the boundary:
// null, the string shorthands "full", "N" and "N-M", or the object form.
func (s *Selector) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = FullSelector()
		return nil
	}
	if b[0] == '"' {
		var short string
		if err := json.Unmarshal(b, &short); err != nil {
			return err
		}
		sel, err := ParseSelector(short)
		if err != nil {
			return err
		}
		*s = sel
		return nil
	}

	var v selectorJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return WrapError(ErrInvalidSelector, err, "malformed selector")
	}
	switch strings.ToLower(v.Type) {
	case "", "full":
		*s = FullSelector()
	case "line", "lines", "range":
		*s = LineSelector(v.StartLine, v.EndLine)
	case "search":
		*s = SearchSelector(v.Pattern, v.Occurrence)
	default:
		return Errorf(ErrInvalidSelector, "unknown selector type %q", v.Type)
	}
	return nil
}

// ParseSelector decodes the string shorthand of a selector.
func ParseSelector(s string) (Selector, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "full") {
		return FullSelector(), nil
	}
	startStr, endStr, isRange := strings.Cut(s, "-")
	start, err := strconv.Atoi(strings.TrimSpace(startStr))
	if err != nil {
		return Selector{}, Errorf(ErrInvalidSelector, "cannot parse selector %q", s)
	}
	end := start
	if isRange {
		if end, err = strconv.Atoi(strings.TrimSpace(endStr)); err != nil {
			return Selector{}, Errorf(ErrInvalidSelector, "cannot parse selector %q", s)
		}
	}
	return LineSelector(start, end), nil
}

// ResolvedRange is a concrete half-open byte span [Start, End) of a text.
type ResolvedRange struct {
	Start int          `json:"start"`
	End   int          `json:"end"`
	Kind  SelectorKind `json:"kind"`
	Label string       `json:"label"` // for preview UI only
}

// Resolve turns sel into a byte span of text. It never returns a partial
// result: failures are *Error values with ErrInvalidSelector,
// ErrInvalidRange or ErrPatternNotFound.
func Resolve(text string, sel Selector) (ResolvedRange, error) {
	switch sel.Kind {
	case SelectFull:
		return ResolvedRange{Start: 0, End: len(text), Kind: SelectFull, Label: "entire file"}, nil
	case SelectLines:
		return resolveLines(text, sel.StartLine, sel.EndLine)
	case SelectSearch:
		return resolveSearch(text, sel.Pattern, sel.Occurrence)
	default:
		return ResolvedRange{}, Errorf(ErrInvalidSelector, "unknown selector kind %d", sel.Kind)
	}
}

func resolveLines(text string, start, end int) (ResolvedRange, error) {
	n := LineCount(text)
	if start < 1 || start > end || end > n {
		return ResolvedRange{}, Errorf(ErrInvalidRange, "lines %d-%d out of range (file has %d lines)", start, end, n)
	}
	label := fmt.Sprintf("lines %d-%d", start, end)
	if start == end {
		label = fmt.Sprintf("line %d", start)
	}
	return ResolvedRange{
		Start: LineOffset(text, start),
		End:   LineOffset(text, end+1),
		Kind:  SelectLines,
		Label: label,
	}, nil
}

func resolveSearch(text, pattern string, k int) (ResolvedRange, error) {
	if pattern == "" {
		return ResolvedRange{}, Errorf(ErrInvalidSelector, "empty search pattern")
	}
	if k < 0 {
		return ResolvedRange{}, Errorf(ErrInvalidSelector, "occurrence must be at least 1, got %d", k)
	}
	if k == 0 {
		k = 1
	}
	off := 0
	for found := 1; ; found++ {
		i := strings.Index(text[off:], pattern)
		if i < 0 {
			return ResolvedRange{}, Errorf(ErrPatternNotFound, "occurrence %d of %q not found (%d found)", k, pattern, found-1)
		}
		start := off + i
		if found == k {
			return ResolvedRange{
				Start: start,
				End:   start + len(pattern),
				Kind:  SelectSearch,
				Label: fmt.Sprintf("occurrence %d of %q", k, pattern),
			}, nil
		}
		off = start + len(pattern)
	}
}

// ReplaceRange splices content into text at r. When a line range ending
// in a newline is replaced by non-empty content without one, a newline is
// appended so the following line keeps its own line.
func ReplaceRange(text string, r ResolvedRange, content string) string {
	if r.Kind == SelectLines && r.End > r.Start && text[r.End-1] == '\n' &&
		content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return text[:r.Start] + content + text[r.End:]
}
