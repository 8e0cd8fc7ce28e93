package codeshell

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Severity is the importance of a diagnostic. Higher values rank first.
type Severity int

// Severity levels.
const (
	SeverityWarning Severity = iota + 1
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText encodes the severity as "error" or "warning".
func (s Severity) MarshalText() ([]byte, error) {
	switch s {
	case SeverityWarning, SeverityError:
		return []byte(s.String()), nil
	}
	return nil, fmt.Errorf("invalid severity %d", int(s))
}

// UnmarshalText decodes "error" or "warning".
func (s *Severity) UnmarshalText(b []byte) error {
	switch string(b) {
	case "error":
		*s = SeverityError
	case "warning":
		*s = SeverityWarning
	default:
		return fmt.Errorf("invalid severity %q", string(b))
	}
	return nil
}

// Kind separates heuristic findings from sound tool output, so callers
// never mistake a heuristic pass for an exhaustive one.
type Kind int

// Diagnostic kinds.
const (
	KindHeuristic Kind = iota // lexical analyzers; may miss problems
	KindCompiler              // external compiler or linter output
)

func (k Kind) String() string {
	if k == KindCompiler {
		return "compiler"
	}
	return "heuristic"
}

// MarshalJSON encodes the kind by name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind name. Unknown names decode as KindHeuristic.
func (k *Kind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "compiler" {
		*k = KindCompiler
	} else {
		*k = KindHeuristic
	}
	return nil
}

// Diagnostic is one structural issue found in a buffer.
type Diagnostic struct {
	Line       int      `json:"line"` // 1-based
	Col        int      `json:"col"`  // 1-based, in runes
	Severity   Severity `json:"severity"`
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
	Kind       Kind     `json:"kind"`
}

// DiagnosticKey is the identity of a diagnostic used for de-duplication.
type DiagnosticKey struct {
	Severity Severity
	Line     int
	Col      int
	Code     string
	Message  string
}

// Key returns the de-duplication identity of d.
func (d Diagnostic) Key() DiagnosticKey {
	return DiagnosticKey{
		Severity: d.Severity,
		Line:     d.Line,
		Col:      d.Col,
		Code:     d.Code,
		Message:  d.Message,
	}
}

// LineMark is the gutter entry for a line: the highest-severity diagnostic on it.
type LineMark struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Index    int      `json:"index"` // position in DiagnosticSet.Items
}

// DiagnosticSet is the merged, ordered and capped diagnostics of one file.
// It is recomputed wholesale on every edit, never patched.
type DiagnosticSet struct {
	Path      string           `json:"path"`
	Language  Language         `json:"language"`
	Items     []Diagnostic     `json:"items"`
	Errors    int              `json:"errors"`    // before truncation
	Warnings  int              `json:"warnings"`  // before truncation
	Truncated bool             `json:"truncated"` // Items was capped
	Skipped   bool             `json:"skipped"`   // no local analysis ran
	Lines     map[int]LineMark `json:"lines"`
}

// SortDiagnostics orders diagnostics by line, column, errors before
// warnings, then code and message so the order is deterministic.
func SortDiagnostics(ds []Diagnostic) {
	sort.SliceStable(ds, func(i, j int) bool {
		a, b := ds[i], ds[j]
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Col != b.Col {
			return a.Col < b.Col
		}
		if a.Severity != b.Severity {
			return a.Severity > b.Severity
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.Message < b.Message
	})
}

// DedupeDiagnostics returns ds without repeated identities, keeping the
// first occurrence. The input slice is not modified.
func DedupeDiagnostics(ds []Diagnostic) []Diagnostic {
	seen := make(map[DiagnosticKey]struct{}, len(ds))
	out := make([]Diagnostic, 0, len(ds))
	for _, d := range ds {
		k := d.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, d)
	}
	return out
}

// BuildLineIndex maps each line to its highest-severity diagnostic.
// On ties the earliest item wins.
func BuildLineIndex(items []Diagnostic) map[int]LineMark {
	lines := make(map[int]LineMark, len(items))
	for i, d := range items {
		if m, ok := lines[d.Line]; ok && m.Severity >= d.Severity {
			continue
		}
		lines[d.Line] = LineMark{Severity: d.Severity, Message: d.Message, Index: i}
	}
	return lines
}
