package diagnostics

import (
	"fmt"
	"sort"

	"github.com/fwojciec/codeshell"
)

// CodeAnalyzerFailure is reported when the local analyzer panics.
const CodeAnalyzerFailure = "analyzer-failure"

// Model owns the per-file diagnostic sets of a workspace. Every update
// recomputes a file's set from scratch. A Model is not safe for
// concurrent use.
type Model struct {
	table         *Table
	analyzer      codeshell.Analyzer
	detector      codeshell.LanguageDetector
	maxItems      int
	authoritative map[codeshell.Language]bool

	texts map[string]string
	sets  map[string]*codeshell.DiagnosticSet
}

// Option configures a Model.
type Option func(*Model)

// WithMaxItems caps the number of diagnostics kept per file.
func WithMaxItems(n int) Option {
	return func(m *Model) {
		if n > 0 {
			m.maxItems = n
		}
	}
}

// WithAuthoritative sets the languages whose external diagnostics, when
// present, replace local analysis instead of adding to it.
func WithAuthoritative(langs ...codeshell.Language) Option {
	return func(m *Model) {
		m.authoritative = make(map[codeshell.Language]bool, len(langs))
		for _, l := range langs {
			m.authoritative[l] = true
		}
	}
}

// WithTable shares an existing external diagnostics table.
func WithTable(t *Table) Option {
	return func(m *Model) {
		m.table = t
	}
}

// NewModel creates a Model analyzing buffers with analyzer and detecting
// their language with detector.
func NewModel(analyzer codeshell.Analyzer, detector codeshell.LanguageDetector, opts ...Option) *Model {
	m := &Model{
		table:    NewTable(),
		analyzer: analyzer,
		detector: detector,
		maxItems: codeshell.DefaultMaxDiagnostics,
		authoritative: map[codeshell.Language]bool{
			codeshell.LangC:   true,
			codeshell.LangCPP: true,
		},
		texts: make(map[string]string),
		sets:  make(map[string]*codeshell.DiagnosticSet),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Table returns the external diagnostics table.
func (m *Model) Table() *Table {
	return m.table
}

// Update records text as the current content of path and recomputes its
// diagnostic set.
func (m *Model) Update(path, text string) *codeshell.DiagnosticSet {
	path = codeshell.CleanPath(path)
	m.texts[path] = text
	return m.recompute(path)
}

// Publish stores diagnostics from producer for path and recomputes the
// set against the last text seen for it. An empty slice retracts.
func (m *Model) Publish(producer, path string, ds []codeshell.Diagnostic) *codeshell.DiagnosticSet {
	path = codeshell.CleanPath(path)
	m.table.Publish(producer, path, ds)
	return m.recompute(path)
}

// Set returns the last computed set for path.
func (m *Model) Set(path string) (*codeshell.DiagnosticSet, bool) {
	s, ok := m.sets[codeshell.CleanPath(path)]
	return s, ok
}

// Text returns the last text seen for path.
func (m *Model) Text(path string) (string, bool) {
	t, ok := m.texts[codeshell.CleanPath(path)]
	return t, ok
}

// Paths lists the files whose text the model tracks, sorted.
func (m *Model) Paths() []string {
	paths := make([]string, 0, len(m.texts))
	for p := range m.texts {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Close forgets path: its text, its set and every external diagnostic.
func (m *Model) Close(path string) {
	path = codeshell.CleanPath(path)
	delete(m.texts, path)
	delete(m.sets, path)
	m.table.Clear(path)
}

// Rename moves the state of oldPath to newPath.
func (m *Model) Rename(oldPath, newPath string) {
	oldPath, newPath = codeshell.CleanPath(oldPath), codeshell.CleanPath(newPath)
	text, ok := m.texts[oldPath]
	m.Close(oldPath)
	if ok {
		m.Update(newPath, text)
	}
}

func (m *Model) recompute(path string) *codeshell.DiagnosticSet {
	lang := m.detector.DetectFromPath(path)
	set := &codeshell.DiagnosticSet{Path: path, Language: lang}

	var local []codeshell.Diagnostic
	if text, ok := m.texts[path]; ok {
		var meta codeshell.AnalysisMeta
		local, meta = m.analyze(text, lang)
		set.Skipped = meta.Skipped
	}
	external := m.table.ForFile(path)

	var items []codeshell.Diagnostic
	if m.authoritative[lang] && len(external) > 0 {
		items = external
	} else {
		items = make([]codeshell.Diagnostic, 0, len(local)+len(external))
		items = append(items, local...)
		items = append(items, external...)
		items = codeshell.DedupeDiagnostics(items)
		codeshell.SortDiagnostics(items)
	}

	for _, d := range items {
		switch d.Severity {
		case codeshell.SeverityError:
			set.Errors++
		case codeshell.SeverityWarning:
			set.Warnings++
		}
	}
	if len(items) > m.maxItems {
		items = items[:m.maxItems]
		set.Truncated = true
	}
	set.Items = items
	set.Lines = codeshell.BuildLineIndex(items)

	m.sets[path] = set
	return set
}

// analyze runs the local analyzer, converting a panic into one synthetic
// warning so a faulty analyzer never blanks the other diagnostics.
func (m *Model) analyze(text string, lang codeshell.Language) (ds []codeshell.Diagnostic, meta codeshell.AnalysisMeta) {
	defer func() {
		if r := recover(); r != nil {
			ds = []codeshell.Diagnostic{{
				Line:     1,
				Col:      1,
				Severity: codeshell.SeverityWarning,
				Code:     CodeAnalyzerFailure,
				Message:  fmt.Sprintf("analyzer failed: %v", r),
				Kind:     codeshell.KindHeuristic,
			}}
			meta = codeshell.AnalysisMeta{Language: lang, Supported: true}
		}
	}()
	return m.analyzer.Analyze(text, lang)
}
