// Package diagnostics merges local analyzer output with diagnostics pushed
// by external producers into one ordered, capped set per file.
package diagnostics

import (
	"sort"

	"github.com/fwojciec/codeshell"
)

// Table holds externally produced diagnostics keyed by file and producer.
// Producers publish and retract independently of each other.
// A Table is not safe for concurrent use.
type Table struct {
	files map[string]map[string][]codeshell.Diagnostic
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{files: make(map[string]map[string][]codeshell.Diagnostic)}
}

// Publish replaces the diagnostics producer reported for path.
// An empty slice retracts them.
func (t *Table) Publish(producer, path string, ds []codeshell.Diagnostic) {
	if len(ds) == 0 {
		t.Retract(producer, path)
		return
	}
	path = codeshell.CleanPath(path)
	byProducer, ok := t.files[path]
	if !ok {
		byProducer = make(map[string][]codeshell.Diagnostic)
		t.files[path] = byProducer
	}
	items := codeshell.DedupeDiagnostics(ds)
	codeshell.SortDiagnostics(items)
	byProducer[producer] = items
}

// Retract drops the diagnostics producer reported for path.
func (t *Table) Retract(producer, path string) {
	path = codeshell.CleanPath(path)
	byProducer, ok := t.files[path]
	if !ok {
		return
	}
	delete(byProducer, producer)
	if len(byProducer) == 0 {
		delete(t.files, path)
	}
}

// Clear drops every producer's diagnostics for path.
func (t *Table) Clear(path string) {
	delete(t.files, codeshell.CleanPath(path))
}

// Producers returns the producer keys with diagnostics for path, sorted.
func (t *Table) Producers(path string) []string {
	byProducer := t.files[codeshell.CleanPath(path)]
	keys := make([]string, 0, len(byProducer))
	for k := range byProducer {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ForFile flattens the diagnostics of every producer for path, dropping
// entries reported by more than one producer.
func (t *Table) ForFile(path string) []codeshell.Diagnostic {
	byProducer := t.files[codeshell.CleanPath(path)]
	if len(byProducer) == 0 {
		return nil
	}
	var all []codeshell.Diagnostic
	for _, k := range t.Producers(path) {
		all = append(all, byProducer[k]...)
	}
	all = codeshell.DedupeDiagnostics(all)
	codeshell.SortDiagnostics(all)
	return all
}
