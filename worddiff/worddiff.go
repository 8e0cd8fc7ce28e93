// Package worddiff marks the changed words between a removed and an added
// line so previews can emphasize them.
package worddiff

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/fwojciec/codeshell"
)

// Compile-time interface verification.
var _ codeshell.WordDiffer = (*Differ)(nil)

// Below this share of common tokens lines are shown as full replacements.
const similarityThreshold = 0.4

// maxTokens bounds the quadratic LCS table. Longer lines are replaced whole.
const maxTokens = 512

// Differ computes token-level diffs of single lines.
type Differ struct{}

// NewDiffer creates a Differ.
func NewDiffer() *Differ {
	return &Differ{}
}

// Tokenize splits s into words, runs of space, runs of operator
// characters and single other runes. Concatenating the tokens yields s.
func Tokenize(s string) []string {
	var tokens []string
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		class := classOf(r)
		j := i + size
		if class != classOther {
			for j < len(s) {
				next, n := utf8.DecodeRuneInString(s[j:])
				if classOf(next) != class {
					break
				}
				j += n
			}
		}
		tokens = append(tokens, s[i:j])
		i = j
	}
	return tokens
}

type tokenClass int

const (
	classOther tokenClass = iota
	classWord
	classSpace
	classOperator
)

func classOf(r rune) tokenClass {
	switch {
	case r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r):
		return classWord
	case r == ' ' || r == '\t':
		return classSpace
	case strings.ContainsRune("+-*/=<>!&|^%:", r):
		return classOperator
	}
	return classOther
}

// Diff returns the segments of old and new, marking the tokens that are
// not part of their longest common subsequence.
func (d *Differ) Diff(old, new string) (oldSegs, newSegs []codeshell.Segment) {
	switch {
	case old == new:
		if old == "" {
			return nil, nil
		}
		seg := []codeshell.Segment{{Text: old}}
		return seg, seg
	case old == "":
		return nil, []codeshell.Segment{{Text: new, Changed: true}}
	case new == "":
		return []codeshell.Segment{{Text: old, Changed: true}}, nil
	}

	a, b := Tokenize(old), Tokenize(new)
	if len(a) > maxTokens || len(b) > maxTokens || !similar(a, b) {
		return []codeshell.Segment{{Text: old, Changed: true}}, []codeshell.Segment{{Text: new, Changed: true}}
	}
	keepA, keepB := lcs(a, b)
	return segments(a, keepA), segments(b, keepB)
}

// similar reports whether the multiset overlap of a and b reaches the
// similarity threshold.
func similar(a, b []string) bool {
	counts := make(map[string]int, len(a))
	for _, t := range a {
		counts[t]++
	}
	common := 0
	for _, t := range b {
		if counts[t] > 0 {
			counts[t]--
			common++
		}
	}
	return float64(2*common)/float64(len(a)+len(b)) >= similarityThreshold
}

// lcs marks the tokens of a and b that belong to a longest common
// subsequence.
func lcs(a, b []string) (keepA, keepB []bool) {
	m, n := len(a), len(b)
	stride := n + 1
	table := make([]int, (m+1)*stride)
	for i := m - 1; i >= 0; i-- {
		for j := n - 1; j >= 0; j-- {
			switch {
			case a[i] == b[j]:
				table[i*stride+j] = table[(i+1)*stride+j+1] + 1
			default:
				table[i*stride+j] = max(table[(i+1)*stride+j], table[i*stride+j+1])
			}
		}
	}

	keepA, keepB = make([]bool, m), make([]bool, n)
	for i, j := 0, 0; i < m && j < n; {
		switch {
		case a[i] == b[j]:
			keepA[i], keepB[j] = true, true
			i++
			j++
		case table[(i+1)*stride+j] >= table[i*stride+j+1]:
			i++
		default:
			j++
		}
	}
	return keepA, keepB
}

// segments merges adjacent tokens with the same status.
func segments(tokens []string, keep []bool) []codeshell.Segment {
	var segs []codeshell.Segment
	for i, t := range tokens {
		changed := !keep[i]
		if n := len(segs); n > 0 && segs[n-1].Changed == changed {
			segs[n-1].Text += t
			continue
		}
		segs = append(segs, codeshell.Segment{Text: t, Changed: changed})
	}
	return segs
}
