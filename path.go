package codeshell

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Path is a slash-separated workspace path held as a vector of segments.
// Segments are NFC normalized, so composed and decomposed spellings of the
// same name compare equal. Comparison is otherwise case sensitive.
type Path []string

// ParsePath splits p into normalized segments. Empty and "." segments are
// dropped and ".." pops the previous segment. A ".." with nothing left to
// pop is kept, so a path climbing above its root stays detectable.
func ParsePath(p string) Path {
	var segs Path
	for _, s := range strings.Split(p, "/") {
		switch s {
		case "", ".":
			continue
		case "..":
			if len(segs) > 0 && segs[len(segs)-1] != ".." {
				segs = segs[:len(segs)-1]
				continue
			}
			segs = append(segs, s)
			continue
		}
		segs = append(segs, norm.NFC.String(s))
	}
	return segs
}

// String joins the segments with "/".
func (p Path) String() string {
	return strings.Join(p, "/")
}

// Equal reports whether p and q have identical segments.
func (p Path) Equal(q Path) bool {
	if len(p) != len(q) {
		return false
	}
	for i := range p {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix is p itself or one of its ancestors.
func (p Path) HasPrefix(prefix Path) bool {
	return len(prefix) <= len(p) && p[:len(prefix)].Equal(prefix)
}

// IsDescendant reports whether p lies strictly beneath dir.
func (p Path) IsDescendant(dir Path) bool {
	return len(p) > len(dir) && p.HasPrefix(dir)
}

// Rebase replaces the from prefix of p with to. It reports false when
// from is not a prefix of p.
func (p Path) Rebase(from, to Path) (Path, bool) {
	if !p.HasPrefix(from) {
		return p, false
	}
	out := make(Path, 0, len(to)+len(p)-len(from))
	out = append(out, to...)
	out = append(out, p[len(from):]...)
	return out, true
}

// Join appends the segments of elem to p.
func (p Path) Join(elem string) Path {
	out := make(Path, 0, len(p)+1)
	out = append(out, p...)
	return append(out, ParsePath(elem)...)
}

// Dir returns the parent of p. The parent of the root is the root.
func (p Path) Dir() Path {
	if len(p) == 0 {
		return p
	}
	return p[:len(p)-1]
}

// Base returns the last segment of p.
func (p Path) Base() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Within reports whether p lies inside root. An empty root admits every
// path that does not climb above it.
func (p Path) Within(root Path) bool {
	if len(p) > 0 && p[0] == ".." {
		return false
	}
	return p.HasPrefix(root)
}

// CleanPath returns the canonical string form of p.
func CleanPath(p string) string {
	return ParsePath(p).String()
}
