// Package remotepath converts user supplied paths into the backend's remote
// path grammar: relative to the storage root, single separators, and a
// trailing separator for directories.
package remotepath

import "strings"

// Separator is the only separator the backend understands.
const Separator = "/"

// Normalize returns the canonical remote form of p. Runs of separators are
// collapsed, one leading separator is dropped and, when dir is set, the result
// ends with exactly one separator. File paths keep whatever trailing separator
// they carry. The storage root is the empty string in both modes, never "/";
// the backend addresses the root of an fs by the empty remote.
func Normalize(p string, dir bool) string {
	p = collapse(p)
	p = strings.TrimPrefix(p, Separator)
	if p == "" {
		return ""
	}
	if dir {
		p = strings.TrimSuffix(p, Separator) + Separator
	}
	return p
}

// Base returns the last segment of p, ignoring trailing separators.
func Base(p string) string {
	p = strings.TrimRight(p, Separator)
	if i := strings.LastIndex(p, Separator); i >= 0 {
		return p[i+1:]
	}
	return p
}

// Join places name inside dir. dir is normalized in directory mode first, so
// the result never holds a doubled separator.
func Join(dir, name string) string {
	return Normalize(Normalize(dir, true)+name, false)
}

func collapse(p string) string {
	if !strings.Contains(p, Separator+Separator) {
		return p
	}
	var b strings.Builder
	b.Grow(len(p))
	prevSep := false
	for i := 0; i < len(p); i++ {
		c := p[i]
		if c == '/' {
			if prevSep {
				continue
			}
			prevSep = true
		} else {
			prevSep = false
		}
		b.WriteByte(c)
	}
	return b.String()
}
