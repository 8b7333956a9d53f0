// Package canon collapses whitespace drift between stored excerpts and
// rendered text while keeping a map back to the original byte offsets.
package canon

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// invisible are zero-width characters that render as nothing but break
// literal comparisons. They are treated as whitespace.
var invisible = map[rune]bool{
	'\u200b': true, // zero width space
	'\u200c': true, // zero width non-joiner
	'\u200d': true, // zero width joiner
	'\ufeff': true, // zero width no-break space (BOM)
}

// Result is a canonicalized string plus its position map.
// Map[i] is the byte offset in the original string that produced Canon[i].
type Result struct {
	Canon string
	Map   []int
}

// IsSpace reports whether r is collapsed by Canonicalize.
// NBSP (U+00A0) and narrow NBSP (U+202F) are covered by unicode.IsSpace.
func IsSpace(r rune) bool {
	return unicode.IsSpace(r) || invisible[r]
}

// Canonicalize collapses every maximal whitespace run in s to a single ASCII
// space. Runs at the start or end are kept as one space so every canonical
// offset stays mappable.
func Canonicalize(s string) Result {
	var b strings.Builder
	b.Grow(len(s))
	m := make([]int, 0, len(s))

	inSpace := false
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if IsSpace(r) {
			if !inSpace {
				b.WriteByte(' ')
				m = append(m, i)
				inSpace = true
			}
			i += size
			continue
		}
		inSpace = false
		for k := 0; k < size; k++ {
			b.WriteByte(s[i+k])
			m = append(m, i+k)
		}
		i += size
	}

	return Result{Canon: b.String(), Map: m}
}

// Trimmed canonicalizes s and strips the leading and trailing space.
// Used for needles, where an edge run carries no meaning.
func Trimmed(s string) string {
	return strings.Trim(Canonicalize(s).Canon, " ")
}

// MapRangeToOriginal converts the canonical range [canonStart, canonEnd)
// to the original string's coordinates. Bounds are clamped; ok is false when
// the clamped range is empty.
func MapRangeToOriginal(canonStart, canonEnd int, m []int, originalLength int) (origStart, origEnd int, ok bool) {
	if len(m) == 0 {
		return 0, 0, false
	}
	if canonStart < 0 {
		canonStart = 0
	}
	if canonEnd > len(m) {
		canonEnd = len(m)
	}
	if canonStart >= len(m) || canonStart >= canonEnd {
		return 0, 0, false
	}

	origStart = m[canonStart]
	if canonEnd < len(m) {
		origEnd = m[canonEnd]
	} else {
		origEnd = originalLength
	}
	if origEnd > originalLength {
		origEnd = originalLength
	}
	if origEnd <= origStart {
		return 0, 0, false
	}
	return origStart, origEnd, true
}
