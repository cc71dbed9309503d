package bpe

import (
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/pkg/errors"
)

// compilePattern compiles a pre-tokenization pattern. Patterns are literals
// from the encoding tables (r50k/cl100k/o200k/clip); they are never
// user-supplied or generated. regexp2 is used instead of the standard
// library regexp (RE2) because the patterns require Unicode property
// classes combined with negative lookahead (`\s+(?!\S)`) and
// case-insensitive inline groups, neither of which RE2 supports.
func compilePattern(pattern string) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedPattern, "%q: %v", pattern, err)
	}
	return re, nil
}

// compileSpecialPattern builds the alternation of all special-token
// literals, each escaped, so the regex only ever matches literal text.
func compileSpecialPattern(specials []string) (*regexp2.Regexp, error) {
	if len(specials) == 0 {
		// A pattern that can never match.
		return regexp2.Compile(`\x00\x01NEVER_MATCH\x01\x00`, regexp2.None)
	}
	quoted := make([]string, len(specials))
	for i, s := range specials {
		quoted[i] = regexp2.Escape(s)
	}
	re, err := regexp2.Compile(strings.Join(quoted, "|"), regexp2.None)
	if err != nil {
		return nil, errors.Wrap(err, "compiling special-token alternation")
	}
	return re, nil
}

// splitMatchIndices returns the [start,end) rune-index pairs of every
// non-overlapping match of re within the rune slice text[start:end].
func splitMatchIndices(textRunes []rune, start, end int, re *regexp2.Regexp) [][2]int {
	var matches [][2]int
	sub := cutRunes(textRunes, start, end)
	m, _ := re.FindStringMatch(sub)
	for m != nil {
		matches = append(matches, [2]int{m.Index, m.Index + m.Length})
		m, _ = re.FindNextMatch(m)
	}
	return matches
}

// findFirstMatch returns the rune offsets, relative to start, of the first
// match of re in textRunes[start:]; ok is false if there is none.
func findFirstMatch(textRunes []rune, start int, re *regexp2.Regexp) (begin, end int, ok bool) {
	sub := cutRunes(textRunes, start, len(textRunes))
	m, _ := re.FindStringMatch(sub)
	if m == nil {
		return 0, 0, false
	}
	return m.Index, m.Index + m.Length, true
}

// cutRunes returns the string formed by runes[start:end], clamped to bounds.
func cutRunes(runes []rune, start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(runes) {
		end = len(runes)
	}
	if start > end {
		start = end
	}
	return string(runes[start:end])
}
