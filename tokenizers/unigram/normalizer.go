// Package unigram implements SentencePiece-compatible Unigram language-model
// tokenization via Viterbi segmentation, loaded from a SentencePiece trainer
// model file.
package unigram

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// metaSymbol is SentencePiece's representation of an original space.
const metaSymbol = '▁' // ▁

// normalize applies the SentencePiece normalizer: NFKC-normalize (the
// standard SentencePiece precompiled charsmap is, for ordinary text, an
// NFKC transform), optionally collapse runs of Unicode whitespace to a
// single ASCII space and trim, optionally prepend a dummy-prefix space,
// then replace every ASCII space with the meta-symbol.
func normalize(text string, addDummyPrefix, removeExtraWhitespaces bool) string {
	text = norm.NFKC.String(text)
	if removeExtraWhitespaces {
		text = collapseUnicodeWhitespace(text)
		if text == "" {
			return ""
		}
	}
	if addDummyPrefix {
		text = " " + text
	}
	return strings.ReplaceAll(text, " ", string(metaSymbol))
}

// denormalize inverts normalize for decoding: meta-symbol back to space,
// then strip a single leading space if addDummyPrefix was set.
func denormalize(text string, addDummyPrefix bool) string {
	text = strings.ReplaceAll(text, string(metaSymbol), " ")
	if addDummyPrefix {
		text = strings.TrimPrefix(text, " ")
	}
	return text
}

// collapseUnicodeWhitespace replaces every run of Unicode whitespace with a
// single ASCII space and trims the result.
func collapseUnicodeWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inRun := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inRun = true
			continue
		}
		if inRun && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inRun = false
		b.WriteRune(r)
	}
	return b.String()
}
