package bpe

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/gotok/tokenizers/tokenizers/api"
)

// CLIP text-encoder constants.
const (
	ClipBeginningOfSentence Rank = 49406
	ClipEndOfSentence       Rank = 49407
	ClipPad                 Rank = 0
	ClipContextLength       int  = 77
)

// clipPattern is OpenAI's CLIP pre-tokenization pattern (contractions,
// runs of letters, single digits, runs of everything else), minus the
// `<|startoftext|>`/`<|endoftext|>` alternatives real CLIP bakes into the
// regex: here those are ordinary text unless spelled out through the
// generic special-token path, so a literal "<|endoftext|>" in the input is
// pre-tokenized and merged like any other punctuation-heavy run.
const clipPattern = `'s|'t|'re|'ve|'m|'ll|'d|\p{L}+|\p{N}|[^\s\p{L}\p{N}]+`

// ClipEncoding wraps BpeEncoding with CLIP's text-encoder conventions:
// lowercasing, whitespace collapsing, a trailing space appended to every
// pre-tokenized word (standing in for the space-suffixed vocabulary forms
// that emulate SentencePiece's </w> marker), BOS/EOS framing, and
// fixed-length-77 padding/truncation.
type ClipEncoding struct {
	*BpeEncoding
}

// clipSpecialTokens are the BOS/EOS literals afterEncode frames every
// sequence with, registered as special tokens so Decode can resolve them.
var clipSpecialTokens = map[string]Rank{
	"<|startoftext|>": ClipBeginningOfSentence,
	"<|endoftext|>":   ClipEndOfSentence,
}

// NewClipEncoding builds a CLIP encoding from its vocabulary (byte
// sequence -> rank, already including the space-suffixed forms produced by
// the loader).
func NewClipEncoding(encoder map[string]Rank) (*ClipEncoding, error) {
	base, err := NewBpeEncoding("clip", encoder, clipSpecialTokens, clipPattern)
	if err != nil {
		return nil, errors.Wrap(err, "building clip encoding")
	}

	clip := &ClipEncoding{BpeEncoding: base}
	base.splitFragments = clip.splitFragments
	base.afterEncode = clip.afterEncode
	base.beforeDecode = clip.beforeDecode
	return clip, nil
}

// splitFragments normalizes segment (lowercase, collapse runs of ASCII
// whitespace to a single space, trim) then re-splits it with the CLIP
// regex, appending a trailing space to every match so the merge engine
// sees it as part of the byte fragment.
func (c *ClipEncoding) splitFragments(segment string) []string {
	segment = strings.ToLower(segment)
	segment = collapseASCIIWhitespace(segment)

	runes := []rune(segment)
	var fragments []string
	for _, idx := range splitMatchIndices(runes, 0, len(runes), c.regex) {
		fragments = append(fragments, cutRunes(runes, idx[0], idx[1])+" ")
	}
	return fragments
}

// afterEncode wraps ids with BOS/EOS and pads or truncates to
// ClipContextLength, reserving room for both framing tokens.
func (c *ClipEncoding) afterEncode(ids []Rank) []Rank {
	maxInner := ClipContextLength - 2
	if len(ids) > maxInner {
		ids = ids[:maxInner]
	}
	out := make([]Rank, 0, ClipContextLength)
	out = append(out, ClipBeginningOfSentence)
	out = append(out, ids...)
	out = append(out, ClipEndOfSentence)
	for len(out) < ClipContextLength {
		out = append(out, ClipPad)
	}
	return out
}

// beforeDecode strips the trailing zero-padding CLIP appended during
// encoding, so Decode doesn't try to look up rank 0 as a real token.
func (c *ClipEncoding) beforeDecode(ids []Rank) []Rank {
	end := len(ids)
	for end > 0 && ids[end-1] == ClipPad {
		end--
	}
	return ids[:end]
}

// collapseASCIIWhitespace replaces every run of ASCII whitespace with a
// single space and trims the result.
func collapseASCIIWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inRun := false
	for _, r := range s {
		if isASCIISpace(r) {
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

func isASCIISpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

// EncodeAPI overrides BpeEncoding's default (ordinary-text-only) adapter:
// CLIP always frames with BOS/EOS and pads to ClipContextLength via
// afterEncode, so there's no meaningful "ordinary" mode to expose here.
func (c *ClipEncoding) EncodeAPI(text string) []int {
	ids := c.EncodeOrdinary(text)
	ids = c.afterEncode(ids)
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out
}

// SpecialTokenID implements api.Tokenizer for CLIP's fixed BOS/EOS/PAD ids.
func (c *ClipEncoding) SpecialTokenID(token api.SpecialToken) (int, error) {
	switch token {
	case api.TokBeginningOfSentence:
		return int(ClipBeginningOfSentence), nil
	case api.TokEndOfSentence:
		return int(ClipEndOfSentence), nil
	case api.TokPad:
		return int(ClipPad), nil
	}
	return 0, errors.Wrapf(ErrUnknownToken, "clip: no mapping for %s", token)
}

// AsTokenizer adapts c to the api.Tokenizer interface.
func (c *ClipEncoding) AsTokenizer() api.Tokenizer { return &clipAPIAdapter{c} }

type clipAPIAdapter struct{ *ClipEncoding }

func (a *clipAPIAdapter) Encode(text string) []int { return a.EncodeAPI(text) }
func (a *clipAPIAdapter) Decode(ids []int) string  { return a.DecodeAPI(ids) }
