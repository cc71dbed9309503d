package bpe

import (
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/pkg/errors"

	"github.com/gotok/tokenizers/tokenizers/api"
)

// fragmentSplitter overrides the default "apply the pre-tokenization regex
// and hand each match to the merge engine" step. It receives one segment of
// text lying between two accepted special-token occurrences (or the whole
// text, if none) and returns the byte fragments to merge, in order. CLIP
// uses this to fold its own normalization and trailing-space convention in
// before the merge engine ever sees a fragment; see clip.go.
type fragmentSplitter func(segment string) []string

// BpeEncoding is a byte-pair encoder/decoder compatible with tiktoken's
// BPE format.
type BpeEncoding struct {
	name string

	encoder map[string]Rank // raw byte sequence (as string) -> rank
	decoder map[Rank][]byte

	specialTokensEncoder map[string]Rank
	specialTokensDecoder map[Rank][]byte
	specialLiterals      []string

	pattern      string
	regex        *regexp2.Regexp
	specialRegex *regexp2.Regexp

	splitFragments fragmentSplitter   // nil for plain BPE
	afterEncode    func([]Rank) []Rank // nil for plain BPE
	beforeDecode   func([]Rank) []Rank // nil for plain BPE
}

// NewBpeEncoding builds an encoding from a vocabulary (byte sequence ->
// rank) and a table of special tokens (literal text -> rank). pattern is
// the pre-tokenization regex.
func NewBpeEncoding(name string, encoder map[string]Rank, specialTokens map[string]Rank, pattern string) (*BpeEncoding, error) {
	decoder := make(map[Rank][]byte, len(encoder))
	for piece, rank := range encoder {
		if _, dup := decoder[rank]; dup {
			return nil, errors.Wrapf(ErrMalformedVocabulary, "encoding %q: duplicate rank %d", name, rank)
		}
		decoder[rank] = []byte(piece)
	}

	specialTokensDecoder := make(map[Rank][]byte, len(specialTokens))
	specialLiterals := make([]string, 0, len(specialTokens))
	for literal, rank := range specialTokens {
		specialTokensDecoder[rank] = []byte(literal)
		specialLiterals = append(specialLiterals, literal)
	}

	re, err := compilePattern(pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "encoding %q", name)
	}
	specialRe, err := compileSpecialPattern(specialLiterals)
	if err != nil {
		return nil, errors.Wrapf(err, "encoding %q", name)
	}

	return &BpeEncoding{
		name:                 name,
		encoder:              encoder,
		decoder:              decoder,
		specialTokensEncoder: specialTokens,
		specialTokensDecoder: specialTokensDecoder,
		specialLiterals:      specialLiterals,
		pattern:              pattern,
		regex:                re,
		specialRegex:         specialRe,
	}, nil
}

// Name is the registered encoding name, e.g. "cl100k_base".
func (e *BpeEncoding) Name() string { return e.name }

// SpecialTokens returns the literal text of every special token known to
// this encoding.
func (e *BpeEncoding) SpecialTokens() []string {
	out := make([]string, len(e.specialLiterals))
	copy(out, e.specialLiterals)
	return out
}

// EncodeOrdinary encodes text, ignoring any special-token literals it may
// contain: they are pre-tokenized and merged like any other text.
func (e *BpeEncoding) EncodeOrdinary(text string) []Rank {
	return e.encodeSegment(text)
}

// EncodeWithSpecialTokens encodes text, recognizing every special token
// this encoding knows about wherever it occurs.
func (e *BpeEncoding) EncodeWithSpecialTokens(text string) []Rank {
	allowed := make(map[string]struct{}, len(e.specialLiterals))
	for _, lit := range e.specialLiterals {
		allowed[lit] = struct{}{}
	}
	return e.Encode(text, allowed)
}

// Encode encodes text, recognizing only the special tokens named in
// allowedSpecial; every other occurrence of special-token-like text is
// merged as ordinary text.
func (e *BpeEncoding) Encode(text string, allowedSpecial map[string]struct{}) []Rank {
	textRunes := []rune(text)
	var out []Rank
	pos := 0
	for pos <= len(textRunes) {
		// Find the next special-token occurrence anywhere in the remainder,
		// then filter to ones actually allowed; unallowed matches are just
		// part of the ordinary text.
		segmentEnd := len(textRunes)
		var specialRank Rank
		var specialLen int
		haveSpecial := false

		searchFrom := pos
		for searchFrom <= len(textRunes) {
			begin, end, ok := findFirstMatch(textRunes, searchFrom, e.specialRegex)
			if !ok {
				break
			}
			literal := cutRunes(textRunes, searchFrom+begin, searchFrom+end)
			if _, allowed := allowedSpecial[literal]; allowed {
				segmentEnd = searchFrom + begin
				specialRank = e.specialTokensEncoder[literal]
				specialLen = end - begin
				haveSpecial = true
				break
			}
			// Not allowed here: resume the scan one character past the
			// match start, matching tiktoken's _encode_native fallback.
			searchFrom += begin + 1
		}

		segment := cutRunes(textRunes, pos, segmentEnd)
		out = append(out, e.encodeSegment(segment)...)

		if !haveSpecial {
			break
		}
		out = append(out, specialRank)
		pos = segmentEnd + specialLen
	}

	if e.afterEncode != nil {
		out = e.afterEncode(out)
	}
	return out
}

// encodeSegment splits segment with the pre-tokenization regex (or the
// fragmentSplitter override) and runs each fragment through the merge
// engine, with a full-sequence encoder hit short-circuiting the merge.
func (e *BpeEncoding) encodeSegment(segment string) []Rank {
	if segment == "" {
		return nil
	}

	var fragments []string
	if e.splitFragments != nil {
		fragments = e.splitFragments(segment)
	} else {
		runes := []rune(segment)
		for _, idx := range splitMatchIndices(runes, 0, len(runes), e.regex) {
			fragments = append(fragments, cutRunes(runes, idx[0], idx[1]))
		}
	}

	var out []Rank
	for _, frag := range fragments {
		b := []byte(frag)
		if rank, ok := e.encoder[string(b)]; ok {
			out = append(out, rank)
			continue
		}
		out = append(out, bytePairEncode(b, e.encoder)...)
	}
	return out
}

// DecodeBytes concatenates the byte sequences for ids, looking each up in
// the regular decoder, then the special-token decoder. It returns
// ErrUnknownToken if any id is registered in neither.
func (e *BpeEncoding) DecodeBytes(ids []Rank) ([]byte, error) {
	if e.beforeDecode != nil {
		ids = e.beforeDecode(ids)
	}
	var buf strings.Builder
	for _, id := range ids {
		if b, ok := e.decoder[id]; ok {
			buf.Write(b)
			continue
		}
		if b, ok := e.specialTokensDecoder[id]; ok {
			buf.Write(b)
			continue
		}
		return nil, errors.Wrapf(ErrUnknownToken, "encoding %q: rank %d", e.name, id)
	}
	return []byte(buf.String()), nil
}

// DecodeUTF8 is DecodeBytes followed by a lossy UTF-8 decode: a token
// stream that splits a multi-byte rune across tokens decodes to the
// replacement character at that position.
func (e *BpeEncoding) DecodeUTF8(ids []Rank) (string, error) {
	b, err := e.DecodeBytes(ids)
	if err != nil {
		return "", err
	}
	return decodeUTF8(b), nil
}

// EncodeAPI is the api.Tokenizer Encode used by AsTokenizer: plain encoding
// with no special tokens recognized.
func (e *BpeEncoding) EncodeAPI(text string) []int {
	ids := e.EncodeOrdinary(text)
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out
}

// DecodeAPI is the api.Tokenizer Decode used by AsTokenizer; it returns ""
// if any id is unknown.
func (e *BpeEncoding) DecodeAPI(ids []int) string {
	ranks := make([]Rank, len(ids))
	for i, id := range ids {
		ranks[i] = Rank(id)
	}
	s, err := e.DecodeUTF8(ranks)
	if err != nil {
		return ""
	}
	return s
}

// SpecialTokenID implements api.Tokenizer.
func (e *BpeEncoding) SpecialTokenID(token api.SpecialToken) (int, error) {
	literal, ok := e.wellKnownLiteral(token)
	if !ok {
		return 0, errors.Wrapf(ErrUnknownToken, "encoding %q: no mapping for %s", e.name, token)
	}
	rank, ok := e.specialTokensEncoder[literal]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownToken, "encoding %q: special token %q not registered", e.name, literal)
	}
	return int(rank), nil
}

// wellKnownLiteral maps the common SpecialToken enum onto this encoding's
// literal spelling. tiktoken encodings only define an end-of-text marker by
// default; encodings that define more (e.g. o200k_harmony's role tags) can
// still be reached through SpecialTokens()/EncodeWithSpecialTokens.
func (e *BpeEncoding) wellKnownLiteral(token api.SpecialToken) (string, bool) {
	switch token {
	case api.TokEndOfSentence:
		if _, ok := e.specialTokensEncoder["<|endoftext|>"]; ok {
			return "<|endoftext|>", true
		}
	}
	return "", false
}

var _ api.Tokenizer = (*apiAdapter)(nil)

// apiAdapter adapts BpeEncoding's richer methods to the narrower
// api.Tokenizer interface, defaulting to no special-token recognition
// (EncodeOrdinary) as "Encode" since the interface takes no options.
type apiAdapter struct {
	*BpeEncoding
}

func (a *apiAdapter) Encode(text string) []int { return a.EncodeAPI(text) }
func (a *apiAdapter) Decode(ids []int) string  { return a.DecodeAPI(ids) }

// AsTokenizer adapts e to the api.Tokenizer interface.
func (e *BpeEncoding) AsTokenizer() api.Tokenizer { return &apiAdapter{e} }
