package unigram

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/gotok/tokenizers/tokenizers/api"
	"github.com/gotok/tokenizers/tokenizers/unigram/spmodel"
)

// PieceType mirrors the SentencePiece ModelProto piece type enum.
type PieceType int32

const (
	PieceUnspecified PieceType = 0
	PieceNormal      PieceType = 1
	PieceUnknown     PieceType = 2
	PieceControl     PieceType = 3
	PieceUserDefined PieceType = 4
	PieceUnused      PieceType = 5
	PieceByte        PieceType = 6
)

// Piece is one vocabulary entry; its slice index is its token id.
type Piece struct {
	Text  string
	Score float32
	Type  PieceType
}

// Unigram is a SentencePiece-compatible Unigram language-model tokenizer,
// segmenting text via Viterbi best-path search over trie-indexed pieces.
type Unigram struct {
	pieces       []Piece
	trie         *trieNode
	byteFallback map[string]int32 // lowercase hex "00".."ff" -> id

	unkID, bosID, eosID int32

	addDummyPrefix          bool
	removeExtraWhitespaces bool
}

var byteFallbackPattern = regexp.MustCompile(`^<0x([0-9A-Fa-f]{2})>$`)

// FromBinary builds a Unigram model from a serialized SentencePiece
// ModelProto.
func FromBinary(data []byte) (*Unigram, error) {
	m, err := spmodel.Decode(data)
	if err != nil {
		return nil, errors.Wrap(err, "decoding sentencepiece model")
	}

	u := &Unigram{
		trie:                   newTrieNode(),
		byteFallback:           make(map[string]int32),
		unkID:                  0,
		bosID:                  1,
		eosID:                  2,
		addDummyPrefix:         true,
		removeExtraWhitespaces: true,
	}
	if m.TrainerSpec != nil {
		if m.TrainerSpec.UnkID != nil {
			u.unkID = *m.TrainerSpec.UnkID
		}
		if m.TrainerSpec.BosID != nil {
			u.bosID = *m.TrainerSpec.BosID
		}
		if m.TrainerSpec.EosID != nil {
			u.eosID = *m.TrainerSpec.EosID
		}
	}
	if m.NormalizerSpec != nil {
		if m.NormalizerSpec.AddDummyPrefix != nil {
			u.addDummyPrefix = *m.NormalizerSpec.AddDummyPrefix
		}
		if m.NormalizerSpec.RemoveExtraWhitespaces != nil {
			u.removeExtraWhitespaces = *m.NormalizerSpec.RemoveExtraWhitespaces
		}
	}

	u.pieces = make([]Piece, len(m.Pieces))
	for i, p := range m.Pieces {
		piece := Piece{Text: p.Piece, Score: p.Score, Type: PieceType(p.Type)}
		u.pieces[i] = piece

		switch piece.Type {
		case PieceNormal, PieceUserDefined:
			u.trie.insert(piece.Text, int32(i), piece.Score)
		case PieceByte:
			if sub := byteFallbackPattern.FindStringSubmatch(piece.Text); sub != nil {
				u.byteFallback[strings.ToLower(sub[1])] = int32(i)
			}
		}
	}
	return u, nil
}

// LoadSentencePiece downloads and decodes a SentencePiece model file from
// url.
func LoadSentencePiece(url string) (*Unigram, error) {
	return LoadSentencePieceContext(context.Background(), url)
}

// LoadSentencePieceContext is LoadSentencePiece with an explicit context.
func LoadSentencePieceContext(ctx context.Context, url string) (*Unigram, error) {
	data, err := fetchModel(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching sentencepiece model %q", url)
	}
	return FromBinary(data)
}

// Encode segments text via Viterbi search and returns the token id
// sequence.
func (u *Unigram) Encode(text string) []int {
	normalized := normalize(text, u.addDummyPrefix, u.removeExtraWhitespaces)
	runes := []rune(normalized)
	ids32 := u.viterbi(runes)
	out := make([]int, len(ids32))
	for i, id := range ids32 {
		out[i] = int(id)
	}
	return out
}

// Decode reconstructs text from a token id sequence: runs of
// byte-fallback tokens are gathered and UTF-8-decoded as a single block to
// recover multi-byte characters split across several fallback tokens.
func (u *Unigram) Decode(ids []int) string {
	var b strings.Builder
	var byteRun []byte

	flush := func() {
		if len(byteRun) > 0 {
			b.Write(byteRun)
			byteRun = nil
		}
	}

	for _, id := range ids {
		if id < 0 || id >= len(u.pieces) {
			flush()
			continue
		}
		piece := u.pieces[id]
		if piece.Type == PieceByte {
			if sub := byteFallbackPattern.FindStringSubmatch(piece.Text); sub != nil {
				v, _ := strconv.ParseUint(sub[1], 16, 8)
				byteRun = append(byteRun, byte(v))
				continue
			}
		}
		flush()
		b.WriteString(piece.Text)
	}
	flush()

	return denormalize(b.String(), u.addDummyPrefix)
}

// BosToken, EosToken, UnkToken, VocabSize report the model's special token
// ids and vocabulary size.
func (u *Unigram) BosToken() int  { return int(u.bosID) }
func (u *Unigram) EosToken() int  { return int(u.eosID) }
func (u *Unigram) UnkToken() int  { return int(u.unkID) }
func (u *Unigram) VocabSize() int { return len(u.pieces) }

// SpecialTokenID implements api.Tokenizer.
func (u *Unigram) SpecialTokenID(token api.SpecialToken) (int, error) {
	switch token {
	case api.TokBeginningOfSentence:
		return u.BosToken(), nil
	case api.TokEndOfSentence:
		return u.EosToken(), nil
	case api.TokUnknown:
		return u.UnkToken(), nil
	}
	return 0, errors.Errorf("unigram: no mapping for %s", token)
}

var _ api.Tokenizer = (*Unigram)(nil)
