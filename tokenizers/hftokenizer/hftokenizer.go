// Package hftokenizer loads a HuggingFace "tokenizer.json" BPE model into
// this module's own bpe.BpeEncoding, so HuggingFace-hosted BPE tokenizers
// (GPT-2/RoBERTa-style) run through the same bit-exact merge engine as the
// tiktoken encodings rather than a second, independent implementation.
package hftokenizer

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/gotok/tokenizers/hub"
	"github.com/gotok/tokenizers/tokenizers/bpe"
)

// TokenizerJSON is the subset of HuggingFace's tokenizer.json structure
// this loader reads.
type TokenizerJSON struct {
	AddedTokens []AddedToken `json:"added_tokens"`
	Model       Model        `json:"model"`
}

// AddedToken is a special token registered outside the base vocabulary.
type AddedToken struct {
	ID      int    `json:"id"`
	Content string `json:"content"`
	Special bool   `json:"special"`
}

// Model is the tokenizer model block. Only `"type": "BPE"` is supported;
// WordPiece and the JSON-flavored Unigram model (a plain piece/score list,
// distinct from the protobuf ModelProto this module's unigram package
// reads) are out of scope here — see DESIGN.md.
type Model struct {
	Type  string         `json:"type"`
	Vocab map[string]int `json:"vocab"`
	// Merges is carried for schema fidelity but not consulted: HuggingFace
	// assigns each vocab id in the same order its merge was learned, so the
	// vocab ids themselves already encode merge priority the way tiktoken's
	// ranks do, and NewBpeEncoding's ranks map needs nothing else.
	Merges   []string `json:"merges"`
	UnkToken string   `json:"unk_token"`
}

// ErrUnsupportedModelType is returned when tokenizer.json names a model
// type other than "BPE".
var ErrUnsupportedModelType = errors.New("unsupported tokenizer.json model type")

// Load downloads "tokenizer.json" from repo and builds a BpeEncoding from
// its BPE model block.
func Load(repo *hub.Repo) (*bpe.BpeEncoding, error) {
	if !repo.HasFile("tokenizer.json") {
		return nil, errors.New(`"tokenizer.json" not found in repo`)
	}
	content, err := repo.DownloadBytes("tokenizer.json")
	if err != nil {
		return nil, errors.Wrap(err, "downloading tokenizer.json")
	}
	return Parse(content)
}

// Parse builds a BpeEncoding from tokenizer.json content.
func Parse(content []byte) (*bpe.BpeEncoding, error) {
	var tj TokenizerJSON
	if err := json.Unmarshal(content, &tj); err != nil {
		return nil, errors.Wrap(err, "parsing tokenizer.json")
	}
	if tj.Model.Type != "BPE" {
		return nil, errors.Wrapf(ErrUnsupportedModelType, "%q", tj.Model.Type)
	}

	// HuggingFace vocab/merges are keyed by the token's string form under
	// the gpt2 byte-to-unicode alphabet, not raw bytes; map each vocab
	// entry back to bytes through that same bijection so the resulting
	// encoder is byte-keyed like every other BpeEncoding in this module.
	byteToRune, _ := bpe.GPT2ByteToUnicode()
	runeToByte := make(map[rune]byte, 256)
	for b := 0; b < 256; b++ {
		runeToByte[byteToRune[b]] = byte(b)
	}
	toBytes := func(s string) string {
		out := make([]byte, 0, len(s))
		for _, r := range s {
			if b, ok := runeToByte[r]; ok {
				out = append(out, b)
				continue
			}
			out = append(out, []byte(string(r))...)
		}
		return string(out)
	}

	encoder := make(map[string]bpe.Rank, len(tj.Model.Vocab))
	for token, id := range tj.Model.Vocab {
		encoder[toBytes(token)] = bpe.Rank(id)
	}

	specialTokens := make(map[string]bpe.Rank, len(tj.AddedTokens))
	for _, at := range tj.AddedTokens {
		if !at.Special {
			continue
		}
		specialTokens[at.Content] = bpe.Rank(at.ID)
		delete(encoder, toBytes(at.Content))
	}

	// tokenizer.json carries its own pre_tokenizer configuration, but the
	// overwhelming majority of published BPE models in this family use the
	// GPT-2 pattern, so it is used for every model; a model configured with a
	// different pre-tokenizer is still split with the GPT-2 pattern.
	return bpe.NewBpeEncoding("huggingface_bpe", encoder, specialTokens, bpe.GPT2Pattern)
}
