package bpe

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/gotok/tokenizers/tokenizers/api"
)

// Pre-tokenization patterns, grounded on tiktoken's published
// encoding definitions.
const (
	gpt2Pattern   = GPT2Pattern
	cl100kPattern = `(?i:'s|'t|'re|'ve|'m|'ll|'d)|[^\r\n\p{L}\p{N}]?\p{L}+|\p{N}{1,3}| ?[^\s\p{L}\p{N}]+[\r\n]*|\s*[\r\n]+|\s+(?!\S)|\s+`
	o200kPattern  = `[^\r\n\p{L}\p{N}]?[\p{Lu}\p{Lt}\p{Lm}\p{Lo}\p{M}]*[\p{Ll}\p{Lm}\p{Lo}\p{M}]+(?i:'s|'t|'re|'ve|'m|'ll|'d)?|[^\r\n\p{L}\p{N}]?[\p{Lu}\p{Lt}\p{Lm}\p{Lo}\p{M}]+[\p{Ll}\p{Lm}\p{Lo}\p{M}]*(?i:'s|'t|'re|'ve|'m|'ll|'d)?|\p{N}{1,3}| ?[^\s\p{L}\p{N}]+[\r\n/]*|\s*[\r\n]+|\s+(?!\S)|\s+`
)

// GPT2Pattern is the r50k/p50k pre-tokenization pattern, exported for
// callers outside this package building a vocabulary from a format that
// doesn't carry its own pre_tokenizer configuration (e.g. the hftokenizer
// loader's HuggingFace BPE models, which overwhelmingly use it).
const GPT2Pattern = `'s|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+(?!\S)|\s+`

// vocabURLs are the public blob locations tiktoken and open_clip publish
// their vocabulary files at.
var vocabURLs = map[string]string{
	"r50k_base":  "https://openaipublic.blob.core.windows.net/encodings/r50k_base.tiktoken",
	"p50k_base":  "https://openaipublic.blob.core.windows.net/encodings/p50k_base.tiktoken",
	"p50k_edit":  "https://openaipublic.blob.core.windows.net/encodings/p50k_base.tiktoken",
	"cl100k_base": "https://openaipublic.blob.core.windows.net/encodings/cl100k_base.tiktoken",
	"o200k_base":  "https://openaipublic.blob.core.windows.net/encodings/o200k_base.tiktoken",
	"o200k_harmony": "https://openaipublic.blob.core.windows.net/encodings/o200k_base.tiktoken",
	"clip": "https://openaipublic.azureedge.net/clip/bpe_simple_vocab_16e6.txt.gz",
}

func specialTokensFor(name string) map[string]Rank {
	switch name {
	case "r50k_base", "p50k_base":
		return map[string]Rank{"<|endoftext|>": 50256}
	case "p50k_edit":
		return map[string]Rank{
			"<|endoftext|>":   50256,
			"<|fim_prefix|>":  50281,
			"<|fim_middle|>":  50282,
			"<|fim_suffix|>":  50283,
		}
	case "cl100k_base":
		return map[string]Rank{
			"<|endoftext|>":    100257,
			"<|fim_prefix|>":   100258,
			"<|fim_middle|>":   100259,
			"<|fim_suffix|>":   100260,
			"<|endofprompt|>":  100276,
		}
	case "o200k_base":
		return map[string]Rank{
			"<|endoftext|>":   199999,
			"<|endofprompt|>": 200018,
		}
	case "o200k_harmony":
		// The harmony conversation-format special tokens, a best-effort
		// reconstruction from OpenAI's public harmony encoding tables;
		// o200k_harmony shares o200k_base's regular vocabulary and extends
		// its special tokens with role/channel markers for the conversation
		// wire format, plus <|reserved_N|> fillers for the unnamed ranks.
		tokens := map[string]Rank{
			"<|startoftext|>":   199998,
			"<|endoftext|>":     199999,
			"<|reserved_200000|>": 200000,
			"<|reserved_200001|>": 200001,
			"<|return|>":        200002,
			"<|constrain|>":     200003,
			"<|reserved_200004|>": 200004,
			"<|channel|>":       200005,
			"<|start|>":         200006,
			"<|end|>":           200007,
			"<|message|>":       200008,
			"<|reserved_200009|>": 200009,
			"<|reserved_200010|>": 200010,
			"<|reserved_200011|>": 200011,
			"<|call|>":          200012,
			"<|endofprompt|>":   200018,
		}
		// Fillers for 200013..201087; rank 200018 stays <|endofprompt|> so
		// no two special tokens share a rank.
		for r := Rank(200013); r <= 201087; r++ {
			if r != 200018 {
				tokens[fmt.Sprintf("<|reserved_%d|>", r)] = r
			}
		}
		return tokens
	}
	return nil
}

func patternFor(name string) string {
	switch name {
	case "r50k_base", "p50k_base", "p50k_edit":
		return gpt2Pattern
	case "cl100k_base":
		return cl100kPattern
	case "o200k_base", "o200k_harmony":
		return o200kPattern
	}
	return ""
}

var (
	registryMu sync.RWMutex
	registry   = map[string]api.Tokenizer{}
)

// GetBpe returns the named tiktoken-compatible encoding (or the "clip"
// encoding), downloading and parsing its vocabulary on first use and
// caching the constructed tokenizer for subsequent calls, grounded on the
// token-counter examples' registry-with-RWMutex-guarded-cache pattern.
func GetBpe(name string) (api.Tokenizer, error) {
	return GetBpeContext(context.Background(), name)
}

// GetBpeContext is GetBpe with an explicit context, for callers that want
// to bound the network fetch on first use.
func GetBpeContext(ctx context.Context, name string) (api.Tokenizer, error) {
	registryMu.RLock()
	if t, ok := registry[name]; ok {
		registryMu.RUnlock()
		return t, nil
	}
	registryMu.RUnlock()

	url, ok := vocabURLs[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownEncodingName, "%q", name)
	}

	raw, err := fetchCachedURL(ctx, url, name+cacheSuffix(name))
	if err != nil {
		return nil, errors.Wrapf(err, "fetching vocabulary for %q", name)
	}

	var tok api.Tokenizer
	if name == "clip" {
		vocab, err := ParseClipVocab(bytes.NewReader(raw))
		if err != nil {
			return nil, errors.Wrapf(err, "parsing clip vocabulary")
		}
		enc, err := NewClipEncoding(vocab)
		if err != nil {
			return nil, err
		}
		tok = enc.AsTokenizer()
	} else {
		vocab, err := ParseTiktokenVocab(bytes.NewReader(raw))
		if err != nil {
			return nil, errors.Wrapf(err, "parsing vocabulary for %q", name)
		}
		enc, err := NewBpeEncoding(name, vocab, specialTokensFor(name), patternFor(name))
		if err != nil {
			return nil, err
		}
		tok = enc.AsTokenizer()
	}

	registryMu.Lock()
	registry[name] = tok
	registryMu.Unlock()
	return tok, nil
}

func cacheSuffix(name string) string {
	if name == "clip" {
		return ".txt.gz"
	}
	return ".tiktoken"
}
