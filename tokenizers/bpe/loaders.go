package bpe

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ParseTiktokenVocab parses the tiktoken ".tiktoken" vocabulary format: one
// "<base64 bytes> <decimal rank>" pair per line, blank lines ignored,
// grounded on OpenAI's load_tiktoken_bpe.
func ParseTiktokenVocab(r io.Reader) (map[string]Rank, error) {
	vocab := make(map[string]Rank)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, errors.Wrapf(ErrMalformedVocabulary, "line %d: expected 2 fields, got %d", lineNo, len(fields))
		}
		raw, err := base64.StdEncoding.DecodeString(fields[0])
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedVocabulary, "line %d: bad base64", lineNo)
		}
		rank, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedVocabulary, "line %d: bad rank", lineNo)
		}
		piece := string(raw)
		if _, dup := vocab[piece]; dup {
			return nil, errors.Wrapf(ErrMalformedVocabulary, "line %d: duplicate piece", lineNo)
		}
		vocab[piece] = Rank(rank)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scanning tiktoken vocab")
	}
	return vocab, nil
}

// bytesToUnicode builds the GPT-2/CLIP byte<->printable-unicode bijection:
// printable Latin-1 code points map to themselves, and every other byte
// value maps to a private code point starting at U+0100, so every byte has
// a distinct, whitespace-free, single-rune spelling (grounded on OpenAI's
// gpt-2 encoder.py bytes_to_unicode).
// GPT2ByteToUnicode exports bytesToUnicode for callers outside this
// package that need the same byte<->rune bijection to interpret a
// GPT-2-alphabet vocabulary (e.g. the hftokenizer loader).
func GPT2ByteToUnicode() (byteToRune [256]rune, runeToByte map[rune]byte) {
	return bytesToUnicode()
}

func isPrintableByte(b int) bool {
	return (b >= '!' && b <= '~') || (b >= 0xA1 && b <= 0xAC) || (b >= 0xAE && b <= 0xFF)
}

func bytesToUnicode() (byteToRune [256]rune, runeToByte map[rune]byte) {
	runeToByte = make(map[rune]byte, 256)
	n := rune(0)
	for b := 0; b < 256; b++ {
		if isPrintableByte(b) {
			byteToRune[b] = rune(b)
		} else {
			byteToRune[b] = 256 + n
			n++
		}
		runeToByte[byteToRune[b]] = byte(b)
	}
	return byteToRune, runeToByte
}

// byteEnumerationOrder returns every byte value in the order CLIP/GPT-2's
// bytes_to_unicode().values() enumerates them: printable bytes first in
// ascending order, then the remaining non-printable bytes in ascending
// order. Seed-vocabulary ranks are assigned by walking this order, not raw
// byte value order, so e.g. 'a' (0x61) lands at rank 64, not 97.
func byteEnumerationOrder() [256]byte {
	var order [256]byte
	i := 0
	for b := 0; b < 256; b++ {
		if isPrintableByte(b) {
			order[i] = byte(b)
			i++
		}
	}
	for b := 0; b < 256; b++ {
		if !isPrintableByte(b) {
			order[i] = byte(b)
			i++
		}
	}
	return order
}

// cptToByte decodes a bytes_to_unicode-encoded string back to raw bytes,
// rewriting the literal "</w>" end-of-word marker to a single space byte
// (0x20) wherever it appears,: CLIP's vocabulary stores
// word-final pieces as space-suffixed byte sequences rather than a
// textual marker.
func cptToByte(s string, runeToByte map[rune]byte) []byte {
	s = strings.ReplaceAll(s, "</w>", " ")
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r == ' ' {
			out = append(out, ' ')
			continue
		}
		out = append(out, runeToByte[r])
	}
	return out
}

// ParseClipVocab parses the open_clip "bpe_simple_vocab_16e6.txt.gz" merge
// list into a ready-to-use encoding vocabulary: 256 single-byte seed
// entries, 256 space-suffixed seed entries, then one entry per merge pair
// in priority order.
func ParseClipVocab(r io.Reader) (map[string]Rank, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "opening clip vocab gzip stream")
	}
	defer gz.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, gz); err != nil {
		return nil, errors.Wrap(err, "reading clip vocab")
	}
	lines := strings.Split(buf.String(), "\n")
	if len(lines) == 0 {
		return nil, errors.Wrap(ErrMalformedVocabulary, "empty clip vocab")
	}
	// lines[0] is a version comment; the real distribution carries one
	// trailing bookkeeping line after the last usable merge, dropped here
	// exactly as open_clip's loader does (merges[1 : 49152-256-2+1]).
	const wantMerges = 48894
	if len(lines) < 1+wantMerges {
		return nil, errors.Wrapf(ErrMalformedVocabulary, "expected at least %d merge lines, got %d", wantMerges, len(lines)-1)
	}
	merges := lines[1 : 1+wantMerges]

	_, runeToByte := bytesToUnicode()

	vocab := make(map[string]Rank, 256+256+wantMerges)
	var rank Rank
	byteToRune, _ := bytesToUnicode()
	order := byteEnumerationOrder()
	for _, b := range order {
		piece := cptToByte(string(byteToRune[b]), runeToByte)
		vocab[string(piece)] = rank
		rank++
	}
	for _, b := range order {
		piece := cptToByte(string(byteToRune[b])+"</w>", runeToByte)
		vocab[string(piece)] = rank
		rank++
	}
	for i, line := range merges {
		line = strings.TrimSpace(line)
		parts := strings.Fields(line)
		if len(parts) != 2 {
			return nil, errors.Wrapf(ErrMalformedVocabulary, "merge line %d: expected 2 fields", i)
		}
		piece := cptToByte(parts[0]+parts[1], runeToByte)
		// Every merge line consumes a rank, even if its concatenation
		// collides with an earlier vocab entry: the reference build is
		// `dict(zip(vocab_list, range(len(vocab_list))))` over a plain list,
		// so a colliding string's rank is whatever its last occurrence was.
		vocab[string(piece)] = rank
		rank++
	}
	return vocab, nil
}
