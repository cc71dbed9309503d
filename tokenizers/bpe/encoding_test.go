package bpe

import (
	"reflect"
	"testing"

	"github.com/gotok/tokenizers/tokenizers/api"
)

func tinyEncoding(t *testing.T) *BpeEncoding {
	t.Helper()
	encoder := map[string]Rank{
		"h": 0, "e": 1, "l": 2, "o": 3, " ": 4, "w": 5, "r": 6, "d": 7,
		"he": 8, "ll": 9, "hell": 10, "hello": 11, "wo": 12, "worl": 13, "world": 14,
	}
	special := map[string]Rank{"<|endoftext|>": 100}
	enc, err := NewBpeEncoding("tiny", encoder, special, gpt2Pattern)
	if err != nil {
		t.Fatalf("NewBpeEncoding: %v", err)
	}
	return enc
}

func TestEncodeOrdinaryDecodeRoundTrip(t *testing.T) {
	enc := tinyEncoding(t)
	text := "hello world"
	ids := enc.EncodeOrdinary(text)
	got, err := enc.DecodeUTF8(ids)
	if err != nil {
		t.Fatalf("DecodeUTF8: %v", err)
	}
	if got != text {
		t.Errorf("round trip = %q, want %q", got, text)
	}
}

func TestEncodeIgnoresUnallowedSpecial(t *testing.T) {
	enc := tinyEncoding(t)
	ids := enc.Encode("hello<|endoftext|>world", nil)
	for _, id := range ids {
		if id == 100 {
			t.Fatalf("Encode with no allowedSpecial produced the special-token rank: %v", ids)
		}
	}
}

func TestEncodeRecognizesAllowedSpecial(t *testing.T) {
	enc := tinyEncoding(t)
	allowed := map[string]struct{}{"<|endoftext|>": {}}
	ids := enc.Encode("hello<|endoftext|>world", allowed)

	found := false
	for _, id := range ids {
		if id == 100 {
			found = true
		}
	}
	if !found {
		t.Fatalf("Encode with allowed special did not emit rank 100: %v", ids)
	}
}

func TestEncodeWithSpecialTokensShorthand(t *testing.T) {
	enc := tinyEncoding(t)
	ids := enc.EncodeWithSpecialTokens("hello<|endoftext|>world")
	want := []Rank{11, 100, 14}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("EncodeWithSpecialTokens = %v, want %v", ids, want)
	}
}

func TestDecodeUnknownTokenErrors(t *testing.T) {
	enc := tinyEncoding(t)
	if _, err := enc.DecodeBytes([]Rank{9999}); err == nil {
		t.Fatal("DecodeBytes with unknown rank: expected error, got nil")
	}
}

func TestSpecialTokenIDEndOfSentence(t *testing.T) {
	enc := tinyEncoding(t)
	id, err := enc.SpecialTokenID(api.TokEndOfSentence)
	if err != nil {
		t.Fatalf("SpecialTokenID: %v", err)
	}
	if id != 100 {
		t.Errorf("SpecialTokenID(EOS) = %d, want 100", id)
	}
}
