package bpe

import "testing"

// tinyClipEncoding builds a tiny CLIP vocabulary with the 256 raw-byte and
// 256 space-suffixed seed entries plus one merge result, enough to encode
// "cat".
func tinyClipEncoding(t *testing.T) *ClipEncoding {
	t.Helper()
	encoder := make(map[string]Rank, 512+2)
	var rank Rank
	for b := 0; b < 256; b++ {
		encoder[string([]byte{byte(b)})] = rank
		rank++
	}
	for b := 0; b < 256; b++ {
		encoder[string([]byte{byte(b), ' '})] = rank
		rank++
	}
	encoder["cat "] = rank
	rank++

	enc, err := NewClipEncoding(encoder)
	if err != nil {
		t.Fatalf("NewClipEncoding: %v", err)
	}
	return enc
}

func TestClipEncodeLengthAlwaysContextLength(t *testing.T) {
	enc := tinyClipEncoding(t)
	for _, text := range []string{"", "cat", "a cat sat", "CAT   cat"} {
		ids := enc.EncodeAPI(text)
		if len(ids) != ClipContextLength {
			t.Errorf("EncodeAPI(%q) length = %d, want %d", text, len(ids), ClipContextLength)
		}
	}
}

func TestClipEncodeFramesWithBOSEOS(t *testing.T) {
	enc := tinyClipEncoding(t)
	ids := enc.EncodeAPI("cat")
	if Rank(ids[0]) != ClipBeginningOfSentence {
		t.Errorf("first id = %d, want BOS %d", ids[0], ClipBeginningOfSentence)
	}
	// "cat" -> BOS, cat, EOS, padding...
	if Rank(ids[2]) != ClipEndOfSentence {
		t.Errorf("third id = %d, want EOS %d", ids[2], ClipEndOfSentence)
	}
	for _, id := range ids[3:] {
		if Rank(id) != ClipPad {
			t.Errorf("expected padding after EOS, got %d", id)
			break
		}
	}
}

func TestClipDecodeFramedSequence(t *testing.T) {
	enc := tinyClipEncoding(t)
	ids := enc.EncodeOrdinary("cat")
	framed := enc.afterEncode(ids)
	got, err := enc.DecodeUTF8(framed)
	if err != nil {
		t.Fatalf("DecodeUTF8: %v", err)
	}
	want := "<|startoftext|>cat <|endoftext|>"
	if got != want {
		t.Errorf("DecodeUTF8(framed) = %q, want %q", got, want)
	}
}

func TestClipBeforeDecodeStripsPadding(t *testing.T) {
	enc := tinyClipEncoding(t)
	ids := []Rank{ClipBeginningOfSentence, 5, ClipEndOfSentence, ClipPad, ClipPad}
	stripped := enc.beforeDecode(ids)
	if len(stripped) != 3 {
		t.Errorf("beforeDecode left %d ids, want 3", len(stripped))
	}
}

func TestCollapseASCIIWhitespace(t *testing.T) {
	cases := map[string]string{
		"  a   b  ": "a b",
		"a":         "a",
		"":          "",
		"a\tb\nc":   "a b c",
	}
	for in, want := range cases {
		if got := collapseASCIIWhitespace(in); got != want {
			t.Errorf("collapseASCIIWhitespace(%q) = %q, want %q", in, got, want)
		}
	}
}
