package bpe

import (
	"reflect"
	"testing"
)

// TestMergeTieBreakLeftmost verifies that when two merges tie on minimum
// rank, the leftmost is performed first.
func TestMergeTieBreakLeftmost(t *testing.T) {
	// Vocabulary: single bytes "a","b","c" plus pair ranks for "ab" and
	// "bc" tied at the same rank; "abc" itself is absent.
	ranks := map[string]Rank{
		"a":  0,
		"b":  1,
		"c":  2,
		"ab": 10,
		"bc": 10,
	}
	got := bytePairEncode([]byte("abc"), ranks)
	want := []Rank{ranks["ab"], ranks["c"]}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("bytePairEncode(\"abc\") = %v, want %v (leftmost merge \"ab\" should win the tie)", got, want)
	}
}

func TestMergeSingleByte(t *testing.T) {
	ranks := map[string]Rank{"x": 42}
	got := bytePairEncode([]byte("x"), ranks)
	want := []Rank{42}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("bytePairEncode(\"x\") = %v, want %v", got, want)
	}
}

func TestMergeFullWord(t *testing.T) {
	// "low" merges fully down to one token when every intermediate pair
	// is in the vocabulary, cheapest rank wins at each step.
	ranks := map[string]Rank{
		"l": 0, "o": 1, "w": 2,
		"lo": 10, "ow": 11, "low": 5,
	}
	got := bytePairEncode([]byte("low"), ranks)
	want := []Rank{5}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("bytePairEncode(\"low\") = %v, want %v", got, want)
	}
}

func TestRankAtOutOfBounds(t *testing.T) {
	ranks := map[string]Rank{"ab": 1}
	if r := rankAt([]byte("ab"), -1, 1, ranks); r != infRank {
		t.Errorf("rankAt with negative from = %d, want infRank", r)
	}
	if r := rankAt([]byte("ab"), 0, 3, ranks); r != infRank {
		t.Errorf("rankAt with out-of-bounds to = %d, want infRank", r)
	}
	if r := rankAt([]byte("ab"), 0, 2, ranks); r != 1 {
		t.Errorf("rankAt(0,2) = %d, want 1", r)
	}
}
