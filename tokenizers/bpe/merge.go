package bpe

// Rank is a vocabulary entry's rank: its merge priority (lower merges
// first) and, for regular tokens, its token id.
type Rank = uint32

// infRank marks the absence of a mergeable rank for a pair.
const infRank Rank = ^Rank(0)

// part is one element of the working representation used while merging a
// byte fragment: the byte offset where it starts, and the rank the fragment
// formed by merging it with its right neighbor would have (infRank if no
// such merge exists in the vocabulary).
type part struct {
	start int
	rank  Rank
}

// rankAt looks up the rank of piece[from:to] in ranks, or infRank if absent
// or out of bounds.
func rankAt(piece []byte, from, to int, ranks map[string]Rank) Rank {
	if from < 0 || to > len(piece) || from >= to {
		return infRank
	}
	if r, ok := ranks[string(piece[from:to])]; ok {
		return r
	}
	return infRank
}

// bytePairMerge runs the canonical tiktoken merge loop over
// piece, returning the final list of parts; the rank of token w is
// ranks[piece[parts[w].start:parts[w+1].start]].
//
// Tie-break invariant: among pairs with equal minimum rank, the leftmost is
// merged first — the scan for the next minimum always favors the smallest
// index on ties (strict '<' comparison below), and ties are re-evaluated
// from scratch after every merge, so this holds at every step.
func bytePairMerge(piece []byte, ranks map[string]Rank) []part {
	parts := make([]part, 0, len(piece)+1)
	for i := 0; i < len(piece)-1; i++ {
		parts = append(parts, part{start: i, rank: rankAt(piece, i, i+2, ranks)})
	}
	parts = append(parts, part{start: len(piece) - 1, rank: infRank})
	parts = append(parts, part{start: len(piece), rank: infRank})

	getRank := func(parts []part, i int) Rank {
		if i+3 < len(parts) {
			return rankAt(piece, parts[i].start, parts[i+3].start, ranks)
		}
		return infRank
	}

	findMin := func(parts []part) (Rank, int) {
		minRank, minIdx := infRank, -1
		for j := 0; j < len(parts)-1; j++ {
			if parts[j].rank < minRank {
				minRank, minIdx = parts[j].rank, j
			}
		}
		return minRank, minIdx
	}

	minRank, minIdx := findMin(parts)
	for minRank != infRank {
		i := minIdx
		if i > 0 {
			parts[i-1].rank = getRank(parts, i-1)
		}
		parts[i].rank = getRank(parts, i)
		parts = append(parts[:i+1], parts[i+2:]...)
		minRank, minIdx = findMin(parts)
	}
	return parts
}

// bytePairEncode returns the ordered list of token ranks for a byte
// fragment. Single-byte fragments are returned directly without running
// the merge loop.
func bytePairEncode(piece []byte, ranks map[string]Rank) []Rank {
	if len(piece) == 1 {
		return []Rank{ranks[string(piece)]}
	}
	parts := bytePairMerge(piece, ranks)
	out := make([]Rank, 0, len(parts)-1)
	for i := 0; i+1 < len(parts); i++ {
		out = append(out, ranks[string(piece[parts[i].start:parts[i+1].start])])
	}
	return out
}
