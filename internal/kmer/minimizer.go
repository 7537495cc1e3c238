package kmer

import "sort"

// Minimizer is a canonical g-mer drawn from some k-mer window. It is
// represented with the same packed Kmer type since it is itself just a
// shorter canonical DNA word.
type Minimizer = Kmer

type minCandidate struct {
	min    Minimizer
	hash   uint64
	offset int
}

// MinimizerIterator walks the distinct-hash canonical g-mers of a single
// k-mer window in increasing-hash order. Next() first returns the
// window's minimizer (first-minimum tie-break on hash, then smallest
// offset); subsequent calls return the "alternate minimum" minimizers of
// the same window, used by the store to escape an overcrowded bin.
type MinimizerIterator struct {
	cands []minCandidate
	pos   int
}

// NewMinimizerIterator builds the iterator for k-mer km and minimizer
// length g. km must have K >= g.
func NewMinimizerIterator(km Kmer, g int) *MinimizerIterator {
	nWindows := km.K - g + 1
	all := make([]minCandidate, 0, nWindows)
	for o := 0; o < nWindows; o++ {
		win := windowBytes(km, o, g)
		wk, err := New(win)
		if err != nil {
			continue
		}
		rep := wk.Rep()
		all = append(all, minCandidate{min: rep, hash: rep.Hash(0), offset: o})
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].hash != all[j].hash {
			return all[i].hash < all[j].hash
		}
		return all[i].offset < all[j].offset
	})
	// Dedupe by hash: keep only the first (lowest-offset) occurrence of
	// each distinct hash value, matching "next distinct-hash minimizer".
	dedup := all[:0:0]
	seen := make(map[uint64]bool, len(all))
	for _, c := range all {
		if seen[c.hash] {
			continue
		}
		seen[c.hash] = true
		dedup = append(dedup, c)
	}
	return &MinimizerIterator{cands: dedup}
}

// Next returns the next distinct-hash minimizer of the window along with
// its offset inside the window, or ok=false when exhausted.
func (it *MinimizerIterator) Next() (min Minimizer, offset int, ok bool) {
	if it.pos >= len(it.cands) {
		return Minimizer{}, 0, false
	}
	c := it.cands[it.pos]
	it.pos++
	return c.min, c.offset, true
}

func windowBytes(km Kmer, offset, g int) []byte {
	out := make([]byte, g)
	for i := 0; i < g; i++ {
		out[i] = DecodeBase(km.BaseAt(offset + i))
	}
	return out
}

// MinimizerOf returns the first-minimum canonical minimizer of the k-mer
// window, matching spec.md's "tie-break policy (first minimum wins)".
func MinimizerOf(km Kmer, g int) (Minimizer, int) {
	it := NewMinimizerIterator(km, g)
	m, o, ok := it.Next()
	if !ok {
		// No valid g-mer window (g > k, or no window of valid bases):
		// fall back to the k-mer itself.
		return km.Rep(), 0
	}
	return m, o
}

// SeqMinOccurrence is one run of consecutive k-mer windows in a unitig
// sequence sharing the same minimizer: Offset is the position (0-based,
// k-mer-window start) of the first window in the run.
type SeqMinOccurrence struct {
	Min    Minimizer
	Offset int
}

// WalkSequenceMinimizers scans every k-mer window of seq (length k,
// sliding by 1 over seq's L-k+1 positions) and returns one
// SeqMinOccurrence per *new* minimizer position: runs of consecutive
// windows sharing the same canonical minimizer are collapsed to their
// first offset, matching spec.md 4.E's "walking a minHashIterator and
// jumping past positions covered by the previous minimizer".
func WalkSequenceMinimizers(seq []byte, k, g int) []SeqMinOccurrence {
	nWindows := len(seq) - k + 1
	if nWindows <= 0 {
		return nil
	}
	var out []SeqMinOccurrence
	var prevHash uint64
	havePrev := false
	for p := 0; p < nWindows; p++ {
		km, err := New(seq[p : p+k])
		if err != nil {
			continue
		}
		m, _ := MinimizerOf(km, g)
		h := m.Hash(0)
		if havePrev && h == prevHash {
			continue
		}
		out = append(out, SeqMinOccurrence{Min: m, Offset: p})
		prevHash = h
		havePrev = true
	}
	return out
}
