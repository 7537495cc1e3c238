package graph

import (
	"github.com/mudesheng/cdbg/internal/covvec"
	"github.com/mudesheng/cdbg/internal/kmer"
)

// minBin looks up the minimizer bin for m, returning nil if empty.
func (g *Graph) minBin(m kmer.Minimizer) []minRef {
	return g.minIndex[keyOf(m)]
}

// overcrowded reports whether a bin's trailing entry is the overcrowded
// sentinel, per spec.md 3's "a bin may hold ... an overcrowded
// sentinel" (always last, since it means "stop here, try the next
// minimizer of the window").
func overcrowded(bin []minRef) bool {
	return len(bin) > 0 && bin[len(bin)-1].Kind == minRefOvercrowded
}

// abundantCountOf returns the AbundantCount sentinel entry of bin, if
// present.
func abundantCountOf(bin []minRef) (minRef, bool) {
	for _, e := range bin {
		if e.Kind == minRefAbundantCount {
			return e, true
		}
	}
	return minRef{}, false
}

// Find locates km in the store, per spec.md 4.C: iterate km's
// minimizers in tie-break order; for each, consult its bin; dispatch on
// what's found (abundant sentinel vs. ordinary unitig references);
// honor the overcrowded escape by trying the next minimizer.
func (g *Graph) Find(km kmer.Kmer) (UnitigMap, error) {
	if err := g.checkValid(); err != nil {
		return UnitigMap{}, err
	}
	rep := km.Rep()
	strand := rep.Equal(km)

	it := kmer.NewMinimizerIterator(km, g.Cfg.G)
	for {
		m, _, ok := it.Next()
		if !ok {
			break
		}
		bin := g.minBin(m)
		if len(bin) == 0 {
			continue
		}
		if _, found := abundantCountOf(bin); found {
			if _, ok := g.hKmersCcov.Find(keyOf(rep)); ok {
				return UnitigMap{
					Ref:       UnitigRef{Repr: ReprAbundant},
					Offset:    0,
					Len:       1,
					UnitigLen: g.Cfg.K,
					Strand:    strand,
				}, nil
			}
		}
		if um, found := g.scanBinForMatch(bin, rep, strand); found {
			return um, nil
		}
		if !overcrowded(bin) {
			// This bin was consulted and did not hold km: per spec.md
			// 4.C only the overcrowded escape tries further
			// minimizers, otherwise an exhausted non-overcrowded bin
			// means km is absent.
			break
		}
	}
	return UnitigMap{}, nil
}

// scanBinForMatch checks every ordinary unitig reference in bin for a
// k-mer-exact match against rep (the query's canonical form). strand
// says whether the query equals rep; the returned Strand says whether
// the query reads forward on the matched unitig at the returned offset.
func (g *Graph) scanBinForMatch(bin []minRef, rep kmer.Kmer, strand bool) (UnitigMap, bool) {
	for _, e := range bin {
		if e.Kind != minRefUnitig {
			continue
		}
		seq := g.seqOf(UnitigRef{Repr: e.Repr, ID: e.ID})
		if seq == nil {
			continue
		}
		if off, ok := matchAt(seq, e.Offset, rep, g.Cfg.K); ok {
			stored, _ := kmer.New(seq[off : off+g.Cfg.K])
			return UnitigMap{
				Ref:       UnitigRef{Repr: e.Repr, ID: e.ID},
				Offset:    off,
				Len:       1,
				UnitigLen: len(seq),
				Strand:    stored.Equal(rep) == strand,
			}, true
		}
	}
	return UnitigMap{}, false
}

// matchAt checks the k-mer at seq[e.Offset:e.Offset+k] and its
// neighborhood (the minimizer may recur at nearby offsets within the
// unitig) for an exact match to rep, returning the matching offset.
func matchAt(seq []byte, hint int, rep kmer.Kmer, k int) (int, bool) {
	if hint >= 0 && hint+k <= len(seq) {
		if km, err := kmer.New(seq[hint : hint+k]); err == nil && km.Rep().Equal(rep) {
			return hint, true
		}
	}
	for o := 0; o+k <= len(seq); o++ {
		km, err := kmer.New(seq[o : o+k])
		if err != nil {
			continue
		}
		if km.Rep().Equal(rep) {
			return o, true
		}
	}
	return 0, false
}

// FindUnitig extends a single-k-mer Find into the longest run of
// consecutive matching k-mers starting at km along read, per spec.md
// 4.C's "FindUnitig extends Find by walking forward while consecutive
// read k-mers continue to match the same unitig".
func (g *Graph) FindUnitig(read []byte, start int) (UnitigMap, error) {
	if start+g.Cfg.K > len(read) {
		return UnitigMap{}, nil
	}
	seed, err := kmer.New(read[start : start+g.Cfg.K])
	if err != nil {
		return UnitigMap{}, err
	}
	um, err := g.Find(seed)
	if err != nil || um.Empty() {
		return um, err
	}
	// Walk forward extending the match while consecutive read bases
	// continue the same unitig strand.
	seq := g.seqOf(um.Ref)
	if seq == nil {
		seq = g.AbundantSeq(seed.Rep())
	}
	pos := start + g.Cfg.K
	uPos := um.Offset + g.Cfg.K
	step := 1
	if !um.Strand {
		step = -1
	}
	for pos < len(read) {
		var uBase byte
		if um.Strand {
			if uPos >= len(seq) {
				break
			}
			uBase = seq[uPos]
		} else {
			if um.Offset-1 < 0 {
				break
			}
			c, cerr := kmer.EncodeBase(seq[um.Offset-1])
			if cerr != nil {
				break
			}
			uBase = kmer.DecodeBase(kmer.CompBase(c))
		}
		if uBase != read[pos] {
			break
		}
		if !um.Strand {
			um.Offset--
		}
		pos++
		uPos += step
		um.Len++
	}
	return um, nil
}

// newShortEntry constructs a tombstone-free short-unitig entry.
func newShortEntry(km kmer.Kmer, cov covvec.CompressedCoverage) shortEntry {
	return shortEntry{Km: km.Rep(), Cov: cov}
}
