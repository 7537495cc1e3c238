package graph

import (
	"github.com/mudesheng/cdbg/internal/bloomfilter"
	"github.com/mudesheng/cdbg/internal/covvec"
	"github.com/mudesheng/cdbg/internal/kmer"
)

var bases = [4]byte{'A', 'C', 'G', 'T'}

// bfHash computes the one hash every bloom-filter query/insert in this
// package agrees on: CuckooFilter.Insert's doc comment requires the
// same hash for insertion and lookup, so every Contains call here uses
// rep.Hash(0) for both the fingerprint and the block argument.
func bfHash(km kmer.Kmer) uint64 { return km.Rep().Hash(0) }

func bfContains(km kmer.Kmer, bf bloomfilter.BloomFilter) bool {
	h := bfHash(km)
	return bf.Contains(h, bf.GetBlock(h))
}

// rawCandidates returns every one-base extension of km (forward or
// backward) the bloom filter reports present, with no false-positive
// filtering.
func rawCandidates(km kmer.Kmer, bf bloomfilter.BloomFilter, forward bool) []kmer.Kmer {
	var out []kmer.Kmer
	for _, b := range bases {
		c, err := kmer.EncodeBase(b)
		if err != nil {
			continue
		}
		var ext kmer.Kmer
		if forward {
			ext = km.ForwardExt(c)
		} else {
			ext = km.BackwardExt(c)
		}
		if bfContains(ext, bf) {
			out = append(out, ext)
		}
	}
	return out
}

// pruneFalsePositives applies spec.md 4.D step 4 to a set of ≥2
// candidate neighbors: a candidate whose own onward probe (in the same
// direction the walk is going) comes back empty is a dead-end tip, almost certainly a bloom-filter
// false positive rather than a real branch, and is dropped. What
// remains is the true branching degree. Every dropped candidate's
// canonical k-mer is appended to ignoredKmTips.
func pruneFalsePositives(cands []kmer.Kmer, bf bloomfilter.BloomFilter, forward bool, ignoredKmTips *[]kmer.Kmer) []kmer.Kmer {
	var kept []kmer.Kmer
	for _, cand := range cands {
		if len(rawCandidates(cand, bf, forward)) == 0 {
			if ignoredKmTips != nil {
				*ignoredKmTips = append(*ignoredKmTips, cand.Rep())
			}
			continue
		}
		kept = append(kept, cand)
	}
	return kept
}

// confirmStep implements spec.md 4.D step 5: a symmetric second-step
// check from chosen back toward cameFrom, applying the same
// false-positive filtering the forward step used. A chosen neighbor
// that itself branches ≥2 ways backward must resolve to exactly one
// true backward neighbor, or the step is rejected.
func confirmStep(chosen kmer.Kmer, bf bloomfilter.BloomFilter, forward bool, ignoredKmTips *[]kmer.Kmer) bool {
	back := rawCandidates(chosen, bf, !forward)
	switch len(back) {
	case 0:
		return false
	case 1:
		return true
	default:
		return len(pruneFalsePositives(back, bf, !forward, ignoredKmTips)) == 1
	}
}

// step is the shared implementation of fwBfStep/bwBfStep, per spec.md
// 4.D: probe all four one-base extensions; zero present stops the
// walk; exactly one present advances directly; two or more triggers
// the false-positive pruning pass (step 4), and whatever single true
// neighbor survives still has to pass the symmetric back-check (step
// 5) before the walker accepts it.
func step(km kmer.Kmer, bf bloomfilter.BloomFilter, forward bool, ignoredKmTips *[]kmer.Kmer) (kmer.Kmer, bool) {
	cands := rawCandidates(km, bf, forward)
	var chosen kmer.Kmer
	switch len(cands) {
	case 0:
		return kmer.Kmer{}, false
	case 1:
		chosen = cands[0]
	default:
		true_ := pruneFalsePositives(cands, bf, forward, ignoredKmTips)
		if len(true_) != 1 {
			return kmer.Kmer{}, false
		}
		chosen = true_[0]
	}
	if !confirmStep(chosen, bf, forward, ignoredKmTips) {
		return kmer.Kmer{}, false
	}
	return chosen, true
}

// fwBfStep looks for the unique forward extension of km the walker
// should follow, per spec.md 4.D.
func fwBfStep(km kmer.Kmer, bf bloomfilter.BloomFilter, ignoredKmTips *[]kmer.Kmer) (kmer.Kmer, bool) {
	return step(km, bf, true, ignoredKmTips)
}

// bwBfStep is fwBfStep's mirror for backward extension.
func bwBfStep(km kmer.Kmer, bf bloomfilter.BloomFilter, ignoredKmTips *[]kmer.Kmer) (kmer.Kmer, bool) {
	return step(km, bf, false, ignoredKmTips)
}

// walkState accumulates a unitig sequence while it's being built by
// FindUnitigSequence.
type walkState struct {
	seq     []byte
	cov     []uint8
	visited map[string]bool
}

func newWalkState(seed kmer.Kmer) *walkState {
	ws := &walkState{seq: seed.Bytes(), visited: make(map[string]bool)}
	ws.cov = make([]uint8, 1)
	ws.visited[string(seed.Rep().Bytes())] = true
	return ws
}

// FindUnitigSequence extends seed greedily in both directions through
// bf-confirmed unique extensions, per spec.md 4.D. A visited-set guard
// (the supplemented feature recorded in SPEC_FULL.md, grounded on
// ContigMapper.cpp's cycle handling) stops the walk the moment it
// would reach a k-mer already on the walk, in either orientation,
// rather than looping forever on a circular unitig. selfLoop=true is
// reported only when that k-mer is seed itself in the same
// orientation; reaching seed's reverse complement (a hairpin) or any
// other walked k-mer just ends that direction. isolated reports
// whether neither direction extended at all (seed is its own unitig).
// Every k-mer pruned as a false-positive tip candidate along the way is
// appended to the returned ignoredTips, for a later check_fp_tips pass
// (CheckFPTips) to resolve.
func FindUnitigSequence(seed kmer.Kmer, bf bloomfilter.BloomFilter, k, g int) (seq []byte, cov covvec.CompressedCoverage, ignoredTips []kmer.Kmer, selfLoop, isolated bool) {
	ws := newWalkState(seed)

	cur := seed
	extendedFwd := false
	for {
		nxt, ok := fwBfStep(cur, bf, &ignoredTips)
		if !ok {
			break
		}
		key := string(nxt.Rep().Bytes())
		if ws.visited[key] {
			if nxt.Equal(seed) {
				selfLoop = true
			}
			break
		}
		ws.visited[key] = true
		ws.seq = append(ws.seq, kmer.DecodeBase(nxt.BaseAt(k-1)))
		ws.cov = append(ws.cov, 0)
		cur = nxt
		extendedFwd = true
	}

	cur = seed
	extendedBwd := false
	var prefix []byte
	for {
		prv, ok := bwBfStep(cur, bf, &ignoredTips)
		if !ok {
			break
		}
		key := string(prv.Rep().Bytes())
		if ws.visited[key] {
			if prv.Equal(seed) {
				selfLoop = true
			}
			break
		}
		ws.visited[key] = true
		prefix = append([]byte{kmer.DecodeBase(prv.BaseAt(0))}, prefix...)
		cur = prv
		extendedBwd = true
	}

	if len(prefix) > 0 {
		ws.seq = append(prefix, ws.seq...)
		ws.cov = append(make([]uint8, len(prefix)), ws.cov...)
	}

	isolated = !extendedFwd && !extendedBwd
	cc := covvec.New(len(ws.cov))
	cc.Cover(0, len(ws.cov))
	return ws.seq, cc, ignoredTips, selfLoop, isolated
}

// CheckFPTips implements spec.md 4.E's check_fp_tips(ignored_km_tips):
// for every k-mer the walker pruned as a probable false-positive tip,
// if it still exists as a short (single-k-mer) unitig in the store
// (nothing removed it in the meantime), find the unique unitig it
// attaches to. If that attachment lands in the interior of a long
// unitig rather than at one of its ends, the long unitig is split at
// the attachment offset so the tip's k-mer becomes a real, addressable
// boundary instead of silently fusing into the middle of another
// unitig's sequence.
func (g *Graph) CheckFPTips(ignoredKmTips []kmer.Kmer) (split int, err error) {
	if err := g.checkValid(); err != nil {
		return 0, err
	}
	for _, tip := range ignoredKmTips {
		if _, ok := g.shortRefOf(tip); !ok {
			continue // already promoted, joined or removed elsewhere
		}
		neighbor, found, nerr := g.uniqueNeighbor(tip)
		if nerr != nil {
			return split, nerr
		}
		if !found {
			continue
		}
		um, ferr := g.Find(neighbor)
		if ferr != nil {
			return split, ferr
		}
		if um.Empty() || um.Ref.Repr != ReprLong {
			continue
		}
		if um.Offset == 0 || um.Offset+g.Cfg.K == um.UnitigLen {
			continue // attaches at an end already, nothing to split
		}
		if err := g.splitAt(um.Ref, um.Offset); err != nil {
			return split, err
		}
		split++
	}
	return split, nil
}

// shortRefOf finds the live short-unitig ref currently storing km, if
// any.
func (g *Graph) shortRefOf(km kmer.Kmer) (UnitigRef, bool) {
	rep := km.Rep()
	for _, ref := range g.AllShortRefs() {
		if g.vKmers[ref.ID].Km.Equal(rep) {
			return ref, true
		}
	}
	return UnitigRef{}, false
}

// uniqueNeighbor returns km's single predecessor-or-successor k-mer, if
// it has exactly one.
func (g *Graph) uniqueNeighbor(km kmer.Kmer) (kmer.Kmer, bool, error) {
	count, neighbor, err := g.neighborDegree(km)
	if err != nil {
		return kmer.Kmer{}, false, err
	}
	if count != 1 {
		return kmer.Kmer{}, false, nil
	}
	return neighbor, true, nil
}

// splitAt breaks the long unitig at ref into two new unitigs at base
// offset, discarding no sequence: the k-1 bases around the cut appear
// in both halves, so each half is at least k bases long and every
// k-mer of the original lands in exactly one half (the k-mer at offset
// becomes the right half's first k-mer).
func (g *Graph) splitAt(ref UnitigRef, offset int) error {
	if int(ref.ID) >= len(g.vUnitigs) || g.vUnitigs[ref.ID] == nil {
		return nil
	}
	u := g.vUnitigs[ref.ID]
	seq := u.Seq
	cov := u.Cov
	k := g.Cfg.K
	if offset <= 0 || offset+k >= len(seq) {
		return nil
	}
	left := seq[:offset+k-1]
	right := seq[offset:]
	leftN := len(left) - k + 1
	rightN := len(right) - k + 1
	leftCov := cov.Slice(0, leftN)
	rightCov := cov.Slice(cov.NumKmers()-rightN, cov.NumKmers())

	if err := g.DeleteUnitig(ref); err != nil {
		return err
	}
	if _, err := g.AddUnitig(left, leftCov); err != nil {
		return err
	}
	if _, err := g.AddUnitig(right, rightCov); err != nil {
		return err
	}
	return nil
}
