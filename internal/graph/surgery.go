package graph

import (
	"fmt"

	"github.com/mudesheng/cdbg/internal/covvec"
	"github.com/mudesheng/cdbg/internal/kmer"
)

// AddUnitig inserts seq as a new unitig with cov as its coverage
// vector, returning its stable reference. Per spec.md 4.E and the
// Open Question decision recorded in DESIGN.md (no speculative
// promotion check mid-insert: the representation is decided once, up
// front, from the current index state), a single-k-mer seq is routed
// to either the dense short table or the abundant table depending on
// whether its minimizer bin is already crowded; anything longer always
// becomes a long unitig.
func (g *Graph) AddUnitig(seq []byte, cov covvec.CompressedCoverage) (UnitigRef, error) {
	if err := g.checkValid(); err != nil {
		return UnitigRef{}, err
	}
	if len(seq) < g.Cfg.K {
		return UnitigRef{}, fmt.Errorf("[AddUnitig] sequence length %d shorter than k=%d", len(seq), g.Cfg.K)
	}
	if len(seq) == g.Cfg.K {
		return g.addSingleKmerUnitig(seq, cov)
	}
	ref, err := g.allocLong(seq, cov)
	if err != nil {
		return UnitigRef{}, err
	}
	g.indexUnitig(seq, ref)
	return ref, nil
}

func (g *Graph) addSingleKmerUnitig(seq []byte, cov covvec.CompressedCoverage) (UnitigRef, error) {
	km, err := kmer.New(seq)
	if err != nil {
		return UnitigRef{}, err
	}
	if g.promoteToAbundant(km) {
		g.hKmersCcov.Insert(keyOf(km.Rep()), &abundantEntry{Km: km.Rep(), Cov: cov})
		g.markAbundant(km)
		return UnitigRef{Repr: ReprAbundant}, nil
	}
	ref := g.allocShort(newShortEntry(km, cov))
	g.indexUnitig(km.Rep().Bytes(), ref)
	return ref, nil
}

// allocLong appends a new long unitig, reusing a tombstoned slot if one
// exists.
func (g *Graph) allocLong(seq []byte, cov covvec.CompressedCoverage) (UnitigRef, error) {
	for i, u := range g.vUnitigs {
		if u == nil {
			g.vUnitigs[i] = newUnitig(seq, cov)
			return UnitigRef{Repr: ReprLong, ID: uint32(i)}, nil
		}
	}
	g.vUnitigs = append(g.vUnitigs, newUnitig(seq, cov))
	return UnitigRef{Repr: ReprLong, ID: uint32(len(g.vUnitigs) - 1)}, nil
}

func (g *Graph) allocShort(e shortEntry) UnitigRef {
	for i, s := range g.vKmers {
		if s.Deleted {
			g.vKmers[i] = e
			return UnitigRef{Repr: ReprShort, ID: uint32(i)}
		}
	}
	g.vKmers = append(g.vKmers, e)
	return UnitigRef{Repr: ReprShort, ID: uint32(len(g.vKmers) - 1)}
}

// DeleteUnitig tombstones ref and removes its minimizer-index entries,
// per spec.md 4.E: slots are never compacted, only marked deleted, so
// other references by (representation, index) remain valid.
func (g *Graph) DeleteUnitig(ref UnitigRef) error {
	if err := g.checkValid(); err != nil {
		return err
	}
	switch ref.Repr {
	case ReprLong:
		if int(ref.ID) >= len(g.vUnitigs) || g.vUnitigs[ref.ID] == nil {
			return fmt.Errorf("[DeleteUnitig] %v already deleted or out of range", ref)
		}
		seq := g.vUnitigs[ref.ID].Seq
		g.deindexUnitig(seq, ref)
		g.vUnitigs[ref.ID] = nil
	case ReprShort:
		if int(ref.ID) >= len(g.vKmers) || g.vKmers[ref.ID].Deleted {
			return fmt.Errorf("[DeleteUnitig] %v already deleted or out of range", ref)
		}
		seq := g.vKmers[ref.ID].Km.Bytes()
		g.deindexUnitig(seq, ref)
		g.vKmers[ref.ID].Deleted = true
		g.vKmers[ref.ID].Km = kmer.Kmer{}
	default:
		return fmt.Errorf("[DeleteUnitig] abundant unitigs are deleted by key, not ref")
	}
	return nil
}

// DeleteAbundant removes the abundant unitig keyed by km's canonical
// form.
func (g *Graph) DeleteAbundant(km kmer.Kmer) error {
	if err := g.checkValid(); err != nil {
		return err
	}
	key := keyOf(km.Rep())
	if _, ok := g.hKmersCcov.Find(key); !ok {
		return fmt.Errorf("[DeleteAbundant] no entry for given k-mer")
	}
	g.hKmersCcov.Erase(key)
	return nil
}

// SwapUnitigs exchanges the contents of two same-representation slots,
// fixing up every minimizer-index reference that pointed at either ID.
// No other routine in this package calls it. Per
// spec.md 4.E, swapping never changes a reference's Offset, only which
// ID it names.
func (g *Graph) SwapUnitigs(a, b UnitigRef) error {
	if err := g.checkValid(); err != nil {
		return err
	}
	if a.Repr != b.Repr {
		return fmt.Errorf("[SwapUnitigs] cannot swap across representations (%v, %v)", a.Repr, b.Repr)
	}
	switch a.Repr {
	case ReprLong:
		if int(a.ID) >= len(g.vUnitigs) || int(b.ID) >= len(g.vUnitigs) {
			return fmt.Errorf("[SwapUnitigs] index out of range")
		}
		g.vUnitigs[a.ID], g.vUnitigs[b.ID] = g.vUnitigs[b.ID], g.vUnitigs[a.ID]
	case ReprShort:
		if int(a.ID) >= len(g.vKmers) || int(b.ID) >= len(g.vKmers) {
			return fmt.Errorf("[SwapUnitigs] index out of range")
		}
		g.vKmers[a.ID], g.vKmers[b.ID] = g.vKmers[b.ID], g.vKmers[a.ID]
	default:
		return fmt.Errorf("[SwapUnitigs] abundant unitigs have no stable index to swap")
	}
	g.swapIndexRefs(a, b)
	return nil
}

func (g *Graph) swapIndexRefs(a, b UnitigRef) {
	for key, bin := range g.minIndex {
		changed := false
		for i, e := range bin {
			if e.Kind != minRefUnitig || e.Repr != a.Repr {
				continue
			}
			switch e.ID {
			case a.ID:
				bin[i].ID = b.ID
				changed = true
			case b.ID:
				bin[i].ID = a.ID
				changed = true
			}
		}
		if changed {
			g.minIndex[key] = bin
		}
	}
}

// neighborDegree counts km's live predecessor-plus-successor neighbors
// (the unitigs, if any, that a one-base forward or backward extension
// of km resolves to via Find) and returns the last one seen. Shared by
// RemoveUnitigs's tip detection and the walker's check_fp_tips pass.
func (g *Graph) neighborDegree(km kmer.Kmer) (count int, neighbor kmer.Kmer, err error) {
	for _, b := range bases {
		c := mustEncode(b)
		ext := km.ForwardExt(c)
		um, ferr := g.Find(ext)
		if ferr != nil {
			return 0, kmer.Kmer{}, ferr
		}
		if !um.Empty() {
			count++
			neighbor = ext
		}
	}
	for _, b := range bases {
		c := mustEncode(b)
		ext := km.BackwardExt(c)
		um, ferr := g.Find(ext)
		if ferr != nil {
			return 0, kmer.Kmer{}, ferr
		}
		if !um.Empty() {
			count++
			neighbor = ext
		}
	}
	return count, neighbor, nil
}

// unitigDegree is neighborDegree generalized to a whole unitig ref:
// predecessors of its first k-mer plus successors of its last k-mer,
// excluding any match back onto ref itself (a single-k-mer unitig's
// first and last k-mer coincide, so neighborDegree already covers it;
// a multi-k-mer unitig needs both ends probed separately).
func (g *Graph) unitigDegree(ref UnitigRef) (count int, neighbor kmer.Kmer, err error) {
	seq := g.seqOf(ref)
	if seq == nil {
		return 0, kmer.Kmer{}, nil
	}
	last, err := lastKmer(seq, g.Cfg.K)
	if err != nil {
		return 0, kmer.Kmer{}, err
	}
	for _, b := range bases {
		c := mustEncode(b)
		ext := last.ForwardExt(c)
		um, ferr := g.Find(ext)
		if ferr != nil {
			return 0, kmer.Kmer{}, ferr
		}
		if !um.Empty() && um.Ref != ref {
			count++
			neighbor = ext
		}
	}
	first, err := firstKmer(seq, g.Cfg.K)
	if err != nil {
		return 0, kmer.Kmer{}, err
	}
	for _, b := range bases {
		c := mustEncode(b)
		ext := first.BackwardExt(c)
		um, ferr := g.Find(ext)
		if ferr != nil {
			return 0, kmer.Kmer{}, ferr
		}
		if !um.Empty() && um.Ref != ref {
			count++
			neighbor = ext
		}
	}
	return count, neighbor, nil
}

// RemoveUnitigs implements spec.md 4.E's removeUnitigs(rmIsolated,
// clipTips, out kept_tip_neighbors): every unitig with fewer than k
// k-mers (short and abundant representations always qualify;
// long unitigs qualify when they hold fewer than k k-mers) whose
// predecessor-plus-successor degree is at most lim is removed, where
// lim is 1 when clipping tips and 0 when only removing fully isolated
// unitigs. The one surviving neighbor k-mer of each removed tip (a
// removed unitig with degree exactly 1) is appended to
// keptTipNeighbors, for a later JoinAllUnitigs pass to re-merge at.
func (g *Graph) RemoveUnitigs(rmIsolated, clipTips bool) (removed int, keptTipNeighbors []kmer.Kmer, err error) {
	if err := g.checkValid(); err != nil {
		return 0, nil, err
	}
	if !rmIsolated && !clipTips {
		return 0, nil, nil
	}
	lim := 0
	if clipTips {
		lim = 1
	}

	for _, ref := range g.AllShortRefs() {
		if g.IsTombstoned(ref) {
			continue
		}
		count, neighbor, derr := g.unitigDegree(ref)
		if derr != nil {
			return removed, keptTipNeighbors, derr
		}
		if count > lim {
			continue
		}
		if err := g.DeleteUnitig(ref); err != nil {
			return removed, keptTipNeighbors, err
		}
		removed++
		if count == 1 {
			keptTipNeighbors = append(keptTipNeighbors, neighbor)
		}
	}

	for _, ref := range g.AllLongRefs() {
		if g.IsTombstoned(ref) {
			continue
		}
		u := g.vUnitigs[ref.ID]
		if u.Length()-g.Cfg.K+1 >= g.Cfg.K {
			continue // not "shorter than k k-mers"
		}
		count, neighbor, derr := g.unitigDegree(ref)
		if derr != nil {
			return removed, keptTipNeighbors, derr
		}
		if count > lim {
			continue
		}
		if err := g.DeleteUnitig(ref); err != nil {
			return removed, keptTipNeighbors, err
		}
		removed++
		if count == 1 {
			keptTipNeighbors = append(keptTipNeighbors, neighbor)
		}
	}

	var abundantKms []kmer.Kmer
	g.hKmersCcov.Each(func(_ minKey, e *abundantEntry) {
		abundantKms = append(abundantKms, e.Km)
	})
	for _, km := range abundantKms {
		count, neighbor, derr := g.neighborDegree(km)
		if derr != nil {
			return removed, keptTipNeighbors, derr
		}
		if count > lim {
			continue
		}
		if err := g.DeleteAbundant(km); err != nil {
			return removed, keptTipNeighbors, err
		}
		removed++
		if count == 1 {
			keptTipNeighbors = append(keptTipNeighbors, neighbor)
		}
	}

	return removed, keptTipNeighbors, nil
}

// AllLongRefs returns the UnitigRef of every live long unitig, in slot
// order.
func (g *Graph) AllLongRefs() []UnitigRef {
	var out []UnitigRef
	for i, u := range g.vUnitigs {
		if u != nil {
			out = append(out, UnitigRef{Repr: ReprLong, ID: uint32(i)})
		}
	}
	return out
}

// AllShortRefs returns the UnitigRef of every live short unitig.
func (g *Graph) AllShortRefs() []UnitigRef {
	var out []UnitigRef
	for i, s := range g.vKmers {
		if !s.Deleted {
			out = append(out, UnitigRef{Repr: ReprShort, ID: uint32(i)})
		}
	}
	return out
}

// lastKmer and firstKmer extract the terminal k-mers of a unitig
// sequence, used to probe for join candidates.
func lastKmer(seq []byte, k int) (kmer.Kmer, error) {
	return kmer.New(seq[len(seq)-k:])
}

func firstKmer(seq []byte, k int) (kmer.Kmer, error) {
	return kmer.New(seq[:k])
}

// checkJoin looks for a unique unambiguous forward join from ref: among
// the 4 possible one-base forward extensions of ref's last k-mer,
// exactly one must resolve (via Find) to a TERMINAL k-mer of some other
// unitig (either its first k-mer directly, or its last k-mer on the
// opposite strand) whose own unique backward extension leads right
// back to ref. A match buried in a candidate's interior isn't a valid
// join point. Per the Open Question decision in DESIGN.md, this never
// consults a bloom filter gate; spec.md's own prose description (sans
// the commented-out gate in the source) is authoritative.
//
// The candidate unitig's sequence may be stored in either orientation
// relative to the matched extension: forward reports which. joinPair
// must reverse-complement the candidate before concatenating when
// forward is false.
func (g *Graph) checkJoin(ref UnitigRef) (next UnitigRef, forward bool, ok bool, err error) {
	seq := g.seqOf(ref)
	if seq == nil {
		return UnitigRef{}, false, false, nil
	}
	last, err := lastKmer(seq, g.Cfg.K)
	if err != nil {
		return UnitigRef{}, false, false, err
	}
	var candidate UnitigRef
	var matchedExt kmer.Kmer
	found := 0
	for _, base := range []byte{'A', 'C', 'G', 'T'} {
		ext := last.ForwardExt(mustEncode(base))
		um, ferr := g.Find(ext)
		if ferr != nil {
			return UnitigRef{}, false, false, ferr
		}
		if um.Empty() || um.Ref == ref {
			continue
		}
		candSeq := g.seqOf(um.Ref)
		if candSeq == nil {
			continue
		}
		candFirst, cerr := firstKmer(candSeq, g.Cfg.K)
		if cerr != nil {
			return UnitigRef{}, false, false, cerr
		}
		candLast, cerr := lastKmer(candSeq, g.Cfg.K)
		if cerr != nil {
			return UnitigRef{}, false, false, cerr
		}
		switch {
		case candFirst.Equal(ext):
			// The candidate already starts with ext: no flip needed.
			found++
			candidate = um.Ref
			matchedExt = ext
			forward = true
		case candLast.Equal(ext.Twin()):
			// The candidate ENDS with ext's reverse complement, which
			// means its reverse complement STARTS with ext (a unitig's
			// reverse complement's first k-mer is the twin of its own
			// last k-mer). joinPair must flip the whole candidate.
			found++
			candidate = um.Ref
			matchedExt = ext
			forward = false
		default:
			// ext only matches somewhere in the candidate's interior:
			// not a legitimate terminal join point.
		}
	}
	if found != 1 {
		return UnitigRef{}, false, false, nil
	}
	// Verify the reverse direction is equally unambiguous: the unique
	// backward extension of the k-mer actually being joined on (which
	// is matchedExt, regardless of which way candSeq is stored) must
	// lead right back to ref.
	backFound := 0
	for _, base := range []byte{'A', 'C', 'G', 'T'} {
		ext := matchedExt.BackwardExt(mustEncode(base))
		um, ferr := g.Find(ext)
		if ferr != nil {
			return UnitigRef{}, false, false, ferr
		}
		if !um.Empty() {
			backFound++
		}
	}
	if backFound != 1 {
		return UnitigRef{}, false, false, nil
	}
	return candidate, forward, true, nil
}

// reverseComplement returns the Watson-Crick reverse complement of an
// arbitrary-length DNA byte slice, used to flip a unitig's orientation
// before joinPair concatenates it onto another.
func reverseComplement(seq []byte) []byte {
	out := make([]byte, len(seq))
	n := len(seq)
	for i, b := range seq {
		c, err := kmer.EncodeBase(b)
		if err != nil {
			c = 0
		}
		out[n-1-i] = kmer.DecodeBase(kmer.CompBase(c))
	}
	return out
}

func mustEncode(b byte) byte {
	c, err := kmer.EncodeBase(b)
	if err != nil {
		panic(err)
	}
	return c
}

// JoinAllUnitigs repeatedly applies checkJoin across every live long
// unitig, physically concatenating unambiguous join pairs (trimming the
// k-1 overlap) until a full pass finds no further joins, per spec.md
// 4.E.
func (g *Graph) JoinAllUnitigs() (joined int, err error) {
	if err := g.checkValid(); err != nil {
		return 0, err
	}
	for {
		progress := false
		for _, ref := range g.AllLongRefs() {
			if g.IsTombstoned(ref) {
				continue
			}
			next, forward, ok, jerr := g.checkJoin(ref)
			if jerr != nil {
				return joined, jerr
			}
			if !ok {
				continue
			}
			if err := g.joinPair(ref, next, forward); err != nil {
				return joined, err
			}
			joined++
			progress = true
		}
		if !progress {
			break
		}
	}
	return joined, nil
}

// joinPair concatenates b's sequence onto a's (trimming b's leading k-1
// overlap), re-indexes the merged unitig under a's slot, and deletes b.
// When forward is false, b's join k-mer matched on the reverse strand,
// so b's sequence and coverage are reverse-complemented before
// concatenation (spec.md 4.E: "unitig may need reverse-complement
// before concat").
func (g *Graph) joinPair(a, b UnitigRef, forward bool) error {
	seqA := g.seqOf(a)
	seqB := g.seqOf(b)
	if seqA == nil || seqB == nil {
		return fmt.Errorf("[joinPair] one of %v, %v no longer exists", a, b)
	}
	covA := g.covOf(a)
	covB := g.covOf(b)
	if !forward {
		seqB = reverseComplement(seqB)
		covB = covB.Reverse()
	}
	overlap := g.Cfg.K - 1
	if len(seqB) <= overlap {
		return fmt.Errorf("[joinPair] %v too short to join", b)
	}
	merged := append(append([]byte{}, seqA...), seqB[overlap:]...)
	mergedCov := covA
	mergedCov.Concat(covB)

	g.deindexUnitig(seqA, a)
	if err := g.DeleteUnitig(b); err != nil {
		return err
	}
	switch a.Repr {
	case ReprLong:
		g.vUnitigs[a.ID] = newUnitig(merged, mergedCov)
	case ReprShort:
		// A short unitig growing via join is always promoted to long.
		g.vKmers[a.ID].Deleted = true
		newRef, err := g.allocLong(merged, mergedCov)
		if err != nil {
			return err
		}
		g.indexUnitig(merged, newRef)
		return nil
	}
	g.indexUnitig(merged, a)
	return nil
}

func (g *Graph) covOf(ref UnitigRef) covvec.CompressedCoverage {
	switch ref.Repr {
	case ReprLong:
		if int(ref.ID) < len(g.vUnitigs) && g.vUnitigs[ref.ID] != nil {
			return g.vUnitigs[ref.ID].Cov
		}
	case ReprShort:
		if int(ref.ID) < len(g.vKmers) && !g.vKmers[ref.ID].Deleted {
			return g.vKmers[ref.ID].Cov
		}
	}
	return covvec.CompressedCoverage{}
}

// SplitAllUnitigs walks every long unitig's coverage vector and, where
// the coverage is not full everywhere but holds at least one
// fully-covered run (per spec.md 4.E's splitting rule), replaces the
// original with one new unitig per run, discarding the low-coverage
// stretches. The first long segment reuses the original slot (AddUnitig
// fills the first tombstoned slot). A unitig with no fully-covered
// position at all is left unchanged, and the returned count is the
// number of unitigs split.
func (g *Graph) SplitAllUnitigs() (splits int, err error) {
	if err := g.checkValid(); err != nil {
		return 0, err
	}
	for _, ref := range g.AllLongRefs() {
		if g.IsTombstoned(ref) {
			continue
		}
		u := g.vUnitigs[ref.ID]
		runs := u.Cov.SplittingVector()
		if len(runs) <= 1 && (len(runs) == 0 || (runs[0].Start == 0 && runs[0].End == u.Cov.NumKmers())) {
			continue // nothing to split: fully covered, or no fully-covered run
		}
		if err := g.splitOne(ref, runs); err != nil {
			return splits, err
		}
		splits++
	}
	return splits, nil
}

func (g *Graph) splitOne(ref UnitigRef, runs []covvec.Interval) error {
	u := g.vUnitigs[ref.ID]
	seq := u.Seq
	cov := u.Cov
	if err := g.DeleteUnitig(ref); err != nil {
		return err
	}
	for _, r := range runs {
		segSeq := seq[r.Start : r.End+g.Cfg.K-1]
		segCov := cov.Slice(r.Start, r.End)
		if _, err := g.AddUnitig(segSeq, segCov); err != nil {
			return err
		}
	}
	return nil
}
