package graph

import (
	"testing"

	"github.com/mudesheng/cdbg/internal/covvec"
	"github.com/mudesheng/cdbg/internal/kmer"
)

// setFilter is a trivial BloomFilter test double backed by a Go set,
// letting walker tests control membership exactly instead of tolerating
// a probabilistic filter's false positives/negatives.
type setFilter struct {
	present map[uint64]bool
}

func newSetFilter() *setFilter { return &setFilter{present: make(map[uint64]bool)} }

func (f *setFilter) GetBlock(h uint64) uint64  { return h }
func (f *setFilter) Contains(h, _ uint64) bool { return f.present[h] }
func (f *setFilter) add(km kmer.Kmer)          { f.present[km.Rep().Hash(0)] = true }

func TestFindUnitigSequenceWalksLinearPath(t *testing.T) {
	seq := []byte("TTGACCGATAGC")
	f := newSetFilter()
	for o := 0; o+testK <= len(seq); o++ {
		km, _ := kmer.New(seq[o : o+testK])
		f.add(km)
	}
	seed, _ := kmer.New(seq[4 : 4+testK])
	out, _, _, selfLoop, isolated := FindUnitigSequence(seed, f, testK, testG)
	if selfLoop {
		t.Fatalf("linear walk should not report a self loop")
	}
	if isolated {
		t.Fatalf("linear walk with neighbors should not be isolated")
	}
	if len(out) < len(seq) {
		t.Fatalf("walked sequence %q shorter than source %q", out, seq)
	}
}

func TestFindUnitigSequenceIsolatedSingleton(t *testing.T) {
	f := newSetFilter()
	seed, _ := kmer.New([]byte("GCGCG"))
	f.add(seed)
	_, _, _, selfLoop, isolated := FindUnitigSequence(seed, f, testK, testG)
	if selfLoop {
		t.Fatalf("singleton should not self-loop")
	}
	if !isolated {
		t.Fatalf("k-mer with no confirmed neighbors should be isolated")
	}
}

func TestFindUnitigSequenceSelfLoop(t *testing.T) {
	// k=4 homopolymer: every forward/backward extension of AAAA is
	// AAAA itself, a textbook self-loop per spec.md 8's S3 scenario.
	f := newSetFilter()
	seed, _ := kmer.New([]byte("AAAA"))
	f.add(seed)
	_, _, _, selfLoop, _ := FindUnitigSequence(seed, f, 4, 3)
	if !selfLoop {
		t.Fatalf("homopolymer walk should report a self loop")
	}
}

// TestFwBfStepPrunesFalsePositiveTip builds a branch where one of two
// forward candidates is a dead end (no filter membership at all in its
// own forward direction) per spec.md 4.D step 4: the dead end must be
// pruned and recorded into ignoredKmTips, leaving a single true
// neighbor so the step still advances.
func TestFwBfStepPrunesFalsePositiveTip(t *testing.T) {
	f := newSetFilter()
	// stem ACGTA; true branch CGTAC has a further forward neighbor
	// (GTACG, stored as its canonical form CGTAC), so it is not a dead
	// end; false branch CGTAG has no forward extension in the filter at
	// all, so its onward probe comes back empty and it is pruned.
	stem, _ := kmer.New([]byte("ACGTA"))
	trueBranch, _ := kmer.New([]byte("CGTAC"))
	trueNext, _ := kmer.New([]byte("GTACG"))
	falseBranch, _ := kmer.New([]byte("CGTAG"))
	f.add(stem)
	f.add(trueBranch)
	f.add(trueNext)
	f.add(falseBranch)

	var ignored []kmer.Kmer
	next, ok := fwBfStep(stem, f, &ignored)
	if !ok {
		t.Fatalf("fwBfStep should resolve to the single true branch")
	}
	if !next.Equal(trueBranch) {
		t.Fatalf("fwBfStep chose %q, want %q", next.Bytes(), trueBranch.Bytes())
	}
	if len(ignored) != 1 || !ignored[0].Equal(falseBranch.Rep()) {
		t.Fatalf("ignoredKmTips = %v, want [%q]", ignored, falseBranch.Bytes())
	}
}

// TestBwBfStepUsesConsistentHash guards against the hash/block mismatch
// the forward/backward steps must not regress: a k-mer inserted into
// the filter under Hash(0) must be found by bwBfStep exactly as it is
// by fwBfStep.
func TestBwBfStepUsesConsistentHash(t *testing.T) {
	seq := []byte("ACGTACGT")
	f := newSetFilter()
	for o := 0; o+testK <= len(seq); o++ {
		km, _ := kmer.New(seq[o : o+testK])
		f.add(km)
	}
	cur, _ := kmer.New(seq[len(seq)-testK:])
	var ignored []kmer.Kmer
	prev, ok := bwBfStep(cur, f, &ignored)
	if !ok {
		t.Fatalf("bwBfStep should find the k-mer one step back, got none")
	}
	want, _ := kmer.New(seq[len(seq)-testK-1 : len(seq)-1])
	if !prev.Equal(want) {
		t.Fatalf("bwBfStep = %q, want %q", prev.Bytes(), want.Bytes())
	}
}

func TestCheckFPTipsSplitsLongUnitigAtAttachment(t *testing.T) {
	g := newTestGraph(t)
	// A long unitig spanning TTGACCGATAGC (k=5) holds CCGAT at the
	// interior offset 4. A short tip unitig GCCGA's only neighbor (its
	// forward extension via 'T') is exactly that CCGAT k-mer, so
	// CheckFPTips should split the long unitig at its attachment point
	// rather than leave the tip dangling. The split's first new long
	// half reuses the original slot.
	long := []byte("TTGACCGATAGC")
	longRef, err := g.AddUnitig(long, covvec.NewFull(len(long)-testK+1))
	if err != nil {
		t.Fatalf("AddUnitig long: %v", err)
	}
	tip, _ := kmer.New([]byte("GCCGA"))
	if _, err := g.AddUnitig(tip.Bytes(), covvec.New(1)); err != nil {
		t.Fatalf("AddUnitig tip: %v", err)
	}

	splits, err := g.CheckFPTips([]kmer.Kmer{tip.Rep()})
	if err != nil {
		t.Fatalf("CheckFPTips: %v", err)
	}
	if splits != 1 {
		t.Fatalf("splits = %d, want 1", splits)
	}
	if g.UnitigLength(longRef) != 8 {
		t.Fatalf("original slot should now hold the 8-base left half of the split")
	}
}
