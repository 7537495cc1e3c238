package graph

import (
	"testing"

	"github.com/mudesheng/cdbg/internal/covvec"
	"github.com/mudesheng/cdbg/internal/kmer"
)

// TestJoinAllUnitigsMergesUnambiguousPair builds two long unitigs whose
// overlap is unique in both directions and checks that JoinAllUnitigs
// concatenates them into one, deleting the donor.
func TestJoinAllUnitigsMergesUnambiguousPair(t *testing.T) {
	g := newTestGraph(t)
	seqA := []byte("TTGACCGATA") // last k-mer (k=5): CGATA
	seqB := []byte("GATAGCAAC")  // first k-mer: GATAG, unique forward ext of CGATA via 'G'

	refA, err := g.AddUnitig(seqA, covvec.NewFull(len(seqA)-testK+1))
	if err != nil {
		t.Fatalf("AddUnitig seqA: %v", err)
	}
	if _, err := g.AddUnitig(seqB, covvec.NewFull(len(seqB)-testK+1)); err != nil {
		t.Fatalf("AddUnitig seqB: %v", err)
	}

	joined, err := g.JoinAllUnitigs()
	if err != nil {
		t.Fatalf("JoinAllUnitigs: %v", err)
	}
	if joined != 1 {
		t.Fatalf("joined = %d, want 1", joined)
	}

	want := []byte("TTGACCGATAGCAAC")
	km, err := kmer.New(want[:testK])
	if err != nil {
		t.Fatal(err)
	}
	um, err := g.Find(km)
	if err != nil || um.Empty() {
		t.Fatalf("Find on merged sequence failed: %v, empty=%v", err, um.Empty())
	}
	if um.Ref != refA {
		t.Fatalf("merged unitig should live in the surviving slot %v, got %v", refA, um.Ref)
	}
	if g.UnitigLength(um.Ref) != len(want) {
		t.Fatalf("merged length = %d, want %d", g.UnitigLength(um.Ref), len(want))
	}

	kmB, _ := kmer.New(seqB[:testK])
	umB, err := g.Find(kmB)
	if err != nil {
		t.Fatalf("Find after join: %v", err)
	}
	if !umB.Empty() && umB.Ref != refA {
		t.Fatalf("donor unitig's k-mer should resolve into the merged unitig or nothing, got %v", umB.Ref)
	}
}

// TestJoinAllUnitigsMergesReverseOrientedPair builds a donor unitig
// stored on the opposite strand from how it needs to attach: its own
// LAST k-mer, not its first, is the reverse complement of the
// surviving unitig's unique forward extension. JoinAllUnitigs must
// detect this via checkJoin's strand-aware matching and have joinPair
// reverse-complement the donor before concatenating, rather than
// silently failing to join or splicing in the wrong orientation.
func TestJoinAllUnitigsMergesReverseOrientedPair(t *testing.T) {
	g := newTestGraph(t)
	seqA := []byte("CCCCCAGCTT") // last k-mer (k=5): AGCTT
	seqB := []byte("TTTTGAAGC") // last k-mer: GAAGC; twin(GAAGC) = GCTTC, A's unique forward ext

	refA, err := g.AddUnitig(seqA, covvec.NewFull(len(seqA)-testK+1))
	if err != nil {
		t.Fatalf("AddUnitig seqA: %v", err)
	}
	if _, err := g.AddUnitig(seqB, covvec.NewFull(len(seqB)-testK+1)); err != nil {
		t.Fatalf("AddUnitig seqB: %v", err)
	}

	joined, err := g.JoinAllUnitigs()
	if err != nil {
		t.Fatalf("JoinAllUnitigs: %v", err)
	}
	if joined != 1 {
		t.Fatalf("joined = %d, want 1", joined)
	}

	want := []byte("CCCCCAGCTTCAAAA")
	km, err := kmer.New(want[:testK])
	if err != nil {
		t.Fatal(err)
	}
	um, err := g.Find(km)
	if err != nil || um.Empty() {
		t.Fatalf("Find on merged sequence failed: %v, empty=%v", err, um.Empty())
	}
	if um.Ref != refA {
		t.Fatalf("merged unitig should live in the surviving slot %v, got %v", refA, um.Ref)
	}
	if g.UnitigLength(um.Ref) != len(want) {
		t.Fatalf("merged length = %d, want %d", g.UnitigLength(um.Ref), len(want))
	}
	tailKm, err := kmer.New(want[len(want)-testK:])
	if err != nil {
		t.Fatal(err)
	}
	umTail, err := g.Find(tailKm)
	if err != nil || umTail.Empty() || umTail.Ref != refA {
		t.Fatalf("merged unitig should contain the donor's flipped tail: err=%v empty=%v ref=%v", err, umTail.Empty(), umTail.Ref)
	}
}

func TestJoinAllUnitigsNoProgressOnIsolatedUnitigs(t *testing.T) {
	g := newTestGraph(t)
	if _, err := g.AddUnitig([]byte("AAAAAAAAAA"), covvec.NewFull(6)); err != nil {
		t.Fatal(err)
	}
	if _, err := g.AddUnitig([]byte("CCCCCCCCCC"), covvec.NewFull(6)); err != nil {
		t.Fatal(err)
	}
	joined, err := g.JoinAllUnitigs()
	if err != nil {
		t.Fatalf("JoinAllUnitigs: %v", err)
	}
	if joined != 0 {
		t.Fatalf("joined = %d, want 0 for unrelated unitigs", joined)
	}
}

// TestSplitAllUnitigsSeparatesLowCoverageGap builds a single long unitig
// whose coverage vector has two fully-covered runs separated by an
// uncovered gap, and checks SplitAllUnitigs replaces it with two unitigs,
// one per run, the first of them reusing the original slot.
func TestSplitAllUnitigsSeparatesLowCoverageGap(t *testing.T) {
	g := newTestGraph(t)
	seq := []byte("TTGACCGATAGCAACG") // len 16, k=5 -> 12 k-mer windows
	cov := covvec.New(len(seq) - testK + 1)
	cov.Cover(0, 3)
	cov.Cover(0, 3)
	cov.Cover(8, 12)
	cov.Cover(8, 12)

	ref, err := g.AddUnitig(seq, cov)
	if err != nil {
		t.Fatalf("AddUnitig: %v", err)
	}

	splits, err := g.SplitAllUnitigs()
	if err != nil {
		t.Fatalf("SplitAllUnitigs: %v", err)
	}
	if splits != 1 {
		t.Fatalf("splits = %d, want 1", splits)
	}
	if g.UnitigLength(ref) != 7 {
		t.Fatalf("original slot should now hold the first run's 7-base segment")
	}

	firstRunKm, _ := kmer.New(seq[0:testK])
	um1, err := g.Find(firstRunKm)
	if err != nil || um1.Empty() {
		t.Fatalf("expected to find first run's k-mer after split: %v, empty=%v", err, um1.Empty())
	}
	secondRunKm, _ := kmer.New(seq[8 : 8+testK])
	um2, err := g.Find(secondRunKm)
	if err != nil || um2.Empty() {
		t.Fatalf("expected to find second run's k-mer after split: %v, empty=%v", err, um2.Empty())
	}
	if um1.Ref == um2.Ref {
		t.Fatalf("the two covered runs should end up as distinct unitigs")
	}
}

// TestRemoveUnitigsClipsIsolatedShortUnitigs builds two unrelated
// single-k-mer unitigs with no neighbors anywhere in the graph and
// checks that RemoveUnitigs(rmIsolated=true, clipTips=false) removes
// both (degree 0, no tip neighbor to keep), and that a second call is a
// no-op since the store no longer holds anything matching the removal
// criteria.
func TestRemoveUnitigsClipsIsolatedShortUnitigs(t *testing.T) {
	g := newTestGraph(t)
	refA, err := g.AddUnitig([]byte("GCGCG"), covvec.New(1))
	if err != nil {
		t.Fatal(err)
	}
	refB, err := g.AddUnitig([]byte("TTTTT"), covvec.New(1))
	if err != nil {
		t.Fatal(err)
	}

	removed, kept, err := g.RemoveUnitigs(true, false)
	if err != nil {
		t.Fatalf("RemoveUnitigs: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	if len(kept) != 0 {
		t.Fatalf("kept tip neighbors = %v, want none for isolated (degree 0) unitigs", kept)
	}
	if !g.IsTombstoned(refA) || !g.IsTombstoned(refB) {
		t.Fatalf("both refs should be tombstoned after removal")
	}

	removed, kept, err = g.RemoveUnitigs(true, false)
	if err != nil {
		t.Fatalf("RemoveUnitigs second pass: %v", err)
	}
	if removed != 0 || len(kept) != 0 {
		t.Fatalf("second pass should find nothing left to remove, got removed=%d kept=%v", removed, kept)
	}
}

// TestRemoveUnitigsClipTipsRecordsNeighbor builds a long stem with a
// single dangling short tip attached at one end, and checks that
// RemoveUnitigs(clipTips=true) removes the tip and records its unique
// neighbor (the stem's own terminal k-mer) into keptTipNeighbors, per
// spec.md 4.E's kept_tip_neighbors output.
func TestRemoveUnitigsClipTipsRecordsNeighbor(t *testing.T) {
	g := newTestGraph(t)
	stem := []byte("TTGACCGATA") // last k-mer (k=5): CGATA
	if _, err := g.AddUnitig(stem, covvec.NewFull(len(stem)-testK+1)); err != nil {
		t.Fatalf("AddUnitig stem: %v", err)
	}
	tip, _ := kmer.New([]byte("GATAA")) // unique forward ext of CGATA via 'A'
	if _, err := g.AddUnitig(tip.Bytes(), covvec.New(1)); err != nil {
		t.Fatalf("AddUnitig tip: %v", err)
	}
	attachment, _ := kmer.New([]byte("CGATA")) // stem's own last k-mer

	removed, kept, err := g.RemoveUnitigs(false, true)
	if err != nil {
		t.Fatalf("RemoveUnitigs: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1 (only the tip, stem has 6 k-mers >= k)", removed)
	}
	if len(kept) != 1 || !kept[0].Equal(attachment) {
		t.Fatalf("keptTipNeighbors = %v, want [%q]", kept, attachment.Bytes())
	}
}
