package graph

import (
	"testing"

	"github.com/mudesheng/cdbg/internal/covvec"
	"github.com/mudesheng/cdbg/internal/kmer"
)

const testK = 5
const testG = 3

func newTestGraph(t *testing.T) *Graph {
	t.Helper()
	g, err := NewGraph(Config{K: testK, G: testG})
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	return g
}

// S1: a single linear unitig longer than k, fully covered, is found by
// every one of its internal k-mers on both strands.
func TestLinearUnitigFindBothStrands(t *testing.T) {
	g := newTestGraph(t)
	seq := []byte("TTGACCGATAGC") // len 12, k=5 -> 8 windows
	cov := covvec.NewFull(len(seq) - testK + 1)
	ref, err := g.AddUnitig(seq, cov)
	if err != nil {
		t.Fatalf("AddUnitig: %v", err)
	}
	if ref.Repr != ReprLong {
		t.Fatalf("expected ReprLong, got %v", ref.Repr)
	}

	for o := 0; o+testK <= len(seq); o++ {
		km, err := kmer.New(seq[o : o+testK])
		if err != nil {
			t.Fatal(err)
		}
		um, err := g.Find(km)
		if err != nil {
			t.Fatalf("Find at offset %d: %v", o, err)
		}
		if um.Empty() {
			t.Fatalf("Find at offset %d: not found", o)
		}
		if um.Ref != ref {
			t.Fatalf("Find at offset %d: ref = %v, want %v", o, um.Ref, ref)
		}

		twin := km.Twin()
		umRC, err := g.Find(twin)
		if err != nil || umRC.Empty() {
			t.Fatalf("Find(twin) at offset %d failed: %v, empty=%v", o, err, umRC.Empty())
		}
		if umRC.Strand {
			t.Fatalf("Find(twin) at offset %d should report reverse strand", o)
		}
	}
}

func TestFindAbsentKmerReturnsEmpty(t *testing.T) {
	g := newTestGraph(t)
	seq := []byte("AAAAAAAAAA")
	cov := covvec.NewFull(len(seq) - testK + 1)
	if _, err := g.AddUnitig(seq, cov); err != nil {
		t.Fatal(err)
	}
	km, _ := kmer.New([]byte("GCGCG"))
	um, err := g.Find(km)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if !um.Empty() {
		t.Fatalf("expected empty result for absent k-mer, got %v", um)
	}
}

func TestDeleteUnitigRemovesFromIndex(t *testing.T) {
	g := newTestGraph(t)
	seq := []byte("ACGTACGTAC")
	cov := covvec.NewFull(len(seq) - testK + 1)
	ref, err := g.AddUnitig(seq, cov)
	if err != nil {
		t.Fatal(err)
	}
	km, _ := kmer.New(seq[:testK])
	if um, err := g.Find(km); err != nil || um.Empty() {
		t.Fatalf("precondition: should find before delete")
	}
	if err := g.DeleteUnitig(ref); err != nil {
		t.Fatalf("DeleteUnitig: %v", err)
	}
	if um, err := g.Find(km); err != nil || !um.Empty() {
		t.Fatalf("Find after delete should be empty, got %v, err %v", um, err)
	}
	if !g.IsTombstoned(ref) {
		t.Fatalf("ref should report tombstoned after delete")
	}
	if err := g.DeleteUnitig(ref); err == nil {
		t.Fatalf("expected error deleting an already-deleted ref")
	}
}

func TestSwapUnitigsFixesIndexReferences(t *testing.T) {
	g := newTestGraph(t)
	seqA := []byte("ACGTACGTAC")
	seqB := []byte("TTTTGGGGCC")
	covA := covvec.NewFull(len(seqA) - testK + 1)
	covB := covvec.NewFull(len(seqB) - testK + 1)
	refA, err := g.AddUnitig(seqA, covA)
	if err != nil {
		t.Fatal(err)
	}
	refB, err := g.AddUnitig(seqB, covB)
	if err != nil {
		t.Fatal(err)
	}

	if err := g.SwapUnitigs(refA, refB); err != nil {
		t.Fatalf("SwapUnitigs: %v", err)
	}

	kmA, _ := kmer.New(seqA[:testK])
	um, err := g.Find(kmA)
	if err != nil || um.Empty() {
		t.Fatalf("Find(kmA) after swap failed: %v %v", um, err)
	}
	if um.Ref != refB {
		t.Fatalf("after swap, seqA's k-mer should resolve to refB's slot; got %v, want %v", um.Ref, refB)
	}
}

func TestAddUnitigRejectsTooShort(t *testing.T) {
	g := newTestGraph(t)
	if _, err := g.AddUnitig([]byte("AC"), covvec.New(0)); err == nil {
		t.Fatalf("expected error for sequence shorter than k")
	}
}

func TestInvalidConfigMarksGraphInvalid(t *testing.T) {
	g, err := NewGraph(Config{K: 3, G: 5})
	if err == nil {
		t.Fatalf("expected error constructing with g >= k")
	}
	if !g.Invalid() {
		t.Fatalf("graph should be marked invalid")
	}
	if _, err := g.AddUnitig([]byte("ACGTA"), covvec.New(1)); err == nil {
		t.Fatalf("AddUnitig on invalid graph should fail")
	}
}
