package kmer

import "testing"

func TestMinimizerOfReturnsGmerWithinWindow(t *testing.T) {
	km, err := New([]byte("ACGTACGTACG"))
	if err != nil {
		t.Fatal(err)
	}
	m, off := MinimizerOf(km, 4)
	if m.K != 4 {
		t.Fatalf("minimizer k = %d, want 4", m.K)
	}
	if off < 0 || off > km.K-4 {
		t.Fatalf("offset %d out of range", off)
	}
}

func TestWalkSequenceMinimizersCollapsesRuns(t *testing.T) {
	seq := []byte("ACGTACGTACGTACGT")
	occs := WalkSequenceMinimizers(seq, 8, 4)
	if len(occs) == 0 {
		t.Fatalf("expected at least one minimizer occurrence")
	}
	for i := 1; i < len(occs); i++ {
		if occs[i].Offset <= occs[i-1].Offset || occs[i].Min.Equal(occs[i-1].Min) {
			t.Fatalf("occurrence offsets not strictly increasing, or a run not collapsed: %v", occs)
		}
	}
}

func TestWalkSequenceMinimizersShortSeq(t *testing.T) {
	if occs := WalkSequenceMinimizers([]byte("ACG"), 8, 4); occs != nil {
		t.Fatalf("expected nil for seq shorter than k, got %v", occs)
	}
}
