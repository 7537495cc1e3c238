package covvec

import "testing"

func TestCoverSaturates(t *testing.T) {
	cc := New(5)
	cc.Cover(0, 5)
	cc.Cover(0, 5)
	cc.Cover(0, 5)
	if !cc.IsFull() {
		t.Fatalf("expected coverage to saturate at CovFull")
	}
	if cc.CoverageSum() != int64(5*CovFull) {
		t.Fatalf("CoverageSum() = %d, want %d", cc.CoverageSum(), 5*CovFull)
	}
}

func TestSplittingVector(t *testing.T) {
	cc := New(10)
	cc.Cover(0, 3)
	cc.Cover(0, 3)
	cc.Cover(6, 10)
	cc.Cover(6, 10)
	runs := cc.SplittingVector()
	if len(runs) != 2 {
		t.Fatalf("SplittingVector() = %v, want 2 runs", runs)
	}
	if runs[0] != (Interval{0, 3}) || runs[1] != (Interval{6, 10}) {
		t.Fatalf("SplittingVector() = %v, want [{0 3} {6 10}]", runs)
	}
}

func TestSliceConcatRoundTrip(t *testing.T) {
	cc := NewFull(10)
	a := cc.Slice(0, 4)
	b := cc.Slice(4, 10)
	a.Concat(b)
	if a.NumKmers() != 10 {
		t.Fatalf("NumKmers() = %d, want 10", a.NumKmers())
	}
	if a.CoverageSum() != cc.CoverageSum() {
		t.Fatalf("CoverageSum mismatch after slice+concat: %d vs %d", a.CoverageSum(), cc.CoverageSum())
	}
}

func TestReverse(t *testing.T) {
	cc := New(3)
	cc.Cover(0, 1)
	rev := cc.Reverse()
	if rev.CovAt(2) != cc.CovAt(0) || rev.CovAt(0) != cc.CovAt(2) {
		t.Fatalf("Reverse() did not flip positions")
	}
}

func TestGobRoundTrip(t *testing.T) {
	cc := NewFull(4)
	data, err := cc.GobEncode()
	if err != nil {
		t.Fatalf("GobEncode: %v", err)
	}
	var cc2 CompressedCoverage
	if err := cc2.GobDecode(data); err != nil {
		t.Fatalf("GobDecode: %v", err)
	}
	if cc2.NumKmers() != cc.NumKmers() || cc2.CoverageSum() != cc.CoverageSum() {
		t.Fatalf("round trip mismatch: %+v vs %+v", cc2, cc)
	}
}
