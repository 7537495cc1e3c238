package bloomfilter

import (
	"testing"

	metro "github.com/dgryski/go-metro"
)

func hashOf(s string) uint64 {
	return metro.Hash64([]byte(s), 0)
}

func TestInsertAndContains(t *testing.T) {
	cf := NewCuckooFilter(1024)
	items := []string{"AAAA", "CCCC", "GGGG", "TTTT", "ACGT"}
	for _, it := range items {
		h := hashOf(it)
		if !cf.Insert(h) {
			t.Fatalf("Insert(%s) failed", it)
		}
	}
	for _, it := range items {
		h := hashOf(it)
		if !cf.Contains(h, cf.GetBlock(h)) {
			t.Fatalf("Contains(%s) = false, want true", it)
		}
	}
}

func TestContainsAbsent(t *testing.T) {
	cf := NewCuckooFilter(1024)
	cf.Insert(hashOf("AAAA"))
	h := hashOf("not-inserted-item")
	if cf.Contains(h, cf.GetBlock(h)) {
		// Not a hard guarantee (false positives are allowed by a
		// probabilistic filter), but with one item stored against a
		// 1024-capacity filter this should essentially never trigger.
		t.Logf("false positive on absent item, acceptable but notable")
	}
}

func TestUpperPow2(t *testing.T) {
	cases := map[uint64]uint64{0: 1, 1: 1, 2: 2, 3: 4, 5: 8, 1024: 1024, 1025: 2048}
	for in, want := range cases {
		if got := upperPow2(in); got != want {
			t.Fatalf("upperPow2(%d) = %d, want %d", in, got, want)
		}
	}
}
