// Package covvec implements the compressed per-k-mer-position coverage
// vector spec.md 6.3 specifies as an external collaborator: one
// saturating counter per k-mer position, a running sum, and the
// splitting/low-coverage queries splitAllUnitigs needs.
//
// Grounded on the teacher's bit-flag accessor idiom (Get/Set/Reset
// methods on a packed field, e.g. DBGEdge.GetProcessFlag/SetProcessFlag
// in constructdbg.go) generalized from a single scalar depth field to a
// per-position vector, since spec.md 3 requires per-position coverage to
// support splitAllUnitigs.
package covvec

import (
	"bytes"
	"encoding/gob"
)

// CovFull is the saturating cap each position's counter stops at.
const CovFull = 2

// CompressedCoverage tracks a saturating counter per k-mer position of a
// unitig plus a running sum of all counters (coveragesum).
type CompressedCoverage struct {
	counts []uint8
	sum    int64
}

// New allocates a coverage vector for numKmers k-mer positions, all
// initialized to zero.
func New(numKmers int) CompressedCoverage {
	return CompressedCoverage{counts: make([]uint8, numKmers)}
}

// NewFull allocates a coverage vector with every position already at
// CovFull, used when a freshly-added unitig is assumed fully covered by
// its seeding reads (matches spec.md's S1 "coverage 2 at each interior
// k-mer").
func NewFull(numKmers int) CompressedCoverage {
	cc := New(numKmers)
	for i := range cc.counts {
		cc.counts[i] = CovFull
	}
	cc.sum = int64(numKmers) * CovFull
	return cc
}

// NumKmers reports the number of tracked positions.
func (cc *CompressedCoverage) NumKmers() int { return len(cc.counts) }

// Cover increments the counters in [a, b), saturating at CovFull.
func (cc *CompressedCoverage) Cover(a, b int) {
	for i := a; i < b; i++ {
		if cc.counts[i] < CovFull {
			cc.counts[i]++
			cc.sum++
		}
	}
}

// CovAt returns the counter at position i.
func (cc *CompressedCoverage) CovAt(i int) uint8 { return cc.counts[i] }

// IsFull reports whether every position has saturated at CovFull.
func (cc *CompressedCoverage) IsFull() bool {
	for _, c := range cc.counts {
		if c < CovFull {
			return false
		}
	}
	return true
}

// CoverageSum returns the running sum of every position's counter.
func (cc *CompressedCoverage) CoverageSum() int64 { return cc.sum }

// Interval is a half-open [Start, End) run of high-coverage positions.
type Interval struct {
	Start, End int
}

// SplittingVector returns the maximal runs of positions at CovFull,
// used by splitAllUnitigs to find the segments to keep.
func (cc *CompressedCoverage) SplittingVector() []Interval {
	var out []Interval
	inRun := false
	start := 0
	for i, c := range cc.counts {
		full := c >= CovFull
		if full && !inRun {
			inRun = true
			start = i
		} else if !full && inRun {
			inRun = false
			out = append(out, Interval{start, i})
		}
	}
	if inRun {
		out = append(out, Interval{start, len(cc.counts)})
	}
	return out
}

// LowCoverageInfo returns the count of sub-CovFull positions and the sum
// of their counters, used by splitAllUnitigs's coverage-redistribution
// formula.
func (cc *CompressedCoverage) LowCoverageInfo() (lowCount int, lowSum int64) {
	for _, c := range cc.counts {
		if c < CovFull {
			lowCount++
			lowSum += int64(c)
		}
	}
	return lowCount, lowSum
}

// Slice returns a fresh coverage vector covering positions [a, b) of cc,
// used when splitAllUnitigs carves a segment out of a unitig.
func (cc *CompressedCoverage) Slice(a, b int) CompressedCoverage {
	out := CompressedCoverage{counts: make([]uint8, b-a)}
	copy(out.counts, cc.counts[a:b])
	for _, c := range out.counts {
		out.sum += int64(c)
	}
	return out
}

// Concat appends the counters of o after cc's own, combining the
// coverage sums — used when joinAllUnitigs concatenates two unitigs.
// Counters are per k-mer, and two unitigs joined over a k-1 base
// overlap share no k-mer, so o is appended whole.
func (cc *CompressedCoverage) Concat(o CompressedCoverage) {
	cc.counts = append(cc.counts, o.counts...)
	cc.sum += o.sum
}

// gobForm mirrors CompressedCoverage with exported fields so gob (which
// ignores unexported fields) can round-trip checkpointed graphs.
type gobForm struct {
	Counts []uint8
	Sum    int64
}

// GobEncode implements gob.GobEncoder.
func (cc CompressedCoverage) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(gobForm{Counts: cc.counts, Sum: cc.sum}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (cc *CompressedCoverage) GobDecode(data []byte) error {
	var gf gobForm
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&gf); err != nil {
		return err
	}
	cc.counts = gf.Counts
	cc.sum = gf.Sum
	return nil
}

// Reverse returns a coverage vector with positions in reverse order,
// used when a unitig is reverse-complemented before a join.
func (cc *CompressedCoverage) Reverse() CompressedCoverage {
	out := CompressedCoverage{counts: make([]uint8, len(cc.counts)), sum: cc.sum}
	n := len(cc.counts)
	for i, c := range cc.counts {
		out.counts[n-1-i] = c
	}
	return out
}
