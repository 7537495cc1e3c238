package kmer

import (
	"github.com/cespare/xxhash"
	metro "github.com/dgryski/go-metro"
)

// Kmer is a fixed-length DNA word, 2-bit packed across Seq the same way
// constructcf.KmerBnt packs a read window: Seq[0] holds the first (most
// significant) group of up to NumBaseInUint64 bases, Seq[1] the next
// group, and so on, so that comparing Seq word-by-word from index 0
// compares k-mers lexicographically base-by-base.
type Kmer struct {
	Seq []uint64
	K   int
}

// New packs an ASCII byte slice of length k into a Kmer.
func New(seq []byte) (Kmer, error) {
	k := len(seq)
	km := Kmer{Seq: make([]uint64, wordsForLen(k)), K: k}
	for i := 0; i < k; i++ {
		c, err := EncodeBase(seq[i])
		if err != nil {
			return Kmer{}, err
		}
		w := i / NumBaseInUint64
		km.Seq[w] <<= NumBitsInBase
		km.Seq[w] |= uint64(c)
	}
	return km, nil
}

// BaseAt returns the 2-bit code of the base at position i (0-based from
// the start of the k-mer).
func (km Kmer) BaseAt(i int) byte {
	w := i / NumBaseInUint64
	// bases within a word are stored MSB-first as well: the last base
	// placed into a word ends up in its low 2 bits.
	bitsUsedInWord := ((i % NumBaseInUint64) + 1) * NumBitsInBase
	full := km.wordBaseCount(w) * NumBitsInBase
	shift := full - bitsUsedInWord
	return byte((km.Seq[w] >> uint(shift)) & BaseMask)
}

// wordBaseCount returns how many bases word w actually holds (the last
// word may be partially filled).
func (km Kmer) wordBaseCount(w int) int {
	nWords := len(km.Seq)
	if w < nWords-1 {
		return NumBaseInUint64
	}
	rem := km.K % NumBaseInUint64
	if rem == 0 {
		return NumBaseInUint64
	}
	return rem
}

// Bytes unpacks the Kmer back to its ASCII representation.
func (km Kmer) Bytes() []byte {
	out := make([]byte, km.K)
	for i := 0; i < km.K; i++ {
		out[i] = DecodeBase(km.BaseAt(i))
	}
	return out
}

// Equal reports whether two k-mers hold the same bases.
func (km Kmer) Equal(o Kmer) bool {
	if km.K != o.K {
		return false
	}
	for i := range km.Seq {
		if km.Seq[i] != o.Seq[i] {
			return false
		}
	}
	return true
}

// Less reports km < o in the same word-by-word sense as
// constructcf.KmerBnt.BiggerThan (inverted).
func (km Kmer) Less(o Kmer) bool {
	if km.K != o.K {
		return km.K < o.K
	}
	for i := range km.Seq {
		if km.Seq[i] != o.Seq[i] {
			return km.Seq[i] < o.Seq[i]
		}
	}
	return false
}

// Twin returns the reverse complement of km.
func (km Kmer) Twin() Kmer {
	rk := Kmer{Seq: make([]uint64, len(km.Seq)), K: km.K}
	for j := 0; j < km.K; j++ {
		c := CompBase(km.BaseAt(km.K - 1 - j))
		w := j / NumBaseInUint64
		rk.Seq[w] <<= NumBitsInBase
		rk.Seq[w] |= uint64(c)
	}
	return rk
}

// Rep returns the canonical form: min(km, twin(km)).
func (km Kmer) Rep() Kmer {
	tw := km.Twin()
	if tw.Less(km) {
		return tw
	}
	return km
}

// bytesForHash renders the packed words as a byte slice suitable for
// feeding to a general-purpose hash function.
func (km Kmer) bytesForHash() []byte {
	b := make([]byte, len(km.Seq)*8+4)
	for i, w := range km.Seq {
		putUint64(b[i*8:], w)
	}
	putUint32(b[len(km.Seq)*8:], uint32(km.K))
	return b
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * uint(i)))
	}
}

func putUint32(b []byte, v uint32) {
	for i := 0; i < 4; i++ {
		b[i] = byte(v >> (8 * uint(i)))
	}
}

// Hash computes the seed-th independent hash of km, per spec.md's
// "hashing under multiple independent seeds". Two independent hash
// families are used so the two hashes don't degenerate together:
// even seeds use xxhash, odd seeds use go-metro with the seed as salt.
func (km Kmer) Hash(seed int) uint64 {
	data := km.bytesForHash()
	if seed%2 == 0 {
		return xxhash.Sum64(data) ^ uint64(seed)*0x9E3779B97F4A7C15
	}
	return metro.Hash64(data, uint64(seed))
}

// ForwardExt appends base c to km and drops the first base, returning
// the extended k-mer (same length).
func (km Kmer) ForwardExt(c byte) Kmer {
	out := Kmer{Seq: make([]uint64, len(km.Seq)), K: km.K}
	for i := 1; i < km.K; i++ {
		b := km.BaseAt(i)
		w := (i - 1) / NumBaseInUint64
		out.Seq[w] <<= NumBitsInBase
		out.Seq[w] |= uint64(b)
	}
	w := (km.K - 1) / NumBaseInUint64
	out.Seq[w] <<= NumBitsInBase
	out.Seq[w] |= uint64(c & BaseMask)
	return out
}

// BackwardExt prepends base c to km and drops the last base.
func (km Kmer) BackwardExt(c byte) Kmer {
	out := Kmer{Seq: make([]uint64, len(km.Seq)), K: km.K}
	w0 := 0
	out.Seq[w0] <<= NumBitsInBase
	out.Seq[w0] |= uint64(c & BaseMask)
	for i := 0; i < km.K-1; i++ {
		b := km.BaseAt(i)
		w := (i + 1) / NumBaseInUint64
		out.Seq[w] <<= NumBitsInBase
		out.Seq[w] |= uint64(b)
	}
	return out
}

// String renders the k-mer as an ASCII string for debugging and GFA output.
func (km Kmer) String() string {
	return string(km.Bytes())
}
