// Package bloomfilter provides the BloomFilter interface the graph
// walker consumes (spec.md 6.3: "contains(hash, block)",
// "getBlock(min_hash)") plus a default counting-cuckoo-filter
// implementation, adapted from the teacher's
// cuckoofilter/cuckoofilter.go: a fingerprint+saturating-count packed
// into a 16-bit bucket item, two candidate bucket indices per key, and
// kick-out insertion on collision (unsynchronized: the filter is only
// ever built during the single-threaded build phase, per spec.md 5).
package bloomfilter

import (
	"math/rand"

	metro "github.com/dgryski/go-metro"
)

// BloomFilter is the interface the graph walker consumes. It is
// deliberately narrow: spec.md treats the bloom filter itself as an
// external collaborator, consumed only through Contains/GetBlock.
type BloomFilter interface {
	// Contains reports whether hash is (probably) present in the block
	// identified by minHash's block (the minimizer bucket the walker
	// is currently probing).
	Contains(hash, block uint64) bool
	// GetBlock returns the block identifier a given minimizer hash maps
	// to, so the walker can batch its Contains queries against a single
	// block.
	GetBlock(minHash uint64) uint64
}

const (
	numFPBits = 13
	numCBits  = 3
	fpMask    = (1 << numFPBits) - 1
	maxCount  = (1 << numCBits) - 1
	bucketLen = 4
	maxKicks  = 500
)

type cfItem uint16

func (c cfItem) count() uint16  { return uint16(c) & maxCount }
func (c cfItem) finger() uint16 { return uint16(c) >> numCBits }
func combine(fp, count uint16) cfItem {
	return cfItem((fp << numCBits) | (count & maxCount))
}

type bucket struct {
	items [bucketLen]cfItem
}

// CuckooFilter is a counting cuckoo filter implementing BloomFilter.
// Grounded directly on cuckoofilter.CuckooFilter/CFItem/Bucket.
type CuckooFilter struct {
	buckets []bucket
	numBkt  uint64
}

// NewCuckooFilter allocates a filter sized for maxKeys items.
func NewCuckooFilter(maxKeys uint64) *CuckooFilter {
	n := upperPow2(maxKeys) / bucketLen
	if n == 0 {
		n = 1
	}
	return &CuckooFilter{buckets: make([]bucket, n), numBkt: n}
}

func upperPow2(x uint64) uint64 {
	if x == 0 {
		return 1
	}
	x--
	x |= x >> 1
	x |= x >> 2
	x |= x >> 4
	x |= x >> 8
	x |= x >> 16
	x |= x >> 32
	return x + 1
}

func fingerprint(data []byte) uint16 {
	h := metro.Hash64(data, 1335)
	return uint16(h%fpMask + 1)
}

func (cf *CuckooFilter) altIndex(index uint64, finger uint16) uint64 {
	fp := []byte{byte(finger >> 8), byte(finger & 0xFF)}
	h := metro.Hash64(fp, 1337)
	return (index ^ h) % cf.numBkt
}

// GetBlock returns the primary bucket index for a minimizer hash.
func (cf *CuckooFilter) GetBlock(minHash uint64) uint64 {
	return minHash % cf.numBkt
}

func (b *bucket) contains(fp uint16) bool {
	for _, it := range b.items {
		if it.count() > 0 && it.finger() == fp {
			return true
		}
	}
	return false
}

// Contains reports whether the key hashing to hash is present; block
// must be the value GetBlock(hash) returned, so repeated queries
// against the same block can be batched by the caller without
// recomputing it, per spec.md's collaborator contract.
func (cf *CuckooFilter) Contains(hash, block uint64) bool {
	data := hashToBytes(hash)
	fp := fingerprint(data)
	if cf.buckets[block].contains(fp) {
		return true
	}
	i2 := cf.altIndex(block, fp)
	return cf.buckets[i2].contains(fp)
}

func hashToBytes(h uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(h >> (8 * uint(i)))
	}
	return b
}

// Insert adds the item hashing to hash to the filter, matching
// cuckoofilter.CuckooFilter.Insert's two-choice-plus-kickout algorithm.
// hash must be computed the same way callers compute the hash they
// later pass to Contains (e.g. kmer.Kmer.Hash on the canonical form).
func (cf *CuckooFilter) Insert(hash uint64) bool {
	data := hashToBytes(hash)
	fp := fingerprint(data)
	i1 := cf.GetBlock(hash)
	i2 := cf.altIndex(i1, fp)

	if cf.insertAt(i1, fp) || cf.insertAt(i2, fp) {
		return true
	}

	idx := i1
	if rand.Intn(2) == 1 {
		idx = i2
	}
	curFP := fp
	for k := 0; k < maxKicks; k++ {
		j := rand.Intn(bucketLen)
		old := cf.buckets[idx].items[j]
		cf.buckets[idx].items[j] = combine(curFP, 1)
		if old.count() == 0 {
			return true
		}
		curFP = old.finger()
		idx = cf.altIndex(idx, curFP)
		if cf.insertAt(idx, curFP) {
			return true
		}
	}
	return false
}

func (cf *CuckooFilter) insertAt(idx uint64, fp uint16) bool {
	b := &cf.buckets[idx]
	for i, it := range b.items {
		if it.count() == 0 {
			b.items[i] = combine(fp, 1)
			return true
		}
		if it.finger() == fp && it.count() < maxCount {
			b.items[i] = combine(fp, it.count()+1)
			return true
		}
	}
	return false
}
