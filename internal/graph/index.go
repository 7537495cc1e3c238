package graph

import "github.com/mudesheng/cdbg/internal/kmer"

// indexUnitig walks every distinct minimizer run of seq (per spec.md
// 4.E) and inserts a minRef into that minimizer's bin for ref at the
// run's offset. When a bin's occupancy would exceed MaxAbundanceLim,
// the insert spills to the next minimizer of the same window (the
// "overcrowded" escape) and the bin is marked with a trailing
// minRefOvercrowded sentinel so Find knows to keep walking.
func (g *Graph) indexUnitig(seq []byte, ref UnitigRef) {
	runs := kmer.WalkSequenceMinimizers(seq, g.Cfg.K, g.Cfg.G)
	for _, run := range runs {
		g.insertMinRefAt(seq, run.Offset, ref)
	}
}

// insertMinRefAt inserts a minRef for ref at the k-mer window starting
// at offset, choosing among the window's alternate minimizers if the
// first-choice bin is already overcrowded.
func (g *Graph) insertMinRefAt(seq []byte, offset int, ref UnitigRef) {
	km, err := kmer.New(seq[offset : offset+g.Cfg.K])
	if err != nil {
		return
	}
	it := kmer.NewMinimizerIterator(km, g.Cfg.G)
	for {
		m, _, ok := it.Next()
		if !ok {
			return
		}
		key := keyOf(m)
		bin := g.minIndex[key]
		nonSentinel := 0
		for _, e := range bin {
			if e.Kind == minRefUnitig {
				nonSentinel++
			}
		}
		if nonSentinel < g.MaxAbundanceLim {
			bin = insertBeforeSentinels(bin, minRef{Kind: minRefUnitig, Repr: ref.Repr, ID: ref.ID, Offset: offset})
			g.minIndex[key] = bin
			return
		}
		// This bin is full: mark it overcrowded (if not already) and
		// try the window's next-best minimizer.
		if !overcrowded(bin) {
			bin = append(bin, minRef{Kind: minRefOvercrowded})
			g.minIndex[key] = bin
		}
	}
}

// insertBeforeSentinels inserts e ahead of any trailing AbundantCount /
// Overcrowded sentinels, preserving the invariant that sentinels always
// trail ordinary references in a bin.
func insertBeforeSentinels(bin []minRef, e minRef) []minRef {
	i := len(bin)
	for i > 0 && bin[i-1].Kind != minRefUnitig {
		i--
	}
	bin = append(bin, minRef{})
	copy(bin[i+1:], bin[i:])
	bin[i] = e
	return bin
}

// deindexUnitig removes every minRef for ref from the index, matching
// the same minimizer runs indexUnitig inserted.
func (g *Graph) deindexUnitig(seq []byte, ref UnitigRef) {
	runs := kmer.WalkSequenceMinimizers(seq, g.Cfg.K, g.Cfg.G)
	for _, run := range runs {
		g.removeMinRefAt(seq, run.Offset, ref)
	}
}

func (g *Graph) removeMinRefAt(seq []byte, offset int, ref UnitigRef) {
	km, err := kmer.New(seq[offset : offset+g.Cfg.K])
	if err != nil {
		return
	}
	it := kmer.NewMinimizerIterator(km, g.Cfg.G)
	for {
		m, _, ok := it.Next()
		if !ok {
			return
		}
		key := keyOf(m)
		bin := g.minIndex[key]
		for i, e := range bin {
			if e.Kind == minRefUnitig && e.Repr == ref.Repr && e.ID == ref.ID && e.Offset == offset {
				bin = append(bin[:i], bin[i+1:]...)
				if len(bin) == 0 {
					delete(g.minIndex, key)
				} else {
					g.minIndex[key] = bin
				}
				return
			}
		}
	}
}

// promoteToAbundant reports whether the minimizer shared by a
// would-be short unitig's k-mer already has MinAbundanceLim or more
// short/long references hanging off it, per spec.md 4.E's promotion
// rule: a k-mer whose minimizer bin is crowded with singletons is
// stored in the abundant table instead of densely in vKmers.
func (g *Graph) promoteToAbundant(km kmer.Kmer) bool {
	m, _ := kmer.MinimizerOf(km, g.Cfg.G)
	bin := g.minBin(m)
	count := 0
	for _, e := range bin {
		if e.Kind == minRefUnitig {
			count++
		}
	}
	return count >= g.MinAbundanceLim
}

// markAbundant records the AbundantCount sentinel for km's minimizer
// bin, incrementing its count.
func (g *Graph) markAbundant(km kmer.Kmer) {
	m, _ := kmer.MinimizerOf(km, g.Cfg.G)
	key := keyOf(m)
	bin := g.minIndex[key]
	for i, e := range bin {
		if e.Kind == minRefAbundantCount {
			bin[i].Count++
			g.minIndex[key] = bin
			return
		}
	}
	bin = append(bin, minRef{Kind: minRefAbundantCount, Count: 1})
	g.minIndex[key] = bin
}
