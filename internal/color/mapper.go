package color

import (
	"io"
	"runtime"
	"sync"

	"github.com/mudesheng/cdbg/internal/graph"
	"github.com/mudesheng/cdbg/internal/seqio"
)

const (
	// windowSize bounds how a long read is sliced before being handed
	// to a worker, per spec.md 4.G: 1000bp windows, consecutive windows
	// overlapping by k-1 bases (computed in emitWindows) so no k-mer
	// spanning a window boundary is missed.
	windowSize = 1000
)

// readWindow is one slice of a read plus the color it belongs to.
type readWindow struct {
	color int
	seq   []byte
}

// MapColor walks every file in files under colorID, sliding each record
// into windowSize-byte windows (k-1 overlap) and fanning them out to a
// pool of worker goroutines that resolve each window's k-mers against g
// and mark colorID in store for every unitig they land on. Grounded on
// paraLookupComplexNode's reader/worker channel pair: a single reader
// goroutine produces work and closes the shared channel when its files
// are exhausted (or on the first read error), numCPU workers drain that
// channel until it is closed, and a sync.WaitGroup joins them.
func MapColor(g *graph.Graph, store *Store, colorID int, files []string, numCPU int) error {
	if numCPU <= 0 {
		numCPU = runtime.NumCPU()
	}
	wc := make(chan readWindow, numCPU*4)
	errc := make(chan error, 1)

	var wg sync.WaitGroup
	wg.Add(numCPU)
	for i := 0; i < numCPU; i++ {
		go func() {
			defer wg.Done()
			mapWorker(g, store, wc)
		}()
	}

	go func() {
		defer close(wc)
		for _, fn := range files {
			if err := emitWindows(fn, colorID, g.Cfg.K, wc); err != nil {
				select {
				case errc <- err:
				default:
				}
				return
			}
		}
	}()

	wg.Wait()
	select {
	case err := <-errc:
		return err
	default:
		return nil
	}
}

// emitWindows reads every record of fn and slices it into overlapping
// windows, sending each down wc tagged with colorID.
func emitWindows(fn string, colorID, k int, wc chan<- readWindow) error {
	p, err := seqio.Open(fn)
	if err != nil {
		return err
	}
	defer p.Close()
	overlap := k - 1
	for {
		rec, err := p.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		seq := rec.Seq
		if len(seq) < k {
			continue
		}
		step := windowSize - overlap
		for start := 0; start < len(seq); start += step {
			end := start + windowSize
			if end > len(seq) {
				end = len(seq)
			}
			wc <- readWindow{color: colorID, seq: seq[start:end]}
			if end == len(seq) {
				break
			}
		}
	}
}

// mapWorker drains wc, resolving every k-mer-window start position of
// each slice via FindUnitig and marking colorID for whichever unitig it
// lands on. Per spec.md 4.G's "longest-common-prefix batching", once a
// FindUnitig call reports a match of Len consecutive k-mers, the worker
// skips directly past the matched run instead of re-querying each of
// its interior positions.
func mapWorker(g *graph.Graph, store *Store, wc <-chan readWindow) {
	for rw := range wc {
		k := g.Cfg.K
		pos := 0
		for pos+k <= len(rw.seq) {
			um, err := g.FindUnitig(rw.seq, pos)
			if err != nil || um.Empty() {
				pos++
				continue
			}
			store.SetColor(um.Ref, rw.color)
			if um.Len > 1 {
				pos += um.Len
			} else {
				pos++
			}
		}
	}
}
