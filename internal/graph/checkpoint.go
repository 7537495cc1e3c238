package graph

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/mudesheng/cdbg/internal/covvec"
	"github.com/mudesheng/cdbg/internal/kmer"
	"github.com/mudesheng/cdbg/internal/oatable"
)

// snapshot is the gob-serializable form of a Graph: the minimizer index
// and tagged-union entries round-trip as plain structs, so nothing here
// needs custom (Un)MarshalBinary methods.
type snapshot struct {
	Cfg             Config
	MinAbundanceLim int
	MaxAbundanceLim int
	Unitigs         []*Unitig
	Kmers           []shortEntry
	Abundant        map[string]*abundantEntry
	MinIndex        map[string][]minRef
}

func init() {
	gob.Register(&Unitig{})
	gob.Register(covvec.CompressedCoverage{})
	gob.Register(kmer.Kmer{})
}

// WriteCheckpoint serializes the graph (gob-encoded, zstd-compressed)
// to w, matching the teacher's later revision's move from cbrotli to
// zstd for on-disk checkpoints (klauspost/compress).
func (g *Graph) WriteCheckpoint(w io.Writer) error {
	if err := g.checkValid(); err != nil {
		return err
	}
	snap := snapshot{
		Cfg:             g.Cfg,
		MinAbundanceLim: g.MinAbundanceLim,
		MaxAbundanceLim: g.MaxAbundanceLim,
		Unitigs:         g.vUnitigs,
		Kmers:           g.vKmers,
		Abundant:        make(map[string]*abundantEntry, g.hKmersCcov.Len()),
		MinIndex:        make(map[string][]minRef, len(g.minIndex)),
	}
	g.hKmersCcov.Each(func(k minKey, v *abundantEntry) {
		snap.Abundant[string(k)] = v
	})
	for k, v := range g.minIndex {
		snap.MinIndex[string(k)] = v
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&snap); err != nil {
		return fmt.Errorf("[WriteCheckpoint] gob encode: %w", err)
	}
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("[WriteCheckpoint] zstd writer: %w", err)
	}
	if _, err := zw.Write(buf.Bytes()); err != nil {
		zw.Close()
		return fmt.Errorf("[WriteCheckpoint] zstd write: %w", err)
	}
	return zw.Close()
}

// ReadCheckpoint reconstructs a Graph previously written by
// WriteCheckpoint.
func ReadCheckpoint(r io.Reader) (*Graph, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("[ReadCheckpoint] zstd reader: %w", err)
	}
	defer zr.Close()

	var snap snapshot
	if err := gob.NewDecoder(zr).Decode(&snap); err != nil {
		return nil, fmt.Errorf("[ReadCheckpoint] gob decode: %w", err)
	}
	g := &Graph{
		Cfg:             snap.Cfg,
		MinAbundanceLim: snap.MinAbundanceLim,
		MaxAbundanceLim: snap.MaxAbundanceLim,
		vUnitigs:        snap.Unitigs,
		vKmers:          snap.Kmers,
		hKmersCcov:      oatable.New[minKey, *abundantEntry](hashMinKey),
		minIndex:        make(map[minKey][]minRef, len(snap.MinIndex)),
	}
	for k, v := range snap.Abundant {
		g.hKmersCcov.Insert(minKey(k), v)
	}
	for k, v := range snap.MinIndex {
		g.minIndex[minKey(k)] = v
	}
	if err := g.Cfg.validate(); err != nil {
		g.invalid = true
		g.invalidErr = err
		return g, err
	}
	return g, nil
}
