// Package gfa writes the assembled unitig graph out as a GFA v1 file
// (H/S/L lines) and, for debugging, as a graphviz .dot dump, adapted
// from the teacher's GraphvizDBGArr in constructdbg.go.
package gfa

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/awalterschulze/gographviz"

	"github.com/mudesheng/cdbg/internal/graph"
	"github.com/mudesheng/cdbg/internal/kmer"
)

// segmentID assigns GFA segment names: the first letter of the
// representation ("l" for long, "s" for short) followed by the slot
// index plus one, so IDs stay stable across writes of the same graph
// content. Write emits long unitigs first, then short ones; abundant
// unitigs are not written.
func segmentID(ref graph.UnitigRef) string {
	return fmt.Sprintf("%s%d", ref.Repr.String()[:1], ref.ID+1)
}

// Write renders g as a GFA v1 file at path, using a temp-file-then-
// rename strategy so a crash mid-write never leaves a truncated file
// in place (matching the teacher's GraphvizDBGArr os.Create-then-
// WriteString idiom, hardened with the rename step the teacher's
// revision history shows its other writers adopting).
func Write(g *graph.Graph, k int, path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".gfa-tmp-*")
	if err != nil {
		return fmt.Errorf("[Write] create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	bw := bufio.NewWriter(tmp)
	if err := writeHeader(bw); err != nil {
		tmp.Close()
		return err
	}
	refs := append(g.AllLongRefs(), g.AllShortRefs()...)
	for _, ref := range refs {
		seq := g.UnitigSeq(ref)
		if seq == nil {
			continue
		}
		if err := writeSegment(bw, segmentID(ref), seq); err != nil {
			tmp.Close()
			return err
		}
	}
	if err := writeLinks(bw, g, refs, k); err != nil {
		tmp.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("[Write] flush: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("[Write] close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("[Write] rename into place: %w", err)
	}
	return nil
}

func writeHeader(w *bufio.Writer) error {
	_, err := w.WriteString("H\tVN:Z:1.0\n")
	return err
}

func writeSegment(w *bufio.Writer, id string, seq []byte) error {
	_, err := fmt.Fprintf(w, "S\t%s\t%s\n", id, seq)
	return err
}

// writeLinks probes the four forward extensions of each unitig's last
// k-mer via Find and emits one L line for every extension that Find
// places at offset 0 of a unitig (the target's strand comes from
// UnitigMap.Strand). Each such overlap is written once, from the
// unitig it leaves; the backward extensions of a unitig's first k-mer
// are not probed, and an extension that lands anywhere but offset 0 is
// not written.
func writeLinks(w *bufio.Writer, g *graph.Graph, refs []graph.UnitigRef, k int) error {
	for _, ref := range refs {
		seq := g.UnitigSeq(ref)
		if seq == nil || len(seq) < k {
			continue
		}
		last, err := kmer.New(seq[len(seq)-k:])
		if err != nil {
			continue
		}
		for _, b := range []byte{'A', 'C', 'G', 'T'} {
			c, err := kmer.EncodeBase(b)
			if err != nil {
				continue
			}
			ext := last.ForwardExt(c)
			um, ferr := g.Find(ext)
			if ferr != nil || um.Empty() || um.Offset != 0 {
				continue
			}
			fromStrand, toStrand := '+', '+'
			if !um.Strand {
				toStrand = '-'
			}
			if _, err := fmt.Fprintf(w, "L\t%s\t%c\t%s\t%c\t%dM\n",
				segmentID(ref), fromStrand, segmentID(um.Ref), toStrand, k-1); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteDot renders g as a graphviz .dot file for visual debugging,
// adapted from GraphvizDBGArr: green record nodes are replaced here by
// unitig segments, blue edges by the overlaps writeLinks also emits.
func WriteDot(g *graph.Graph, k int, path string) error {
	gv := gographviz.NewGraph()
	gv.SetName("G")
	gv.SetDir(true)
	gv.SetStrict(false)

	refs := append(g.AllLongRefs(), g.AllShortRefs()...)
	for _, ref := range refs {
		seq := g.UnitigSeq(ref)
		if seq == nil {
			continue
		}
		attrs := map[string]string{
			"color": "Blue",
			"label": strconv.Quote(fmt.Sprintf("%s len:%d", segmentID(ref), len(seq))),
		}
		if err := gv.AddNode("G", segmentID(ref), attrs); err != nil {
			return err
		}
	}
	for _, ref := range refs {
		seq := g.UnitigSeq(ref)
		if seq == nil || len(seq) < k {
			continue
		}
		last, err := kmer.New(seq[len(seq)-k:])
		if err != nil {
			continue
		}
		for _, b := range []byte{'A', 'C', 'G', 'T'} {
			c, err := kmer.EncodeBase(b)
			if err != nil {
				continue
			}
			um, ferr := g.Find(last.ForwardExt(c))
			if ferr != nil || um.Empty() || um.Offset != 0 {
				continue
			}
			attrs := map[string]string{"color": "Green"}
			if err := gv.AddEdge(segmentID(ref), segmentID(um.Ref), true, attrs); err != nil {
				return err
			}
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("[WriteDot] create file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(gv.String()); err != nil {
		return fmt.Errorf("[WriteDot] write: %w", err)
	}
	return nil
}
