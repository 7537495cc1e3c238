// Command cdbg builds and queries compacted de Bruijn graphs over
// colored read sets, following the teacher's odin-based subcommand
// registration style (ga.go's app.DefineSubCommand calls).
package main

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"strings"

	"github.com/jwaldrip/odin/cli"

	"github.com/mudesheng/cdbg/internal/bloomfilter"
	"github.com/mudesheng/cdbg/internal/color"
	"github.com/mudesheng/cdbg/internal/gfa"
	"github.com/mudesheng/cdbg/internal/graph"
	"github.com/mudesheng/cdbg/internal/kmer"
	"github.com/mudesheng/cdbg/internal/seqio"
)

const defaultKmerLen = 31

var app = cli.New("1.0.0", "compacted de Bruijn graph builder", func(c cli.Command) {})

func init() {
	app.DefineIntFlag("k", defaultKmerLen, "kmer length")
	app.DefineIntFlag("g", 11, "minimizer length")
	app.DefineIntFlag("t", 1, "number of CPU threads used")
	app.DefineStringFlag("o", "out", "output file prefix")
	app.DefineStringFlag("C", "", "colors file: one color name and its input file paths per line")
	app.DefineBoolFlag("v", false, "verbose logging")

	build := app.DefineSubCommand("build", "build a compacted de Bruijn graph from one or more input files", runBuild)
	{
		build.DefineStringFlag("in", "", "comma-separated list of input FASTA/FASTQ files")
		build.DefineBoolFlag("Graph", false, "also write a .dot debug dump")
	}
	query := app.DefineSubCommand("query", "query a built graph's checkpoint for a k-mer's unitig", runQuery)
	{
		query.DefineStringFlag("checkpoint", "", "graph checkpoint file to load")
		query.DefineStringFlag("kmer", "", "k-mer sequence to look up")
	}
	stats := app.DefineSubCommand("stats", "print summary statistics for a graph checkpoint", runStats)
	{
		stats.DefineStringFlag("checkpoint", "", "graph checkpoint file to load")
	}
	colorsFromBAM := app.DefineSubCommand("colors-from-bam", "derive one color's read set from a BAM alignment file", runColorsFromBAM)
	{
		colorsFromBAM.DefineStringFlag("checkpoint", "", "graph checkpoint file to load")
		colorsFromBAM.DefineStringFlag("bam", "", "input BAM file")
		colorsFromBAM.DefineStringFlag("color", "", "color name to assign")
	}
}

func main() {
	app.Start()
}

type globalOpts struct {
	k, g, numCPU int
	outPrefix    string
	colorsFile   string
	verbose      bool
}

func parseGlobalOpts(c cli.Command) (globalOpts, error) {
	var g cli.Command = c
	for g.Parent() != nil {
		g = g.Parent()
	}
	opt := globalOpts{
		k:          g.Flag("k").Get().(int),
		g:          g.Flag("g").Get().(int),
		numCPU:     g.Flag("t").Get().(int),
		outPrefix:  g.Flag("o").Get().(string),
		colorsFile: g.Flag("C").Get().(string),
		verbose:    g.Flag("v").Get().(bool),
	}
	if opt.k < 4 {
		return opt, fmt.Errorf("[parseGlobalOpts] -k=%d too small", opt.k)
	}
	if opt.numCPU <= 0 {
		opt.numCPU = runtime.NumCPU()
	}
	return opt, nil
}

// colorEntry is one line of the -C colors file: a color name followed
// by the input file paths that belong to it.
type colorEntry struct {
	name  string
	files []string
}

func readColorsFile(path string) ([]colorEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("[readColorsFile] %w", err)
	}
	var entries []colorEntry
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("[readColorsFile] malformed line %q", line)
		}
		entries = append(entries, colorEntry{name: fields[0], files: fields[1:]})
	}
	return entries, nil
}

// runBuild implements the build subcommand: read every input file
// (the comma-separated -in list), discover unitigs, join and split them, and
// write the GFA + checkpoint + optional colors outputs. Per spec.md 7's
// exit-code contract: 0 success, 1 invalid parameters, 2 I/O failure.
func runBuild(c cli.Command) {
	opt, err := parseGlobalOpts(c)
	if err != nil {
		log.Printf("[build] %v", err)
		os.Exit(1)
	}
	inStr := c.Flag("in").Get().(string)
	if inStr == "" {
		log.Printf("[build] -in (comma-separated input file list) is required")
		os.Exit(1)
	}
	inputs := strings.Split(inStr, ",")

	g, err := graph.NewGraph(graph.Config{K: opt.k, G: opt.g})
	if err != nil {
		log.Printf("[build] %v", err)
		os.Exit(1)
	}

	if err := buildFromFiles(g, inputs); err != nil {
		log.Printf("[build] %v", err)
		os.Exit(2)
	}
	if _, err := g.JoinAllUnitigs(); err != nil {
		log.Printf("[build] join: %v", err)
		os.Exit(2)
	}
	if _, err := g.SplitAllUnitigs(); err != nil {
		log.Printf("[build] split: %v", err)
		os.Exit(2)
	}

	if opt.verbose {
		log.Printf("[build] k=%d g=%d unitigs=%d", opt.k, opt.g, g.NumUnitigs())
	}

	if err := gfa.Write(g, opt.k, opt.outPrefix+".gfa"); err != nil {
		log.Printf("[build] write GFA: %v", err)
		os.Exit(2)
	}
	if c.Flag("Graph").Get().(bool) {
		if err := gfa.WriteDot(g, opt.k, opt.outPrefix+".dot"); err != nil {
			log.Printf("[build] write dot: %v", err)
			os.Exit(2)
		}
	}

	f, err := os.Create(opt.outPrefix + ".ckpt")
	if err != nil {
		log.Printf("[build] create checkpoint: %v", err)
		os.Exit(2)
	}
	defer f.Close()
	if err := g.WriteCheckpoint(f); err != nil {
		log.Printf("[build] write checkpoint: %v", err)
		os.Exit(2)
	}

	if opt.colorsFile != "" {
		if err := buildColors(g, opt); err != nil {
			log.Printf("[build] colors: %v", err)
			os.Exit(2)
		}
	}
}

// buildFromFiles implements spec.md 2's data flow: reads are first
// hashed into a bloom filter, then every k-mer not already covered by a
// stored unitig seeds a walker pass (graph.FindUnitigSequence) that
// extends it through bf-confirmed extensions into a full unitig string,
// which is what actually gets added to the graph — never the raw read.
func buildFromFiles(g *graph.Graph, inputs []string) error {
	bf, err := buildBloomFilter(inputs, g.Cfg.K)
	if err != nil {
		return err
	}
	var ignoredTips []kmer.Kmer
	for _, fn := range inputs {
		p, err := seqio.Open(fn)
		if err != nil {
			return err
		}
		tips, err := decomposeIntoUnitigs(g, p, bf)
		p.Close()
		if err != nil {
			return err
		}
		ignoredTips = append(ignoredTips, tips...)
	}
	if _, err := g.CheckFPTips(ignoredTips); err != nil {
		return err
	}
	return nil
}

// buildBloomFilter makes a first pass over every input file to size a
// CuckooFilter, then a second pass to insert the rep-hash of every
// k-mer window of every read, per spec.md 2's "reads -> bloom filter"
// stage.
func buildBloomFilter(inputs []string, k int) (*bloomfilter.CuckooFilter, error) {
	var total uint64
	for _, fn := range inputs {
		p, err := seqio.Open(fn)
		if err != nil {
			return nil, err
		}
		for {
			rec, rerr := p.Next()
			if rerr != nil {
				break
			}
			if len(rec.Seq) >= k {
				total += uint64(len(rec.Seq) - k + 1)
			}
		}
		p.Close()
	}

	bf := bloomfilter.NewCuckooFilter(total)
	for _, fn := range inputs {
		p, err := seqio.Open(fn)
		if err != nil {
			return nil, err
		}
		for {
			rec, rerr := p.Next()
			if rerr != nil {
				break
			}
			for o := 0; o+k <= len(rec.Seq); o++ {
				km, kerr := kmer.New(rec.Seq[o : o+k])
				if kerr != nil {
					continue
				}
				bf.Insert(km.Rep().Hash(0))
			}
		}
		p.Close()
	}
	return bf, nil
}

// decomposeIntoUnitigs walks every k-mer window of every read in p that
// isn't already part of a stored unitig out into a full unitig via
// graph.FindUnitigSequence, and adds it. It returns every k-mer the
// walker flagged as a probable false-positive tip along the way, for
// the caller's later CheckFPTips pass.
func decomposeIntoUnitigs(g *graph.Graph, p seqio.FileParser, bf *bloomfilter.CuckooFilter) ([]kmer.Kmer, error) {
	k := g.Cfg.K
	var ignoredTips []kmer.Kmer
	for {
		rec, err := p.Next()
		if err != nil {
			break
		}
		for o := 0; o+k <= len(rec.Seq); o++ {
			seed, kerr := kmer.New(rec.Seq[o : o+k])
			if kerr != nil {
				continue
			}
			if um, ferr := g.Find(seed); ferr == nil && !um.Empty() {
				continue
			}
			seq, cov, tips, _, _ := graph.FindUnitigSequence(seed, bf, k, g.Cfg.G)
			ignoredTips = append(ignoredTips, tips...)
			if len(seq) < k {
				continue
			}
			if _, aerr := g.AddUnitig(seq, cov); aerr != nil {
				return ignoredTips, aerr
			}
		}
	}
	return ignoredTips, nil
}

func runQuery(c cli.Command) {
	ckptPath := c.Flag("checkpoint").Get().(string)
	kmerStr := c.Flag("kmer").Get().(string)
	if ckptPath == "" || kmerStr == "" {
		log.Printf("[query] --checkpoint and --kmer are required")
		os.Exit(1)
	}
	f, err := os.Open(ckptPath)
	if err != nil {
		log.Printf("[query] %v", err)
		os.Exit(2)
	}
	defer f.Close()
	g, err := graph.ReadCheckpoint(f)
	if err != nil {
		log.Printf("[query] %v", err)
		os.Exit(2)
	}
	km, err := kmer.New([]byte(kmerStr))
	if err != nil {
		log.Printf("[query] %v", err)
		os.Exit(1)
	}
	um, err := g.Find(km)
	if err != nil {
		log.Printf("[query] %v", err)
		os.Exit(2)
	}
	if um.Empty() {
		fmt.Println("not found")
		return
	}
	fmt.Printf("ref=%s:%d offset=%d len=%d unitigLen=%d strand=%v\n",
		um.Ref.Repr, um.Ref.ID, um.Offset, um.Len, um.UnitigLen, um.Strand)
}

func runStats(c cli.Command) {
	ckptPath := c.Flag("checkpoint").Get().(string)
	if ckptPath == "" {
		log.Printf("[stats] --checkpoint is required")
		os.Exit(1)
	}
	f, err := os.Open(ckptPath)
	if err != nil {
		log.Printf("[stats] %v", err)
		os.Exit(2)
	}
	defer f.Close()
	g, err := graph.ReadCheckpoint(f)
	if err != nil {
		log.Printf("[stats] %v", err)
		os.Exit(2)
	}
	fmt.Printf("k=%d g=%d unitigs=%d\n", g.Cfg.K, g.Cfg.G, g.NumUnitigs())
}

func runColorsFromBAM(c cli.Command) {
	ckptPath := c.Flag("checkpoint").Get().(string)
	bamPath := c.Flag("bam").Get().(string)
	colorName := c.Flag("color").Get().(string)
	if ckptPath == "" || bamPath == "" || colorName == "" {
		log.Printf("[colors-from-bam] --checkpoint, --bam and --color are required")
		os.Exit(1)
	}
	opt, err := parseGlobalOpts(c)
	if err != nil {
		log.Printf("[colors-from-bam] %v", err)
		os.Exit(1)
	}

	f, err := os.Open(ckptPath)
	if err != nil {
		log.Printf("[colors-from-bam] %v", err)
		os.Exit(2)
	}
	g, err := graph.ReadCheckpoint(f)
	f.Close()
	if err != nil {
		log.Printf("[colors-from-bam] %v", err)
		os.Exit(2)
	}

	store := color.NewStore(g.NumUnitigs(), 1)
	br, err := seqio.OpenBAM(bamPath, opt.numCPU)
	if err != nil {
		log.Printf("[colors-from-bam] %v", err)
		os.Exit(2)
	}
	defer br.Close()
	for {
		rec, err := br.Next()
		if err != nil {
			break
		}
		if len(rec.Seq) < g.Cfg.K {
			continue
		}
		um, ferr := g.FindUnitig(rec.Seq, 0)
		if ferr == nil && !um.Empty() {
			store.SetColor(um.Ref, 0)
		}
	}

	refs := append(g.AllLongRefs(), g.AllShortRefs()...)
	if err := color.WriteBfgColors(store, refs, []string{colorName}, opt.outPrefix+".bfg_colors"); err != nil {
		log.Printf("[colors-from-bam] %v", err)
		os.Exit(2)
	}
}

func buildColors(g *graph.Graph, opt globalOpts) error {
	entries, err := readColorsFile(opt.colorsFile)
	if err != nil {
		return err
	}
	store := color.NewStore(g.NumUnitigs(), len(entries))
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.name
		if err := color.MapColor(g, store, i, e.files, opt.numCPU); err != nil {
			return err
		}
	}
	refs := append(g.AllLongRefs(), g.AllShortRefs()...)
	return color.WriteBfgColors(store, refs, names, opt.outPrefix+".bfg_colors")
}
