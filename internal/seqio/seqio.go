// Package seqio reads the sequence inputs the rest of the module
// consumes: FASTA via biogo, FASTQ (optionally gzipped) via a
// hand-rolled reader in the same vein as the teacher's own since biogo
// has no FASTQ reader, and colored BAM/SAM records via biogo/hts.
//
// Grounded on mapDBG.go's GetRawReads (the fasta.NewReader/linear.Seq
// idiom) and preprocess.go's hand-rolled record loop (for FASTQ, since
// biogo/biogo only ships a FASTA reader).
package seqio

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
)

// Record is one sequence read from any supported input format.
type Record struct {
	Name string
	Seq  []byte
}

// FileParser is the collaborator interface spec.md treats as external:
// something that yields a stream of Records from one or more input
// files. The color mapper and the graph builder both consume it
// without caring which concrete format backs it.
type FileParser interface {
	// Next returns the next record, or err == io.EOF when exhausted.
	Next() (Record, error)
	Close() error
}

// Open dispatches on path's extension to build a FileParser: FASTA
// (.fa/.fasta[.gz]) via biogo, FASTQ (.fq/.fastq[.gz]) via the
// hand-rolled reader below.
func Open(path string) (FileParser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("[Open] %s: %w", path, err)
	}
	var r io.Reader = f
	name := path
	if strings.HasSuffix(name, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("[Open] %s: gzip: %w", path, err)
		}
		r = gz
		name = strings.TrimSuffix(name, ".gz")
	}
	switch {
	case strings.HasSuffix(name, ".fq"), strings.HasSuffix(name, ".fastq"):
		return &fastqParser{f: f, r: bufio.NewReader(r)}, nil
	default:
		return &fastaParser{f: f, fr: fasta.NewReader(r, linear.NewSeq("", nil, alphabet.DNA))}, nil
	}
}

// fastaParser adapts biogo's fasta.Reader to FileParser.
type fastaParser struct {
	f  *os.File
	fr *fasta.Reader
}

func (p *fastaParser) Next() (Record, error) {
	s, err := p.fr.Read()
	if err != nil {
		return Record{}, err
	}
	l, ok := s.(*linear.Seq)
	if !ok {
		return Record{}, fmt.Errorf("[fastaParser.Next] unexpected sequence type %T", s)
	}
	seq := make([]byte, len(l.Seq))
	for i, v := range l.Seq {
		seq[i] = byte(v)
	}
	return Record{Name: l.ID, Seq: seq}, nil
}

func (p *fastaParser) Close() error { return p.f.Close() }

// fastqParser is a hand-rolled four-line-record FASTQ reader, matching
// the teacher's choice to roll its own FASTQ handling rather than reach
// for a library that doesn't have one (biogo/biogo only ships FASTA).
type fastqParser struct {
	f *os.File
	r *bufio.Reader
}

func (p *fastqParser) Next() (Record, error) {
	header, err := p.r.ReadString('\n')
	if err != nil {
		if err == io.EOF && header == "" {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("[fastqParser.Next] read header: %w", err)
	}
	header = strings.TrimRight(header, "\r\n")
	if !strings.HasPrefix(header, "@") {
		return Record{}, fmt.Errorf("[fastqParser.Next] malformed FASTQ header %q", header)
	}
	seqLine, err := p.r.ReadString('\n')
	if err != nil {
		return Record{}, fmt.Errorf("[fastqParser.Next] read sequence: %w", err)
	}
	plus, err := p.r.ReadString('\n')
	if err != nil {
		return Record{}, fmt.Errorf("[fastqParser.Next] read plus line: %w", err)
	}
	if !strings.HasPrefix(plus, "+") {
		return Record{}, fmt.Errorf("[fastqParser.Next] malformed FASTQ separator %q", plus)
	}
	qualLine, err := p.r.ReadString('\n')
	if err != nil && err != io.EOF {
		return Record{}, fmt.Errorf("[fastqParser.Next] read quality: %w", err)
	}
	seq := []byte(strings.TrimRight(seqLine, "\r\n"))
	qual := strings.TrimRight(qualLine, "\r\n")
	if len(qual) != 0 && len(qual) != len(seq) {
		return Record{}, fmt.Errorf("[fastqParser.Next] quality length %d != sequence length %d", len(qual), len(seq))
	}
	return Record{Name: strings.TrimPrefix(header, "@"), Seq: seq}, nil
}

func (p *fastqParser) Close() error { return p.f.Close() }
