// Package bio provides reading and writing of sequence alignments.
package bio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Sequence is a type which is intended for storing nucleotide or
// protein sequence with it's name.
type Sequence struct {
	Name     string
	Sequence string
}

// Sequences stores multiple sequences. E.g. a sequence alignment.
type Sequences []Sequence

// ParseFasta parses FASTA sequences from a reader.
func ParseFasta(rd io.Reader) (seqs Sequences, err error) {
	seqs = make(Sequences, 0, 10)
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line[0] == '>' {
			seq := Sequence{Name: strings.TrimSpace(line[1:])}
			seqs = append(seqs, seq)
		} else {
			if len(seqs) == 0 {
				return nil, errors.New("sequence w/o prefix")
			}
			line = strings.ToUpper(strings.Replace(line, " ", "", -1))
			seqs[len(seqs)-1].Sequence += line
		}
	}
	return seqs, scanner.Err()
}

// ParsePhylip parses a sequential PHYLIP alignment: a header with the
// number of sequences and sites, then one name and sequence per line.
func ParsePhylip(rd io.Reader) (seqs Sequences, err error) {
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	nseq, nsites := -1, -1
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if nseq < 0 {
			if len(fields) < 2 {
				return nil, errors.New("bad phylip header")
			}
			if nseq, err = strconv.Atoi(fields[0]); err != nil {
				return nil, fmt.Errorf("bad phylip header: %w", err)
			}
			if nsites, err = strconv.Atoi(fields[1]); err != nil {
				return nil, fmt.Errorf("bad phylip header: %w", err)
			}
			seqs = make(Sequences, 0, nseq)
			continue
		}
		if len(fields) < 2 {
			// continuation of the previous sequence
			if len(seqs) == 0 {
				return nil, errors.New("sequence w/o name")
			}
			seqs[len(seqs)-1].Sequence += strings.ToUpper(fields[0])
			continue
		}
		seqs = append(seqs, Sequence{
			Name:     fields[0],
			Sequence: strings.ToUpper(strings.Join(fields[1:], "")),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if nseq < 0 {
		return nil, errors.New("empty phylip file")
	}
	if len(seqs) != nseq {
		return nil, fmt.Errorf("expected %d sequences, found %d", nseq, len(seqs))
	}
	for _, seq := range seqs {
		if len(seq.Sequence) != nsites {
			return nil, fmt.Errorf("sequence %s has length %d, expected %d", seq.Name, len(seq.Sequence), nsites)
		}
	}
	return seqs, nil
}

// ReadAlignment reads an alignment file. The format is chosen by the
// file extension.
func ReadAlignment(fn string) (Sequences, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var seqs Sequences
	switch ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fn), ".")); ext {
	case "fasta", "fa", "fst", "fas", "fna":
		seqs, err = ParseFasta(f)
	case "phy", "phylip":
		seqs, err = ParsePhylip(f)
	default:
		return nil, fmt.Errorf("%s: unknown alignment format %q", fn, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	if len(seqs) == 0 {
		return nil, fmt.Errorf("%s: empty alignment", fn)
	}
	return seqs, nil
}

// Names returns sequence names.
func (seqs Sequences) Names() []string {
	names := make([]string, len(seqs))
	for i, seq := range seqs {
		names[i] = seq.Name
	}
	return names
}

// Wrap inputs a string and wraps it so string length is n characters
// or less.
func Wrap(seq string, n int) (s string) {
	for i := 0; i < len(seq); i += n {
		end := i + n
		if end > len(seq) {
			end = len(seq)
		}
		s += seq[i:end] + "\n"
	}
	return
}

// String returns a sequence in FASTA format.
func (seq Sequence) String() (s string) {
	s = ">" + seq.Name + "\n" + Wrap(seq.Sequence, 80)
	return
}

// String returns sequences in FASTA format.
func (seqs Sequences) String() (s string) {
	for _, seq := range seqs {
		s += seq.String()
	}
	if s == "" {
		return s
	}
	return s[:len(s)-1]
}
