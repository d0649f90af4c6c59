package experiment

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"bitbucket.org/Davydov/rootbench/bio"
	"bitbucket.org/Davydov/rootbench/tree"
)

// TreeInput is a true tree of the experiment: either a random tree
// with a number of leaves (a new one in every trial) or a user tree.
type TreeInput struct {
	Name   string
	Leaves int
	Tree   *tree.Tree
}

// Random returns true for random trees.
func (t TreeInput) Random() bool {
	return t.Tree == nil
}

// AlignmentInput is an alignment of the experiment: either a number of
// sites to simulate or a user alignment.
type AlignmentInput struct {
	Name      string
	Sites     int
	Alignment bio.Sequences
}

// Simulated returns true if the alignment is simulated.
func (a AlignmentInput) Simulated() bool {
	return a.Alignment == nil
}

// ParseTrees parses user trees, one tree per line.
func ParseTrees(rd io.Reader) ([]*tree.Tree, error) {
	trees, err := tree.ParseNewickAll(rd)
	if err != nil {
		return nil, err
	}
	for i, t := range trees {
		if err := t.ValidateLeaves(); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i+1, err)
		}
	}
	return trees, nil
}

// LoadTrees converts tree specifications into tree inputs. Integers
// give random trees named by the number of leaves, anything else is
// read as a file. User trees are named with base-26 codes.
func LoadTrees(specs []string) ([]TreeInput, error) {
	type item struct {
		leaves int
		tree   *tree.Tree
	}
	var items []item
	for _, s := range specs {
		if n, err := strconv.Atoi(s); err == nil {
			if n < 3 {
				return nil, fmt.Errorf("random tree should have at least three leaves, got %d", n)
			}
			items = append(items, item{leaves: n})
			continue
		}
		f, err := os.Open(s)
		if err != nil {
			return nil, err
		}
		trees, err := ParseTrees(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s, err)
		}
		if len(trees) == 0 {
			return nil, fmt.Errorf("%s: no trees found", s)
		}
		for _, t := range trees {
			items = append(items, item{tree: t})
		}
	}

	inputs := make([]TreeInput, 0, len(items))
	names := make(map[string]bool, len(items))
	counter := 0
	for _, it := range items {
		var ti TreeInput
		if it.tree == nil {
			ti = TreeInput{Name: strconv.Itoa(it.leaves), Leaves: it.leaves}
		} else {
			ti = TreeInput{Name: Base26(counter, len(items)), Leaves: it.tree.NLeaves(), Tree: it.tree}
			counter++
		}
		if names[ti.Name] {
			return nil, fmt.Errorf("duplicate tree name %q", ti.Name)
		}
		names[ti.Name] = true
		inputs = append(inputs, ti)
	}
	return inputs, nil
}

// LoadAlignments converts alignment specifications into alignment
// inputs. Integers are numbers of sites to simulate, anything else is
// read as an alignment file. User alignments are named with base-26
// codes.
func LoadAlignments(specs []string) ([]AlignmentInput, error) {
	inputs := make([]AlignmentInput, 0, len(specs))
	names := make(map[string]bool, len(specs))
	counter := 0
	for _, s := range specs {
		var ai AlignmentInput
		if n, err := strconv.Atoi(s); err == nil {
			if n < 1 {
				return nil, fmt.Errorf("number of sites should be positive, got %d", n)
			}
			ai = AlignmentInput{Name: strconv.Itoa(n), Sites: n}
		} else {
			seqs, err := bio.ReadAlignment(s)
			if err != nil {
				return nil, err
			}
			if len(seqs) == 0 {
				return nil, fmt.Errorf("%s: empty alignment", s)
			}
			ai = AlignmentInput{Name: Base26(counter, len(specs)), Sites: len(seqs[0].Sequence), Alignment: seqs}
			counter++
		}
		if names[ai.Name] {
			return nil, fmt.Errorf("duplicate alignment %q", ai.Name)
		}
		names[ai.Name] = true
		inputs = append(inputs, ai)
	}
	return inputs, nil
}

// simulate returns true if any alignment has to be simulated.
func simulate(aligns []AlignmentInput) bool {
	for _, a := range aligns {
		if a.Simulated() {
			return true
		}
	}
	return false
}
