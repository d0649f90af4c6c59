// Package harvest reads results of the root inference tools and
// compares inferred trees with the true tree.
package harvest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/op/go-logging"

	"bitbucket.org/Davydov/rootbench/placement"
	"bitbucket.org/Davydov/rootbench/tree"
)

var log = logging.MustGetLogger("harvest")

// Output file names.
const (
	RDOutput    = "rd_output"
	RDError     = "rd_output_err"
	treeFileExt = ".treefile"
	reportExt   = ".iqtree"
)

const (
	rdTimePrefix   = "Inference took:"
	iqLnLPrefix    = "Log-likelihood of the tree:"
	iqTimePrefix   = "Total wall-clock time used:"
	rdMinimumLines = 3
)

// ErrNoResult is returned when a tool output doesn't contain the
// expected values.
var ErrNoResult = errors.New("no result found")

// Result is a result of a single root inference.
type Result struct {
	// Time is the inference time in seconds.
	Time float64 `json:"time"`
	// Tree is the inferred tree.
	Tree *tree.Tree `json:"-"`
	// Newick is the inferred tree in newick format.
	Newick string `json:"tree"`
	// LnL is the final log likelihood.
	LnL float64 `json:"lnL"`
	// RootDistance is the difference in the number of edges from
	// the root to the anchor leaf.
	RootDistance int `json:"rootDistance"`
	// NormalizedRootDistance is RootDistance divided by the number
	// of leaves.
	NormalizedRootDistance float64 `json:"normalizedRootDistance"`
	// PathDistance is the difference in branch length from the root
	// to the anchor leaf.
	PathDistance float64 `json:"pathDistance"`
	// NormalizedPathDistance is PathDistance divided by the number
	// of leaves.
	NormalizedPathDistance float64 `json:"normalizedPathDistance"`
}

// SetDistances computes root distances between the true tree and the
// inferred tree.
func (r *Result) SetDistances(trueTree *tree.Tree) error {
	if r.Tree == nil {
		return errors.New("result has no tree")
	}
	d, err := placement.TopologicalRootDistance(trueTree, r.Tree)
	if err != nil {
		return err
	}
	p, err := placement.MetricRootDistance(trueTree, r.Tree)
	if err != nil {
		return err
	}
	n := float64(trueTree.NLeaves())
	r.RootDistance = d
	r.NormalizedRootDistance = float64(d) / n
	r.PathDistance = p
	r.NormalizedPathDistance = p / n
	return nil
}

// readLines returns all the lines, trailing empty lines are removed.
func readLines(rd io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines, nil
}

// parseFloatField parses the first whitespace separated field after
// the prefix, suffix is trimmed from it.
func parseFloatField(line, prefix, suffix string) (float64, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), prefix)
	if !ok {
		return 0, fmt.Errorf("%w: expected %q, got %q", ErrNoResult, prefix, line)
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return 0, fmt.Errorf("%w: no value in %q", ErrNoResult, line)
	}
	return strconv.ParseFloat(strings.TrimSuffix(fields[0], suffix), 64)
}

func parseTree(s string) (*tree.Tree, error) {
	return tree.ParseNewick(strings.NewReader(strings.TrimSpace(s)))
}

// ParseRD parses rd standard output. The last three lines are
// likelihood (label: value), the tree and inference time.
func ParseRD(rd io.Reader) (*Result, error) {
	lines, err := readLines(rd)
	if err != nil {
		return nil, err
	}
	if len(lines) < rdMinimumLines {
		return nil, fmt.Errorf("%w: %d lines in rd output", ErrNoResult, len(lines))
	}
	lines = lines[len(lines)-rdMinimumLines:]

	r := &Result{}

	i := strings.LastIndex(lines[0], ":")
	if i < 0 {
		return nil, fmt.Errorf("%w: no likelihood in %q", ErrNoResult, lines[0])
	}
	r.LnL, err = strconv.ParseFloat(strings.TrimSpace(lines[0][i+1:]), 64)
	if err != nil {
		return nil, fmt.Errorf("likelihood: %w", err)
	}

	r.Tree, err = parseTree(lines[1])
	if err != nil {
		return nil, fmt.Errorf("tree: %w", err)
	}
	r.Newick = r.Tree.String()

	r.Time, err = parseFloatField(lines[2], rdTimePrefix, "s")
	if err != nil {
		return nil, fmt.Errorf("time: %w", err)
	}

	return r, nil
}

// ParseIQTree parses iqtree tree file and report.
func ParseIQTree(treeFile, report io.Reader) (*Result, error) {
	lines, err := readLines(treeFile)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: empty tree file", ErrNoResult)
	}

	r := &Result{}
	r.Tree, err = parseTree(lines[0])
	if err != nil {
		return nil, fmt.Errorf("tree: %w", err)
	}
	r.Newick = r.Tree.String()

	lines, err = readLines(report)
	if err != nil {
		return nil, err
	}
	var foundLnL, foundTime bool
	for _, line := range lines {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, iqLnLPrefix):
			r.LnL, err = parseFloatField(line, iqLnLPrefix, "")
			if err != nil {
				return nil, fmt.Errorf("likelihood: %w", err)
			}
			foundLnL = true
		case strings.HasPrefix(line, iqTimePrefix):
			r.Time, err = parseFloatField(line, iqTimePrefix, "")
			if err != nil {
				return nil, fmt.Errorf("time: %w", err)
			}
			foundTime = true
		}
	}
	if !foundLnL {
		return nil, fmt.Errorf("%w: no likelihood in report", ErrNoResult)
	}
	if !foundTime {
		return nil, fmt.Errorf("%w: no wall-clock time in report", ErrNoResult)
	}
	return r, nil
}

// ReadRD reads rd results from the experiment directory and computes
// root distances.
func ReadRD(dir string, trueTree *tree.Tree) (*Result, error) {
	fn := filepath.Join(dir, RDOutput)
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := ParseRD(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	if err := r.SetDistances(trueTree); err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	log.Debugf("%s: lnL=%v, time=%vs, root distance=%v", fn, r.LnL, r.Time, r.RootDistance)
	return r, nil
}

// IQTreeFiles returns names of iqtree tree file and report for the
// alignment.
func IQTreeFiles(dir, msa string) (treeFile, report string) {
	base := filepath.Join(dir, filepath.Base(msa))
	return base + treeFileExt, base + reportExt
}

// ReadIQTree reads iqtree results for the alignment from the experiment
// directory and computes root distances.
func ReadIQTree(dir, msa string, trueTree *tree.Tree) (*Result, error) {
	tfn, rfn := IQTreeFiles(dir, msa)
	tf, err := os.Open(tfn)
	if err != nil {
		return nil, err
	}
	defer tf.Close()
	rf, err := os.Open(rfn)
	if err != nil {
		return nil, err
	}
	defer rf.Close()

	r, err := ParseIQTree(tf, rf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rfn, err)
	}
	if err := r.SetDistances(trueTree); err != nil {
		return nil, fmt.Errorf("%s: %w", tfn, err)
	}
	log.Debugf("%s: lnL=%v, time=%vs, root distance=%v", rfn, r.LnL, r.Time, r.RootDistance)
	return r, nil
}
