// Rootmap maps roots of inferred trees onto a true tree. For every
// inferred tree it prints the true tree node receiving the root and
// the root distances, then the true tree with root placement counts
// in NHX format.
//
//	rootmap true.nwk inferred.nwk
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/op/go-logging"
	"gopkg.in/alecthomas/kingpin.v2"

	"bitbucket.org/Davydov/rootbench/placement"
	"bitbucket.org/Davydov/rootbench/tree"
)

var log = logging.MustGetLogger("rootmap")
var formatter = logging.MustStringFormatter(`%{message}`)

var (
	app = kingpin.New("rootmap", "map roots of inferred trees onto a true tree")

	trueFileName     = app.Arg("true", "true rooted tree").Required().ExistingFile()
	inferredFileName = app.Arg("inferred", "inferred rooted trees, one per line").Required().ExistingFile()
	method           = app.Flag("method", "method name for the NHX feature").Default("inferred").String()
	debug            = app.Flag("debug", "enable debug mode").Bool()
)

// readTrees reads all the trees from a file.
func readTrees(fn string) ([]*tree.Tree, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	trees, err := tree.ParseNewickAll(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	if len(trees) == 0 {
		return nil, fmt.Errorf("%s: no trees", fn)
	}
	return trees, nil
}

// mapRoots prints root placements of the inferred trees and the
// annotated true tree.
func mapRoots(w io.Writer, trueTree *tree.Tree, inferred []*tree.Tree, method string) error {
	c := placement.NewCounts(trueTree, method)
	for i, t := range inferred {
		node, err := c.Add(method, t)
		if err != nil {
			return fmt.Errorf("tree %d: %w", i+1, err)
		}
		rd, err := placement.TopologicalRootDistance(trueTree, t)
		if err != nil {
			return fmt.Errorf("tree %d: %w", i+1, err)
		}
		pd, err := placement.MetricRootDistance(trueTree, t)
		if err != nil {
			return fmt.Errorf("tree %d: %w", i+1, err)
		}
		log.Debugf("tree %d: %s -> %s", i+1, t.TopologyString(), node.LongString())
		fmt.Fprintf(w, "%d\tnode=%d\troot_distance=%d\tpath_distance=%g\n", i+1, node.Id, rd, pd)
	}
	_, err := fmt.Fprintln(w, c.Tree())
	return err
}

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	logging.SetFormatter(formatter)
	logging.SetBackend(logging.NewLogBackend(os.Stderr, "", 0))
	if !*debug {
		logging.SetLevel(logging.INFO, "rootmap")
		logging.SetLevel(logging.INFO, "placement")
	}

	trueTrees, err := readTrees(*trueFileName)
	if err != nil {
		log.Fatal(err)
	}
	if len(trueTrees) > 1 {
		log.Warningf("Using the first of %d true trees", len(trueTrees))
	}
	inferred, err := readTrees(*inferredFileName)
	if err != nil {
		log.Fatal(err)
	}
	if err := mapRoots(os.Stdout, trueTrees[0], inferred, *method); err != nil {
		log.Fatal(err)
	}
}
