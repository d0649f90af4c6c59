// Package placement compares the root of an inferred tree with the
// root of the true tree.
package placement

import (
	"errors"
	"fmt"
	"math"

	"github.com/op/go-logging"

	"bitbucket.org/Davydov/rootbench/tree"
)

var log = logging.MustGetLogger("placement")

// ErrLeafNotFound is returned when a leaf of one tree is missing in
// the other tree.
var ErrLeafNotFound = errors.New("leaf not found")

// rootClades returns sorted leaf names of the first two subtrees of
// the root.
func rootClades(t *tree.Tree) (left, right []string, err error) {
	children := t.ChildNodes()
	if len(children) < 2 {
		return nil, nil, fmt.Errorf("root has %d children, need at least two", len(children))
	}
	return children[0].LeafNames(), children[1].LeafNames(), nil
}

// cladeNode returns the node of t corresponding to the clade: the leaf
// itself or the common ancestor of all the leaves.
func cladeNode(t *tree.Tree, clade []string) (*tree.Node, error) {
	nodes := make([]*tree.Node, len(clade))
	for i, name := range clade {
		nodes[i] = t.FindLeaf(name)
		if nodes[i] == nil {
			return nil, fmt.Errorf("%w: %q", ErrLeafNotFound, name)
		}
	}
	if len(nodes) == 1 {
		return nodes[0], nil
	}
	return tree.CommonAncestor(nodes...)
}

// MapRoot returns the node of trueTree which corresponds to the root
// of inferred.
//
// Both subtrees of the inferred root are mapped onto trueTree. If one
// of them is nested in the other, the nested one is returned. Failing
// that a leaf is preferred. If the two clades conflict with trueTree,
// the root of trueTree is returned.
func MapRoot(trueTree, inferred *tree.Tree) (*tree.Node, error) {
	left, right, err := rootClades(inferred)
	if err != nil {
		return nil, err
	}

	leftNode, err := cladeNode(trueTree, left)
	if err != nil {
		return nil, err
	}
	rightNode, err := cladeNode(trueTree, right)
	if err != nil {
		return nil, err
	}

	switch {
	case leftNode == rightNode:
		return leftNode, nil
	case leftNode.IsDescendantOf(rightNode):
		return leftNode, nil
	case rightNode.IsDescendantOf(leftNode):
		return rightNode, nil
	case leftNode.IsTerminal():
		return leftNode, nil
	case rightNode.IsTerminal():
		return rightNode, nil
	}
	log.Debugf("conflicting root clades %v and %v, using the true root", left, right)
	return trueTree.Node, nil
}

// anchors returns the leaf of trueTree closest to its root and the
// leaf with the same name in inferred.
func anchors(trueTree, inferred *tree.Tree) (*tree.Node, *tree.Node, error) {
	tt, _ := trueTree.ClosestLeaf()
	if tt == nil {
		return nil, nil, errors.New("true tree has no leaves")
	}
	it := inferred.FindLeaf(tt.Name)
	if it == nil {
		return nil, nil, fmt.Errorf("%w: %q", ErrLeafNotFound, tt.Name)
	}
	return tt, it, nil
}

// TopologicalRootDistance returns the difference in the number of
// edges from the root to the anchor leaf (the leaf closest to the
// root of trueTree) between the two trees.
func TopologicalRootDistance(trueTree, inferred *tree.Tree) (int, error) {
	tt, it, err := anchors(trueTree, inferred)
	if err != nil {
		return 0, err
	}
	d := tt.Depth() - it.Depth()
	if d < 0 {
		d = -d
	}
	return d, nil
}

// MetricRootDistance returns the difference in the branch length
// distance from the root to the anchor leaf between the two trees.
func MetricRootDistance(trueTree, inferred *tree.Tree) (float64, error) {
	tt, it, err := anchors(trueTree, inferred)
	if err != nil {
		return 0, err
	}
	return math.Abs(tt.RootDistance() - it.RootDistance()), nil
}
