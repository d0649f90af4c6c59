package tree

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNoNodes is returned by CommonAncestor when called without nodes.
var ErrNoNodes = errors.New("no nodes given")

// FindLeaf returns the first leaf (pre-order) with the given name, or
// nil. Internal node labels are not matched.
func (node *Node) FindLeaf(name string) *Node {
	if node.IsTerminal() {
		if node.Name == name {
			return node
		}
		return nil
	}
	for _, child := range node.childNodes {
		if n := child.FindLeaf(name); n != nil {
			return n
		}
	}
	return nil
}

// Leaves returns terminal nodes of the subtree in pre-order.
func (node *Node) Leaves() (leaves []*Node) {
	if node.IsTerminal() {
		return []*Node{node}
	}
	for _, child := range node.childNodes {
		leaves = append(leaves, child.Leaves()...)
	}
	return
}

// LeafNames returns sorted names of the named leaves of the subtree.
func (node *Node) LeafNames() []string {
	names := make([]string, 0, 8)
	for _, leaf := range node.Leaves() {
		if leaf.Name != "" {
			names = append(names, leaf.Name)
		}
	}
	sort.Strings(names)
	return names
}

// Depth returns the number of edges between the node and the root.
func (node *Node) Depth() (d int) {
	for n := node; n.Parent != nil; n = n.Parent {
		d++
	}
	return
}

// RootDistance returns the sum of branch lengths between the node and
// the root. The root branch length is not included.
func (node *Node) RootDistance() (d float64) {
	for n := node; n.Parent != nil; n = n.Parent {
		d += n.BranchLength
	}
	return
}

// IsDescendantOf returns true if ancestor is a proper ancestor of node.
func (node *Node) IsDescendantOf(ancestor *Node) bool {
	for n := node.Parent; n != nil; n = n.Parent {
		if n == ancestor {
			return true
		}
	}
	return false
}

// CommonAncestor returns the lowest common ancestor of the nodes.
// All nodes should belong to the same tree.
func CommonAncestor(nodes ...*Node) (*Node, error) {
	if len(nodes) == 0 {
		return nil, ErrNoNodes
	}
	lca := nodes[0]
	for _, node := range nodes[1:] {
		a, b := lca, node
		da, db := a.Depth(), b.Depth()
		for ; da > db; da-- {
			a = a.Parent
		}
		for ; db > da; db-- {
			b = b.Parent
		}
		for a != b {
			a, b = a.Parent, b.Parent
			if a == nil || b == nil {
				return nil, errors.New("nodes belong to different trees")
			}
		}
		lca = a
	}
	return lca, nil
}

// ClosestLeaf returns the leaf with the smallest branch length
// distance to the root. Ties are resolved in favor of the first leaf
// in pre-order.
func (tree *Tree) ClosestLeaf() (closest *Node, dist float64) {
	for _, leaf := range tree.Leaves() {
		d := leaf.RootDistance()
		if closest == nil || d < dist {
			closest, dist = leaf, d
		}
	}
	return
}

// IsRooted returns true if the root is bifurcating.
func (tree *Tree) IsRooted() bool {
	return len(tree.childNodes) == 2
}

// ValidateLeaves checks that every leaf is named and that leaf names
// are unique.
func (tree *Tree) ValidateLeaves() error {
	seen := make(map[string]bool, tree.NNodes())
	for leaf := range tree.Terminals() {
		if leaf.Name == "" {
			return fmt.Errorf("unnamed leaf (id=%d)", leaf.Id)
		}
		if seen[leaf.Name] {
			return fmt.Errorf("duplicate leaf name %q", leaf.Name)
		}
		seen[leaf.Name] = true
	}
	return nil
}
