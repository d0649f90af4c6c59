package tree

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// leafNameLen is the length of the generated leaf names.
const leafNameLen = 10

// Populate creates a random binary topology with n leaves. Growing
// starts from a single node kept in a deque: at every step a node is
// taken from a random end of the deque, gets two children and they
// are appended to the right. The remaining deque nodes are the leaves;
// they are named in deque order aaaaaaaaaa, aaaaaaaaab and so on.
// Every node, including the root, gets a branch length from brlen.
func Populate(n int, rng *rand.Rand, brlen func() float64) (*Tree, error) {
	if n < 2 {
		return nil, fmt.Errorf("cannot create a tree with %d leaves", n)
	}
	root := NewNode(nil, 0)
	deque := []*Node{root}
	for i := 0; i < n-1; i++ {
		var p *Node
		if rng.IntN(2) == 1 {
			p = deque[len(deque)-1]
			deque = deque[:len(deque)-1]
		} else {
			p = deque[0]
			deque = deque[1:]
		}
		c1 := NewNode(nil, 0)
		c2 := NewNode(nil, 0)
		p.AddChild(c1)
		p.AddChild(c2)
		deque = append(deque, c1, c2)
	}

	names := leafNames(n)
	for i, leaf := range deque {
		leaf.Name = names[i]
	}

	tree := &Tree{Node: root}
	tree.Reindex()
	for node := range tree.Walker(nil) {
		node.BranchLength = brlen()
	}
	return tree, nil
}

// leafNames returns the first n multisets of leafNameLen lowercase
// letters in lexicographic order.
func leafNames(n int) []string {
	const charset = "abcdefghijklmnopqrstuvwxyz"
	idx := make([]int, leafNameLen)
	name := make([]byte, leafNameLen)
	names := make([]string, 0, n)
	for len(names) < n {
		for i, j := range idx {
			name[i] = charset[j]
		}
		names = append(names, string(name))
		i := leafNameLen - 1
		for i >= 0 && idx[i] == len(charset)-1 {
			i--
		}
		if i < 0 {
			break
		}
		idx[i]++
		for j := i + 1; j < leafNameLen; j++ {
			idx[j] = idx[i]
		}
	}
	return names
}

// Unroot converts a bifurcating root into a trifurcating one. The
// first non-terminal child of the root is removed and its children
// are attached to the root; its branch length is added to the other
// child. Unrooted trees are left unchanged.
func (tree *Tree) Unroot() error {
	if !tree.IsRooted() {
		return nil
	}
	var removed, other *Node
	for i, child := range tree.childNodes {
		if !child.IsTerminal() {
			removed = child
			other = tree.childNodes[1-i]
			break
		}
	}
	if removed == nil {
		return errors.New("cannot unroot a tree with two leaves")
	}

	other.BranchLength += removed.BranchLength
	children := make([]*Node, 0, len(removed.childNodes)+1)
	for _, child := range tree.childNodes {
		if child != removed {
			children = append(children, child)
			continue
		}
		for _, sub := range removed.childNodes {
			sub.Parent = tree.Node
			children = append(children, sub)
		}
	}
	tree.childNodes = children
	removed.Parent = nil
	removed.childNodes = nil

	tree.Reindex()
	return nil
}
