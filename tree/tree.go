// Package tree implements a rooted tree with named leaves, newick
// parsing and output, and the topological queries needed to compare
// two trees over the same set of taxa.
package tree

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type Mode int

const (
	NORMAL Mode = iota
	LENGTH
	COMMENT
)

type Tree struct {
	*Node
	nNodes int
	nodes  []*Node
}

func (tree *Tree) ClearCache() {
	tree.nNodes = 0
	tree.nodes = nil
}

func (tree *Tree) NNodes() int {
	if tree.nNodes == 0 {
		tree.nNodes = tree.NSubNodes()
	}
	return tree.nNodes
}

// Nodes returns all the nodes indexed by Id.
func (tree *Tree) Nodes() []*Node {
	if tree.nodes == nil {
		tree.nodes = make([]*Node, tree.NNodes())
		for node := range tree.Walker(nil) {
			tree.nodes[node.Id] = node
		}
	}
	return tree.nodes
}

func (tree *Tree) Terminals() <-chan *Node {
	return tree.Walker(func(node *Node) bool {
		return node.IsTerminal()
	})
}

func (tree *Tree) NLeaves() (i int) {
	for range tree.Terminals() {
		i++
	}
	return
}

func (tree *Tree) Walker(filter func(*Node) bool) <-chan *Node {
	ch := make(chan *Node, tree.NNodes())
	tree.Walk(ch, filter)
	close(ch)
	return ch
}

// Reindex renumbers nodes in pre-order and clears the cache. It
// should be called after every change of the topology.
func (tree *Tree) Reindex() {
	nodeId := 0
	leafId := 0
	for node := range tree.Walker(nil) {
		node.Id = nodeId
		nodeId++
		if node.IsTerminal() {
			node.LeafId = leafId
			leafId++
		}
	}
	tree.ClearCache()
}

// Copy creates independent copy of the tree.
func (tree *Tree) Copy() (newTree *Tree) {
	nNodes := tree.NNodes()
	newTree = &Tree{
		nNodes: nNodes,
		nodes:  make([]*Node, nNodes),
	}

	// Create node list.
	for i, node := range tree.Nodes() {
		if i != node.Id {
			panic("node id mismatch")
		}
		newTree.nodes[i] = node.Copy()
	}

	// Rewire node/parent connections.
	for i, node := range tree.Nodes() {
		newNode := newTree.nodes[i]
		for _, child := range node.childNodes {
			newChild := newTree.nodes[child.Id]
			newNode.AddChild(newChild)
		}
	}

	// Set root node.
	newTree.Node = newTree.nodes[tree.Node.Id]

	return
}

type Node struct {
	Name         string
	BranchLength float64
	Parent       *Node
	childNodes   []*Node
	Id           int
	LeafId       int
	// Features are printed by NHXString.
	Features map[string]string
}

func NewNode(parent *Node, nodeId int) (node *Node) {
	node = &Node{Parent: parent, Id: nodeId}
	return
}

// Copy creates copy of node with empty parent and children.
func (node *Node) Copy() *Node {
	n := &Node{
		Name:         node.Name,
		BranchLength: node.BranchLength,
		childNodes:   make([]*Node, 0, len(node.childNodes)),
		Id:           node.Id,
		LeafId:       node.LeafId,
	}
	if node.Features != nil {
		n.Features = make(map[string]string, len(node.Features))
		for k, v := range node.Features {
			n.Features[k] = v
		}
	}
	return n
}

func (node *Node) AddChild(subNode *Node) {
	subNode.Parent = node
	node.childNodes = append(node.childNodes, subNode)
}

// String returns the subtree in newick format with branch lengths.
// Internal node names and the root branch length are omitted.
func (node *Node) String() (s string) {
	if node.IsTerminal() {
		return fmt.Sprintf("%s:%0.6f", node.Name, node.BranchLength)
	}
	s += "("
	for i, child := range node.childNodes {
		s += child.String()
		if i != len(node.childNodes)-1 {
			s += ","
		}
	}
	s += ")"
	if node.IsRoot() {
		return s + ";"
	}
	return s + fmt.Sprintf(":%0.6f", node.BranchLength)
}

// TopologyString returns the subtree in newick format with leaf
// names only.
func (node *Node) TopologyString() (s string) {
	if node.IsTerminal() {
		return node.Name
	}
	s += "("
	for i, child := range node.childNodes {
		s += child.TopologyString()
		if i != len(node.childNodes)-1 {
			s += ","
		}
	}
	s += ")"
	if node.IsRoot() {
		s += ";"
	}
	return s
}

func (node *Node) LongString() (s string) {
	s = "<"
	if node.Parent == nil {
		s += "root, "
	}
	if node.Name != "" {
		s += "name=" + node.Name + ", "
	}
	s += fmt.Sprintf("Id=%v, BranchLength=%v", node.Id, node.BranchLength)
	if node.IsTerminal() {
		s += fmt.Sprintf(", TipId=%v", node.LeafId)
	}
	s += ">"
	return
}

func (node *Node) ChildNodes() []*Node {
	return node.childNodes
}

func (node *Node) Walk(ch chan *Node, filter func(*Node) bool) {
	if filter == nil || filter(node) {
		ch <- node
	}
	for _, node := range node.childNodes {
		node.Walk(ch, filter)
	}
}

func (node *Node) NSubNodes() (size int) {
	for _, node := range node.childNodes {
		size += node.NSubNodes()
	}
	return size + 1
}

func (node *Node) IsRoot() bool {
	return node.Parent == nil
}

func (node *Node) IsTerminal() bool {
	return len(node.childNodes) == 0
}

func IsSpecial(c rune) bool {
	switch c {
	case '(', ')', ':', ';', ',', '[', ']':
		return true
	}
	return false

}

func NewickSplit(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	// Skip leading spaces; and return 1-char tokens.
	for width := 0; start < len(data); start += width {
		var r rune
		r, width = utf8.DecodeRune(data[start:])
		if IsSpecial(r) {
			return start + width, data[start : start+width], nil
		}
		if !unicode.IsSpace(r) {
			break
		}
	}
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	// Scan until space or special character.
	for width, i := 0, start; i < len(data); i += width {
		var r rune
		r, width = utf8.DecodeRune(data[i:])
		if unicode.IsSpace(r) || IsSpecial(r) {
			return i, data[start:i], nil
		}
	}
	// If we're at EOF, we have a final, non-empty, non-terminated word. Return it.
	if atEOF && len(data) > start {
		return len(data), data[start:], nil
	}
	// Request more data.
	return 0, nil, nil
}

// ParseNewick parses a single tree. Bracketed comments (e.g. NHX
// annotations) are skipped.
func ParseNewick(rd io.Reader) (tree *Tree, err error) {
	scanner := bufio.NewScanner(rd)

	scanner.Split(NewickSplit)

	nodeId := 0
	leafId := 0

	node := NewNode(nil, nodeId)
	tree = &Tree{Node: node}
	nodeId++

	mode := NORMAL
	tokens := 0

	for scanner.Scan() {
		text := scanner.Text()
		tokens++
		if mode == COMMENT {
			if text == "]" {
				mode = NORMAL
			}
			continue
		}
		switch text {
		case "(":
			subNode := NewNode(nil, nodeId)
			nodeId++
			node.AddChild(subNode)
			node = subNode

		case ",":
			if node.Parent == nil {
				return nil, errors.New("top level comma mismatch")
			}
			subNode := NewNode(nil, nodeId)
			nodeId++

			node.Parent.AddChild(subNode)
			node = subNode

		case ")":
			if node.Parent == nil {
				return nil, errors.New("brackets mismatch")
			}
			node = node.Parent
		case "[":
			mode = COMMENT
		case "]":
			return nil, errors.New("unexpected ']'")
		case ":":
			mode = LENGTH
		case ";":
			if node.Parent != nil {
				return nil, errors.New("brackets mismatch")
			}
			return tree, nil
		default:
			switch mode {
			case LENGTH:
				l, err := strconv.ParseFloat(text, 64)
				if err != nil {
					return nil, err
				}
				node.BranchLength = l
				mode = NORMAL
			default:
				if node.IsTerminal() {
					node.LeafId = leafId
					leafId++
				}
				node.Name = text
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if tokens == 0 {
		return nil, errors.New("empty tree")
	}
	if mode == COMMENT {
		return nil, errors.New("unterminated comment")
	}
	if node.Parent != nil {
		return nil, errors.New("brackets mismatch")
	}

	return tree, nil
}

// ParseNewickAll parses one tree per non-empty line.
func ParseNewickAll(rd io.Reader) (trees []*Tree, err error) {
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		s := strings.TrimSpace(scanner.Text())
		if s == "" {
			continue
		}
		t, err := ParseNewick(strings.NewReader(s))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		trees = append(trees, t)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return trees, nil
}
