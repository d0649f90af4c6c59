package placement

import (
	"strconv"

	"bitbucket.org/Davydov/rootbench/tree"
)

// Counts accumulates how many times inferred roots of each method were
// mapped onto every node of a true tree.
type Counts struct {
	t       *tree.Tree
	methods []string
	counts  map[string][]int
}

// NewCounts creates an empty counter for the true tree. The tree is
// copied, so features can be set without changing the original.
func NewCounts(trueTree *tree.Tree, methods ...string) *Counts {
	t := trueTree.Copy()
	c := &Counts{
		t:       t,
		methods: methods,
		counts:  make(map[string][]int, len(methods)),
	}
	for _, m := range methods {
		c.counts[m] = make([]int, t.NNodes())
	}
	return c
}

// Add maps the root of inferred onto the true tree and increments the
// counter of the method for that node.
func (c *Counts) Add(method string, inferred *tree.Tree) (*tree.Node, error) {
	node, err := MapRoot(c.t, inferred)
	if err != nil {
		return nil, err
	}
	counts, ok := c.counts[method]
	if !ok {
		counts = make([]int, c.t.NNodes())
		c.counts[method] = counts
		c.methods = append(c.methods, method)
	}
	counts[node.Id]++
	return node, nil
}

// Count returns the counter of a method for a node of the true tree
// (identified by the node Id).
func (c *Counts) Count(method string, id int) int {
	counts, ok := c.counts[method]
	if !ok || id < 0 || id >= len(counts) {
		return 0
	}
	return counts[id]
}

// Tree returns the true tree with root_placement_<method> features in
// NHX format.
func (c *Counts) Tree() string {
	keys := make([]string, len(c.methods))
	for i, m := range c.methods {
		keys[i] = "root_placement_" + m
	}
	for _, node := range c.t.Nodes() {
		for i, m := range c.methods {
			node.SetFeature(keys[i], strconv.Itoa(c.counts[m][node.Id]))
		}
	}
	return c.t.NHXString(keys...)
}
