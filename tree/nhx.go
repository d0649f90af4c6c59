package tree

import "strings"

// SetFeature sets a feature printed in NHX output.
func (node *Node) SetFeature(key, value string) {
	if node.Features == nil {
		node.Features = make(map[string]string)
	}
	node.Features[key] = value
}

// NHXString returns the subtree with leaf names and the listed
// features of every node as NHX comments. Nodes missing a feature
// omit it.
func (node *Node) NHXString(keys ...string) string {
	var b strings.Builder
	node.writeNHX(&b, keys)
	b.WriteByte(';')
	return b.String()
}

func (node *Node) writeNHX(b *strings.Builder, keys []string) {
	if !node.IsTerminal() {
		b.WriteByte('(')
		for i, child := range node.childNodes {
			if i != 0 {
				b.WriteByte(',')
			}
			child.writeNHX(b, keys)
		}
		b.WriteByte(')')
	} else {
		b.WriteString(node.Name)
	}

	first := true
	for _, k := range keys {
		v, ok := node.Features[k]
		if !ok {
			continue
		}
		if first {
			b.WriteString("[&&NHX")
			first = false
		}
		b.WriteString(":" + k + "=" + v)
	}
	if !first {
		b.WriteByte(']')
	}
}
