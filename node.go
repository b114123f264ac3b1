package dictgraph

import (
	"fmt"
	"strings"
)

// Node is one graph vertex produced from the input. The first label is the
// primary label; it names default relation types and is what matchers and
// configuration look up.
type Node struct {
	labels    []string
	props     *Properties
	mergeKeys []string
	// mergeKeysSet distinguishes "no merge keys configured" (all properties)
	// from an explicitly empty merge key set.
	mergeKeysSet bool

	parent *Node
	source any
	hub    bool

	deleted bool
	seq     int
	out     []*Relation
	in      []*Relation
}

// Labels returns a copy of the node's labels.
func (n *Node) Labels() []string {
	out := make([]string, len(n.labels))
	copy(out, n.labels)
	return out
}

// PrimaryLabel returns the first label, or "" for a degenerate node.
func (n *Node) PrimaryLabel() string {
	if len(n.labels) == 0 {
		return ""
	}
	return n.labels[0]
}

// HasLabel reports whether label is one of the node's labels.
func (n *Node) HasLabel(label string) bool {
	for _, l := range n.labels {
		if l == label {
			return true
		}
	}
	return false
}

// SetLabels replaces all labels. Duplicates are dropped.
func (n *Node) SetLabels(labels ...string) {
	n.labels = nil
	for _, l := range labels {
		n.AddLabel(l)
	}
}

// AddLabel appends label if it is not present yet.
func (n *Node) AddLabel(label string) {
	if label == "" || n.HasLabel(label) {
		return
	}
	n.labels = append(n.labels, label)
}

// RemoveLabel drops label. It reports whether the label was present.
func (n *Node) RemoveLabel(label string) bool {
	for i, l := range n.labels {
		if l == label {
			n.labels = append(n.labels[:i], n.labels[i+1:]...)
			return true
		}
	}
	return false
}

// ReplaceLabel swaps from for to in place, keeping its position.
func (n *Node) ReplaceLabel(from, to string) bool {
	for i, l := range n.labels {
		if l != from {
			continue
		}
		if n.HasLabel(to) {
			n.labels = append(n.labels[:i], n.labels[i+1:]...)
		} else {
			n.labels[i] = to
		}
		return true
	}
	return false
}

// Properties returns the node's live property map.
func (n *Node) Properties() *Properties { return n.props }

// MergeKeys returns the properties that identify the node on upsert. Without
// explicit merge keys this is every property name.
func (n *Node) MergeKeys() []string {
	if !n.mergeKeysSet {
		return n.props.Keys()
	}
	out := make([]string, len(n.mergeKeys))
	copy(out, n.mergeKeys)
	return out
}

// HasExplicitMergeKeys reports whether merge keys were configured rather
// than defaulted.
func (n *Node) HasExplicitMergeKeys() bool { return n.mergeKeysSet }

// SetMergeKeys replaces the merge keys. Calling it without keys marks the
// node as merging on its labels alone.
func (n *Node) SetMergeKeys(keys ...string) {
	n.mergeKeys = append([]string(nil), keys...)
	n.mergeKeysSet = true
}

// ID is the node's identity for internal comparison. A single merge key
// yields its value, anything else the hash of the ordered key/value pairs.
// It is never written to the database.
func (n *Node) ID() string {
	keys := n.MergeKeys()
	if len(keys) == 1 {
		v, _ := n.props.Get(keys[0])
		return fmt.Sprint(v)
	}
	parts := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		v, _ := n.props.Get(k)
		parts = append(parts, k, v)
	}
	return HashValues(parts...)
}

// Parent is the node that produced this one during structural mapping.
func (n *Node) Parent() *Node { return n.parent }

// Source is the input fragment the node was derived from.
func (n *Node) Source() any { return n.source }

// IsHub reports whether the node is a collection hub.
func (n *Node) IsHub() bool { return n.hub }

// Deleted reports whether the node is tombstoned.
func (n *Node) Deleted() bool { return n.deleted }

// Delete tombstones the node. Its relations stop being materializable.
func (n *Node) Delete() { n.deleted = true }

// OutRelations returns the live outgoing relations whose end is live.
func (n *Node) OutRelations() []*Relation {
	return liveRelations(n.out)
}

// InRelations returns the live incoming relations whose start is live.
func (n *Node) InRelations() []*Relation {
	return liveRelations(n.in)
}

// Children returns the end nodes of the live outgoing relations.
func (n *Node) Children() []*Node {
	rels := n.OutRelations()
	out := make([]*Node, 0, len(rels))
	for _, r := range rels {
		out = append(out, r.end)
	}
	return out
}

func (n *Node) String() string {
	var b strings.Builder
	b.WriteString("(")
	for _, l := range n.labels {
		b.WriteString(":")
		b.WriteString(l)
	}
	b.WriteString(" ")
	b.WriteString(n.props.String())
	b.WriteString(")")
	return b.String()
}

func liveRelations(rels []*Relation) []*Relation {
	out := make([]*Relation, 0, len(rels))
	for _, r := range rels {
		if r.Materializable() {
			out = append(out, r)
		}
	}
	return out
}
