package dictgraph

import "fmt"

// OverrideLabel replaces label From with To. An empty From replaces the
// primary label.
type OverrideLabel struct {
	From string
	To   string
}

// TransformNode swaps the label in place, keeping label order.
func (t OverrideLabel) TransformNode(_ *Graph, n *Node) error {
	from := t.From
	if from == "" {
		from = n.PrimaryLabel()
	}
	n.ReplaceLabel(from, t.To)
	return nil
}

// SetLabels replaces every label of the node.
type SetLabels struct {
	Labels []string
}

// TransformNode replaces the node labels.
//
// Returns:
//   - An error if Labels is empty.
func (t SetLabels) TransformNode(_ *Graph, n *Node) error {
	if len(t.Labels) == 0 {
		return fmt.Errorf("cannot set an empty label set")
	}
	n.SetLabels(t.Labels...)
	return nil
}

// AddLabel adds a label.
type AddLabel struct {
	Label string
}

// TransformNode adds the label unless the node already carries it.
func (t AddLabel) TransformNode(_ *Graph, n *Node) error {
	n.AddLabel(t.Label)
	return nil
}

// RemoveLabel removes a label. Removing the last label is an error since a
// node without labels cannot be written.
type RemoveLabel struct {
	Label string
}

// TransformNode removes the label.
//
// Returns:
//   - An error if it is the node's last label.
func (t RemoveLabel) TransformNode(_ *Graph, n *Node) error {
	if len(n.labels) == 1 && n.labels[0] == t.Label {
		return fmt.Errorf("cannot remove the only label %q", t.Label)
	}
	n.RemoveLabel(t.Label)
	return nil
}

// RenameProperty renames a property, keeping its value. Merge keys follow
// the rename.
type RenameProperty struct {
	From string
	To   string
}

// TransformNode renames From to To. Missing properties are skipped.
func (t RenameProperty) TransformNode(_ *Graph, n *Node) error {
	if !n.props.Rename(t.From, t.To) {
		return nil
	}
	for i, k := range n.mergeKeys {
		if k == t.From {
			n.mergeKeys[i] = t.To
		}
	}
	return nil
}

// RemoveProperty drops properties.
type RemoveProperty struct {
	Names []string
}

// TransformNode drops the named properties. Missing ones are skipped.
func (t RemoveProperty) TransformNode(_ *Graph, n *Node) error {
	for _, name := range t.Names {
		n.props.Delete(name)
	}
	return nil
}

// CastProperty coerces a property to Kind. Values that cannot be coerced
// fail the transform with a CastError unless Permissive is set.
type CastProperty struct {
	Property   string
	Kind       CastKind
	Permissive bool
}

// TransformNode casts the property in place.
//
// Returns:
//   - A *CastError if the value cannot be cast and Permissive is not set.
func (t CastProperty) TransformNode(_ *Graph, n *Node) error {
	return castProperty(n.props, t.Property, t.Kind, t.Permissive)
}

// SetMergeKeys declares the node's merge keys.
type SetMergeKeys struct {
	Keys []string
}

// TransformNode replaces the node merge keys with Keys.
func (t SetMergeKeys) TransformNode(_ *Graph, n *Node) error {
	n.SetMergeKeys(t.Keys...)
	return nil
}

// CreateMergePropertyFromHash writes a content hash into Spec.Key and makes
// it the node's only merge key, replacing whatever identified it before.
type CreateMergePropertyFromHash struct {
	Spec   HashSpec
	Policy IdentityPolicy
}

// TransformNode hashes the node content according to Spec.
func (t CreateMergePropertyFromHash) TransformNode(_ *Graph, n *Node) error {
	return assignHashID(n, t.Spec, t.Policy)
}

// RemoveNode tombstones the node and its relations. With Cascade, children
// reachable only through it are removed as well.
type RemoveNode struct {
	Cascade bool
}

// TransformNode tombstones the node.
func (t RemoveNode) TransformNode(g *Graph, n *Node) error {
	g.RemoveNode(n, t.Cascade)
	return nil
}

// MergeChildIntoParent absorbs children labeled ChildLabel into the matched
// node: their properties are copied over (prefixed with the child's primary
// label and Separator when Prefix is set), their outgoing relations are moved
// to the parent and the child and its connecting relation are tombstoned.
// Existing parent properties are not overwritten.
type MergeChildIntoParent struct {
	ChildLabel string
	Prefix     bool
	Separator  string
}

// TransformNode absorbs every live child labeled ChildLabel.
func (t MergeChildIntoParent) TransformNode(g *Graph, n *Node) error {
	sep := t.Separator
	if sep == "" {
		sep = "_"
	}
	for _, r := range n.OutRelations() {
		child := r.end
		if !child.HasLabel(t.ChildLabel) {
			continue
		}
		for _, k := range child.props.Keys() {
			name := k
			if t.Prefix {
				name = child.PrimaryLabel() + sep + k
			}
			if n.props.Has(name) {
				continue
			}
			v, _ := child.props.Get(k)
			n.props.Set(name, v)
		}
		for _, cr := range child.OutRelations() {
			g.SetStart(cr, n)
		}
		r.Delete()
		child.Delete()
	}
	return nil
}

// OutsourceToNode moves Properties off the node into a new child node
// labeled Labels, connected with RelationType (default naming when empty).
type OutsourceToNode struct {
	Properties   []string
	Labels       []string
	RelationType string
	MergeKeys    []string
}

// TransformNode creates the child node when at least one of Properties is
// present. Otherwise the node is left untouched.
func (t OutsourceToNode) TransformNode(g *Graph, n *Node) error {
	if len(t.Labels) == 0 {
		return fmt.Errorf("outsourced node needs at least one label")
	}
	moved := n.props.Subset(t.Properties)
	if len(moved) == 0 {
		return nil
	}
	child := g.NewNode(t.Labels, n, moved)
	for _, k := range t.Properties {
		if v, ok := moved[k]; ok {
			child.props.Set(k, v)
			n.props.Delete(k)
		}
	}
	if len(t.MergeKeys) > 0 {
		child.SetMergeKeys(t.MergeKeys...)
	}
	g.Connect(n, child, t.RelationType, nil)
	return nil
}

// OutsourceToRelation moves Properties off the node onto the first live
// relation connecting it to a neighbor labeled NeighborLabel, in either
// direction.
type OutsourceToRelation struct {
	Properties    []string
	NeighborLabel string
}

// TransformNode moves Properties onto the connecting relation. Nodes
// without such a relation are left untouched.
func (t OutsourceToRelation) TransformNode(_ *Graph, n *Node) error {
	r := connectingRelation(n, t.NeighborLabel)
	if r == nil {
		return nil
	}
	for _, k := range t.Properties {
		if v, ok := n.props.Get(k); ok {
			r.props.Set(k, v)
			n.props.Delete(k)
		}
	}
	return nil
}

func connectingRelation(n *Node, label string) *Relation {
	for _, r := range n.InRelations() {
		if r.start.HasLabel(label) {
			return r
		}
	}
	for _, r := range n.OutRelations() {
		if r.end.HasLabel(label) {
			return r
		}
	}
	return nil
}
