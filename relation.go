package dictgraph

import "fmt"

// Relation is a typed, directed edge between two nodes. It does not own its
// endpoints.
type Relation struct {
	relType string
	// overrideKey splits otherwise identical relation groups on export.
	overrideKey string
	start       *Node
	end         *Node
	props       *Properties
	deleted     bool
	seq         int
}

// Type returns the relation type.
func (r *Relation) Type() string { return r.relType }

// SetType replaces the relation type.
func (r *Relation) SetType(t string) { r.relType = t }

// TypeOverrideKey returns the optional export grouping key.
func (r *Relation) TypeOverrideKey() string { return r.overrideKey }

// SetTypeOverrideKey sets the optional export grouping key.
func (r *Relation) SetTypeOverrideKey(k string) { r.overrideKey = k }

// Start returns the start node.
func (r *Relation) Start() *Node { return r.start }

// End returns the end node.
func (r *Relation) End() *Node { return r.end }

// Properties returns the relation's live property map.
func (r *Relation) Properties() *Properties { return r.props }

// Deleted reports whether the relation itself is tombstoned.
func (r *Relation) Deleted() bool { return r.deleted }

// Delete tombstones the relation.
func (r *Relation) Delete() { r.deleted = true }

// Materializable reports whether the relation can be written: it is live and
// both endpoints exist and are live.
func (r *Relation) Materializable() bool {
	return !r.deleted && r.start != nil && r.end != nil && !r.start.deleted && !r.end.deleted
}

func (r *Relation) String() string {
	return fmt.Sprintf("%s-[:%s %s]->%s", nodeString(r.start), r.relType, r.props, nodeString(r.end))
}

func nodeString(n *Node) string {
	if n == nil {
		return "()"
	}
	return n.String()
}
