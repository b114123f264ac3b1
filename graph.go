package dictgraph

// RelationNamer derives a relation type for a relation about to be created.
// Returning "" falls back to the default "{start}_HAS_{end}" naming.
type RelationNamer func(start, end *Node, props *Properties) string

// Graph is the arena of nodes and relations produced by parse calls. Nodes
// and relations reference each other without ownership; the graph owns them
// all. Creation order is preserved and is the traversal order everywhere.
type Graph struct {
	nodes   []*Node
	rels    []*Relation
	seq     int
	namer   RelationNamer
	scratch map[scratchKey]any
}

type scratchKey struct {
	owner string
	obj   any
}

// NewGraph returns an empty graph using default relation naming.
func NewGraph() *Graph {
	return &Graph{scratch: make(map[scratchKey]any)}
}

// NewNode creates a node owned by the graph.
func (g *Graph) NewNode(labels []string, parent *Node, source any) *Node {
	n := &Node{props: NewProperties(), parent: parent, source: source}
	n.SetLabels(labels...)
	g.seq++
	n.seq = g.seq
	g.nodes = append(g.nodes, n)
	return n
}

// Connect creates a relation from start to end. An empty relType is derived
// with RelationType.
func (g *Graph) Connect(start, end *Node, relType string, props *Properties) *Relation {
	if props == nil {
		props = NewProperties()
	}
	if relType == "" {
		relType = g.RelationType(start, end, props)
	}
	r := &Relation{relType: relType, start: start, end: end, props: props}
	g.seq++
	r.seq = g.seq
	g.rels = append(g.rels, r)
	if start != nil {
		start.out = append(start.out, r)
	}
	if end != nil {
		end.in = append(end.in, r)
	}
	return r
}

// RelationType names a relation between start and end using the configured
// namer, falling back to DefaultRelationType.
func (g *Graph) RelationType(start, end *Node, props *Properties) string {
	if g.namer != nil {
		if t := g.namer(start, end, props); t != "" {
			return t
		}
	}
	return DefaultRelationType(start, end)
}

// DefaultRelationType returns "{startPrimaryLabel}_HAS_{endPrimaryLabel}".
func DefaultRelationType(start, end *Node) string {
	return primaryLabel(start) + "_HAS_" + primaryLabel(end)
}

func primaryLabel(n *Node) string {
	if n == nil {
		return ""
	}
	return n.PrimaryLabel()
}

// SetStart moves r so that it originates from n.
func (g *Graph) SetStart(r *Relation, n *Node) {
	if r.start != nil {
		r.start.out = removeRelation(r.start.out, r)
	}
	r.start = n
	if n != nil {
		n.out = append(n.out, r)
	}
}

// SetEnd moves r so that it points at n.
func (g *Graph) SetEnd(r *Relation, n *Node) {
	if r.end != nil {
		r.end.in = removeRelation(r.end.in, r)
	}
	r.end = n
	if n != nil {
		n.in = append(n.in, r)
	}
}

func removeRelation(rels []*Relation, r *Relation) []*Relation {
	for i, x := range rels {
		if x == r {
			return append(rels[:i], rels[i+1:]...)
		}
	}
	return rels
}

// RemoveNode tombstones n and every relation touching it. With cascade, each
// child left without a live parent relation is removed the same way.
func (g *Graph) RemoveNode(n *Node, cascade bool) {
	if n == nil || n.deleted {
		return
	}
	n.deleted = true
	for _, r := range n.in {
		r.deleted = true
	}
	for _, r := range n.out {
		if r.deleted {
			continue
		}
		r.deleted = true
		if cascade && r.end != nil && len(r.end.InRelations()) == 0 {
			g.RemoveNode(r.end, true)
		}
	}
}

// Nodes returns the live nodes in creation order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		if !n.deleted {
			out = append(out, n)
		}
	}
	return out
}

// Relations returns the materializable relations in creation order.
func (g *Graph) Relations() []*Relation {
	return liveRelations(g.rels)
}

// AllNodes returns every node including tombstones.
func (g *Graph) AllNodes() []*Node {
	out := make([]*Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// AllRelations returns every relation including tombstones.
func (g *Graph) AllRelations() []*Relation {
	out := make([]*Relation, len(g.rels))
	copy(out, g.rels)
	return out
}

// Scratch returns transformer state stored for obj under owner.
func (g *Graph) Scratch(owner string, obj any) (any, bool) {
	v, ok := g.scratch[scratchKey{owner, obj}]
	return v, ok
}

// SetScratch stores transformer state for obj under owner. Transformers keep
// their per-object bookkeeping here instead of on the objects themselves.
func (g *Graph) SetScratch(owner string, obj any, v any) {
	g.scratch[scratchKey{owner, obj}] = v
}

// absorb appends other's objects after the ones already held, keeping their
// relative order.
func (g *Graph) absorb(other *Graph) {
	for _, n := range other.nodes {
		g.seq++
		n.seq = g.seq
		g.nodes = append(g.nodes, n)
	}
	for _, r := range other.rels {
		g.seq++
		r.seq = g.seq
		g.rels = append(g.rels, r)
	}
	for k, v := range other.scratch {
		g.scratch[k] = v
	}
}

// Len returns the number of live nodes and materializable relations.
func (g *Graph) Len() (nodes, relations int) {
	return len(g.Nodes()), len(g.Relations())
}
