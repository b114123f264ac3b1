package dictgraph

// NodeMatcher selects the nodes a rule applies to.
type NodeMatcher interface {
	MatchNode(n *Node) bool
}

// NodeMatchFunc adapts a function to NodeMatcher.
type NodeMatchFunc func(n *Node) bool

func (f NodeMatchFunc) MatchNode(n *Node) bool { return f(n) }

// RelationMatcher selects the relations a rule applies to.
type RelationMatcher interface {
	MatchRelation(r *Relation) bool
}

// RelationMatchFunc adapts a function to RelationMatcher.
type RelationMatchFunc func(r *Relation) bool

func (f RelationMatchFunc) MatchRelation(r *Relation) bool { return f(r) }

// AnyNode matches every node.
func AnyNode() NodeMatcher {
	return NodeMatchFunc(func(*Node) bool { return true })
}

// HasLabels matches nodes carrying all of labels.
func HasLabels(labels ...string) NodeMatcher {
	return NodeMatchFunc(func(n *Node) bool {
		for _, l := range labels {
			if !n.HasLabel(l) {
				return false
			}
		}
		return true
	})
}

// ExactLabels matches nodes whose label set equals labels, in any order.
func ExactLabels(labels ...string) NodeMatcher {
	want := make(map[string]bool, len(labels))
	for _, l := range labels {
		want[l] = true
	}
	return NodeMatchFunc(func(n *Node) bool {
		if len(n.labels) != len(want) {
			return false
		}
		for _, l := range n.labels {
			if !want[l] {
				return false
			}
		}
		return true
	})
}

// AnyLabel matches nodes carrying at least one of labels.
func AnyLabel(labels ...string) NodeMatcher {
	return NodeMatchFunc(func(n *Node) bool {
		for _, l := range labels {
			if n.HasLabel(l) {
				return true
			}
		}
		return false
	})
}

// NoneOfLabels matches nodes carrying none of labels.
func NoneOfLabels(labels ...string) NodeMatcher {
	matchAny := AnyLabel(labels...)
	return NodeMatchFunc(func(n *Node) bool { return !matchAny.MatchNode(n) })
}

// Hubs matches collection hub nodes.
func Hubs() NodeMatcher {
	return NodeMatchFunc(func(n *Node) bool { return n.hub })
}

// AnyRelation matches every relation.
func AnyRelation() RelationMatcher {
	return RelationMatchFunc(func(*Relation) bool { return true })
}

// TypeIs matches relations of exactly type t.
func TypeIs(t string) RelationMatcher {
	return RelationMatchFunc(func(r *Relation) bool { return r.relType == t })
}

// TypeIn matches relations whose type is one of types.
func TypeIn(types ...string) RelationMatcher {
	return RelationMatchFunc(func(r *Relation) bool { return contains(types, r.relType) })
}

// TypeNotIn matches relations whose type is none of types.
func TypeNotIn(types ...string) RelationMatcher {
	return RelationMatchFunc(func(r *Relation) bool { return !contains(types, r.relType) })
}
