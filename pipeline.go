package dictgraph

import (
	"fmt"

	"go.uber.org/zap"
)

// NodeTransform mutates one matched node. It may create or tombstone other
// objects through g.
type NodeTransform interface {
	TransformNode(g *Graph, n *Node) error
}

// NodeTransformFunc adapts a function to NodeTransform.
type NodeTransformFunc func(g *Graph, n *Node) error

// TransformNode calls f(g, n).
func (f NodeTransformFunc) TransformNode(g *Graph, n *Node) error { return f(g, n) }

// RelationTransform mutates one matched relation.
type RelationTransform interface {
	TransformRelation(g *Graph, r *Relation) error
}

// RelationTransformFunc adapts a function to RelationTransform.
type RelationTransformFunc func(g *Graph, r *Relation) error

// TransformRelation calls f(g, r).
func (f RelationTransformFunc) TransformRelation(g *Graph, r *Relation) error { return f(g, r) }

// Rule pairs a matcher with the transforms applied to every object it
// matches. Build rules with ForNodes or ForRelations.
type Rule struct {
	name           string
	nodes          NodeMatcher
	rels           RelationMatcher
	nodeTransforms []NodeTransform
	relTransforms  []RelationTransform
}

// ForNodes builds a rule applying transforms, in order, to matching nodes.
func ForNodes(m NodeMatcher, transforms ...NodeTransform) Rule {
	return Rule{nodes: m, nodeTransforms: transforms}
}

// ForRelations builds a rule applying transforms, in order, to matching
// relations.
func ForRelations(m RelationMatcher, transforms ...RelationTransform) Rule {
	return Rule{rels: m, relTransforms: transforms}
}

// Named returns a copy of the rule carrying name for logs and errors.
func (r Rule) Named(name string) Rule {
	r.name = name
	return r
}

// Name returns the rule's name.
func (r Rule) Name() string { return r.name }

// Pipeline runs rules in registration order over a graph.
type Pipeline struct {
	rules []Rule
	log   *zap.Logger
}

// NewPipeline returns a pipeline over rules. A nil logger discards output.
func NewPipeline(log *zap.Logger, rules ...Rule) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{rules: rules, log: log}
}

// Run applies every rule to g. Each rule sees the objects that existed when
// it started, in creation order, and skips tombstoned ones. The first
// failing transform stops the run.
func (p *Pipeline) Run(g *Graph) error {
	for i, rule := range p.rules {
		if rule.name == "" {
			rule.name = fmt.Sprintf("rule#%d", i)
		}
		if err := p.apply(g, rule); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) apply(g *Graph, rule Rule) error {
	if rule.nodes != nil {
		for _, n := range g.AllNodes() {
			if n.deleted || !rule.nodes.MatchNode(n) {
				continue
			}
			for _, t := range rule.nodeTransforms {
				if n.deleted {
					break
				}
				if err := runNodeTransform(t, g, n); err != nil {
					return p.fail(rule, n, err)
				}
			}
		}
	}
	if rule.rels != nil {
		for _, r := range g.AllRelations() {
			if !r.Materializable() || !rule.rels.MatchRelation(r) {
				continue
			}
			for _, t := range rule.relTransforms {
				if !r.Materializable() {
					break
				}
				if err := runRelationTransform(t, g, r); err != nil {
					return p.fail(rule, r, err)
				}
			}
		}
	}
	return nil
}

// runNodeTransform reports a panic in t as an error.
func runNodeTransform(t NodeTransform, g *Graph, n *Node) (err error) {
	defer recoverTransform(&err)
	return t.TransformNode(g, n)
}

func runRelationTransform(t RelationTransform, g *Graph, r *Relation) (err error) {
	defer recoverTransform(&err)
	return t.TransformRelation(g, r)
}

func recoverTransform(err *error) {
	if v := recover(); v != nil {
		*err = fmt.Errorf("transform panicked: %v", v)
	}
}

func (p *Pipeline) fail(rule Rule, obj fmt.Stringer, err error) error {
	p.log.Error("transform failed",
		zap.String("rule", rule.name),
		zap.Stringer("object", obj),
		zap.Error(err),
	)
	return &TransformError{Rule: rule.name, Object: obj.String(), Err: err}
}
