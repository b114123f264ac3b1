package dictgraph

import (
	"fmt"
	"strings"
)

// PopHub removes one level of indirection: the outgoing relations of a
// collection hub are moved to originate from the hub's parent, taking the
// type of the parent's relation to the hub and keeping their own properties
// (list positions). The hub and its inbound relation are tombstoned. A hub
// without a parent is simply removed, leaving its members standalone.
type PopHub struct{}

// TransformNode pops the hub n. Non-hub nodes are left untouched.
func (PopHub) TransformNode(g *Graph, n *Node) error {
	if !n.hub {
		return nil
	}
	ins := n.InRelations()
	outs := n.OutRelations()
	if len(ins) == 0 {
		g.RemoveNode(n, false)
		return nil
	}
	for i, in := range ins {
		for _, out := range outs {
			props := in.props.Clone()
			for _, k := range out.props.Keys() {
				v, _ := out.props.Get(k)
				props.Set(k, v)
			}
			if i == 0 {
				g.SetStart(out, in.start)
				out.relType = in.relType
				out.props = props
				continue
			}
			g.Connect(in.start, out.end, in.relType, props)
		}
		in.Delete()
	}
	n.Delete()
	return nil
}

// HubbingMode selects what a hub created by CreateHub is identified by.
type HubbingMode int

const (
	// HubLead identifies the hub by the start node and every chain member.
	HubLead HubbingMode = iota
	// HubEdge identifies the hub by the start node and the terminal member
	// only, so chains ending in the same node share one hub.
	HubEdge
)

// DefaultHubbingLabel labels hubs created by CreateHub when Labels is empty.
const DefaultHubbingLabel = "Hub"

// CreateHub collapses chains of relations that start at the matched node and
// walk through nodes labeled Follow[0], Follow[1], ... into a synthetic hub.
// The hub hangs off the start node and links directly to every member of the
// chains it stands for; the original chain relations are tombstoned. Chains
// that produce the same hub identity share one hub, which also makes hubs
// from separate parse calls merge in the database.
type CreateHub struct {
	Follow []string
	Labels []string
	Mode   HubbingMode
	Key    string
}

// TransformNode builds the hubs for every chain starting at start.
//
// Parameters:
//   - g: The graph of the current parse call. Hubs and relations are created in it.
//   - start: The matched node the chains start from.
//
// Returns:
//   - An error if Follow is empty.
func (t CreateHub) TransformNode(g *Graph, start *Node) error {
	if len(t.Follow) == 0 {
		return fmt.Errorf("hubbing needs at least one label to follow")
	}
	chains := followChains(start, t.Follow)
	if len(chains) == 0 {
		return nil
	}
	labels := t.Labels
	if len(labels) == 0 {
		labels = []string{DefaultHubbingLabel}
	}
	key := t.Key
	if key == "" {
		key = DefaultHashKey
	}

	owner := "CreateHub:" + strings.Join(t.Follow, ">") + ":" + strings.Join(labels, ":")
	hubs, _ := g.Scratch(owner, start)
	byID, _ := hubs.(map[string]*Node)
	if byID == nil {
		byID = make(map[string]*Node)
	}

	for _, chain := range chains {
		members := make([]*Node, len(chain))
		for i, r := range chain {
			members[i] = r.end
		}
		parts := []any{labels, start.ID()}
		if t.Mode == HubEdge {
			parts = append(parts, members[len(members)-1].ID())
		} else {
			for _, m := range members {
				parts = append(parts, m.ID())
			}
		}
		id := HashValues(parts...)

		hub, ok := byID[id]
		if !ok {
			hub = g.NewNode(labels, start, nil)
			hub.props.Set(key, id)
			hub.SetMergeKeys(key)
			g.Connect(start, hub, "", nil)
			byID[id] = hub
		}
		for i, m := range members {
			if !linked(hub, m) {
				g.Connect(hub, m, "", chain[i].props.Clone())
			}
			chain[i].Delete()
		}
	}
	g.SetScratch(owner, start, byID)
	return nil
}

// followChains returns every relation path from n whose successive end nodes
// carry the successive labels of follow.
func followChains(n *Node, follow []string) [][]*Relation {
	if len(follow) == 0 {
		return [][]*Relation{nil}
	}
	var out [][]*Relation
	for _, r := range n.OutRelations() {
		if !r.end.HasLabel(follow[0]) {
			continue
		}
		for _, rest := range followChains(r.end, follow[1:]) {
			chain := append([]*Relation{r}, rest...)
			out = append(out, chain)
		}
	}
	return out
}

func linked(from, to *Node) bool {
	for _, r := range from.OutRelations() {
		if r.end == to {
			return true
		}
	}
	return false
}
