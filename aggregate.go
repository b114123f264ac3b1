package dictgraph

import (
	"sort"
	"strings"
)

// NodeSet is every live node sharing one exact label set, ready to be
// written in a single batch.
type NodeSet struct {
	Labels []string
	// MergeKeys are the properties a merge matches on. Empty means the set
	// merges on its labels alone.
	MergeKeys []string
	Rows      []map[string]any
}

// RelationRow is one relation of a RelationSet. Start and End hold the
// merge-key values locating its endpoints.
type RelationRow struct {
	Start      map[string]any
	End        map[string]any
	Properties map[string]any
}

// RelationSet is every live relation sharing endpoint label sets, type and
// type override key.
type RelationSet struct {
	Type            string
	TypeOverrideKey string
	StartLabels     []string
	EndLabels       []string
	StartMergeKeys  []string
	EndMergeKeys    []string
	Rows            []RelationRow
}

// Index is a (label, properties) pair worth indexing before a merge.
type Index struct {
	Label      string
	Properties []string
}

// Batches is the aggregated, database-agnostic export of a graph.
type Batches struct {
	Nodes     []NodeSet
	Relations []RelationSet
}

// Empty reports whether there is nothing to write.
func (b *Batches) Empty() bool {
	return b == nil || (len(b.Nodes) == 0 && len(b.Relations) == 0)
}

// Indexes lists one index per node set with merge keys, on the set's primary
// label.
func (b *Batches) Indexes() []Index {
	seen := make(map[string]bool)
	var out []Index
	for _, ns := range b.Nodes {
		if len(ns.MergeKeys) == 0 || len(ns.Labels) == 0 {
			continue
		}
		key := ns.Labels[0] + "\x00" + strings.Join(ns.MergeKeys, "\x00")
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Index{Label: ns.Labels[0], Properties: append([]string(nil), ns.MergeKeys...)})
	}
	return out
}

type nodeGroup struct {
	set      NodeSet
	nodes    []*Node
	explicit bool
}

type relGroup struct {
	set  RelationSet
	seen map[string]bool
}

// Aggregate groups the live objects of g into batches. Groups and rows keep
// the graph's creation order, so aggregating the same graph twice yields
// identical batches.
func Aggregate(g *Graph) *Batches {
	var order []*nodeGroup
	groups := make(map[string]*nodeGroup)
	nodeGroupOf := make(map[*Node]*nodeGroup)

	for _, n := range g.Nodes() {
		key := labelSetKey(n.labels)
		grp, ok := groups[key]
		if !ok {
			grp = &nodeGroup{set: NodeSet{Labels: n.Labels()}}
			groups[key] = grp
			order = append(order, grp)
		}
		grp.nodes = append(grp.nodes, n)
		nodeGroupOf[n] = grp
	}

	b := &Batches{}
	for _, grp := range order {
		grp.set.MergeKeys, grp.explicit = groupMergeKeys(grp.nodes)
		grp.set.Rows = nodeRows(grp)
		b.Nodes = append(b.Nodes, grp.set)
	}

	var relOrder []*relGroup
	relGroups := make(map[string]*relGroup)
	for _, r := range g.Relations() {
		sg, eg := nodeGroupOf[r.start], nodeGroupOf[r.end]
		key := strings.Join([]string{
			labelSetKey(r.start.labels), labelSetKey(r.end.labels), r.relType, r.overrideKey,
		}, "|")
		grp, ok := relGroups[key]
		if !ok {
			grp = &relGroup{
				set: RelationSet{
					Type:            r.relType,
					TypeOverrideKey: r.overrideKey,
					StartLabels:     sg.set.Labels,
					EndLabels:       eg.set.Labels,
					StartMergeKeys:  sg.set.MergeKeys,
					EndMergeKeys:    eg.set.MergeKeys,
				},
				seen: make(map[string]bool),
			}
			relGroups[key] = grp
			relOrder = append(relOrder, grp)
		}
		row := RelationRow{
			Start:      endpointKeys(r.start, sg),
			End:        endpointKeys(r.end, eg),
			Properties: r.props.Map(),
		}
		id := HashValues(row.Start, row.End, row.Properties)
		if grp.seen[id] {
			continue
		}
		grp.seen[id] = true
		grp.set.Rows = append(grp.set.Rows, row)
	}
	for _, grp := range relOrder {
		b.Relations = append(b.Relations, grp.set)
	}
	return b
}

// groupMergeKeys is the union of the explicit merge keys of the nodes in
// first-appearance order, or the sorted union of all property names when no
// node declares any.
func groupMergeKeys(nodes []*Node) ([]string, bool) {
	var keys []string
	seen := make(map[string]bool)
	explicit := false
	for _, n := range nodes {
		if !n.mergeKeysSet {
			continue
		}
		explicit = true
		for _, k := range n.mergeKeys {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	if explicit {
		return keys, true
	}
	for _, n := range nodes {
		for _, k := range n.props.keys {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys, false
}

// nodeRows deduplicates the group's nodes on their merge-key values. Later
// duplicates only fill in properties the first one lacks. Nodes carrying none
// of the merge keys are deduplicated on all of their properties.
func nodeRows(grp *nodeGroup) []map[string]any {
	var rows []map[string]any
	index := make(map[string]int)
	for _, n := range grp.nodes {
		props := n.props.Map()
		id := HashValues(props)
		if grp.explicit && len(grp.set.MergeKeys) > 0 {
			if keys := n.props.Subset(grp.set.MergeKeys); len(keys) > 0 {
				id = HashValues(keys)
			}
		}
		if i, ok := index[id]; ok {
			for k, v := range props {
				if _, exists := rows[i][k]; !exists {
					rows[i][k] = v
				}
			}
			continue
		}
		index[id] = len(rows)
		rows = append(rows, props)
	}
	return rows
}

func endpointKeys(n *Node, grp *nodeGroup) map[string]any {
	if len(grp.set.MergeKeys) == 0 {
		return map[string]any{}
	}
	return n.props.Subset(grp.set.MergeKeys)
}

func labelSetKey(labels []string) string {
	sorted := append([]string(nil), labels...)
	sort.Strings(sorted)
	return strings.Join(sorted, ":")
}
