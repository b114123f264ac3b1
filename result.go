package dictgraph

// GraphNode is a node read back from the database. It is domain-agnostic and
// serialises directly to JSON.
type GraphNode struct {
	// ID is the identifier Neo4j assigned to the node (ElementId).
	ID string `json:"id"`

	Labels []string `json:"labels"`

	Properties map[string]interface{} `json:"properties"`
}

// Edge is a relationship read back from the database.
type Edge struct {
	// ID is the identifier Neo4j assigned to the relationship (ElementId).
	ID string `json:"id"`

	// Source is the ElementId of the node where the relationship starts.
	Source string `json:"source"`

	// Target is the ElementId of the node where the relationship ends.
	Target string `json:"target"`

	Type string `json:"type"`

	Properties map[string]interface{} `json:"properties"`
}

// GraphResult holds the de-duplicated nodes and edges of a read-back query,
// in the shape most graph visualisation frontends consume.
type GraphResult struct {
	Nodes []*GraphNode `json:"nodes"`
	Edges []*Edge      `json:"edges"`
}
