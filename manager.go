package dictgraph

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/saulfrancisco-ruizacevedo/gocypher"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/saulfrancisco-ruizacevedo/go-dictgraph"

// Defaults used when WithBatchSize or WithConcurrency are not given.
const (
	DefaultBatchSize   = 500
	DefaultConcurrency = 4
)

// PersistenceManager writes aggregated batches to Neo4j through a DBRunner
// and reads graphs back. It implements Store.
type PersistenceManager struct {
	runner      DBRunner
	log         *zap.Logger
	tracer      trace.Tracer
	batchSize   int
	concurrency int
}

var _ Store = (*PersistenceManager)(nil)

// NewPersistenceManager creates a new instance of the PersistenceManager.
// WithLogger, WithBatchSize and WithConcurrency apply.
func NewPersistenceManager(runner DBRunner, opts ...Option) *PersistenceManager {
	o := buildOptions(opts)
	pm := &PersistenceManager{
		runner:      runner,
		log:         componentLogger(o.log, "persistence"),
		tracer:      otel.Tracer(tracerName),
		batchSize:   o.batchSize,
		concurrency: o.concurrency,
	}
	if pm.batchSize <= 0 {
		pm.batchSize = DefaultBatchSize
	}
	if pm.concurrency <= 0 {
		pm.concurrency = DefaultConcurrency
	}
	return pm
}

// CreateIndexes creates one index per (primary label, merge keys) pair of the
// batches. Existing indexes are left alone.
func (pm *PersistenceManager) CreateIndexes(ctx context.Context, b *Batches) error {
	ctx, span := pm.tracer.Start(ctx, "dictgraph.CreateIndexes")
	defer span.End()

	for _, idx := range b.Indexes() {
		if _, err := pm.runner.Run(ctx, indexStatement(idx), nil); err != nil {
			return pm.fail(span, fmt.Errorf("could not create index on %s: %w", idx.Label, err))
		}
	}
	return nil
}

// Create inserts every row of the batches without matching existing nodes.
// Relations are created between nodes located by their merge-key values, after
// all nodes are written. Rows go out in UNWIND statements of at most the
// configured batch size.
func (pm *PersistenceManager) Create(ctx context.Context, b *Batches) error {
	ctx, span := pm.tracer.Start(ctx, "dictgraph.Create", trace.WithAttributes(batchAttributes(b)...))
	defer span.End()

	for _, ns := range b.Nodes {
		query := createNodeStatement(ns.Labels)
		rows := make([]any, len(ns.Rows))
		for i, row := range ns.Rows {
			rows[i] = row
		}
		for _, batch := range chunk(rows, pm.batchSize) {
			if _, err := pm.runner.Run(ctx, query, map[string]interface{}{"rows": batch}); err != nil {
				return pm.fail(span, fmt.Errorf("could not create %s nodes: %w", strings.Join(ns.Labels, ":"), err))
			}
		}
		pm.log.Info("created nodes", zap.Strings("labels", ns.Labels), zap.Int("rows", len(ns.Rows)))
	}

	for _, rs := range b.Relations {
		if err := pm.createRelations(ctx, rs); err != nil {
			return pm.fail(span, err)
		}
	}
	return nil
}

func (pm *PersistenceManager) createRelations(ctx context.Context, rs RelationSet) error {
	ends := func(row RelationRow) (start, end []string) {
		return presentKeys(row.Start, rs.StartMergeKeys), presentKeys(row.End, rs.EndMergeKeys)
	}
	parts := partitionRows(len(rs.Rows), func(i int) string {
		s, e := ends(rs.Rows[i])
		return strings.Join(s, "\x00") + "|" + strings.Join(e, "\x00")
	})
	for _, part := range parts {
		s, e := ends(rs.Rows[part[0]])
		query := createRelationStatement(rs, s, e)
		for _, batch := range chunk(relationParams(rs, part), pm.batchSize) {
			if _, err := pm.runner.Run(ctx, query, map[string]interface{}{"rows": batch}); err != nil {
				return fmt.Errorf("could not create %s relations: %w", rs.Type, err)
			}
		}
	}
	pm.log.Info("created relations", zap.String("type", rs.Type), zap.Int("rows", len(rs.Rows)))
	return nil
}

// Merge upserts the batches. Rows are matched on the merge keys they carry;
// rows carrying different subsets of a set's merge keys go out in separate
// statements. Node sets are written concurrently, relations afterwards.
func (pm *PersistenceManager) Merge(ctx context.Context, b *Batches) error {
	ctx, span := pm.tracer.Start(ctx, "dictgraph.Merge", trace.WithAttributes(batchAttributes(b)...))
	defer span.End()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pm.concurrency)
	for _, ns := range b.Nodes {
		g.Go(func() error {
			return pm.mergeNodes(gctx, ns)
		})
	}
	if err := g.Wait(); err != nil {
		return pm.fail(span, err)
	}

	for _, rs := range b.Relations {
		if err := pm.mergeRelations(ctx, rs); err != nil {
			return pm.fail(span, err)
		}
	}
	return nil
}

func (pm *PersistenceManager) mergeNodes(ctx context.Context, ns NodeSet) error {
	parts := partitionRows(len(ns.Rows), func(i int) string {
		return strings.Join(presentKeys(ns.Rows[i], ns.MergeKeys), "\x00")
	})
	for _, part := range parts {
		keys := presentKeys(ns.Rows[part[0]], ns.MergeKeys)
		query := mergeNodeStatement(ns.Labels, keys)
		rows := make([]any, len(part))
		for i, idx := range part {
			rows[i] = ns.Rows[idx]
		}
		for _, batch := range chunk(rows, pm.batchSize) {
			if _, err := pm.runner.Run(ctx, query, map[string]interface{}{"rows": batch}); err != nil {
				return fmt.Errorf("could not merge %s nodes: %w", strings.Join(ns.Labels, ":"), err)
			}
		}
	}
	pm.log.Info("merged nodes", zap.Strings("labels", ns.Labels), zap.Int("rows", len(ns.Rows)))
	return nil
}

func (pm *PersistenceManager) mergeRelations(ctx context.Context, rs RelationSet) error {
	shape := func(row RelationRow) (start, end, props []string) {
		return presentKeys(row.Start, rs.StartMergeKeys), presentKeys(row.End, rs.EndMergeKeys), sortedKeys(row.Properties)
	}
	parts := partitionRows(len(rs.Rows), func(i int) string {
		s, e, p := shape(rs.Rows[i])
		return strings.Join(s, "\x00") + "|" + strings.Join(e, "\x00") + "|" + strings.Join(p, "\x00")
	})
	for _, part := range parts {
		s, e, p := shape(rs.Rows[part[0]])
		query := mergeRelationStatement(rs, s, e, p)
		for _, batch := range chunk(relationParams(rs, part), pm.batchSize) {
			if _, err := pm.runner.Run(ctx, query, map[string]interface{}{"rows": batch}); err != nil {
				return fmt.Errorf("could not merge %s relations: %w", rs.Type, err)
			}
		}
	}
	pm.log.Info("merged relations", zap.String("type", rs.Type), zap.Int("rows", len(rs.Rows)))
	return nil
}

// relationParams turns the rows at idx into UNWIND parameters.
func relationParams(rs RelationSet, idx []int) []any {
	rows := make([]any, len(idx))
	for i, j := range idx {
		row := rs.Rows[j]
		props := row.Properties
		if props == nil {
			props = map[string]any{}
		}
		rows[i] = map[string]any{"start": row.Start, "end": row.End, "props": props}
	}
	return rows
}

func (pm *PersistenceManager) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	pm.log.Error("graph write failed", zap.Error(err))
	return err
}

func batchAttributes(b *Batches) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int("dictgraph.node_sets", len(b.Nodes)),
		attribute.Int("dictgraph.relation_sets", len(b.Relations)),
	}
}

// partitionRows groups row indexes by shape, in order of first appearance.
func partitionRows(n int, shape func(i int) string) [][]int {
	var out [][]int
	index := make(map[string]int)
	for i := 0; i < n; i++ {
		key := shape(i)
		j, ok := index[key]
		if !ok {
			j = len(out)
			index[key] = j
			out = append(out, nil)
		}
		out[j] = append(out[j], i)
	}
	return out
}

func presentKeys(row map[string]any, keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if v, ok := row[k]; ok && v != nil {
			out = append(out, k)
		}
	}
	return out
}

func chunk[T any](items []T, size int) [][]T {
	var out [][]T
	for size < len(items) {
		items, out = items[size:], append(out, items[:size:size])
	}
	return append(out, items)
}

// quote escapes a label, type or property name as a Cypher identifier.
func quote(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func labelPattern(labels []string) string {
	var b strings.Builder
	for _, l := range labels {
		b.WriteString(":")
		b.WriteString(quote(l))
	}
	return b.String()
}

// keyPattern renders `{k: <prefix>.k, ...}`, or "" without keys.
func keyPattern(keys []string, prefix string) string {
	if len(keys) == 0 {
		return ""
	}
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = quote(k) + ": " + prefix + "." + quote(k)
	}
	return " {" + strings.Join(parts, ", ") + "}"
}

func mergeNodeStatement(labels, keys []string) string {
	return "UNWIND $rows AS row\n" +
		"MERGE (n" + labelPattern(labels) + keyPattern(keys, "row") + ")\n" +
		"SET n += row"
}

func mergeRelationStatement(rs RelationSet, start, end, props []string) string {
	return "UNWIND $rows AS row\n" +
		"MATCH (a" + labelPattern(rs.StartLabels) + keyPattern(start, "row.start") + ")\n" +
		"MATCH (b" + labelPattern(rs.EndLabels) + keyPattern(end, "row.end") + ")\n" +
		"MERGE (a)-[r:" + quote(rs.Type) + keyPattern(props, "row.props") + "]->(b)"
}

func createNodeStatement(labels []string) string {
	return "UNWIND $rows AS row\n" +
		"CREATE (n" + labelPattern(labels) + ")\n" +
		"SET n = row"
}

func createRelationStatement(rs RelationSet, start, end []string) string {
	return "UNWIND $rows AS row\n" +
		"MATCH (a" + labelPattern(rs.StartLabels) + keyPattern(start, "row.start") + ")\n" +
		"MATCH (b" + labelPattern(rs.EndLabels) + keyPattern(end, "row.end") + ")\n" +
		"CREATE (a)-[r:" + quote(rs.Type) + "]->(b)\n" +
		"SET r = row.props"
}

// matchStatement matches n by labels and property equality. Values are
// passed as parameters $p0, $p1, ... in sorted key order.
func matchStatement(labels []string, props map[string]interface{}) (string, map[string]interface{}) {
	keys := sortedKeys(props)
	params := make(map[string]interface{}, len(keys))
	parts := make([]string, len(keys))
	for i, k := range keys {
		name := fmt.Sprintf("p%d", i)
		params[name] = props[k]
		parts[i] = quote(k) + ": $" + name
	}
	pattern := ""
	if len(parts) > 0 {
		pattern = " {" + strings.Join(parts, ", ") + "}"
	}
	return "MATCH (n" + labelPattern(labels) + pattern + ")", params
}

func indexStatement(idx Index) string {
	props := make([]string, len(idx.Properties))
	for i, p := range idx.Properties {
		props[i] = "n." + quote(p)
	}
	name := strings.ToLower(idx.Label+"_"+strings.Join(idx.Properties, "_")) + "_idx"
	return fmt.Sprintf("CREATE INDEX %s IF NOT EXISTS FOR (n:%s) ON (%s)", quote(name), quote(idx.Label), strings.Join(props, ", "))
}

// CreateRelation creates a directed relationship between two tagged entities
// already stored in the database, located by label and primary key.
func (pm *PersistenceManager) CreateRelation(ctx context.Context, fromEntity any, toEntity any, relType string, relProps map[string]interface{}) error {
	fromMeta, fromPKVal, err := entityMetaAndPK(fromEntity)
	if err != nil {
		return err
	}
	toMeta, toPKVal, err := entityMetaAndPK(toEntity)
	if err != nil {
		return err
	}

	qb := gocypher.NewQueryBuilder().
		Match(gocypher.N("a", fromMeta.Label).WithProperties(map[string]interface{}{fromMeta.PKProp: fromPKVal})).
		Match(gocypher.N("b", toMeta.Label).WithProperties(map[string]interface{}{toMeta.PKProp: toPKVal})).
		Create(
			gocypher.N("a", ""), // Reference the 'a' alias without its label
			gocypher.R("r", relType).To().WithProperties(relProps),
			gocypher.N("b", ""), // Reference the 'b' alias without its label
		)

	query, params, err := qb.Build()
	if err != nil {
		return err
	}

	if _, err := pm.runner.Run(ctx, query, params); err != nil {
		return fmt.Errorf("could not create %s relation: %w", relType, err)
	}
	return nil
}

// entityMetaAndPK retrieves an entity's metadata and primary key value.
func entityMetaAndPK(entity any) (*entityMetadata, any, error) {
	val := reflect.ValueOf(entity)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return nil, nil, fmt.Errorf("entity must be a non-nil pointer")
	}
	meta, err := entityMeta(val.Elem().Type())
	if err != nil {
		return nil, nil, err
	}
	if meta.PKField == "" {
		return nil, nil, fmt.Errorf("no primary key ('pk') tag defined for struct %s", meta.Label)
	}
	pkValue := val.Elem().FieldByName(meta.PKField).Interface()
	return meta, pkValue, nil
}

// Lookup returns the nodes carrying labels whose properties equal props.
func (pm *PersistenceManager) Lookup(ctx context.Context, labels []string, props map[string]interface{}) (*GraphResult, error) {
	query, params := matchStatement(labels, props)
	return pm.readGraph(ctx, query+"\nRETURN n", params)
}

// Delete removes the nodes carrying labels whose properties equal props,
// together with their relationships.
func (pm *PersistenceManager) Delete(ctx context.Context, labels []string, props map[string]interface{}) error {
	query, params := matchStatement(labels, props)
	if _, err := pm.runner.Run(ctx, query+"\nDETACH DELETE n", params); err != nil {
		return fmt.Errorf("could not delete %s nodes: %w", strings.Join(labels, ":"), err)
	}
	return nil
}

// FindGraph executes a graph query defined by a gocypher.QueryBuilder and maps the result
// into a generic graph structure composed of nodes and edges.
//
// The caller is responsible for constructing a valid query via the QueryBuilder, including
// a RETURN clause that specifies which nodes and relationships should be included in the
// final graph. For example, `RETURN a, r, b`.
//
// Nodes and relationships returned in several rows appear once in the result,
// in order of first appearance.
//
// Parameters:
//   - ctx: The context for the query execution.
//   - qb: A pointer to a configured gocypher.QueryBuilder instance that defines the graph to retrieve.
//
// Returns:
//   - A pointer to a GraphResult containing the de-duplicated nodes and edges from the query.
//   - An ErrNotFound error if the query executes successfully but returns zero records.
//   - Any other error encountered during query building or execution.
func (pm *PersistenceManager) FindGraph(ctx context.Context, qb *gocypher.QueryBuilder) (*GraphResult, error) {
	query, params, err := qb.Build()
	if err != nil {
		return nil, fmt.Errorf("could not build query: %w", err)
	}
	return pm.readGraph(ctx, query, params)
}

// readGraph runs query and collects the nodes and relationships it returns.
func (pm *PersistenceManager) readGraph(ctx context.Context, query string, params map[string]interface{}) (*GraphResult, error) {
	eagerResult, err := pm.runner.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	if eagerResult == nil || len(eagerResult.Records) == 0 {
		return nil, ErrNotFound
	}

	graph := &GraphResult{
		Nodes: make([]*GraphNode, 0),
		Edges: make([]*Edge, 0),
	}
	seenNodeIDs := make(map[string]bool)
	seenEdgeIDs := make(map[string]bool)

	for _, record := range eagerResult.Records {
		for _, value := range record.Values {
			switch v := value.(type) {
			case neo4j.Node:
				if !seenNodeIDs[v.ElementId] {
					graph.Nodes = append(graph.Nodes, &GraphNode{
						ID:         v.ElementId,
						Labels:     v.Labels,
						Properties: v.Props,
					})
					seenNodeIDs[v.ElementId] = true
				}

			case neo4j.Relationship:
				if !seenEdgeIDs[v.ElementId] {
					graph.Edges = append(graph.Edges, &Edge{
						ID:         v.ElementId,
						Source:     v.StartElementId,
						Target:     v.EndElementId,
						Type:       v.Type,
						Properties: v.Props,
					})
					seenEdgeIDs[v.ElementId] = true
				}
			}
		}
	}

	return graph, nil
}
