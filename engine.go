package dictgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// Store is the persistence side of the engine. It receives aggregated batches
// and translates them into database statements.
type Store interface {
	CreateIndexes(ctx context.Context, b *Batches) error
	Create(ctx context.Context, b *Batches) error
	Merge(ctx context.Context, b *Batches) error
}

type options struct {
	log         *zap.Logger
	rules       []Rule
	batchSize   int
	concurrency int
}

// Option configures an Engine or a PersistenceManager. Options that do not
// apply to the value being built are ignored.
type Option func(*options)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithRules registers transformer rules at construction.
func WithRules(rules ...Rule) Option {
	return func(o *options) { o.rules = append(o.rules, rules...) }
}

// WithBatchSize caps the rows sent in one statement by a PersistenceManager.
func WithBatchSize(n int) Option {
	return func(o *options) { o.batchSize = n }
}

// WithConcurrency caps the node batches a PersistenceManager writes at once.
func WithConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Engine maps documents into an accumulated graph and flushes it to a Store.
// An Engine is not safe for concurrent use.
type Engine struct {
	cfg    Config
	rules  []Rule
	log    *zap.Logger
	graph  *Graph
	failed *Graph
}

// New validates cfg and returns an engine with an empty accumulator.
func New(cfg Config, opts ...Option) (*Engine, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	return &Engine{
		cfg:   cfg,
		rules: o.rules,
		log:   componentLogger(o.log, "engine"),
		graph: NewGraph(),
	}, nil
}

// AddRules appends rules after the ones already registered.
func (e *Engine) AddRules(rules ...Rule) {
	e.rules = append(e.rules, rules...)
}

// Config returns a copy of the engine's configuration.
func (e *Engine) Config() Config { return e.cfg }

// Parse maps value into a fresh graph, runs the pipeline over it and adds the
// result to the accumulator. rootLabel names the node for value itself; without
// it the top-level keys are mapped as independent roots.
//
// A mapping error discards everything the call produced. A transform error
// leaves the call's graph available through LastFailed and the accumulator
// untouched.
func (e *Engine) Parse(value any, rootLabel ...string) error {
	label := ""
	if len(rootLabel) > 0 {
		label = rootLabel[0]
	}
	return e.parse(value, label, e.cfg)
}

// parse runs one call with cfg driving the mapper. Config rules always come
// from the engine's own configuration.
func (e *Engine) parse(value any, label string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	g := NewGraph()
	m := newMapper(&cfg, g, e.log)
	if err := m.mapRoot(value, label); err != nil {
		e.log.Debug("mapping failed", zap.String("root", label), zap.Error(err))
		return err
	}

	p := NewPipeline(e.log, append(e.configRules(), e.rules...)...)
	if err := p.Run(g); err != nil {
		e.failed = g
		return err
	}
	e.failed = nil
	e.graph.absorb(g)

	nodes, rels := g.Len()
	e.log.Debug("parsed document",
		zap.String("root", label),
		zap.Int("nodes", nodes),
		zap.Int("relations", rels),
	)
	return nil
}

// ParseJSON decodes data and parses it. Numbers keep their integer or float
// form instead of all becoming float64.
func (e *Engine) ParseJSON(data []byte, rootLabel ...string) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("could not decode json: %w", err)
	}
	return e.Parse(v, rootLabel...)
}

// configRules turns the declarative post-mapping settings into rules that
// run ahead of the registered ones.
func (e *Engine) configRules() []Rule {
	var rules []Rule
	for _, r := range e.cfg.PropertyNames {
		rules = append(rules, ForNodes(labelMatcher(r.Label), RenameProperty{From: r.From, To: r.To}).
			Named("property_names:"+r.From))
	}
	for _, c := range e.cfg.PropertyCasts {
		rules = append(rules, ForNodes(labelMatcher(c.Label), CastProperty{Property: c.Property, Kind: c.Kind, Permissive: c.Permissive}).
			Named("property_casts:"+c.Property))
	}
	return rules
}

func labelMatcher(label string) NodeMatcher {
	if label == "" {
		return AnyNode()
	}
	return HasLabels(label)
}

// Graph returns the accumulated graph.
func (e *Engine) Graph() *Graph { return e.graph }

// Batches aggregates the accumulated graph.
func (e *Engine) Batches() *Batches { return Aggregate(e.graph) }

// LastFailed returns the graph of the last parse call whose pipeline failed,
// or nil if the last call succeeded.
func (e *Engine) LastFailed() *Graph { return e.failed }

// Reset drops the accumulated graph.
func (e *Engine) Reset() {
	e.graph = NewGraph()
	e.failed = nil
}

// Create writes the accumulated graph with insert-only semantics and clears
// the accumulator on success.
func (e *Engine) Create(ctx context.Context, s Store) error {
	return e.flush(ctx, s, "create", s.Create)
}

// Merge upserts the accumulated graph on each batch's merge keys and clears
// the accumulator on success.
func (e *Engine) Merge(ctx context.Context, s Store) error {
	return e.flush(ctx, s, "merge", s.Merge)
}

func (e *Engine) flush(ctx context.Context, s Store, op string, write func(context.Context, *Batches) error) error {
	b := e.Batches()
	if b.Empty() {
		return nil
	}
	if err := s.CreateIndexes(ctx, b); err != nil {
		return fmt.Errorf("could not create indexes: %w", err)
	}
	if err := write(ctx, b); err != nil {
		return fmt.Errorf("could not %s graph: %w", op, err)
	}
	e.log.Info("flushed graph",
		zap.String("op", op),
		zap.Int("node_sets", len(b.Nodes)),
		zap.Int("relation_sets", len(b.Relations)),
	)
	e.graph = NewGraph()
	return nil
}
