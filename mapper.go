package dictgraph

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// mapper walks one input value and materialises it into a Graph. It holds the
// lookup tables derived from Config for a single parse call.
type mapper struct {
	cfg *Config
	g   *Graph
	log *zap.Logger

	unwrap     map[string]bool
	promotions map[string]Promotion
	concats    map[string]Concatenation
	relTypes   map[string]string
}

func newMapper(cfg *Config, g *Graph, log *zap.Logger) *mapper {
	m := &mapper{
		cfg:        cfg,
		g:          g,
		log:        log,
		unwrap:     make(map[string]bool, len(cfg.UnwrapListItems)),
		promotions: make(map[string]Promotion, len(cfg.Promotions)),
		concats:    make(map[string]Concatenation, len(cfg.Concatenations)),
		relTypes:   make(map[string]string, len(cfg.RelationTypes)),
	}
	for _, l := range cfg.UnwrapListItems {
		m.unwrap[l] = true
	}
	for _, p := range cfg.Promotions {
		m.promotions[pairKey(p.Label, p.Property)] = p
	}
	for _, c := range cfg.Concatenations {
		m.concats[pairKey(c.Label, c.Property)] = c
	}
	for _, r := range cfg.RelationTypes {
		m.relTypes[pairKey(r.Parent, r.Child)] = r.Type
	}
	g.namer = m.relationName
	return m
}

func pairKey(a, b string) string { return a + "\x00" + b }

func (m *mapper) relationName(start, end *Node, props *Properties) string {
	if t, ok := m.relTypes[pairKey(primaryLabel(start), primaryLabel(end))]; ok {
		return t
	}
	if m.cfg.RelationNamer != nil {
		return m.cfg.RelationNamer(start, end, props)
	}
	return ""
}

// mapRoot maps a whole input document. Without a root label the top-level
// keys (or list elements) are mapped independently and no anchor node is
// created for the document itself.
func (m *mapper) mapRoot(value any, label string) error {
	if label != "" {
		_, err := m.mapLabeled(label, value, nil, label)
		return err
	}
	return m.mapUnlabeled(value, "$")
}

func (m *mapper) mapUnlabeled(value any, path string) error {
	if isEmpty(value) {
		return nil
	}
	if obj, ok := asObject(value); ok {
		for _, k := range sortedKeys(obj) {
			if _, err := m.mapKey(k, obj[k], nil, path+"."+k); err != nil {
				return err
			}
		}
		return nil
	}
	if list, ok := asList(value); ok {
		for i, elem := range list {
			if err := m.mapUnlabeled(elem, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		return nil
	}
	return &MalformedInputError{Path: path, Value: value}
}

// mapKey resolves key to a label and maps value under it.
func (m *mapper) mapKey(key string, value any, parent *Node, path string) (*Node, error) {
	return m.mapLabeled(m.label(key, parent), value, parent, path)
}

func (m *mapper) label(key string, parent *Node) string {
	if l := m.cfg.LabelOverrides[key]; l != "" {
		return l
	}
	if m.cfg.LabelNamer != nil {
		if l := m.cfg.LabelNamer(key, parent); l != "" {
			return l
		}
	}
	return key
}

// mapLabeled maps value as a node labeled label. A nil node with a nil
// error means the branch produced nothing and must not be connected.
func (m *mapper) mapLabeled(label string, value any, parent *Node, path string) (*Node, error) {
	if m.cfg.PreNodeHook != nil {
		v, keep := m.cfg.PreNodeHook(label, value)
		if !keep {
			return nil, nil
		}
		value = v
	}
	if !m.cfg.Nodes.Permits(label) {
		m.log.Debug("skipping blocked label", zap.String("label", label), zap.String("path", path))
		return nil, nil
	}
	if value == nil {
		return nil, nil
	}
	if obj, ok := asObject(value); ok {
		return m.mapObject(label, obj, parent, path)
	}
	if list, ok := asList(value); ok {
		return m.mapList(label, list, parent, path)
	}
	if isEmpty(value) {
		return nil, nil
	}
	return m.mapScalar(label, value, parent)
}

func (m *mapper) mapScalar(label string, value any, parent *Node) (*Node, error) {
	n := m.g.NewNode([]string{label}, parent, value)
	n.props.Set(label, value)
	n.SetMergeKeys(label)
	return m.finalize(n)
}

func (m *mapper) mapObject(label string, obj map[string]any, parent *Node, path string) (*Node, error) {
	n := m.g.NewNode([]string{label}, parent, obj)
	allowed := m.cfg.Properties[label]

	// Scalars first so the node's properties are complete before any child
	// fingerprints it.
	var children []string
	for _, k := range sortedKeys(obj) {
		v := obj[k]
		if v == nil {
			continue
		}
		if p, ok := m.promotions[pairKey(label, k)]; ok && isScalar(v) {
			if p.Copy && allowed.Permits(k) {
				n.props.Set(k, v)
			}
			children = append(children, k)
			continue
		}
		if c, ok := m.concats[pairKey(label, k)]; ok {
			if s, ok := concatScalars(v, c.Separator); ok {
				if allowed.Permits(k) {
					n.props.Set(k, s)
				}
				continue
			}
		}
		if isScalar(v) {
			if allowed.Permits(k) {
				n.props.Set(k, v)
			}
			continue
		}
		children = append(children, k)
	}

	for _, k := range children {
		if err := m.mapChild(n, k, obj[k], path+"."+k); err != nil {
			return nil, err
		}
	}
	return m.finalize(n)
}

func (m *mapper) mapChild(parent *Node, key string, value any, path string) error {
	if contains(m.cfg.RelationKeys, key) {
		return m.mapRelationKey(parent, key, value, path)
	}
	child, err := m.mapKey(key, value, parent, path)
	if err != nil || child == nil {
		return err
	}
	m.connect(parent, child, "", nil)
	return nil
}

// mapRelationKey handles a key that names a relation instead of a node: its
// object value holds the labeled targets, a list value holds several such
// objects.
func (m *mapper) mapRelationKey(parent *Node, relType string, value any, path string) error {
	if obj, ok := asObject(value); ok {
		return m.mapRelationTargets(parent, relType, obj, nil, path)
	}
	if list, ok := asList(value); ok {
		for i, elem := range list {
			elemPath := fmt.Sprintf("%s[%d]", path, i)
			obj, ok := asObject(elem)
			if !ok {
				if isEmpty(elem) {
					continue
				}
				return &MalformedInputError{Path: elemPath, Value: elem}
			}
			props := NewProperties()
			props.Set(m.cfg.PositionKey, i)
			if err := m.mapRelationTargets(parent, relType, obj, props, elemPath); err != nil {
				return err
			}
		}
		return nil
	}
	if isEmpty(value) {
		return nil
	}
	return &MalformedInputError{Path: path, Value: value}
}

func (m *mapper) mapRelationTargets(parent *Node, relType string, obj map[string]any, props *Properties, path string) error {
	for _, k := range sortedKeys(obj) {
		child, err := m.mapKey(k, obj[k], parent, path+"."+k)
		if err != nil {
			return err
		}
		if child == nil {
			continue
		}
		var p *Properties
		if props != nil {
			p = props.Clone()
		}
		m.connect(parent, child, relType, p)
	}
	return nil
}

// mapList maps a labeled list. It returns the collection hub, the collapsed
// singleton element, or nil when the items were attached to parent directly.
func (m *mapper) mapList(label string, list []any, parent *Node, path string) (*Node, error) {
	if len(list) == 0 && !m.cfg.KeepEmptyLists {
		return nil, nil
	}
	if len(list) == 1 && m.cfg.CollapseSingletonLists {
		return m.mapItem(label, list[0], parent, path+"[0]")
	}

	var hub *Node
	owner := parent
	if m.cfg.Hubs.Permits(label) {
		hub = m.g.NewNode([]string{label, m.cfg.HubLabel}, parent, list)
		hub.hub = true
		owner = hub
	}
	for i, elem := range list {
		child, err := m.mapItem(label, elem, owner, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		if child == nil || owner == nil {
			continue
		}
		props := NewProperties()
		props.Set(m.cfg.PositionKey, i)
		m.connect(owner, child, "", props)
	}
	if hub == nil {
		return nil, nil
	}
	hub.props.Set(DefaultHashKey, listIdentity(hub.labels, list))
	hub.SetMergeKeys(DefaultHashKey)
	return m.finalize(hub)
}

// mapItem maps one list element. Elements share the list's label unless the
// list is configured to unwrap single-key objects, whose key then labels them.
func (m *mapper) mapItem(label string, elem any, parent *Node, path string) (*Node, error) {
	if m.unwrap[label] {
		if obj, ok := asObject(elem); ok && len(obj) == 1 {
			for k, v := range obj {
				return m.mapKey(k, v, parent, path+"."+k)
			}
		}
	}
	return m.mapLabeled(label, elem, parent, path)
}

func (m *mapper) connect(start, end *Node, relType string, props *Properties) *Relation {
	if props == nil {
		props = NewProperties()
	}
	if relType == "" {
		relType = m.g.RelationType(start, end, props)
	}
	if !m.cfg.Relations.Permits(relType) {
		return nil
	}
	return m.g.Connect(start, end, relType, props)
}

// finalize settles the node's merge keys once all of its children exist, so
// content hashes see the complete subtree.
func (m *mapper) finalize(n *Node) (*Node, error) {
	if !n.mergeKeysSet {
		label := n.PrimaryLabel()
		if keys, ok := m.cfg.MergeKeys[label]; ok {
			if err := m.declaredKeys(n, keys); err != nil {
				return nil, err
			}
		} else if spec, ok := m.hashSpec(label); ok {
			if err := assignHashID(n, spec, m.cfg.Identity); err != nil {
				return nil, err
			}
		}
	}
	if m.cfg.PostNodeHook != nil {
		m.cfg.PostNodeHook(n)
	}
	return n, nil
}

// declaredKeys sets keys as n's merge keys. A node carrying none of them
// gets a hash of its attributes instead, or fails under IdentityStrict.
func (m *mapper) declaredKeys(n *Node, keys []string) error {
	if len(n.props.Subset(keys)) > 0 {
		n.SetMergeKeys(keys...)
		return nil
	}
	if m.cfg.Identity == IdentityStrict {
		return &UnresolvableIdentityError{Labels: n.Labels()}
	}
	m.log.Debug("merge keys missing, hashing attributes",
		zap.Strings("labels", n.Labels()),
		zap.Strings("merge_keys", keys),
	)
	return assignHashID(n, HashSpec{Mode: AllAttributes}, m.cfg.Identity)
}

func (m *mapper) hashSpec(label string) (HashSpec, bool) {
	if s, ok := m.cfg.HashIDs[label]; ok {
		return s, true
	}
	if m.cfg.DefaultHash != nil {
		return *m.cfg.DefaultHash, true
	}
	return HashSpec{}, false
}

// assignHashID writes the generated merge key for n and makes it the only
// merge key.
func assignHashID(n *Node, spec HashSpec, policy IdentityPolicy) error {
	id, ok := identityHash(n, spec)
	if !ok {
		if policy == IdentityStrict {
			return &UnresolvableIdentityError{Labels: n.Labels()}
		}
		id = randomID()
	}
	n.props.Set(spec.key(), id)
	n.SetMergeKeys(spec.key())
	return nil
}

func concatScalars(v any, sep string) (string, bool) {
	list, ok := asList(v)
	if !ok {
		return "", false
	}
	parts := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := castValue(item, CastString)
		if !ok {
			return "", false
		}
		parts = append(parts, s.(string))
	}
	return strings.Join(parts, sep), true
}
