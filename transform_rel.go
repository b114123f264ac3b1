package dictgraph

// OverrideType replaces the relation type.
type OverrideType struct {
	Type string
}

// TransformRelation sets the relation type to Type.
func (t OverrideType) TransformRelation(_ *Graph, r *Relation) error {
	r.relType = t.Type
	return nil
}

// RenameRelationProperty renames a relation property, keeping its value.
type RenameRelationProperty struct {
	From string
	To   string
}

// TransformRelation renames From to To.
func (t RenameRelationProperty) TransformRelation(_ *Graph, r *Relation) error {
	r.props.Rename(t.From, t.To)
	return nil
}

// RemoveRelationProperty drops relation properties.
type RemoveRelationProperty struct {
	Names []string
}

// TransformRelation drops the named properties.
func (t RemoveRelationProperty) TransformRelation(_ *Graph, r *Relation) error {
	for _, name := range t.Names {
		r.props.Delete(name)
	}
	return nil
}

// CastRelationProperty coerces a relation property to Kind.
type CastRelationProperty struct {
	Property   string
	Kind       CastKind
	Permissive bool
}

// TransformRelation casts the property in place.
//
// Returns:
//   - A *CastError if the value cannot be cast and Permissive is not set.
func (t CastRelationProperty) TransformRelation(_ *Graph, r *Relation) error {
	return castProperty(r.props, t.Property, t.Kind, t.Permissive)
}

// RemoveRelation tombstones the relation. Its endpoints stay.
type RemoveRelation struct{}

// TransformRelation tombstones the relation.
func (RemoveRelation) TransformRelation(_ *Graph, r *Relation) error {
	r.Delete()
	return nil
}
