package dictgraph

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// entityField is one `crud`-tagged struct field.
type entityField struct {
	// Name is the struct field name.
	Name string
	// Prop is the node property, or for child fields the key the nested
	// entity is mapped under. Empty child keys fall back to the child's label.
	Prop  string
	Child bool
	Index []int
}

// entityMetadata holds the parsed `crud` tag information for a specific struct type.
// It is cached per type to avoid reflection on every call.
type entityMetadata struct {
	// Label is the graph node label, the struct's name.
	Label string
	// PKField is the name of the struct field marked as the primary key.
	PKField string
	// PKProp is the property name of the primary key in the database.
	PKProp string
	Fields []entityField
}

var entityMetaCache sync.Map

// entityMeta returns the cached metadata of typ, parsing it on first use.
func entityMeta(typ reflect.Type) (*entityMetadata, error) {
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if cached, ok := entityMetaCache.Load(typ); ok {
		return cached.(*entityMetadata), nil
	}
	meta, err := parseTagsFromType(typ)
	if err != nil {
		return nil, err
	}
	entityMetaCache.Store(typ, meta)
	return meta, nil
}

// parseTagsFromType inspects a struct type and extracts its `crud` tags:
//
//	ID      string   `crud:"pk,property:id"`
//	Title   string   `crud:"property:title"`
//	Authors []Author `crud:"child,property:author"`
//
// Untagged fields are ignored. A missing primary key is not an error here;
// callers that need one check PKField.
func parseTagsFromType(typ reflect.Type) (*entityMetadata, error) {
	// If the type is a pointer, get the underlying element's type.
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("type %s is not a struct", typ.Name())
	}

	meta := &entityMetadata{Label: typ.Name()}

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		tag := field.Tag.Get("crud")

		// Skip fields that are not part of the mapping.
		if tag == "" || tag == "-" {
			continue
		}

		if !field.IsExported() {
			return nil, fmt.Errorf("field %s is tagged but not exported", field.Name)
		}

		f := entityField{Name: field.Name, Index: field.Index}
		isPk := false
		for _, part := range strings.Split(tag, ",") {
			part = strings.TrimSpace(part)
			switch {
			case part == "pk":
				isPk = true
			case part == "child":
				f.Child = true
			case strings.HasPrefix(part, "property:"):
				f.Prop = strings.TrimPrefix(part, "property:")
			}
		}

		if f.Child {
			if isPk {
				return nil, fmt.Errorf("field %s cannot be both 'pk' and 'child'", field.Name)
			}
			if !isEntityType(field.Type) {
				return nil, fmt.Errorf("child field %s must be a struct, a pointer to one or a slice of them", field.Name)
			}
		} else if f.Prop == "" {
			return nil, fmt.Errorf("field %s is missing 'property' tag component", field.Name)
		}

		if isPk {
			if meta.PKField != "" {
				return nil, fmt.Errorf("struct %s has more than one primary key", typ.Name())
			}
			meta.PKField = field.Name
			meta.PKProp = f.Prop
		}
		meta.Fields = append(meta.Fields, f)
	}

	return meta, nil
}

func isEntityType(t reflect.Type) bool {
	if t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		t = t.Elem()
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}
