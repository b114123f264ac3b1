package dictgraph

import (
	"fmt"
	"reflect"
	"time"
)

// ParseEntity parses a `crud`-tagged struct (or pointer to one) the way Parse
// parses a document. The struct's name is the root label and its primary key
// becomes the label's merge key for this call, unless the configuration
// already identifies that label. Child fields are mapped as nested entities
// under their property name, or under the child's type name when the tag
// gives none, and that key is the label their primary key applies to.
// The engine's configuration is left unchanged.
func (e *Engine) ParseEntity(entity any) error {
	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return fmt.Errorf("entity must be a non-nil pointer")
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return fmt.Errorf("entity must be a struct")
	}
	meta, err := entityMeta(v.Type())
	if err != nil {
		return err
	}
	if meta.PKField == "" {
		return fmt.Errorf("no primary key ('pk') tag defined for struct %s", meta.Label)
	}

	keys := make(map[string]string)
	obj, err := entityObject(v, meta, meta.Label, keys)
	if err != nil {
		return err
	}
	return e.parse(obj, meta.Label, withEntityKeys(e.cfg, keys))
}

// withEntityKeys returns cfg with a merge key for every label in keys that
// cfg does not identify yet. cfg's own maps are not modified.
func withEntityKeys(cfg Config, keys map[string]string) Config {
	mergeKeys := make(map[string][]string, len(cfg.MergeKeys)+len(keys))
	for label, k := range cfg.MergeKeys {
		mergeKeys[label] = k
	}
	for label, pk := range keys {
		if _, ok := mergeKeys[label]; ok {
			continue
		}
		if _, ok := cfg.HashIDs[label]; ok {
			continue
		}
		mergeKeys[label] = []string{pk}
	}
	cfg.MergeKeys = mergeKeys
	return cfg
}

// entityObject converts a tagged struct value mapped under label into the map
// the mapper walks. keys collects label -> primary key property for every
// entity met.
func entityObject(v reflect.Value, meta *entityMetadata, label string, keys map[string]string) (map[string]any, error) {
	if meta.PKProp != "" {
		keys[label] = meta.PKProp
	}
	obj := make(map[string]any, len(meta.Fields))
	for _, f := range meta.Fields {
		fv := v.FieldByIndex(f.Index)
		if !f.Child {
			obj[f.Prop] = entityScalar(fv)
			continue
		}
		key, child, err := entityChild(f, fv, keys)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		if child != nil {
			obj[key] = child
		}
	}
	return obj, nil
}

// entityChild converts a child field and returns the key it is mapped under.
func entityChild(f entityField, fv reflect.Value, keys map[string]string) (string, any, error) {
	isList := fv.Kind() == reflect.Slice || fv.Kind() == reflect.Array
	typ := fv.Type()
	if isList {
		typ = typ.Elem()
	}
	meta, err := entityMeta(typ)
	if err != nil {
		return "", nil, err
	}
	key := f.Prop
	if key == "" {
		key = meta.Label
	}

	if !isList {
		item, err := entityStruct(fv, key, keys)
		if err != nil || item == nil {
			return key, nil, err
		}
		return key, item, nil
	}
	if fv.Kind() == reflect.Slice && fv.IsNil() {
		return key, nil, nil
	}
	list := make([]any, 0, fv.Len())
	for i := 0; i < fv.Len(); i++ {
		item, err := entityStruct(fv.Index(i), key, keys)
		if err != nil {
			return "", nil, err
		}
		if item != nil {
			list = append(list, item)
		}
	}
	return key, list, nil
}

func entityStruct(v reflect.Value, label string, keys map[string]string) (map[string]any, error) {
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, nil
		}
		v = v.Elem()
	}
	meta, err := entityMeta(v.Type())
	if err != nil {
		return nil, err
	}
	return entityObject(v, meta, label, keys)
}

// entityScalar unwraps pointers and renders values the property map cannot
// hold as scalars: times as RFC 3339, anything else as canonical JSON.
func entityScalar(fv reflect.Value) any {
	for fv.Kind() == reflect.Ptr {
		if fv.IsNil() {
			return nil
		}
		fv = fv.Elem()
	}
	x := fv.Interface()
	if t, ok := x.(time.Time); ok {
		return t.UTC().Format(time.RFC3339Nano)
	}
	switch fv.Kind() {
	case reflect.String:
		return fv.String()
	case reflect.Bool:
		return fv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return normalizeUint(fv.Uint())
	case reflect.Float32, reflect.Float64:
		return fv.Float()
	}
	if l, ok := asList(x); ok {
		return l
	}
	return string(canonicalJSON(x))
}
