package dictgraph

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Properties is an insertion-ordered map of scalar property values used by
// both nodes and relations. Assigning nil removes the key.
type Properties struct {
	keys   []string
	values map[string]any
}

// NewProperties returns an empty property map.
func NewProperties() *Properties {
	return &Properties{values: make(map[string]any)}
}

// PropertiesFrom builds a property map from m, visiting keys in sorted order.
func PropertiesFrom(m map[string]any) *Properties {
	p := NewProperties()
	for _, k := range sortedKeys(m) {
		p.Set(k, m[k])
	}
	return p
}

// Set stores value under key. A nil value deletes the key. Non-scalar values
// are stored as their canonical JSON text. Re-setting an existing key keeps its
// position.
func (p *Properties) Set(key string, value any) {
	if value == nil {
		p.Delete(key)
		return
	}
	v, ok := normalizeScalar(value)
	if !ok {
		v = string(canonicalJSON(value))
	}
	if _, exists := p.values[key]; !exists {
		p.keys = append(p.keys, key)
	}
	p.values[key] = v
}

// Get returns the value stored under key.
func (p *Properties) Get(key string) (any, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Has reports whether key is present.
func (p *Properties) Has(key string) bool {
	_, ok := p.values[key]
	return ok
}

// Delete removes key. Missing keys are ignored.
func (p *Properties) Delete(key string) {
	if _, ok := p.values[key]; !ok {
		return
	}
	delete(p.values, key)
	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			break
		}
	}
}

// Rename moves the value stored under from to to, keeping its position.
// It reports whether from existed. An existing value under to is replaced.
func (p *Properties) Rename(from, to string) bool {
	v, ok := p.values[from]
	if !ok || from == to {
		return ok
	}
	if _, exists := p.values[to]; exists {
		p.Delete(to)
	}
	delete(p.values, from)
	p.values[to] = v
	for i, k := range p.keys {
		if k == from {
			p.keys[i] = to
			break
		}
	}
	return true
}

// Keys returns the property names in insertion order.
func (p *Properties) Keys() []string {
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Len returns the number of properties.
func (p *Properties) Len() int { return len(p.keys) }

// Map returns a copy of the properties as a plain map.
func (p *Properties) Map() map[string]any {
	out := make(map[string]any, len(p.keys))
	for _, k := range p.keys {
		out[k] = p.values[k]
	}
	return out
}

// Clone returns an independent copy.
func (p *Properties) Clone() *Properties {
	c := NewProperties()
	for _, k := range p.keys {
		c.Set(k, p.values[k])
	}
	return c
}

// Subset returns the values of the listed keys that are present.
func (p *Properties) Subset(keys []string) map[string]any {
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := p.values[k]; ok {
			out[k] = v
		}
	}
	return out
}

func (p *Properties) String() string {
	if len(p.keys) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(p.keys))
	for _, k := range p.keys {
		v := p.values[k]
		if s, ok := v.(string); ok {
			parts = append(parts, fmt.Sprintf("%s: %q", k, s))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %v", k, v))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// normalizeScalar converts every supported scalar into string, bool, int64 or
// float64 so equal values compare and hash equally.
func normalizeScalar(v any) (any, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case bool:
		return x, true
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		return normalizeUint(uint64(x)), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		return normalizeUint(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, true
		}
		if f, err := x.Float64(); err == nil {
			return f, true
		}
		return x.String(), true
	}
	return nil, false
}

// normalizeUint keeps values above math.MaxInt64 as decimal strings.
func normalizeUint(x uint64) any {
	if x > math.MaxInt64 {
		return strconv.FormatUint(x, 10)
	}
	return int64(x)
}

func isScalar(v any) bool {
	_, ok := normalizeScalar(v)
	return ok
}

// isEmpty reports the values the mapper treats as "no node": nil, the empty
// string and empty lists.
func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	if l, ok := asList(v); ok {
		return len(l) == 0
	}
	return false
}

func asObject(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

func asList(v any) ([]any, bool) {
	if l, ok := v.([]any); ok {
		return l, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
