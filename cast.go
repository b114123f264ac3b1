package dictgraph

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CastKind is the target type of a property cast.
type CastKind int

const (
	// CastString formats numbers and bools as text.
	CastString CastKind = iota
	// CastInt accepts integers, whole floats, bools and integer strings.
	CastInt
	// CastFloat accepts numbers and numeric strings.
	CastFloat
	// CastBool accepts bools, 0 and 1, and the tokens of boolTokens.
	CastBool
)

var castKindNames = map[CastKind]string{
	CastString: "string",
	CastInt:    "int",
	CastFloat:  "float",
	CastBool:   "bool",
}

// String returns the name used for the kind in YAML configuration.
func (k CastKind) String() string {
	if s, ok := castKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("CastKind(%d)", int(k))
}

// boolTokens is the explicit truthy/falsy table used when casting strings
// to bool. Anything else is a cast error.
var boolTokens = map[string]bool{
	"true": true, "t": true, "yes": true, "y": true, "on": true, "1": true,
	"false": false, "f": false, "no": false, "n": false, "off": false, "0": false,
}

func castValue(v any, kind CastKind) (any, bool) {
	v, ok := normalizeScalar(v)
	if !ok {
		return nil, false
	}
	switch kind {
	case CastString:
		switch x := v.(type) {
		case string:
			return x, true
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64), true
		default:
			return fmt.Sprint(x), true
		}
	case CastInt:
		switch x := v.(type) {
		case int64:
			return x, true
		case float64:
			if x != math.Trunc(x) || math.IsInf(x, 0) || math.IsNaN(x) || x < -(1<<63) || x >= 1<<63 {
				return nil, false
			}
			return int64(x), true
		case bool:
			if x {
				return int64(1), true
			}
			return int64(0), true
		case string:
			i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
			if err != nil {
				return nil, false
			}
			return i, true
		}
	case CastFloat:
		switch x := v.(type) {
		case int64:
			return float64(x), true
		case float64:
			return x, true
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
			if err != nil {
				return nil, false
			}
			return f, true
		}
	case CastBool:
		switch x := v.(type) {
		case bool:
			return x, true
		case int64:
			if x == 0 || x == 1 {
				return x == 1, true
			}
		case string:
			b, ok := boolTokens[strings.ToLower(strings.TrimSpace(x))]
			return b, ok
		}
	}
	return nil, false
}

// castProperty casts props[name] in place. Missing properties are left alone.
// With permissive set, values that cannot be cast are left unchanged.
func castProperty(props *Properties, name string, kind CastKind, permissive bool) error {
	v, ok := props.Get(name)
	if !ok {
		return nil
	}
	out, ok := castValue(v, kind)
	if !ok {
		if permissive {
			return nil
		}
		return &CastError{Property: name, Value: v, Target: kind}
	}
	props.Set(name, out)
	return nil
}
