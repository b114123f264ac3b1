package dictgraph

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProperties(t *testing.T) {
	p := NewProperties()
	p.Set("b", 1)
	p.Set("a", json.Number("2.5"))
	p.Set("c", "x")
	p.Set("b", uint8(3))

	assert.Equal(t, []string{"b", "a", "c"}, p.Keys())
	assert.Equal(t, map[string]any{"b": int64(3), "a": 2.5, "c": "x"}, p.Map())

	p.Set("c", nil)
	assert.False(t, p.Has("c"))
	assert.Equal(t, 2, p.Len())

	require.True(t, p.Rename("b", "z"))
	assert.Equal(t, []string{"z", "a"}, p.Keys())
	assert.False(t, p.Rename("missing", "y"))

	p.Set("list", []any{1, "two"})
	v, _ := p.Get("list")
	assert.Equal(t, `[1,"two"]`, v)

	c := p.Clone()
	c.Delete("z")
	assert.True(t, p.Has("z"))
	assert.Equal(t, map[string]any{"a": 2.5}, p.Subset([]string{"a", "nope"}))
	assert.Equal(t, `{z: 3, a: 2.5, list: "[1,\"two\"]"}`, p.String())
}

func TestProperties_UnsignedRange(t *testing.T) {
	p := NewProperties()
	p.Set("max", uint64(math.MaxUint64))
	p.Set("edge", uint64(math.MaxInt64))
	p.Set("small", uint(7))

	assert.Equal(t, map[string]any{
		"max":   "18446744073709551615",
		"edge":  int64(math.MaxInt64),
		"small": int64(7),
	}, p.Map())
}

func TestPropertiesFrom(t *testing.T) {
	p := PropertiesFrom(map[string]any{"b": 1, "a": 2})
	assert.Equal(t, []string{"a", "b"}, p.Keys())
	assert.Equal(t, "{}", NewProperties().String())
}

func TestProperties_RenameOntoExisting(t *testing.T) {
	p := PropertiesFrom(map[string]any{"a": 1, "b": 2})
	require.True(t, p.Rename("a", "b"))
	assert.Equal(t, []string{"b"}, p.Keys())
	assert.Equal(t, map[string]any{"b": int64(1)}, p.Map())
}

func TestCastValue(t *testing.T) {
	tests := []struct {
		in   any
		kind CastKind
		want any
		ok   bool
	}{
		{"42", CastInt, int64(42), true},
		{" 7 ", CastInt, int64(7), true},
		{4.0, CastInt, int64(4), true},
		{4.5, CastInt, nil, false},
		{1e20, CastInt, nil, false},
		{-1e20, CastInt, nil, false},
		{float64(1 << 63), CastInt, nil, false},
		{float64(-1 << 63), CastInt, int64(math.MinInt64), true},
		{uint64(math.MaxUint64), CastInt, nil, false},
		{true, CastInt, int64(1), true},
		{"x", CastInt, nil, false},
		{int64(2), CastFloat, 2.0, true},
		{"1.5", CastFloat, 1.5, true},
		{1.5, CastString, "1.5", true},
		{int64(3), CastString, "3", true},
		{"yes", CastBool, true, true},
		{"Off", CastBool, false, true},
		{int64(1), CastBool, true, true},
		{int64(2), CastBool, nil, false},
		{"maybe", CastBool, nil, false},
		{[]any{1}, CastString, nil, false},
	}

	for _, tt := range tests {
		got, ok := castValue(tt.in, tt.kind)
		assert.Equal(t, tt.ok, ok, "%v to %s", tt.in, tt.kind)
		if tt.ok {
			assert.Equal(t, tt.want, got, "%v to %s", tt.in, tt.kind)
		}
	}
}

func TestNodeLabels(t *testing.T) {
	g := NewGraph()
	n := g.NewNode([]string{"A", "B", "A"}, nil, nil)
	assert.Equal(t, []string{"A", "B"}, n.Labels())

	assert.True(t, n.ReplaceLabel("A", "B"))
	assert.Equal(t, []string{"B"}, n.Labels())
	assert.False(t, n.RemoveLabel("C"))

	n.Properties().Set("k", "v")
	assert.Equal(t, "v", n.ID())
	n.Properties().Set("j", 1)
	assert.Equal(t, HashValues("k", "v", "j", int64(1)), n.ID())
	assert.Equal(t, `(:B {k: "v", j: 1})`, n.String())
}
