package dictgraph

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Paper struct {
	ID      string   `crud:"pk,property:id"`
	Title   string   `crud:"property:title"`
	Pages   *int     `crud:"property:pages"`
	Writers []Writer `crud:"child,property:Writer"`
	Draft   string   `crud:"-"`
	Notes   string
}

type Writer struct {
	ID        string     `crud:"pk,property:id"`
	Name      string     `crud:"property:name"`
	Joined    time.Time  `crud:"property:joined"`
	Institute *Institute `crud:"child"`
}

type Institute struct {
	Name    string `crud:"pk,property:name"`
	Country string `crud:"property:country"`
}

type Memo struct {
	Text string `crud:"property:text"`
}

func TestParseEntity(t *testing.T) {
	e, err := New(DefaultConfig())
	require.NoError(t, err)

	uni := &Institute{Name: "University 1", Country: "CH"}
	joined := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	paper := &Paper{
		ID:    "p1",
		Title: "On Graphs",
		Writers: []Writer{
			{ID: "w1", Name: "Ada", Joined: joined, Institute: uni},
			{ID: "w2", Name: "Grace", Institute: uni},
			{ID: "w3", Name: "Linus"},
		},
		Draft: "ignored",
		Notes: "ignored",
	}
	require.NoError(t, e.ParseEntity(paper))
	b := e.Batches()

	papers := nodeSet(t, b, "Paper")
	assert.Equal(t, []string{"id"}, papers.MergeKeys)
	assert.Equal(t, []map[string]any{{"id": "p1", "title": "On Graphs"}}, papers.Rows)

	writers := nodeSet(t, b, "Writer")
	assert.Equal(t, []string{"id"}, writers.MergeKeys)
	require.Len(t, writers.Rows, 3)
	assert.Equal(t, "2020-01-02T03:04:05Z", writers.Rows[0]["joined"])

	institutes := nodeSet(t, b, "Institute")
	assert.Equal(t, []string{"name"}, institutes.MergeKeys)
	assert.Equal(t, []map[string]any{{"name": "University 1", "country": "CH"}}, institutes.Rows)

	assert.ElementsMatch(t, []string{"Paper_HAS_Writer", "Writer_HAS_Writer", "Writer_HAS_Institute"}, relationTypes(b))
	assert.Len(t, relationSet(t, b, "Writer_HAS_Institute").Rows, 2)

	assert.NotContains(t, e.Config().MergeKeys, "Paper")
}

func TestParseEntity_KeysScopedToCall(t *testing.T) {
	e, err := New(DefaultConfig())
	require.NoError(t, err)

	require.NoError(t, e.ParseEntity(&Institute{Name: "U1", Country: "CH"}))
	assert.Equal(t, []string{"name"}, nodeSet(t, e.Batches(), "Institute").MergeKeys)
	assert.Empty(t, e.Config().MergeKeys)

	e.Reset()
	require.NoError(t, e.ParseJSON([]byte(`{"Institute": {"name": "U2", "country": "DE"}}`)))
	assert.Equal(t, []string{"country", "name"}, nodeSet(t, e.Batches(), "Institute").MergeKeys)

	cfg := DefaultConfig()
	cfg.HashIDs = map[string]HashSpec{"Institute": {Properties: []string{"missing"}}}
	cfg.Identity = IdentityStrict
	e, err = New(cfg)
	require.NoError(t, err)
	err = e.ParseEntity(&Paper{ID: "p1", Writers: []Writer{{ID: "w1", Institute: &Institute{Name: "U1"}}}})
	assert.ErrorIs(t, err, ErrUnresolvableIdentity)
	assert.Empty(t, e.Config().MergeKeys)
	assert.True(t, e.Batches().Empty())
}

func TestParseEntity_KeepsConfiguredIdentity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeKeys = map[string][]string{"Writer": {"name"}}
	cfg.HashIDs = map[string]HashSpec{"Institute": {}}
	e, err := New(cfg)
	require.NoError(t, err)

	require.NoError(t, e.ParseEntity(Paper{
		ID:      "p1",
		Writers: []Writer{{ID: "w1", Name: "Ada", Institute: &Institute{Name: "U1"}}},
	}))
	b := e.Batches()
	assert.Equal(t, []string{"name"}, nodeSet(t, b, "Writer").MergeKeys)
	assert.Equal(t, []string{DefaultHashKey}, nodeSet(t, b, "Institute").MergeKeys)
}

func TestParseEntity_Errors(t *testing.T) {
	e, err := New(DefaultConfig())
	require.NoError(t, err)

	err = e.ParseEntity(&Memo{Text: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no primary key ('pk') tag defined for struct Memo")

	var nilPaper *Paper
	assert.Error(t, e.ParseEntity(nilPaper))
	assert.Error(t, e.ParseEntity(42))
	assert.True(t, e.Batches().Empty())
}

func TestEntityScalar(t *testing.T) {
	type Level string
	pages := 12
	tests := []struct {
		in   any
		want any
	}{
		{Level("high"), "high"},
		{uint16(7), int64(7)},
		{float32(0.5), 0.5},
		{&pages, int64(12)},
		{(*int)(nil), nil},
		{map[string]int{"a": 1}, `{"a":1}`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, entityScalar(reflect.ValueOf(tt.in)), "%#v", tt.in)
	}
}

func TestParseTags(t *testing.T) {
	meta, err := entityMeta(reflect.TypeOf(&Paper{}))
	require.NoError(t, err)
	assert.Equal(t, "Paper", meta.Label)
	assert.Equal(t, "ID", meta.PKField)
	assert.Equal(t, "id", meta.PKProp)
	require.Len(t, meta.Fields, 4)
	assert.True(t, meta.Fields[3].Child)
	assert.Equal(t, "Writer", meta.Fields[3].Prop)

	cached, err := entityMeta(reflect.TypeOf(Paper{}))
	require.NoError(t, err)
	assert.Same(t, meta, cached)

	meta, err = parseTagsFromType(reflect.TypeOf(Memo{}))
	require.NoError(t, err)
	assert.Empty(t, meta.PKField)
}

func TestParseTags_Errors(t *testing.T) {
	type unexported struct {
		name string `crud:"property:name"`
	}
	type pkChild struct {
		W Writer `crud:"pk,child"`
	}
	type scalarChild struct {
		N int `crud:"child"`
	}
	type noProperty struct {
		N int `crud:"pk"`
	}
	type twoKeys struct {
		A string `crud:"pk,property:a"`
		B string `crud:"pk,property:b"`
	}

	tests := []struct {
		typ     reflect.Type
		wantErr string
	}{
		{reflect.TypeOf(unexported{}), "tagged but not exported"},
		{reflect.TypeOf(pkChild{}), "cannot be both 'pk' and 'child'"},
		{reflect.TypeOf(scalarChild{}), "must be a struct"},
		{reflect.TypeOf(noProperty{}), "missing 'property' tag component"},
		{reflect.TypeOf(twoKeys{}), "more than one primary key"},
		{reflect.TypeOf(0), "is not a struct"},
	}
	for _, tt := range tests {
		_, err := parseTagsFromType(tt.typ)
		require.Error(t, err, tt.typ.String())
		assert.Contains(t, err.Error(), tt.wantErr)
	}
}
