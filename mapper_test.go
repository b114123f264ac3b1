package dictgraph

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseBatches(t *testing.T, cfg Config, doc string, rootLabel ...string) *Batches {
	t.Helper()
	e, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, e.ParseJSON([]byte(doc), rootLabel...))
	return e.Batches()
}

func nodeSet(t *testing.T, b *Batches, labels ...string) NodeSet {
	t.Helper()
	for _, ns := range b.Nodes {
		if labelSetKey(ns.Labels) == labelSetKey(labels) {
			return ns
		}
	}
	t.Fatalf("no node set labeled %v", labels)
	return NodeSet{}
}

func relationSet(t *testing.T, b *Batches, relType string) RelationSet {
	t.Helper()
	for _, rs := range b.Relations {
		if rs.Type == relType {
			return rs
		}
	}
	t.Fatalf("no relation set of type %s", relType)
	return RelationSet{}
}

func relationTypes(b *Batches) []string {
	var out []string
	for _, rs := range b.Relations {
		out = append(out, rs.Type)
	}
	return out
}

func TestMapper_FlatObject(t *testing.T) {
	b := parseBatches(t, DefaultConfig(), `{"person": {"firstname": "Wolfgang", "lastname": "Pauli", "age": 34}}`)

	require.Len(t, b.Nodes, 1)
	assert.Equal(t, []string{"person"}, b.Nodes[0].Labels)
	assert.Equal(t, []map[string]any{{"firstname": "Wolfgang", "lastname": "Pauli", "age": int64(34)}}, b.Nodes[0].Rows)
	assert.Equal(t, []string{"age", "firstname", "lastname"}, b.Nodes[0].MergeKeys)
	assert.Empty(t, b.Relations)
}

func TestMapper_RootLabel(t *testing.T) {
	doc := `{"name": "Holden", "stationed": {"ship": {"name": "Zheng Fei"}}}`

	t.Run("relation key names the relation", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.RelationKeys = []string{"stationed"}
		b := parseBatches(t, cfg, doc, "Person")

		require.Len(t, b.Nodes, 2)
		assert.Equal(t, []map[string]any{{"name": "Holden"}}, nodeSet(t, b, "Person").Rows)
		assert.Equal(t, []map[string]any{{"name": "Zheng Fei"}}, nodeSet(t, b, "ship").Rows)

		require.Len(t, b.Relations, 1)
		rs := b.Relations[0]
		assert.Equal(t, "stationed", rs.Type)
		assert.Equal(t, []string{"Person"}, rs.StartLabels)
		assert.Equal(t, []string{"ship"}, rs.EndLabels)
		require.Len(t, rs.Rows, 1)
		assert.Equal(t, map[string]any{"name": "Holden"}, rs.Rows[0].Start)
		assert.Equal(t, map[string]any{"name": "Zheng Fei"}, rs.Rows[0].End)
	})

	t.Run("default naming keeps the wrapper as a node", func(t *testing.T) {
		b := parseBatches(t, DefaultConfig(), doc, "Person")

		require.Len(t, b.Nodes, 3)
		assert.ElementsMatch(t, []string{"Person_HAS_stationed", "stationed_HAS_ship"}, relationTypes(b))
	})

	t.Run("scalar root", func(t *testing.T) {
		b := parseBatches(t, DefaultConfig(), `"Holden"`, "Name")
		assert.Equal(t, []map[string]any{{"Name": "Holden"}}, nodeSet(t, b, "Name").Rows)
	})
}

func TestMapper_ListPositions(t *testing.T) {
	b := parseBatches(t, DefaultConfig(), `{"pupils": [{"age": 34}, {"age": 123}, {"age": 147}]}`)

	hub := nodeSet(t, b, "pupils", DefaultHubLabel)
	require.Len(t, hub.Rows, 1)
	assert.Equal(t, []string{DefaultHashKey}, hub.MergeKeys)
	assert.NotEmpty(t, hub.Rows[0][DefaultHashKey])

	assert.Len(t, nodeSet(t, b, "pupils").Rows, 3)

	rs := relationSet(t, b, "pupils_HAS_pupils")
	require.Len(t, rs.Rows, 3)
	for i, row := range rs.Rows {
		assert.Equal(t, int64(i), row.Properties[DefaultPositionKey])
		assert.Equal(t, []int64{34, 123, 147}[i], row.End["age"])
	}
}

func TestMapper_EmptyObject(t *testing.T) {
	b := parseBatches(t, DefaultConfig(), `{"nothing": {}}`)

	require.Len(t, b.Nodes, 1)
	assert.Equal(t, []string{"nothing"}, b.Nodes[0].Labels)
	assert.Equal(t, []map[string]any{{}}, b.Nodes[0].Rows)
	assert.Empty(t, b.Nodes[0].MergeKeys)
	assert.Empty(t, b.Relations)
}

func TestMapper_EmptyBranches(t *testing.T) {
	b := parseBatches(t, DefaultConfig(), `{"person": {"name": "x", "tags": [], "nick": "", "boss": null}}`)

	require.Len(t, b.Nodes, 1)
	assert.Equal(t, []map[string]any{{"name": "x", "nick": ""}}, b.Nodes[0].Rows)

	cfg := DefaultConfig()
	cfg.KeepEmptyLists = true
	b = parseBatches(t, cfg, `{"person": {"name": "x", "tags": []}}`)
	assert.Len(t, nodeSet(t, b, "tags", DefaultHubLabel).Rows, 1)
	assert.Equal(t, []string{"person_HAS_tags"}, relationTypes(b))
}

func TestMapper_HubIdentity(t *testing.T) {
	one := `{"Article": {"Authors": [{"affiliation": [{"name": "University 1"}]}]}}`
	two := `{"Article": {"Authors": [{"affiliation": [{"name": "University 1"}, {"name": "University 2"}]}]}}`

	hubIDs := func(docs ...string) []any {
		e, err := New(DefaultConfig())
		require.NoError(t, err)
		for _, doc := range docs {
			require.NoError(t, e.ParseJSON([]byte(doc)))
		}
		var ids []any
		for _, row := range nodeSet(t, e.Batches(), "affiliation", DefaultHubLabel).Rows {
			ids = append(ids, row[DefaultHashKey])
		}
		return ids
	}

	assert.Len(t, hubIDs(one, one), 1)
	ids := hubIDs(one, two)
	require.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])
}

func TestMapper_ListShapes(t *testing.T) {
	t.Run("collapse singleton", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.CollapseSingletonLists = true
		b := parseBatches(t, cfg, `{"book": {"title": "x", "tags": [{"name": "go"}]}}`)

		require.Len(t, b.Nodes, 2)
		assert.Equal(t, []map[string]any{{"name": "go"}}, nodeSet(t, b, "tags").Rows)
		assert.Equal(t, []string{"book_HAS_tags"}, relationTypes(b))
	})

	t.Run("unwrap single key items", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.UnwrapListItems = []string{"vehicles"}
		b := parseBatches(t, cfg, `{"vehicles": [{"Car": {"model": "T"}}, {"Bike": {"gears": 3}}]}`)

		assert.Equal(t, []map[string]any{{"model": "T"}}, nodeSet(t, b, "Car").Rows)
		assert.Equal(t, []map[string]any{{"gears": int64(3)}}, nodeSet(t, b, "Bike").Rows)
		assert.Equal(t, int64(1), relationSet(t, b, "vehicles_HAS_Bike").Rows[0].Properties[DefaultPositionKey])
	})

	t.Run("hub blocked attaches items to parent", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Hubs = Filter{Block: []string{"pupils"}}
		b := parseBatches(t, cfg, `{"class": {"room": 1, "pupils": [{"age": 1}, {"age": 2}]}}`)

		require.Len(t, b.Nodes, 2)
		rs := relationSet(t, b, "class_HAS_pupils")
		assert.Len(t, rs.Rows, 2)
		assert.Equal(t, int64(1), rs.Rows[1].Properties[DefaultPositionKey])
	})

	t.Run("scalar list items", func(t *testing.T) {
		b := parseBatches(t, DefaultConfig(), `{"book": {"tags": ["a", "b"]}}`)

		assert.Equal(t, []map[string]any{{"tags": "a"}, {"tags": "b"}}, nodeSet(t, b, "tags").Rows)
		assert.Equal(t, []string{"tags"}, nodeSet(t, b, "tags").MergeKeys)
	})
}

func TestMapper_PromotionAndConcatenation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Promotions = []Promotion{{Label: "book", Property: "isbn"}}
	cfg.Concatenations = []Concatenation{{Label: "book", Property: "keywords", Separator: ";"}}
	b := parseBatches(t, cfg, `{"book": {"title": "Go", "isbn": "123", "keywords": ["a", "b"]}}`)

	assert.Equal(t, []map[string]any{{"title": "Go", "keywords": "a;b"}}, nodeSet(t, b, "book").Rows)
	assert.Equal(t, []map[string]any{{"isbn": "123"}}, nodeSet(t, b, "isbn").Rows)
	assert.Equal(t, []string{"book_HAS_isbn"}, relationTypes(b))

	cfg.Promotions[0].Copy = true
	b = parseBatches(t, cfg, `{"book": {"title": "Go", "isbn": "123"}}`)
	assert.Equal(t, "123", nodeSet(t, b, "book").Rows[0]["isbn"])
}

func TestMapper_Filters(t *testing.T) {
	doc := `{"person": {"name": "Holden", "age": 40, "secret": {"code": 1}, "ship": {"name": "Roci"}}}`

	t.Run("blocked label skips the branch", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Nodes = Filter{Block: []string{"secret"}}
		b := parseBatches(t, cfg, doc)
		assert.Len(t, b.Nodes, 2)
		assert.Equal(t, []string{"person_HAS_ship"}, relationTypes(b))
	})

	t.Run("allowed labels", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Nodes = Filter{Allow: []string{"person", "ship"}}
		b := parseBatches(t, cfg, doc)
		assert.Len(t, b.Nodes, 2)
	})

	t.Run("blocked relation", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Relations = Filter{Block: []string{"person_HAS_secret"}}
		b := parseBatches(t, cfg, doc)
		assert.Len(t, b.Nodes, 3)
		assert.Equal(t, []string{"person_HAS_ship"}, relationTypes(b))
	})

	t.Run("property allow list", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Properties = map[string]Filter{"person": {Allow: []string{"name"}}}
		b := parseBatches(t, cfg, doc)
		assert.Equal(t, []map[string]any{{"name": "Holden"}}, nodeSet(t, b, "person").Rows)
	})
}

func TestMapper_Naming(t *testing.T) {
	doc := `{"person": {"name": "Holden", "ship": {"name": "Roci"}}}`

	t.Run("label overrides", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.LabelOverrides = map[string]string{"person": "Person", "ship": "Ship"}
		b := parseBatches(t, cfg, doc)
		assert.Equal(t, []string{"Person_HAS_Ship"}, relationTypes(b))
	})

	t.Run("label namer", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.LabelNamer = func(key string, _ *Node) string { return strings.ToUpper(key) }
		b := parseBatches(t, cfg, doc)
		assert.Equal(t, []string{"PERSON_HAS_SHIP"}, relationTypes(b))
	})

	t.Run("relation type rule", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.RelationTypes = []RelationTypeRule{{Parent: "person", Child: "ship", Type: "CAPTAIN_OF"}}
		b := parseBatches(t, cfg, doc)
		assert.Equal(t, []string{"CAPTAIN_OF"}, relationTypes(b))
	})

	t.Run("relation namer", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.RelationNamer = func(start, end *Node, _ *Properties) string {
			return strings.ToUpper(end.PrimaryLabel())
		}
		b := parseBatches(t, cfg, doc)
		assert.Equal(t, []string{"SHIP"}, relationTypes(b))
	})
}

func TestMapper_Hooks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PreNodeHook = func(label string, value any) (any, bool) {
		return value, label != "secret"
	}
	cfg.PostNodeHook = func(n *Node) { n.AddLabel("Seen") }
	b := parseBatches(t, cfg, `{"person": {"name": "x", "secret": {"code": 1}}}`)

	require.Len(t, b.Nodes, 1)
	assert.Equal(t, []string{"person", "Seen"}, b.Nodes[0].Labels)
}

func TestMapper_Identity(t *testing.T) {
	doc := `{"person": {"firstname": "Wolfgang", "lastname": "Pauli", "age": 34}}`

	t.Run("merge keys", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.MergeKeys = map[string][]string{"person": {"lastname"}}
		b := parseBatches(t, cfg, doc)
		assert.Equal(t, []string{"lastname"}, b.Nodes[0].MergeKeys)
	})

	t.Run("missing merge keys fall back to an attribute hash", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.MergeKeys = map[string][]string{"person": {"name"}}
		b := parseBatches(t, cfg, `{"a": {"person": {"age": 1}}, "b": {"person": {"age": 2}}, "c": {"person": {"name": "Ada"}}}`)

		ns := nodeSet(t, b, "person")
		assert.Equal(t, []string{DefaultHashKey, "name"}, ns.MergeKeys)
		require.Len(t, ns.Rows, 3)
		assert.Equal(t, HashValues([]string{"person"}, "age", int64(1)), ns.Rows[0][DefaultHashKey])
		assert.Equal(t, int64(2), ns.Rows[1]["age"])
		assert.Equal(t, map[string]any{"name": "Ada"}, ns.Rows[2])

		rows := relationSet(t, b, "a_HAS_person").Rows
		require.Len(t, rows, 1)
		assert.Equal(t, map[string]any{DefaultHashKey: ns.Rows[0][DefaultHashKey]}, rows[0].End)
	})

	t.Run("missing merge keys under strict identity", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.MergeKeys = map[string][]string{"person": {"name"}}
		cfg.Identity = IdentityStrict
		e, err := New(cfg)
		require.NoError(t, err)
		err = e.ParseJSON([]byte(`{"a": {"person": {"age": 1}}}`))
		assert.ErrorIs(t, err, ErrUnresolvableIdentity)
		assert.True(t, e.Batches().Empty())
	})

	t.Run("hash of all attributes", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.HashIDs = map[string]HashSpec{"person": {Mode: AllAttributes}}
		b := parseBatches(t, cfg, doc)

		want := HashValues([]string{"person"}, "age", int64(34), "firstname", "Wolfgang", "lastname", "Pauli")
		assert.Equal(t, want, b.Nodes[0].Rows[0][DefaultHashKey])
		assert.Equal(t, []string{DefaultHashKey}, b.Nodes[0].MergeKeys)
	})

	t.Run("hash of selected attributes", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.HashIDs = map[string]HashSpec{"person": {Properties: []string{"lastname"}, Key: "uid"}}
		b := parseBatches(t, cfg, doc)

		assert.Equal(t, HashValues([]string{"person"}, "lastname", "Pauli"), b.Nodes[0].Rows[0]["uid"])
		assert.Equal(t, []string{"uid"}, b.Nodes[0].MergeKeys)
	})

	t.Run("outer content separates equal children", func(t *testing.T) {
		doc := `{"a": {"x": 1, "c": {"v": 1}}, "b": {"x": 2, "c": {"v": 1}}}`

		cfg := DefaultConfig()
		cfg.HashIDs = map[string]HashSpec{"c": {Mode: AllAttributes}}
		assert.Len(t, nodeSet(t, parseBatches(t, cfg, doc), "c").Rows, 1)

		cfg.HashIDs = map[string]HashSpec{"c": {Mode: OuterContent}}
		assert.Len(t, nodeSet(t, parseBatches(t, cfg, doc), "c").Rows, 2)
	})

	t.Run("inner content covers the subtree", func(t *testing.T) {
		doc := `{"a": [{"name": "x", "c": {"v": 1}}, {"name": "x", "c": {"v": 2}}]}`

		cfg := DefaultConfig()
		cfg.Hubs = Filter{Block: []string{"a"}}
		cfg.HashIDs = map[string]HashSpec{"a": {Mode: AllAttributes}}
		assert.Len(t, nodeSet(t, parseBatches(t, cfg, doc), "a").Rows, 1)

		cfg.HashIDs = map[string]HashSpec{"a": {Mode: InnerContent}}
		assert.Len(t, nodeSet(t, parseBatches(t, cfg, doc), "a").Rows, 2)
	})

	t.Run("nothing to hash", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.DefaultHash = &HashSpec{Mode: AllContent}

		b := parseBatches(t, cfg, `{"nothing": {}}`)
		id, ok := b.Nodes[0].Rows[0][DefaultHashKey].(string)
		require.True(t, ok)
		assert.Len(t, id, 36)

		cfg.Identity = IdentityStrict
		e, err := New(cfg)
		require.NoError(t, err)
		err = e.ParseJSON([]byte(`{"nothing": {}}`))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnresolvableIdentity))

		var idErr *UnresolvableIdentityError
		require.ErrorAs(t, err, &idErr)
		assert.Equal(t, []string{"nothing"}, idErr.Labels)
	})
}

func TestMapper_MalformedInput(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		path string
	}{
		{name: "scalar document", doc: `42`, path: "$"},
		{name: "scalar in top-level list", doc: `[{"a": {"x": 1}}, 7]`, path: "$[1]"},
		{name: "scalar under relation key", doc: `{"p": {"stationed": [5]}}`, path: "$.p.stationed[0]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.RelationKeys = []string{"stationed"}
			e, err := New(cfg)
			require.NoError(t, err)

			err = e.ParseJSON([]byte(tc.doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedInput))

			var mErr *MalformedInputError
			require.ErrorAs(t, err, &mErr)
			assert.Equal(t, tc.path, mErr.Path)
		})
	}
}
