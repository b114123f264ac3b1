package dictgraph

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults applied by DefaultConfig and to zero fields of loaded configs.
const (
	DefaultHubLabel    = "CollectionHub"
	DefaultPositionKey = "position"
)

// Filter is an allow list or a block list of names. Populating both is a
// configuration conflict.
type Filter struct {
	Allow []string `yaml:"allow"`
	Block []string `yaml:"block"`
}

// Permits reports whether name passes the filter. An empty filter permits
// everything.
func (f Filter) Permits(name string) bool {
	if len(f.Allow) > 0 {
		return contains(f.Allow, name)
	}
	return !contains(f.Block, name)
}

func (f Filter) validate(category string) error {
	if len(f.Allow) > 0 && len(f.Block) > 0 {
		return &ConfigurationConflictError{Category: category, Msg: "allow and block lists are mutually exclusive"}
	}
	return nil
}

// Promotion extracts a scalar property into its own child node labeled by
// the property key.
type Promotion struct {
	Label    string `yaml:"label"`
	Property string `yaml:"property"`
	// Copy keeps the property on the parent as well.
	Copy bool `yaml:"copy"`
}

// Concatenation joins a list of scalars into one string property instead of
// mapping it as a list.
type Concatenation struct {
	Label     string `yaml:"label"`
	Property  string `yaml:"property"`
	Separator string `yaml:"separator"`
}

// RelationTypeRule overrides the type of relations from Parent to Child
// (primary labels).
type RelationTypeRule struct {
	Parent string `yaml:"parent"`
	Child  string `yaml:"child"`
	Type   string `yaml:"type"`
}

// PropertyRename renames a node property after mapping. An empty Label
// applies to every node.
type PropertyRename struct {
	Label string `yaml:"label"`
	From  string `yaml:"from"`
	To    string `yaml:"to"`
}

// PropertyCast coerces a node property after mapping. An empty Label applies
// to every node.
type PropertyCast struct {
	Label      string   `yaml:"label"`
	Property   string   `yaml:"property"`
	Kind       CastKind `yaml:"kind"`
	Permissive bool     `yaml:"permissive"`
}

// Config is everything the mapper and the config-driven rules consume.
type Config struct {
	HubLabel    string `yaml:"hub_label"`
	PositionKey string `yaml:"position_key"`

	LabelOverrides  map[string]string `yaml:"label_overrides"`
	RelationKeys    []string          `yaml:"relation_keys"`
	UnwrapListItems []string          `yaml:"unwrap_list_items"`

	CollapseSingletonLists bool `yaml:"collapse_singleton_lists"`
	KeepEmptyLists         bool `yaml:"keep_empty_lists"`

	Hubs       Filter            `yaml:"hubs"`
	Nodes      Filter            `yaml:"nodes"`
	Relations  Filter            `yaml:"relations"`
	Properties map[string]Filter `yaml:"properties"`

	Promotions     []Promotion     `yaml:"promotions"`
	Concatenations []Concatenation `yaml:"concatenations"`

	MergeKeys   map[string][]string `yaml:"merge_keys"`
	HashIDs     map[string]HashSpec `yaml:"hash_ids"`
	DefaultHash *HashSpec           `yaml:"default_hash"`
	Identity    IdentityPolicy      `yaml:"identity"`

	RelationTypes []RelationTypeRule `yaml:"relation_types"`
	PropertyNames []PropertyRename   `yaml:"property_names"`
	PropertyCasts []PropertyCast     `yaml:"property_casts"`

	LabelNamer    func(key string, parent *Node) string     `yaml:"-"`
	RelationNamer RelationNamer                             `yaml:"-"`
	PreNodeHook   func(label string, value any) (any, bool) `yaml:"-"`
	PostNodeHook  func(n *Node)                             `yaml:"-"`
}

// DefaultConfig returns the configuration used when nothing is customised.
func DefaultConfig() Config {
	return Config{
		HubLabel:    DefaultHubLabel,
		PositionKey: DefaultPositionKey,
	}
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("could not read config %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML on top of DefaultConfig and validates the result.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("could not decode config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HubLabel == "" {
		c.HubLabel = DefaultHubLabel
	}
	if c.PositionKey == "" {
		c.PositionKey = DefaultPositionKey
	}
}

// Validate reports mutually exclusive settings as ConfigurationConflictError.
func (c *Config) Validate() error {
	if err := c.Hubs.validate("hubs"); err != nil {
		return err
	}
	if err := c.Nodes.validate("nodes"); err != nil {
		return err
	}
	if err := c.Relations.validate("relations"); err != nil {
		return err
	}
	for label, f := range c.Properties {
		if err := f.validate("properties of " + label); err != nil {
			return err
		}
	}
	for label := range c.MergeKeys {
		if _, ok := c.HashIDs[label]; ok {
			return &ConfigurationConflictError{Category: "identity of " + label, Msg: "merge keys and hash id are mutually exclusive"}
		}
	}
	for _, p := range c.Promotions {
		for _, cc := range c.Concatenations {
			if p.Label == cc.Label && p.Property == cc.Property {
				return &ConfigurationConflictError{Category: "property " + p.Label + "." + p.Property, Msg: "cannot be both promoted and concatenated"}
			}
		}
	}
	return nil
}

// UnmarshalYAML accepts the mode names used in configuration files.
func (m *HashMode) UnmarshalYAML(value *yaml.Node) error {
	return unmarshalEnum(value, "hash mode", hashModeNames, m)
}

// UnmarshalYAML accepts "random" or "strict".
func (p *IdentityPolicy) UnmarshalYAML(value *yaml.Node) error {
	names := map[IdentityPolicy]string{IdentityRandom: "random", IdentityStrict: "strict"}
	return unmarshalEnum(value, "identity policy", names, p)
}

// UnmarshalYAML accepts "string", "int", "float" or "bool".
func (k *CastKind) UnmarshalYAML(value *yaml.Node) error {
	return unmarshalEnum(value, "cast kind", castKindNames, k)
}

func unmarshalEnum[T comparable](value *yaml.Node, what string, names map[T]string, dst *T) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	s = strings.ToLower(strings.TrimSpace(s))
	for v, name := range names {
		if name == s {
			*dst = v
			return nil
		}
	}
	return fmt.Errorf("unknown %s %q", what, s)
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
