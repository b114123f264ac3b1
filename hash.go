package dictgraph

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// HashMode selects which data feeds a generated merge key.
type HashMode int

const (
	// AllAttributes hashes the node's properties (all, or the listed ones).
	AllAttributes HashMode = iota
	// InnerContent additionally hashes the input fragment the node came from.
	InnerContent
	// OuterContent additionally hashes the identity of the node's parent.
	OuterContent
	// AllContent combines InnerContent and OuterContent.
	AllContent
)

var hashModeNames = map[HashMode]string{
	AllAttributes: "all_attributes",
	InnerContent:  "inner_content",
	OuterContent:  "outer_content",
	AllContent:    "all_content",
}

func (m HashMode) String() string {
	if s, ok := hashModeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("HashMode(%d)", int(m))
}

func (m HashMode) inner() bool { return m == InnerContent || m == AllContent }
func (m HashMode) outer() bool { return m == OuterContent || m == AllContent }

// DefaultHashKey is the property a generated merge key is written to when a
// HashSpec leaves Key empty.
const DefaultHashKey = "_id"

// HashSpec configures a generated, content-derived merge key.
type HashSpec struct {
	Mode HashMode `yaml:"mode"`
	// Properties restricts the hashed properties. Empty means all of them.
	Properties []string `yaml:"properties"`
	Key        string   `yaml:"key"`
}

func (s HashSpec) key() string {
	if s.Key == "" {
		return DefaultHashKey
	}
	return s.Key
}

// IdentityPolicy decides what happens when a hash-identified node has
// nothing to hash.
type IdentityPolicy int

const (
	// IdentityRandom assigns a random opaque id. Such nodes never merge with
	// nodes from other parse calls.
	IdentityRandom IdentityPolicy = iota
	// IdentityStrict fails the parse call with UnresolvableIdentityError.
	IdentityStrict
)

func (p IdentityPolicy) String() string {
	if p == IdentityStrict {
		return "strict"
	}
	return "random"
}

// canonicalJSON serialises v with sorted map keys. encoding/json already
// orders map keys, so equal trees always produce equal bytes.
func canonicalJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte(fmt.Sprintf("%#v", v))
	}
	return data
}

// HashValues returns the hex MD5 digest of the canonical serialisation of
// the ordered values. MD5 is used for speed and stability, not security.
func HashValues(values ...any) string {
	sum := md5.Sum(canonicalJSON(values))
	return hex.EncodeToString(sum[:])
}

func hashContent(v any) string {
	sum := md5.Sum(canonicalJSON(v))
	return hex.EncodeToString(sum[:])
}

func randomID() string {
	return uuid.NewString()
}

// fingerprint identifies a node by its labels and the input it came from. It is
// what OuterContent mixes in for the parent, since the parent's own merge key
// is finalized only after its children.
func fingerprint(n *Node) string {
	if n.source != nil {
		return HashValues(n.labels, hashContent(n.source))
	}
	return HashValues(n.labels, n.props.Map())
}

// identityHash computes the generated merge key for n under spec. It reports
// false when there is no data to hash.
func identityHash(n *Node, spec HashSpec) (string, bool) {
	key := spec.key()
	selected := spec.Properties
	if len(selected) == 0 {
		selected = n.props.Keys()
	}
	parts := make([]any, 0, 2*len(selected)+4)
	hasData := false
	for _, k := range selected {
		if k == key {
			continue
		}
		if v, ok := n.props.Get(k); ok {
			parts = append(parts, k, v)
			hasData = true
		}
	}
	if spec.Mode.inner() && hasContent(n.source) {
		parts = append(parts, "inner", hashContent(n.source))
		hasData = true
	}
	if spec.Mode.outer() && n.parent != nil {
		parts = append(parts, "outer", fingerprint(n.parent))
		hasData = true
	}
	if !hasData {
		return "", false
	}
	return HashValues(append([]any{n.labels}, parts...)...), true
}

// hasContent reports whether v is worth hashing: empty strings, lists and
// objects are not.
func hasContent(v any) bool {
	if isEmpty(v) {
		return false
	}
	if obj, ok := asObject(v); ok {
		return len(obj) > 0
	}
	return true
}

// listIdentity is the identity of a collection hub: its labels plus the
// content of the list it stands for.
func listIdentity(labels []string, list []any) string {
	return HashValues(labels, hashContent(list))
}
