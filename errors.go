package dictgraph

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic checking via errors.Is().
var (
	// ErrNotFound is returned by read-back operations when a query matched nothing.
	ErrNotFound = errors.New("record not found")

	// ErrMalformedInput indicates a scalar value with no label to name its node.
	ErrMalformedInput = errors.New("malformed input")

	// ErrConfigurationConflict indicates mutually exclusive configuration.
	ErrConfigurationConflict = errors.New("configuration conflict")

	// ErrTransformFailure indicates a transform returned an error.
	ErrTransformFailure = errors.New("transform failure")

	// ErrUnresolvableIdentity indicates a hash-identified node had nothing to hash.
	ErrUnresolvableIdentity = errors.New("unresolvable identity")

	// ErrCast indicates a property value could not be coerced.
	ErrCast = errors.New("cast error")
)

// MalformedInputError is raised when the mapper meets a scalar without a label.
type MalformedInputError struct {
	Path  string
	Value any
}

func (e *MalformedInputError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: scalar %v has no label", ErrMalformedInput, e.Value)
	}
	return fmt.Sprintf("%s: %s: scalar %v has no label", ErrMalformedInput, e.Path, e.Value)
}

func (e *MalformedInputError) Unwrap() error { return ErrMalformedInput }

// ConfigurationConflictError names the configuration category that has both an
// allow list and a block list populated.
type ConfigurationConflictError struct {
	Category string
	Msg      string
}

func (e *ConfigurationConflictError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %s", ErrConfigurationConflict, e.Category)
	}
	return fmt.Sprintf("%s: %s: %s", ErrConfigurationConflict, e.Category, e.Msg)
}

func (e *ConfigurationConflictError) Unwrap() error { return ErrConfigurationConflict }

// TransformError wraps a failure raised inside a transform together with the
// rule and the object it was applied to.
type TransformError struct {
	Rule   string
	Object string
	Err    error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("%s: rule %q on %s: %v", ErrTransformFailure, e.Rule, e.Object, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *TransformError) Unwrap() []error { return []error{ErrTransformFailure, e.Err} }

// UnresolvableIdentityError is raised under IdentityStrict when a node needs a
// generated merge key but has no properties or content to hash.
type UnresolvableIdentityError struct {
	Labels []string
}

func (e *UnresolvableIdentityError) Error() string {
	return fmt.Sprintf("%s: node %v has no data to hash", ErrUnresolvableIdentity, e.Labels)
}

func (e *UnresolvableIdentityError) Unwrap() error { return ErrUnresolvableIdentity }

// CastError reports a property whose value could not be coerced to the target kind.
type CastError struct {
	Property string
	Value    any
	Target   CastKind
}

func (e *CastError) Error() string {
	return fmt.Sprintf("%s: property %q: cannot cast %v (%T) to %s", ErrCast, e.Property, e.Value, e.Value, e.Target)
}

func (e *CastError) Unwrap() error { return ErrCast }
