// Package errors defines the failure taxonomy of the container.
//
// Every error is a small struct carrying the names involved. Each type
// implements Is so that a zero value works as a sentinel:
//
//	if errors.Is(err, &beanerrors.CircularDependencyError{}) { ... }
//
// errors.As works as usual when the fields are needed.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrContainerClosed is returned by lookups on a container after Close.
var ErrContainerClosed = errors.New("container: already closed")

// ErrRegistrySealed is returned when Definitions, aliases or contextual
// overrides are added to a registry after its container was built.
var ErrRegistrySealed = errors.New("container: registry is sealed after build")

// =============================================================================
// REGISTRY ERRORS
// =============================================================================

// DuplicateDefinitionError reports two components resolving to one name.
type DuplicateDefinitionError struct {
	Name string
}

func (e *DuplicateDefinitionError) Error() string {
	return fmt.Sprintf("duplicate bean definition name %q", e.Name)
}

func (e *DuplicateDefinitionError) Is(target error) bool {
	_, ok := target.(*DuplicateDefinitionError)
	return ok
}

// InvalidConfigurationError reports structural tag misuse found while
// building definitions.
type InvalidConfigurationError struct {
	Bean   string
	Reason string
}

func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("invalid bean definition %q: %s", e.Bean, e.Reason)
}

func (e *InvalidConfigurationError) Is(target error) bool {
	_, ok := target.(*InvalidConfigurationError)
	return ok
}

// =============================================================================
// RESOLUTION ERRORS
// =============================================================================

// CircularDependencyError reports a definition reached while it was
// already being realized. Path holds the realization stack ending at Bean.
type CircularDependencyError struct {
	Bean string
	Path []string
}

func (e *CircularDependencyError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("circular dependency detected when creating bean %q", e.Bean)
	}
	return fmt.Sprintf("circular dependency detected when creating bean %q: %s",
		e.Bean, strings.Join(e.Path, " -> "))
}

func (e *CircularDependencyError) Is(target error) bool {
	_, ok := target.(*CircularDependencyError)
	return ok
}

// UnsatisfiedDependencyError reports a required dependency with no
// matching definition. Name is set for named injection, Member for
// property injection.
type UnsatisfiedDependencyError struct {
	Bean   string
	Type   string
	Name   string
	Member string
}

func (e *UnsatisfiedDependencyError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "missing dependency of type %s", e.Type)
	if e.Name != "" {
		fmt.Fprintf(&b, " named %q", e.Name)
	}
	fmt.Fprintf(&b, " when creating bean %q", e.Bean)
	if e.Member != "" {
		fmt.Fprintf(&b, " (member %s)", e.Member)
	}
	return b.String()
}

func (e *UnsatisfiedDependencyError) Is(target error) bool {
	_, ok := target.(*UnsatisfiedDependencyError)
	return ok
}

// AmbiguousDependencyError reports a by-type lookup that matched several
// definitions with zero or several primaries among them.
type AmbiguousDependencyError struct {
	Type       string
	Candidates []string
	Primaries  int
}

func (e *AmbiguousDependencyError) Error() string {
	reason := "no primary specified"
	if e.Primaries > 1 {
		reason = "multiple primaries specified"
	}
	return fmt.Sprintf("multiple beans of type %s found (%s), %s",
		e.Type, strings.Join(e.Candidates, ", "), reason)
}

func (e *AmbiguousDependencyError) Is(target error) bool {
	_, ok := target.(*AmbiguousDependencyError)
	return ok
}

// NoSuchDefinitionError reports a lookup expecting exactly one result
// that found none.
type NoSuchDefinitionError struct {
	Name string
	Type string
}

func (e *NoSuchDefinitionError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("no bean defined with name %q", e.Name)
	}
	return fmt.Sprintf("no bean defined with type %s", e.Type)
}

func (e *NoSuchDefinitionError) Is(target error) bool {
	_, ok := target.(*NoSuchDefinitionError)
	return ok
}

// BeanNotOfRequiredTypeError reports a named lookup whose definition
// produces a type not assignable to the requested one.
type BeanNotOfRequiredTypeError struct {
	Bean     string
	Required string
	Actual   string
}

func (e *BeanNotOfRequiredTypeError) Error() string {
	return fmt.Sprintf("bean %q has type %s, not assignable to required type %s",
		e.Bean, e.Actual, e.Required)
}

func (e *BeanNotOfRequiredTypeError) Is(target error) bool {
	_, ok := target.(*BeanNotOfRequiredTypeError)
	return ok
}

// =============================================================================
// CREATION ERRORS
// =============================================================================

// BeanCreationError wraps a failure raised by a constructor, factory
// method, init hook or interceptor.
type BeanCreationError struct {
	Bean  string
	Cause error
}

func (e *BeanCreationError) Error() string {
	return fmt.Sprintf("error creating bean %q: %v", e.Bean, e.Cause)
}

func (e *BeanCreationError) Unwrap() error { return e.Cause }

func (e *BeanCreationError) Is(target error) bool {
	_, ok := target.(*BeanCreationError)
	return ok
}

// ConflictingInjectionError reports a parameter or member carrying both a
// value expression and a type/name injection tag.
type ConflictingInjectionError struct {
	Bean   string
	Member string
}

func (e *ConflictingInjectionError) Error() string {
	return fmt.Sprintf("cannot specify both value and inject on %s of bean %q", e.Member, e.Bean)
}

func (e *ConflictingInjectionError) Is(target error) bool {
	_, ok := target.(*ConflictingInjectionError)
	return ok
}

// InvalidInjectionTargetError reports a tagged member that cannot receive
// a value.
type InvalidInjectionTargetError struct {
	Bean   string
	Member string
	Reason string
}

func (e *InvalidInjectionTargetError) Error() string {
	return fmt.Sprintf("cannot inject %s of bean %q: %s", e.Member, e.Bean, e.Reason)
}

func (e *InvalidInjectionTargetError) Is(target error) bool {
	_, ok := target.(*InvalidInjectionTargetError)
	return ok
}

// DestroyError wraps a failing destroy hook. Close aggregates them.
type DestroyError struct {
	Bean  string
	Cause error
}

func (e *DestroyError) Error() string {
	return fmt.Sprintf("error destroying bean %q: %v", e.Bean, e.Cause)
}

func (e *DestroyError) Unwrap() error { return e.Cause }

func (e *DestroyError) Is(target error) bool {
	_, ok := target.(*DestroyError)
	return ok
}

// =============================================================================
// PROPERTY ERRORS
// =============================================================================

// MissingPropertyError reports a required value expression with no value
// and no default. Bean is filled in by the container when known.
type MissingPropertyError struct {
	Key  string
	Bean string
}

func (e *MissingPropertyError) Error() string {
	if e.Bean != "" {
		return fmt.Sprintf("property %q not found when creating bean %q", e.Key, e.Bean)
	}
	return fmt.Sprintf("property %q not found", e.Key)
}

func (e *MissingPropertyError) Is(target error) bool {
	_, ok := target.(*MissingPropertyError)
	return ok
}

// InvalidExpressionError reports a malformed or runaway property expression.
type InvalidExpressionError struct {
	Expression string
	Reason     string
}

func (e *InvalidExpressionError) Error() string {
	return fmt.Sprintf("invalid property expression %q: %s", e.Expression, e.Reason)
}

func (e *InvalidExpressionError) Is(target error) bool {
	_, ok := target.(*InvalidExpressionError)
	return ok
}

// PropertyConversionError reports a property value that cannot be
// converted to the requested type.
type PropertyConversionError struct {
	Key   string
	Value string
	Type  string
	Cause error
}

func (e *PropertyConversionError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("unsupported property type %s for %q", e.Type, e.Key)
	}
	return fmt.Sprintf("cannot convert property %q value %q to %s: %v", e.Key, e.Value, e.Type, e.Cause)
}

func (e *PropertyConversionError) Unwrap() error { return e.Cause }

func (e *PropertyConversionError) Is(target error) bool {
	_, ok := target.(*PropertyConversionError)
	return ok
}

// =============================================================================
// HELPERS
// =============================================================================

// IsCircularDependency reports whether err is or wraps a CircularDependencyError.
func IsCircularDependency(err error) bool {
	return errors.Is(err, &CircularDependencyError{})
}

// IsUnsatisfiedDependency reports whether err is or wraps an UnsatisfiedDependencyError.
func IsUnsatisfiedDependency(err error) bool {
	return errors.Is(err, &UnsatisfiedDependencyError{})
}

// IsAmbiguousDependency reports whether err is or wraps an AmbiguousDependencyError.
func IsAmbiguousDependency(err error) bool {
	return errors.Is(err, &AmbiguousDependencyError{})
}

// IsNoSuchDefinition reports whether err is or wraps a NoSuchDefinitionError.
func IsNoSuchDefinition(err error) bool {
	return errors.Is(err, &NoSuchDefinitionError{})
}

// IsMissingProperty reports whether err is or wraps a MissingPropertyError.
func IsMissingProperty(err error) bool {
	return errors.Is(err, &MissingPropertyError{})
}
