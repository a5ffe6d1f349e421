// Package meta describes components declaratively and answers tag queries
// about them.
//
// Go has no annotations, so component metadata comes from two places:
//
//   - a Catalog, where constructors, factory methods and setters are
//     registered statically together with their tags;
//   - struct field tags, read through reflect.
//
//	type Service struct {
//		Repo  Repository `inject:""`               // by type, required
//		Cache Cache      `inject:"redis,optional"` // by name, optional
//		Port  int        `value:"${app.port:8000}"`
//	}
//
// The container never inspects either source directly; it asks a Reader.
package meta

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Kind names a declarative tag.
type Kind int

const (
	KindComponent Kind = iota + 1
	KindConfiguration
	KindFactory
	KindPrimary
	KindOrder
	KindValue
	KindInject
	KindRequired
	KindNamed
	KindInit
	KindDestroy
)

var kindNames = map[Kind]string{
	KindComponent:     "component",
	KindConfiguration: "configuration",
	KindFactory:       "factory",
	KindPrimary:       "primary",
	KindOrder:         "order",
	KindValue:         "value",
	KindInject:        "inject",
	KindRequired:      "required",
	KindNamed:         "named",
	KindInit:          "init",
	KindDestroy:       "destroy",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Payload carries the fields of a tag. Which fields are meaningful depends
// on the Kind: Name for component/factory/named, Value for value/init/destroy,
// Order for order.
type Payload struct {
	Name  string
	Value string
	Order int
}

// Reader answers tag queries about program elements.
type Reader interface {
	// TypeOf maps a fully-qualified component name to its type.
	TypeOf(name string) (reflect.Type, bool)

	// Constructors returns the constructor functions registered for t.
	Constructors(t reflect.Type) []reflect.Value

	// Tag reports whether el carries a tag of the given kind.
	Tag(el Element, kind Kind) (Payload, bool)
}

// Lister is implemented by readers that can enumerate the factory methods
// and setters declared for a type, so that declarations naming methods the
// type does not have can be reported.
type Lister interface {
	Factories(t reflect.Type) []string
	Setters(t reflect.Type) []string
}

// ── Elements ──────────────────────────────────────────────────────────────────

// Element is a program element a tag can be attached to.
type Element interface {
	fmt.Stringer
	element()
}

// TypeElement is a component type.
type TypeElement struct {
	Type reflect.Type
}

// ConstructorElement is the Index-th constructor registered for Type.
type ConstructorElement struct {
	Type  reflect.Type
	Index int
}

// MethodElement is a method of Owner: a factory operation or a setter.
type MethodElement struct {
	Owner reflect.Type
	Name  string
}

// FieldElement is a struct field.
type FieldElement struct {
	Owner reflect.Type
	Field reflect.StructField
}

// ParamElement is the Index-th parameter of a constructor or method.
// Method parameter indexes do not count the receiver.
type ParamElement struct {
	Of    Element
	Index int
}

func (TypeElement) element()        {}
func (ConstructorElement) element() {}
func (MethodElement) element()      {}
func (FieldElement) element()       {}
func (ParamElement) element()       {}

func (e TypeElement) String() string { return e.Type.String() }

func (e ConstructorElement) String() string {
	return fmt.Sprintf("%s constructor #%d", e.Type, e.Index)
}

func (e MethodElement) String() string { return e.Owner.String() + "." + e.Name }

func (e FieldElement) String() string { return "field " + e.Field.Name }

func (e ParamElement) String() string {
	return fmt.Sprintf("%s parameter #%d", e.Of, e.Index)
}

// ── Naming ────────────────────────────────────────────────────────────────────

// QualifiedName returns "pkgpath.Type" for t, looking through one pointer.
func QualifiedName(t reflect.Type) string {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// BeanName derives the default logical name of a component type: its type
// name with the first letter lower-cased.
func BeanName(t reflect.Type) string {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name := t.Name()
	if name == "" {
		name = t.String()
	}
	return LowerFirst(name)
}

// LowerFirst lower-cases the first rune of s.
func LowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}

// TypeFor is shorthand for reflect.TypeFor.
func TypeFor[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

// ── Struct tags ───────────────────────────────────────────────────────────────

const (
	valueTag  = "value"
	injectTag = "inject"
	optional  = "optional"
)

// fieldTag answers tag queries for a struct field from its struct tag.
func fieldTag(f reflect.StructField, kind Kind) (Payload, bool) {
	switch kind {
	case KindValue:
		v, ok := f.Tag.Lookup(valueTag)
		return Payload{Value: v}, ok
	case KindInject, KindNamed, KindRequired:
		v, ok := f.Tag.Lookup(injectTag)
		if !ok {
			return Payload{}, false
		}
		name, opts, _ := strings.Cut(v, ",")
		return injectPayload(kind, strings.TrimSpace(name), strings.TrimSpace(opts) != optional)
	}
	return Payload{}, false
}

func injectPayload(kind Kind, name string, required bool) (Payload, bool) {
	switch kind {
	case KindInject:
		return Payload{Name: name}, true
	case KindNamed:
		return Payload{Name: name}, name != ""
	case KindRequired:
		return Payload{}, required
	}
	return Payload{}, false
}
