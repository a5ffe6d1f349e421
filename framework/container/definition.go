package container

import (
	"fmt"
	"math"
	"reflect"

	beanerrors "github.com/km-arc/go-beans/framework/errors"
	"github.com/km-arc/go-beans/framework/meta"
)

// ── Descriptor ────────────────────────────────────────────────────────────────

// Descriptor says how a Definition is built: by calling a constructor
// function, by allocating a zero value, or by calling a factory method on
// another Definition's instance.
type Descriptor struct {
	ctor   reflect.Value
	owner  string
	method string
}

// Constructor returns the constructor function. It is not valid for
// factory descriptors and zero-value allocation.
func (d Descriptor) Constructor() reflect.Value { return d.ctor }

// Factory returns the owner Definition name and method name of a factory
// descriptor.
func (d Descriptor) Factory() (owner, method string, ok bool) {
	return d.owner, d.method, d.owner != ""
}

func (d Descriptor) String() string {
	switch {
	case d.owner != "":
		return d.owner + "." + d.method
	case d.ctor.IsValid():
		return "constructor " + d.ctor.Type().String()
	default:
		return "zero value"
	}
}

// Param is one constructor or factory parameter.
type Param struct {
	Type     reflect.Type
	Value    string // value expression; empty for injected parameters
	Inject   bool
	Name     string // named injection; empty means by type
	Required bool
}

// ── Definition ────────────────────────────────────────────────────────────────

// Definition describes how to build and manage one component instance.
// Only the instance changes after the Definition is registered, and only
// once.
type Definition struct {
	name          string
	typ           reflect.Type
	desc          Descriptor
	params        []Param
	order         int
	primary       bool
	configuration bool
	initMethod    string
	destroyMethod string

	// self marks the container's own binding, which only matches its
	// exact type in by-type lookups.
	self bool

	realized bool
	instance any
	raw      any
}

func (d *Definition) Name() string           { return d.name }
func (d *Definition) Type() reflect.Type     { return d.typ }
func (d *Definition) Descriptor() Descriptor { return d.desc }
func (d *Definition) Params() []Param        { return append([]Param(nil), d.params...) }
func (d *Definition) Order() int             { return d.order }
func (d *Definition) Primary() bool          { return d.primary }
func (d *Definition) Configuration() bool    { return d.configuration }
func (d *Definition) InitMethod() string     { return d.initMethod }
func (d *Definition) DestroyMethod() string  { return d.destroyMethod }
func (d *Definition) Realized() bool         { return d.realized }

// Instance returns the realized value, which may be a substitute returned
// by an interceptor. It is nil before realization.
func (d *Definition) Instance() any { return d.instance }

func (d *Definition) String() string {
	return fmt.Sprintf("Definition{name=%s, type=%s, %s}", d.name, d.typ, d.desc)
}

func (d *Definition) setInstance(raw, instance any) {
	d.raw = raw
	d.instance = instance
	d.realized = true
}

// ── Explicit registration ─────────────────────────────────────────────────────

// DefOption configures a Definition built by Define.
type DefOption func(*defOptions)

type defOptions struct {
	primary       bool
	configuration bool
	order         int
	initMethod    string
	destroyMethod string
	params        []meta.ParamTag
}

// Primary marks the Definition as the winner of ambiguous by-type lookups.
func Primary() DefOption { return func(o *defOptions) { o.primary = true } }

// Configuration gives the Definition the configuration role: it is realized
// before every other Definition and may only take value parameters.
func Configuration() DefOption { return func(o *defOptions) { o.configuration = true } }

// Order sets the priority; lower sorts first.
func Order(n int) DefOption { return func(o *defOptions) { o.order = n } }

// InitMethod names a zero-argument method called after injection.
func InitMethod(name string) DefOption { return func(o *defOptions) { o.initMethod = name } }

// DestroyMethod names a zero-argument method called on Close.
func DestroyMethod(name string) DefOption { return func(o *defOptions) { o.destroyMethod = name } }

// Params tags the constructor parameters in order. Parameters without a
// tag are injected by type and required.
func Params(tags ...meta.ParamTag) DefOption {
	return func(o *defOptions) { o.params = append(o.params, tags...) }
}

// Define builds a Definition around a constructor of the form
// func(...) T or func(...) (T, error).
//
//	def, err := container.Define("userService", NewUserService,
//	    container.Params(meta.Inject(""), meta.Value("${users.limit:100}")),
//	    container.DestroyMethod("Close"),
//	)
func Define(name string, ctor any, opts ...DefOption) (*Definition, error) {
	o := defOptions{order: math.MaxInt}
	for _, opt := range opts {
		opt(&o)
	}

	fn := reflect.ValueOf(ctor)
	if err := checkConstructor(name, fn, nil); err != nil {
		return nil, err
	}
	ft := fn.Type()
	if len(o.params) > ft.NumIn() {
		return nil, &beanerrors.InvalidConfigurationError{
			Bean:   name,
			Reason: fmt.Sprintf("%d parameter tags for %d parameters", len(o.params), ft.NumIn()),
		}
	}

	params := make([]Param, ft.NumIn())
	for i := range params {
		tag := meta.ParamTag{}
		if i < len(o.params) {
			tag = o.params[i]
		}
		p, err := paramFromTag(name, fmt.Sprintf("parameter #%d", i), ft.In(i), tag)
		if err != nil {
			return nil, err
		}
		if o.configuration && p.Inject {
			return nil, &beanerrors.InvalidConfigurationError{
				Bean:   name,
				Reason: fmt.Sprintf("configuration component cannot inject %s by type or name", p.Type),
			}
		}
		params[i] = p
	}

	def := &Definition{
		name:          name,
		typ:           ft.Out(0),
		desc:          Descriptor{ctor: fn},
		params:        params,
		order:         o.order,
		primary:       o.primary,
		configuration: o.configuration,
		initMethod:    o.initMethod,
		destroyMethod: o.destroyMethod,
	}
	return def, nil
}

// MustDefine is like Define but panics on error. Intended for static
// registration in providers and tests.
func MustDefine(name string, ctor any, opts ...DefOption) *Definition {
	def, err := Define(name, ctor, opts...)
	if err != nil {
		panic(err)
	}
	return def
}

// Instance wraps a pre-built value as an already realized Definition.
// The container does not run hooks on it and does not destroy it.
//
//	reg.Register(container.Instance("properties", props))
func Instance(name string, value any) *Definition {
	if value == nil {
		panic(fmt.Sprintf("container: instance %q is nil", name))
	}
	return &Definition{
		name:     name,
		typ:      reflect.TypeOf(value),
		order:    math.MaxInt,
		realized: true,
		instance: value,
		raw:      value,
	}
}

// ── Validation helpers ────────────────────────────────────────────────────────

var errorType = reflect.TypeFor[error]()

// checkConstructor verifies fn is func(...) T or func(...) (T, error) and,
// when produced is not nil, that T is assignable to it.
func checkConstructor(bean string, fn reflect.Value, produced reflect.Type) error {
	invalid := func(format string, args ...any) error {
		return &beanerrors.InvalidConfigurationError{Bean: bean, Reason: fmt.Sprintf(format, args...)}
	}
	if !fn.IsValid() || fn.Kind() != reflect.Func {
		return invalid("constructor is not a function")
	}
	if fn.IsNil() {
		return invalid("constructor is nil")
	}
	ft := fn.Type()
	if ft.IsVariadic() {
		return invalid("variadic constructor %s", ft)
	}
	if err := checkResults(ft); err != nil {
		return invalid("constructor %s %s", ft, err)
	}
	if produced != nil && !ft.Out(0).AssignableTo(produced) {
		return invalid("constructor returns %s, not assignable to %s", ft.Out(0), produced)
	}
	return nil
}

// checkResults verifies a function or method type returns T or (T, error).
func checkResults(ft reflect.Type) error {
	switch {
	case ft.NumOut() == 0:
		return fmt.Errorf("returns nothing")
	case ft.NumOut() == 2 && ft.Out(1) != errorType:
		return fmt.Errorf("second result must be error")
	case ft.NumOut() > 2:
		return fmt.Errorf("returns %d results", ft.NumOut())
	}
	return nil
}

func paramFromTag(bean, member string, t reflect.Type, tag meta.ParamTag) (Param, error) {
	switch {
	case tag.Value != "" && tag.Inject:
		return Param{}, &beanerrors.ConflictingInjectionError{Bean: bean, Member: member}
	case tag.Value != "":
		return Param{Type: t, Value: tag.Value}, nil
	case tag.Inject:
		return Param{Type: t, Inject: true, Name: tag.Name, Required: !tag.Optional}, nil
	}
	return Param{Type: t, Inject: true, Required: true}, nil
}
