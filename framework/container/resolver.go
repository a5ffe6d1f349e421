package container

import (
	"errors"
	"fmt"
	"reflect"
	"slices"

	"go.uber.org/zap"

	beanerrors "github.com/km-arc/go-beans/framework/errors"
)

// PropertyResolver resolves value expressions such as "${db.port:5432}"
// to values of the requested type.
type PropertyResolver interface {
	Resolve(expr string, t reflect.Type) (any, error)
}

// pass is the state of one construction pass: the names currently being
// realized, in stack order.
type pass struct {
	realizing map[string]bool
	stack     []string
}

func newPass() *pass {
	return &pass{realizing: make(map[string]bool)}
}

// realize turns def into its instance, realizing dependencies first.
//
//  1. construct the raw instance from resolved arguments
//  2. BeforeInitialization on the raw instance gives the working instance
//  3. inject fields and setters of the raw instance
//  4. run the init hook on the raw instance
//  5. AfterInitialization on the working instance gives the final instance
//
// A Definition reached again while it is being realized is a cycle.
func (c *Container) realize(def *Definition) (any, error) {
	if def.realized {
		return def.instance, nil
	}
	if c.pass == nil {
		c.pass = newPass()
		defer func() { c.pass = nil }()
	}

	p := c.pass
	if p.realizing[def.name] {
		return nil, &beanerrors.CircularDependencyError{
			Bean: def.name,
			Path: append(slices.Clone(p.stack), def.name),
		}
	}
	p.realizing[def.name] = true
	p.stack = append(p.stack, def.name)
	defer func() {
		delete(p.realizing, def.name)
		p.stack = p.stack[:len(p.stack)-1]
	}()

	args, err := c.arguments(def)
	if err != nil {
		return nil, err
	}
	raw, err := c.construct(def, args)
	if err != nil {
		return nil, err
	}

	working, err := c.apply(beforeInit, raw, def.name)
	if err != nil {
		return nil, &beanerrors.BeanCreationError{Bean: def.name, Cause: err}
	}
	if raw != nil {
		if err := c.inject(def, raw); err != nil {
			return nil, err
		}
		if err := c.initialize(def, raw); err != nil {
			return nil, err
		}
	}
	instance, err := c.apply(afterInit, working, def.name)
	if err != nil {
		return nil, &beanerrors.BeanCreationError{Bean: def.name, Cause: err}
	}

	def.setInstance(raw, instance)
	c.realized = append(c.realized, def)
	c.log.Debug("bean realized",
		zap.String("bean", def.name),
		zap.Stringer("type", def.typ),
		zap.Bool("substituted", !sameInstance(raw, instance)),
	)
	return instance, nil
}

// arguments resolves the constructor or factory parameters of def.
func (c *Container) arguments(def *Definition) ([]reflect.Value, error) {
	args := make([]reflect.Value, len(def.params))
	for i, p := range def.params {
		member := fmt.Sprintf("parameter #%d", i)

		var v any
		var err error
		if p.Value != "" {
			v, err = c.value(def.name, p.Value, p.Type)
		} else {
			v, _, err = c.dependency(def.name, p, "")
		}
		if err != nil {
			return nil, err
		}

		arg, err := assignable(def.name, member, v, p.Type)
		if err != nil {
			return nil, err
		}
		args[i] = arg
	}
	return args, nil
}

// construct invokes the descriptor of def.
func (c *Container) construct(def *Definition, args []reflect.Value) (any, error) {
	if owner, method, ok := def.desc.Factory(); ok {
		ownerDef := c.registry.Find(owner)
		if ownerDef == nil {
			return nil, &beanerrors.NoSuchDefinitionError{Name: owner}
		}
		if _, err := c.realize(ownerDef); err != nil {
			return nil, err
		}
		recv := reflect.ValueOf(ownerDef.raw)
		if !recv.IsValid() {
			return nil, &beanerrors.BeanCreationError{
				Bean:  def.name,
				Cause: fmt.Errorf("factory owner %q has no instance", owner),
			}
		}
		m := recv.MethodByName(method)
		if !m.IsValid() {
			return nil, &beanerrors.BeanCreationError{
				Bean:  def.name,
				Cause: fmt.Errorf("factory method %s not found on %s", method, recv.Type()),
			}
		}
		return call(def.name, m, args)
	}

	if !def.desc.ctor.IsValid() {
		return reflect.New(def.typ.Elem()).Interface(), nil
	}
	return call(def.name, def.desc.ctor, args)
}

// dependency resolves an injected parameter or member. It returns the
// dependency's instance and Definition name; both are empty when an
// optional dependency has no match.
func (c *Container) dependency(bean string, p Param, member string) (any, string, error) {
	def, err := c.target(bean, p)
	if err != nil {
		return nil, "", err
	}
	if def == nil {
		if p.Required {
			return nil, "", &beanerrors.UnsatisfiedDependencyError{
				Bean:   bean,
				Type:   p.Type.String(),
				Name:   p.Name,
				Member: member,
			}
		}
		return nil, "", nil
	}
	v, err := c.realize(def)
	if err != nil {
		return nil, "", err
	}
	return v, def.name, nil
}

// target picks the Definition for an injected parameter: by name when the
// parameter is named or a contextual override applies, otherwise by type.
func (c *Container) target(bean string, p Param) (*Definition, error) {
	name := p.Name
	if name == "" {
		if given, ok := c.registry.contextualFor(bean, p.Type); ok {
			name = given
		}
	}
	if name != "" {
		return c.registry.FindNamed(name, p.Type)
	}
	return c.registry.ResolveUnique(p.Type)
}

// value resolves a value expression for bean.
func (c *Container) value(bean, expr string, t reflect.Type) (any, error) {
	v, err := c.props.Resolve(expr, t)
	if err != nil {
		var missing *beanerrors.MissingPropertyError
		if errors.As(err, &missing) && missing.Bean == "" {
			return nil, &beanerrors.MissingPropertyError{Key: missing.Key, Bean: bean}
		}
		return nil, err
	}
	return v, nil
}

// ── reflect helpers ───────────────────────────────────────────────────────────

// call invokes fn, turning returned errors and panics into BeanCreationError.
func call(bean string, fn reflect.Value, args []reflect.Value) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &beanerrors.BeanCreationError{Bean: bean, Cause: fmt.Errorf("panic: %v", r)}
		}
	}()

	results := fn.Call(args)
	if len(results) == 2 && !results[1].IsNil() {
		return nil, &beanerrors.BeanCreationError{Bean: bean, Cause: results[1].Interface().(error)}
	}
	return interfaceOf(results[0]), nil
}

// interfaceOf returns v as any, mapping typed nils to nil.
func interfaceOf(v reflect.Value) any {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if v.IsNil() {
			return nil
		}
	}
	return v.Interface()
}

// assignable converts v to a reflect.Value usable where t is expected. A
// nil v yields the zero value of t.
func assignable(bean, member string, v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	if !rv.Type().AssignableTo(t) {
		return reflect.Value{}, &beanerrors.BeanCreationError{
			Bean:  bean,
			Cause: fmt.Errorf("%s: value of type %s is not assignable to %s", member, rv.Type(), t),
		}
	}
	return rv, nil
}

// sameInstance reports whether a and b are the same value. Uncomparable
// values are treated as different.
func sameInstance(a, b any) (same bool) {
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}
