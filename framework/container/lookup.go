package container

import (
	"fmt"
	"reflect"

	beanerrors "github.com/km-arc/go-beans/framework/errors"
)

// ── Lookup API ────────────────────────────────────────────────────────────────

// GetByName returns the instance of the Definition named name.
func (c *Container) GetByName(name string) (any, error) {
	if c.closed.Load() {
		return nil, beanerrors.ErrContainerClosed
	}
	def := c.registry.Find(name)
	if def == nil {
		return nil, &beanerrors.NoSuchDefinitionError{Name: name}
	}
	return c.realize(def)
}

// GetByType returns the instance of the single Definition assignable to t.
// Several candidates are narrowed to the primary one.
func (c *Container) GetByType(t reflect.Type) (any, error) {
	if c.closed.Load() {
		return nil, beanerrors.ErrContainerClosed
	}
	def, err := c.registry.ResolveUnique(t)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, &beanerrors.NoSuchDefinitionError{Type: t.String()}
	}
	return c.realize(def)
}

// GetAllByType returns the instances of every Definition assignable to t,
// ordered by priority then name.
func (c *Container) GetAllByType(t reflect.Type) ([]any, error) {
	if c.closed.Load() {
		return nil, beanerrors.ErrContainerClosed
	}
	defs := c.registry.FindByType(t)
	out := make([]any, 0, len(defs))
	for _, def := range defs {
		v, err := c.realize(def)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Contains reports whether a Definition or alias named name exists.
func (c *Container) Contains(name string) bool {
	return !c.closed.Load() && c.registry.Find(name) != nil
}

// ── Collaborator surface ──────────────────────────────────────────────────────

// FindDefinition returns the Definition named name, or nil.
func (c *Container) FindDefinition(name string) *Definition {
	if c.closed.Load() {
		return nil
	}
	return c.registry.Find(name)
}

// FindNamedDefinition returns the Definition named name if its produced
// type is assignable to t. It returns nil, nil when the name is unknown.
func (c *Container) FindNamedDefinition(name string, t reflect.Type) (*Definition, error) {
	if c.closed.Load() {
		return nil, beanerrors.ErrContainerClosed
	}
	return c.registry.FindNamed(name, t)
}

// FindDefinitions returns every Definition assignable to t, ordered by
// priority then name.
func (c *Container) FindDefinitions(t reflect.Type) []*Definition {
	if c.closed.Load() {
		return nil
	}
	return c.registry.FindByType(t)
}

// RealizeEarly realizes def out of order. Interceptors and providers use it
// to obtain a dependency while another Definition is being realized; cycles
// are detected as for any other dependency.
func (c *Container) RealizeEarly(def *Definition) (any, error) {
	if c.closed.Load() {
		return nil, beanerrors.ErrContainerClosed
	}
	if def == nil {
		return nil, &beanerrors.NoSuchDefinitionError{}
	}
	return c.realize(def)
}

// ── Generic helpers ───────────────────────────────────────────────────────────

// Resolve returns the single instance assignable to T.
//
//	svc, err := container.Resolve[*UserService](c)
func Resolve[T any](c *Container) (T, error) {
	var zero T
	v, err := c.GetByType(reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}
	return typed[T](v, "")
}

// ResolveNamed returns the instance named name as a T.
//
//	db, err := container.ResolveNamed[*sql.DB](c, "primaryDB")
func ResolveNamed[T any](c *Container, name string) (T, error) {
	var zero T
	v, err := c.GetByName(name)
	if err != nil {
		return zero, err
	}
	return typed[T](v, name)
}

// ResolveAll returns every instance assignable to T.
func ResolveAll[T any](c *Container) ([]T, error) {
	vs, err := c.GetAllByType(reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(vs))
	for _, v := range vs {
		t, err := typed[T](v, "")
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// MustResolve is like Resolve but panics on error.
//
//	svc := container.MustResolve[*UserService](c)
func MustResolve[T any](c *Container) T {
	v, err := Resolve[T](c)
	if err != nil {
		panic(fmt.Sprintf("container: MustResolve[%s]: %v", reflect.TypeFor[T](), err))
	}
	return v
}

// typed asserts v to T. A nil v yields the zero T. Substituted instances
// that no longer satisfy T are reported as BeanNotOfRequiredTypeError.
func typed[T any](v any, name string) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, &beanerrors.BeanNotOfRequiredTypeError{
			Bean:     name,
			Required: reflect.TypeFor[T]().String(),
			Actual:   fmt.Sprintf("%T", v),
		}
	}
	return t, nil
}
