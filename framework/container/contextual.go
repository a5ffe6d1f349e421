package container

import (
	"reflect"

	beanerrors "github.com/km-arc/go-beans/framework/errors"
)

// ContextualBuilder implements the fluent contextual override API.
//
//	reg.When("photoService").Needs(reflect.TypeFor[Filesystem]()).Give("s3")
type ContextualBuilder struct {
	registry *Registry
	bean     string
	needs    reflect.Type
}

// Needs specifies which dependency type of the bean is overridden.
func (b *ContextualBuilder) Needs(t reflect.Type) *ContextualBuilder {
	b.needs = t
	return b
}

// Give names the Definition injected when the bean resolves the type given
// to Needs. The name is checked when the dependency is resolved.
func (b *ContextualBuilder) Give(name string) error {
	b.registry.mu.Lock()
	defer b.registry.mu.Unlock()
	if b.registry.sealed {
		return beanerrors.ErrRegistrySealed
	}

	if _, ok := b.registry.contextual[b.bean]; !ok {
		b.registry.contextual[b.bean] = make(map[reflect.Type]string)
	}
	b.registry.contextual[b.bean][b.needs] = name
	return nil
}

// Needs is the generic form of ContextualBuilder.Needs.
//
//	container.Needs[Filesystem](reg.When("photoService")).Give("s3")
func Needs[T any](b *ContextualBuilder) *ContextualBuilder {
	return b.Needs(reflect.TypeFor[T]())
}
