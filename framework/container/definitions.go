package container

import (
	"fmt"
	"math"
	"reflect"
	"slices"

	"go.uber.org/zap"

	beanerrors "github.com/km-arc/go-beans/framework/errors"
	"github.com/km-arc/go-beans/framework/meta"
)

// Locator enumerates component names below a set of package roots.
type Locator interface {
	Scan(roots ...string) ([]string, error)
}

// definitionBuilder turns located component names into Definitions by
// querying a meta.Reader.
type definitionBuilder struct {
	reader meta.Reader
	log    *zap.Logger
}

// build returns the Definitions for names, in sorted name order, with each
// configuration component followed by the Definitions of its factory
// methods.
func (b *definitionBuilder) build(names []string) ([]*Definition, error) {
	names = slices.Clone(names)
	slices.Sort(names)

	var out []*Definition
	for _, qualified := range names {
		t, ok := b.reader.TypeOf(qualified)
		if !ok {
			b.log.Debug("located name has no type, skipping", zap.String("component", qualified))
			continue
		}
		comp, ok := b.reader.Tag(meta.TypeElement{Type: t}, meta.KindComponent)
		if !ok {
			continue
		}
		name := comp.Name
		if name == "" {
			name = meta.BeanName(t)
		}

		def, err := b.component(name, t)
		if err != nil {
			return nil, err
		}
		out = append(out, def)

		if def.configuration {
			factories, err := b.factories(def)
			if err != nil {
				return nil, err
			}
			out = append(out, factories...)
		}
	}
	return out, nil
}

// component builds the Definition of a component type.
func (b *definitionBuilder) component(name string, t reflect.Type) (*Definition, error) {
	el := meta.TypeElement{Type: t}
	def := &Definition{
		name:          name,
		typ:           t,
		order:         b.order(el),
		configuration: b.has(el, meta.KindConfiguration),
		primary:       b.has(el, meta.KindPrimary),
		initMethod:    b.value(el, meta.KindInit),
		destroyMethod: b.value(el, meta.KindDestroy),
	}

	ctors := b.reader.Constructors(t)
	switch len(ctors) {
	case 0:
		if t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
			return nil, &beanerrors.InvalidConfigurationError{
				Bean:   name,
				Reason: fmt.Sprintf("no constructor registered for non-struct type %s", t),
			}
		}
	case 1:
		fn := ctors[0]
		if err := checkConstructor(name, fn, t); err != nil {
			return nil, err
		}
		def.desc = Descriptor{ctor: fn}
		ctorEl := meta.ConstructorElement{Type: t, Index: 0}
		params, err := b.params(name, ctorEl, fn.Type(), 0)
		if err != nil {
			return nil, err
		}
		def.params = params
	default:
		return nil, &beanerrors.InvalidConfigurationError{
			Bean:   name,
			Reason: fmt.Sprintf("%d constructors registered, expected one", len(ctors)),
		}
	}

	if def.configuration {
		for _, p := range def.params {
			if p.Inject {
				return nil, &beanerrors.InvalidConfigurationError{
					Bean:   name,
					Reason: fmt.Sprintf("configuration component cannot inject %s by type or name", p.Type),
				}
			}
		}
	}
	return def, nil
}

// factories builds one Definition per factory method of a configuration
// Definition. Methods are discovered on the produced type and visited in
// name order.
func (b *definitionBuilder) factories(owner *Definition) ([]*Definition, error) {
	t := owner.typ

	if lister, ok := b.reader.(meta.Lister); ok {
		for _, method := range lister.Factories(t) {
			if _, ok := t.MethodByName(method); !ok {
				return nil, &beanerrors.InvalidConfigurationError{
					Bean:   owner.name,
					Reason: fmt.Sprintf("factory method %s not found on %s", method, t),
				}
			}
		}
	}

	var out []*Definition
	for i := range t.NumMethod() {
		m := t.Method(i)
		el := meta.MethodElement{Owner: t, Name: m.Name}
		fp, ok := b.reader.Tag(el, meta.KindFactory)
		if !ok {
			continue
		}
		name := fp.Name
		if name == "" {
			name = meta.LowerFirst(m.Name)
		}
		if err := checkResults(m.Type); err != nil {
			return nil, &beanerrors.InvalidConfigurationError{
				Bean:   name,
				Reason: fmt.Sprintf("factory method %s.%s %s", owner.name, m.Name, err),
			}
		}
		if m.Type.IsVariadic() {
			return nil, &beanerrors.InvalidConfigurationError{
				Bean:   name,
				Reason: fmt.Sprintf("factory method %s.%s is variadic", owner.name, m.Name),
			}
		}
		// m.Type includes the receiver as its first input.
		params, err := b.params(name, el, m.Type, 1)
		if err != nil {
			return nil, err
		}
		out = append(out, &Definition{
			name:          name,
			typ:           m.Type.Out(0),
			desc:          Descriptor{owner: owner.name, method: m.Name},
			params:        params,
			order:         b.order(el),
			primary:       b.has(el, meta.KindPrimary),
			initMethod:    b.value(el, meta.KindInit),
			destroyMethod: b.value(el, meta.KindDestroy),
		})
	}
	return out, nil
}

// params reads the parameter tags of a constructor or method. skip is the
// number of leading inputs that are not parameters (the receiver).
func (b *definitionBuilder) params(bean string, of meta.Element, ft reflect.Type, skip int) ([]Param, error) {
	params := make([]Param, 0, ft.NumIn()-skip)
	for i := skip; i < ft.NumIn(); i++ {
		el := meta.ParamElement{Of: of, Index: i - skip}
		p, err := b.param(bean, el, ft.In(i))
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}
	return params, nil
}

func (b *definitionBuilder) param(bean string, el meta.Element, t reflect.Type) (Param, error) {
	value, hasValue := b.reader.Tag(el, meta.KindValue)
	inject, hasInject := b.reader.Tag(el, meta.KindInject)
	switch {
	case hasValue && hasInject:
		return Param{}, &beanerrors.ConflictingInjectionError{Bean: bean, Member: el.String()}
	case hasValue:
		return Param{Type: t, Value: value.Value}, nil
	case hasInject:
		name := inject.Name
		if named, ok := b.reader.Tag(el, meta.KindNamed); ok {
			name = named.Name
		}
		return Param{Type: t, Inject: true, Name: name, Required: b.has(el, meta.KindRequired)}, nil
	}
	return Param{Type: t, Inject: true, Required: true}, nil
}

func (b *definitionBuilder) has(el meta.Element, kind meta.Kind) bool {
	_, ok := b.reader.Tag(el, kind)
	return ok
}

func (b *definitionBuilder) value(el meta.Element, kind meta.Kind) string {
	p, _ := b.reader.Tag(el, kind)
	return p.Value
}

func (b *definitionBuilder) order(el meta.Element) int {
	if p, ok := b.reader.Tag(el, meta.KindOrder); ok {
		return p.Order
	}
	return math.MaxInt
}
