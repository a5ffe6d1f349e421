package container

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"

	beanerrors "github.com/km-arc/go-beans/framework/errors"
	"github.com/km-arc/go-beans/framework/meta"
)

// inject assigns tagged fields and registered setters of raw. Fields come
// first, outer struct before embedded ones, each in declaration order;
// setters follow in method name order.
func (c *Container) inject(def *Definition, raw any) error {
	v := reflect.ValueOf(raw)
	sv := v
	if sv.Kind() == reflect.Pointer {
		sv = sv.Elem()
	}
	if sv.Kind() == reflect.Struct {
		if err := c.injectFields(def, sv); err != nil {
			return err
		}
	}
	return c.injectSetters(def, v)
}

func (c *Container) injectFields(def *Definition, sv reflect.Value) error {
	st := sv.Type()

	var embedded []int
	for i := range st.NumField() {
		f := st.Field(i)
		el := meta.FieldElement{Owner: st, Field: f}
		member := st.Name() + "." + f.Name

		expr, hasValue := c.reader.Tag(el, meta.KindValue)
		_, hasInject := c.reader.Tag(el, meta.KindInject)
		switch {
		case hasValue && hasInject:
			return &beanerrors.ConflictingInjectionError{Bean: def.name, Member: member}
		case !hasValue && !hasInject:
			if f.Anonymous {
				embedded = append(embedded, i)
			}
			continue
		}

		fv := sv.Field(i)
		if !fv.CanSet() {
			reason := "instance is not addressable"
			if !f.IsExported() {
				reason = "unexported field"
			}
			return &beanerrors.InvalidInjectionTargetError{Bean: def.name, Member: member, Reason: reason}
		}

		var v any
		var err error
		found := true
		if hasValue {
			v, err = c.value(def.name, expr.Value, f.Type)
		} else {
			v, found, err = c.injected(def.name, c.memberParam(el, f.Type), member)
		}
		if err != nil {
			return err
		}
		if !found {
			// optional and unmatched: keep what the constructor set
			continue
		}
		arg, err := assignable(def.name, member, v, f.Type)
		if err != nil {
			return err
		}
		fv.Set(arg)
	}

	for _, i := range embedded {
		fv := sv.Field(i)
		if fv.Kind() == reflect.Pointer {
			if fv.IsNil() || fv.Elem().Kind() != reflect.Struct {
				continue
			}
			fv = fv.Elem()
		}
		if fv.Kind() != reflect.Struct {
			continue
		}
		if err := c.injectFields(def, fv); err != nil {
			return err
		}
	}
	return nil
}

func (c *Container) injectSetters(def *Definition, v reflect.Value) error {
	t := v.Type()

	if lister, ok := c.reader.(meta.Lister); ok {
		for _, name := range lister.Setters(t) {
			if _, ok := t.MethodByName(name); !ok {
				return &beanerrors.InvalidInjectionTargetError{
					Bean:   def.name,
					Member: name,
					Reason: fmt.Sprintf("method not found on %s", t),
				}
			}
		}
	}

	for i := range t.NumMethod() {
		m := t.Method(i)
		el := meta.MethodElement{Owner: t, Name: m.Name}
		member := m.Name + "()"

		expr, hasValue := c.reader.Tag(el, meta.KindValue)
		_, hasInject := c.reader.Tag(el, meta.KindInject)
		switch {
		case hasValue && hasInject:
			return &beanerrors.ConflictingInjectionError{Bean: def.name, Member: member}
		case !hasValue && !hasInject:
			continue
		}

		// m.Type includes the receiver.
		if m.Type.NumIn() != 2 {
			return &beanerrors.InvalidInjectionTargetError{
				Bean:   def.name,
				Member: member,
				Reason: fmt.Sprintf("setter takes %d arguments, expected 1", m.Type.NumIn()-1),
			}
		}
		if t.Kind() == reflect.Pointer {
			if _, ok := t.Elem().MethodByName(m.Name); ok {
				c.log.Warn("setter has a value receiver, assignments will not persist",
					zap.String("bean", def.name),
					zap.String("setter", m.Name),
				)
			}
		}

		pt := m.Type.In(1)
		var arg any
		var err error
		found := true
		if hasValue {
			arg, err = c.value(def.name, expr.Value, pt)
		} else {
			arg, found, err = c.injected(def.name, c.memberParam(el, pt), member)
		}
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		rv, err := assignable(def.name, member, arg, pt)
		if err != nil {
			return err
		}
		if err := invoke(v.Method(i), []reflect.Value{rv}); err != nil {
			return &beanerrors.BeanCreationError{Bean: def.name, Cause: fmt.Errorf("%s: %w", member, err)}
		}
	}
	return nil
}

// injected resolves a dependency for a member and offers it to the
// OnPropertySet hooks. found is false when an optional dependency has no
// match; the member is then left alone.
func (c *Container) injected(bean string, p Param, member string) (v any, found bool, err error) {
	v, depName, err := c.dependency(bean, p, member)
	if err != nil || depName == "" {
		return v, false, err
	}
	out, err := c.apply(onPropertySet, v, depName)
	if err != nil {
		return nil, false, &beanerrors.BeanCreationError{Bean: bean, Cause: fmt.Errorf("%s: %w", member, err)}
	}
	return out, true, nil
}

func (c *Container) memberParam(el meta.Element, t reflect.Type) Param {
	p := Param{Type: t, Inject: true}
	if named, ok := c.reader.Tag(el, meta.KindNamed); ok {
		p.Name = named.Name
	}
	_, p.Required = c.reader.Tag(el, meta.KindRequired)
	return p
}
