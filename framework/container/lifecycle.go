package container

import (
	"fmt"
	"reflect"
	"slices"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	beanerrors "github.com/km-arc/go-beans/framework/errors"
)

// initialize runs the init hook of def on the raw instance. It also checks
// that a declared destroy hook exists so that Close cannot fail on a
// missing method.
func (c *Container) initialize(def *Definition, raw any) error {
	v := reflect.ValueOf(raw)

	if def.destroyMethod != "" {
		if _, err := hookMethod(v, def.destroyMethod); err != nil {
			return &beanerrors.BeanCreationError{Bean: def.name, Cause: fmt.Errorf("destroy hook: %w", err)}
		}
	}
	if def.initMethod == "" {
		return nil
	}

	m, err := hookMethod(v, def.initMethod)
	if err != nil {
		return &beanerrors.BeanCreationError{Bean: def.name, Cause: fmt.Errorf("init hook: %w", err)}
	}
	if err := invoke(m, nil); err != nil {
		return &beanerrors.BeanCreationError{Bean: def.name, Cause: fmt.Errorf("init hook %s: %w", def.initMethod, err)}
	}
	return nil
}

// destroy runs the destroy hooks of defs in reverse order. Every hook
// runs; failures are combined.
func (c *Container) destroy(defs []*Definition) error {
	var errs error
	for _, def := range slices.Backward(defs) {
		if def.destroyMethod == "" || def.raw == nil {
			continue
		}

		var err error
		if m, lookupErr := hookMethod(reflect.ValueOf(def.raw), def.destroyMethod); lookupErr != nil {
			err = lookupErr
		} else {
			err = invoke(m, nil)
		}

		if err != nil {
			err = &beanerrors.DestroyError{Bean: def.name, Cause: err}
			c.log.Error("destroy hook failed", zap.String("bean", def.name), zap.Error(err))
			errs = multierr.Append(errs, err)
		} else {
			c.log.Debug("bean destroyed", zap.String("bean", def.name))
		}
		c.notifyDestroy(def.name, err)
	}
	return errs
}

func (c *Container) notifyDestroy(name string, err error) {
	for _, ic := range c.interceptors {
		if obs, ok := ic.(DestroyObserver); ok {
			obs.AfterDestroy(name, err)
		}
	}
}

// Close runs every destroy hook in reverse realization order, then
// releases the registry. Hook failures do not stop the remaining hooks and
// are returned together. Calling Close again is a no-op.
func (c *Container) Close() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed.Swap(true) {
		return nil
	}
	err := c.destroy(c.realized)
	c.registry.clear()
	c.realized = nil
	c.log.Info("container closed", zap.String("id", c.id), zap.Error(err))
	return err
}

// ── reflect helpers ───────────────────────────────────────────────────────────

// hookMethod finds a lifecycle method: no arguments, returning nothing or
// an error.
func hookMethod(v reflect.Value, name string) (reflect.Value, error) {
	m := v.MethodByName(name)
	if !m.IsValid() {
		return reflect.Value{}, fmt.Errorf("method %s not found on %s", name, v.Type())
	}
	mt := m.Type()
	if mt.NumIn() != 0 || mt.NumOut() > 1 || (mt.NumOut() == 1 && mt.Out(0) != errorType) {
		return reflect.Value{}, fmt.Errorf("method %s must be func() or func() error, got %s", name, mt)
	}
	return m, nil
}

// invoke calls fn and returns its trailing error result, if any. Panics
// are returned as errors.
func invoke(fn reflect.Value, args []reflect.Value) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	results := fn.Call(args)
	if n := len(results); n > 0 && results[n-1].Type() == errorType && !results[n-1].IsNil() {
		return results[n-1].Interface().(error)
	}
	return nil
}
