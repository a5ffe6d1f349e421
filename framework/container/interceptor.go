package container

import "reflect"

// Interceptor observes and may substitute instances while they are realized.
//
// Every hook returns the instance the container should use from then on:
// the one it was given, or a substitute such as a decorating wrapper. A nil
// result with a nil error keeps the current instance. An error aborts the
// build with a BeanCreationError.
//
// Interceptors run in registration order: those passed with
// WithInterceptors first, then Definitions whose produced type implements
// Interceptor, in priority order.
type Interceptor interface {
	// BeforeInitialization runs after construction, before property
	// injection and the init hook.
	BeforeInitialization(instance any, name string) (any, error)

	// AfterInitialization runs after the init hook. Its result becomes the
	// Definition's instance and is what dependents receive.
	AfterInitialization(instance any, name string) (any, error)

	// OnPropertySet runs before an injected dependency is assigned to a
	// field or setter. name is the dependency's Definition name.
	OnPropertySet(instance any, name string) (any, error)
}

// DestroyObserver is implemented by interceptors that want to be told
// about destroy hooks run by Close. err is the hook's failure, if any.
type DestroyObserver interface {
	AfterDestroy(name string, err error)
}

// BaseInterceptor is an embeddable no-op Interceptor. Embed it and
// override only the hooks you need.
//
//	type Auditor struct{ container.BaseInterceptor }
//	func (a *Auditor) AfterInitialization(v any, name string) (any, error) { ... }
type BaseInterceptor struct{}

func (BaseInterceptor) BeforeInitialization(instance any, _ string) (any, error) { return instance, nil }
func (BaseInterceptor) AfterInitialization(instance any, _ string) (any, error)  { return instance, nil }
func (BaseInterceptor) OnPropertySet(instance any, _ string) (any, error)        { return instance, nil }

// AfterInitFunc adapts a function to an Interceptor that only implements
// AfterInitialization.
//
//	c, err := container.New(container.WithInterceptors(
//	    container.AfterInitFunc(func(v any, name string) (any, error) { return v, nil }),
//	))
type AfterInitFunc func(instance any, name string) (any, error)

func (f AfterInitFunc) AfterInitialization(instance any, name string) (any, error) {
	return f(instance, name)
}

func (AfterInitFunc) BeforeInitialization(instance any, _ string) (any, error) { return instance, nil }
func (AfterInitFunc) OnPropertySet(instance any, _ string) (any, error)        { return instance, nil }

var interceptorType = reflect.TypeFor[Interceptor]()

type hook func(Interceptor, any, string) (any, error)

func beforeInit(ic Interceptor, v any, name string) (any, error) {
	return ic.BeforeInitialization(v, name)
}

func afterInit(ic Interceptor, v any, name string) (any, error) {
	return ic.AfterInitialization(v, name)
}

func onPropertySet(ic Interceptor, v any, name string) (any, error) {
	return ic.OnPropertySet(v, name)
}

// apply runs h for every interceptor, threading the instance through.
func (c *Container) apply(h hook, instance any, name string) (any, error) {
	for _, ic := range c.interceptors {
		out, err := h(ic, instance, name)
		if err != nil {
			return nil, err
		}
		if out != nil {
			instance = out
		}
	}
	return instance, nil
}
