// Package aop substitutes decorated instances for container beans.
//
// A rule names a target bean and a handler bean. When the target is
// realized, the handler's Wrap receives it and returns the decorator that
// dependents get instead:
//
//	type Timing struct{}
//
//	func (t *Timing) Wrap(target any, name string) (any, error) {
//	    svc, ok := target.(Service)
//	    if !ok {
//	        return nil, fmt.Errorf("%s is not a Service", name)
//	    }
//	    return &timedService{Service: svc}, nil
//	}
//
//	c, err := container.New(
//	    container.WithCatalog(cat), // registers NewTiming and NewUserService
//	    container.WithProviders(&aop.Provider{
//	        Rules: []aop.Rule{aop.Around("userService", "timing")},
//	    }),
//	)
//
// Handlers are beans themselves and are realized on first use. Several
// rules on one bean nest in declaration order: the first handler wraps the
// target, the second wraps the first decorator.
package aop

import (
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/km-arc/go-beans/framework/container"
)

// Handler decorates a bean instance.
type Handler interface {
	// Wrap returns the instance to use in place of target. A nil result
	// keeps target.
	Wrap(target any, name string) (any, error)
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc func(target any, name string) (any, error)

func (f HandlerFunc) Wrap(target any, name string) (any, error) { return f(target, name) }

var handlerType = reflect.TypeFor[Handler]()

// Rule applies the handler bean Handler to the bean Bean.
type Rule struct {
	Bean    string
	Handler string
}

// Around declares that handler wraps bean.
func Around(bean, handler string) Rule { return Rule{Bean: bean, Handler: handler} }

// ConfigError reports a rule whose handler bean is missing or is not a
// Handler.
type ConfigError struct {
	Bean    string
	Handler string
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("aop: handler %q for bean %q: %s", e.Handler, e.Bean, e.Reason)
}

// ── Advisor ───────────────────────────────────────────────────────────────────

// Advisor is the container.Interceptor that applies rules.
type Advisor struct {
	container.BaseInterceptor

	c      *container.Container
	log    *zap.Logger
	rules  map[string][]string
	unwrap bool

	mu      sync.RWMutex
	origins map[string]any
}

// Option configures an Advisor.
type Option func(*Advisor)

// WithRules adds rules.
func WithRules(rules ...Rule) Option {
	return func(a *Advisor) {
		for _, r := range rules {
			a.rules[r.Bean] = append(a.rules[r.Bean], r.Handler)
		}
	}
}

// UnwrapOnInject hands the undecorated instance to injected fields and
// setters. Constructor and factory arguments still receive the decorator.
func UnwrapOnInject() Option { return func(a *Advisor) { a.unwrap = true } }

// New returns an Advisor bound to c. Rules naming beans c does not define
// are reported as warnings and otherwise ignored.
func New(c *container.Container, opts ...Option) *Advisor {
	a := &Advisor{
		c:       c,
		log:     c.Logger().Named("aop"),
		rules:   make(map[string][]string),
		origins: make(map[string]any),
	}
	for _, opt := range opts {
		opt(a)
	}
	for bean, handlers := range a.rules {
		if c.FindDefinition(bean) == nil {
			a.log.Warn("rule targets an undefined bean",
				zap.String("bean", bean),
				zap.Strings("handlers", handlers),
			)
		}
	}
	return a
}

// AfterInitialization wraps instance with every handler ruled for name.
func (a *Advisor) AfterInitialization(instance any, name string) (any, error) {
	handlers := a.rules[name]
	if len(handlers) == 0 {
		return instance, nil
	}

	current := instance
	for _, handlerName := range handlers {
		h, err := a.handler(name, handlerName)
		if err != nil {
			return nil, err
		}
		wrapped, err := h.Wrap(current, name)
		if err != nil {
			return nil, fmt.Errorf("aop: handler %q: %w", handlerName, err)
		}
		if wrapped != nil {
			current = wrapped
		}
	}

	a.mu.Lock()
	a.origins[name] = instance
	a.mu.Unlock()

	a.log.Debug("bean wrapped",
		zap.String("bean", name),
		zap.Strings("handlers", handlers),
		zap.String("type", fmt.Sprintf("%T", current)),
	)
	return current, nil
}

// OnPropertySet returns the undecorated instance when UnwrapOnInject is set.
func (a *Advisor) OnPropertySet(instance any, name string) (any, error) {
	if !a.unwrap {
		return instance, nil
	}
	if origin, ok := a.Origin(name); ok {
		return origin, nil
	}
	return instance, nil
}

// Origin returns the instance of bean name as it was before wrapping. ok
// is false when no handler wrapped it.
func (a *Advisor) Origin(name string) (any, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	origin, ok := a.origins[name]
	return origin, ok
}

func (a *Advisor) handler(bean, name string) (Handler, error) {
	def := a.c.FindDefinition(name)
	if def == nil {
		return nil, &ConfigError{Bean: bean, Handler: name, Reason: "no such bean"}
	}
	if !def.Type().Implements(handlerType) {
		return nil, &ConfigError{
			Bean:    bean,
			Handler: name,
			Reason:  fmt.Sprintf("%s does not implement aop.Handler", def.Type()),
		}
	}
	v, err := a.c.RealizeEarly(def)
	if err != nil {
		return nil, err
	}
	h, ok := v.(Handler)
	if !ok {
		return nil, &ConfigError{
			Bean:    bean,
			Handler: name,
			Reason:  fmt.Sprintf("instance of type %T is not an aop.Handler", v),
		}
	}
	return h, nil
}

// ── Provider ──────────────────────────────────────────────────────────────────

// BeanName is the name the Provider registers the Advisor under.
const BeanName = "aopAdvisor"

// Provider registers an Advisor as an interceptor bean.
//
//	container.WithProviders(&aop.Provider{Rules: []aop.Rule{aop.Around("repo", "tracing")}})
type Provider struct {
	container.BaseProvider

	Rules          []Rule
	UnwrapOnInject bool
}

func (p *Provider) Register(reg *container.Registry) error {
	opts := []Option{WithRules(p.Rules...)}
	if p.UnwrapOnInject {
		opts = append(opts, UnwrapOnInject())
	}
	return reg.Define(BeanName, func(c *container.Container) *Advisor {
		return New(c, opts...)
	}, container.Order(0))
}
