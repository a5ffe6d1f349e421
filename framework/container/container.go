package container

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/km-arc/go-beans/framework/config"
	beanerrors "github.com/km-arc/go-beans/framework/errors"
	"github.com/km-arc/go-beans/framework/meta"
)

// SelfName is the name under which a container registers itself.
const SelfName = "container"

// ── Container ─────────────────────────────────────────────────────────────────

// Container builds a wired object graph from Definitions and manages its
// lifecycle.
//
// New realizes every Definition before returning:
//   - configuration Definitions, ordered by priority then name
//   - Definitions whose type implements Interceptor, appended to the chain
//   - everything else, in the same order
//
// After New returns the container is read-only and its lookups are safe
// for concurrent use.
type Container struct {
	id       string
	registry *Registry
	reader   meta.Reader
	props    PropertyResolver
	log      *zap.Logger

	interceptors []Interceptor
	chained      map[string]bool

	providers *ProviderRegistry

	// state of the current construction pass; nil between passes
	pass *pass

	// realized Definitions, in realization order
	realized []*Definition

	closeMu sync.Mutex
	closed  atomic.Bool
}

// ── Options ───────────────────────────────────────────────────────────────────

type options struct {
	locator      Locator
	roots        []string
	reader       meta.Reader
	props        PropertyResolver
	interceptors []Interceptor
	definitions  []*Definition
	providers    []ServiceProvider
	log          *zap.Logger
}

// Option configures New.
type Option func(*options)

// WithCatalog uses cat as both the component locator and the metadata
// reader, limited to components below roots.
//
//	c, err := container.New(container.WithCatalog(cat, "github.com/acme/shop"))
func WithCatalog(cat *meta.Catalog, roots ...string) Option {
	return func(o *options) {
		o.locator = cat
		o.reader = cat
		o.roots = roots
	}
}

// WithLocator sets the component locator and the roots it scans. A
// locator that is not itself a meta.Reader needs WithReader.
func WithLocator(l Locator, roots ...string) Option {
	return func(o *options) {
		o.locator = l
		o.roots = roots
	}
}

// WithReader sets the metadata reader.
func WithReader(r meta.Reader) Option {
	return func(o *options) { o.reader = r }
}

// WithProperties sets the source of value expressions. Without it every
// expression without a default is missing.
func WithProperties(p PropertyResolver) Option {
	return func(o *options) { o.props = p }
}

// WithInterceptors registers interceptors ahead of interceptor Definitions.
func WithInterceptors(ics ...Interceptor) Option {
	return func(o *options) { o.interceptors = append(o.interceptors, ics...) }
}

// WithDefinitions registers explicit Definitions.
func WithDefinitions(defs ...*Definition) Option {
	return func(o *options) { o.definitions = append(o.definitions, defs...) }
}

// WithProviders registers service providers. Their Register methods run
// before the build, their Boot methods after it.
func WithProviders(ps ...ServiceProvider) Option {
	return func(o *options) { o.providers = append(o.providers, ps...) }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// ── Construction ──────────────────────────────────────────────────────────────

// New builds a container. Any error aborts the build: Definitions realized
// so far are destroyed and no container is returned.
//
//	cat := meta.NewCatalog().
//	    Add(NewUserRepository).
//	    Add(NewUserService, meta.Params(meta.Inject(""), meta.Value("${users.limit:100}")))
//
//	c, err := container.New(
//	    container.WithCatalog(cat),
//	    container.WithProperties(props),
//	    container.WithLogger(log),
//	)
//	if err != nil { ... }
//	defer c.Close()
func New(opts ...Option) (*Container, error) {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Container{
		id:           uuid.NewString(),
		registry:     NewRegistry(),
		reader:       o.reader,
		props:        o.props,
		log:          o.log.With(zap.String("component", "container")),
		interceptors: append([]Interceptor(nil), o.interceptors...),
		chained:      make(map[string]bool),
	}
	if c.props == nil {
		c.props = config.New()
	}
	if c.reader == nil {
		if r, ok := o.locator.(meta.Reader); ok {
			c.reader = r
		} else if o.locator != nil {
			return nil, &beanerrors.InvalidConfigurationError{
				Bean:   SelfName,
				Reason: "locator is not a metadata reader and no reader was given",
			}
		} else {
			// struct tags are still read without a catalog
			c.reader = meta.NewCatalog()
		}
	}

	if err := c.populate(o); err != nil {
		return nil, err
	}
	if err := c.build(); err != nil {
		c.abort(err)
		return nil, err
	}
	c.registry.seal(true)
	if err := c.providers.boot(c); err != nil {
		c.abort(err)
		return nil, err
	}

	c.log.Info("container ready",
		zap.String("id", c.id),
		zap.Int("definitions", c.registry.Len()),
		zap.Int("interceptors", len(c.interceptors)),
	)
	return c, nil
}

// populate fills the registry: the container itself, located components,
// explicit Definitions, then service providers.
func (c *Container) populate(o options) error {
	self := Instance(SelfName, c)
	self.self = true
	if err := c.registry.Register(self); err != nil {
		return err
	}

	if o.locator != nil {
		names, err := o.locator.Scan(o.roots...)
		if err != nil {
			return fmt.Errorf("container: scan %v: %w", o.roots, err)
		}
		b := &definitionBuilder{reader: c.reader, log: c.log}
		defs, err := b.build(names)
		if err != nil {
			return err
		}
		if err := c.register(defs...); err != nil {
			return err
		}
	}

	if err := c.register(o.definitions...); err != nil {
		return err
	}

	c.providers = NewProviderRegistry()
	for _, p := range o.providers {
		if err := c.providers.Register(p); err != nil {
			return err
		}
	}
	return c.providers.registerAll(c.registry)
}

func (c *Container) register(defs ...*Definition) error {
	for _, def := range defs {
		if err := c.registry.Register(def); err != nil {
			return err
		}
		c.log.Debug("definition registered",
			zap.String("bean", def.name),
			zap.Stringer("type", def.typ),
			zap.Stringer("descriptor", def.desc),
		)
	}
	return nil
}

// build realizes every unrealized Definition in phase order.
func (c *Container) build() error {
	c.pass = newPass()
	defer func() { c.pass = nil }()

	defs := c.registry.Definitions()
	sortDefinitions(defs)

	for _, def := range defs {
		if def.configuration {
			if _, err := c.realize(def); err != nil {
				return err
			}
		}
	}

	for _, def := range defs {
		if def.typ.Implements(interceptorType) && !c.chained[def.name] {
			if err := c.chain(def); err != nil {
				return err
			}
		}
	}

	for _, def := range defs {
		if _, err := c.realize(def); err != nil {
			return err
		}
	}
	return nil
}

// chain realizes an interceptor Definition and appends it to the chain.
func (c *Container) chain(def *Definition) error {
	v, err := c.realize(def)
	if err != nil {
		return err
	}
	ic, ok := v.(Interceptor)
	if !ok {
		return &beanerrors.InvalidConfigurationError{
			Bean:   def.name,
			Reason: fmt.Sprintf("interceptor was substituted by %T", v),
		}
	}
	c.interceptors = append(c.interceptors, ic)
	c.chained[def.name] = true
	c.log.Debug("interceptor registered", zap.String("bean", def.name))
	return nil
}

// abort tears down a failed build.
func (c *Container) abort(cause error) {
	c.log.Error("container build failed", zap.String("id", c.id), zap.Error(cause))
	if err := c.Close(); err != nil {
		c.log.Warn("teardown after failed build", zap.Error(err))
	}
}

// ── Introspection ─────────────────────────────────────────────────────────────

// ID returns the unique id of this container instance.
func (c *Container) ID() string { return c.id }

// Definitions returns every Definition in registration order.
func (c *Container) Definitions() []*Definition { return c.registry.Definitions() }

// RealizationOrder returns the names of realized Definitions in the order
// they finished realizing.
func (c *Container) RealizationOrder() []string {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	return names(c.realized)
}

// Registry exposes the Definition registry. It is sealed once New returns;
// add Definitions later through Providers().Register.
func (c *Container) Registry() *Registry { return c.registry }

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger { return c.log }
