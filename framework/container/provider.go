package container

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	beanerrors "github.com/km-arc/go-beans/framework/errors"
)

// ── ServiceProvider interface ─────────────────────────────────────────────────

// ServiceProvider groups the registration of related Definitions.
//
// Register runs before the container builds and may only add Definitions,
// aliases and contextual overrides. Boot runs after every Definition is
// realized, in provider registration order, and may look anything up.
//
//	type MailProvider struct{ container.BaseProvider }
//
//	func (p *MailProvider) Register(reg *container.Registry) error {
//	    return reg.Define("mailer", NewSMTPMailer,
//	        container.Params(meta.Value("${mail.host}"), meta.Value("${mail.port:587}")),
//	        container.DestroyMethod("Close"),
//	    )
//	}
//
//	func (p *MailProvider) Boot(c *container.Container) error {
//	    m, err := container.ResolveNamed[*SMTPMailer](c, "mailer")
//	    if err != nil {
//	        return err
//	    }
//	    return m.Ping()
//	}
type ServiceProvider interface {
	// Register adds Definitions to the registry.
	// Do NOT look up instances here, use Boot for that.
	Register(reg *Registry) error

	// Boot is called after the container is built.
	Boot(c *Container) error
}

// ── BaseProvider ──────────────────────────────────────────────────────────────

// BaseProvider is an embeddable struct with no-op Register and Boot.
// Embed it and override only what you need.
//
//	type MyProvider struct{ container.BaseProvider }
//	func (p *MyProvider) Register(reg *container.Registry) error { ... }
type BaseProvider struct{}

func (p *BaseProvider) Register(_ *Registry) error { return nil }
func (p *BaseProvider) Boot(_ *Container) error    { return nil }

// ── ProviderRegistry ──────────────────────────────────────────────────────────

// ProviderRegistry tracks providers, calls Register on each once and boots
// them after the container is built.
type ProviderRegistry struct {
	app        *Container
	providers  []ServiceProvider
	registered map[ServiceProvider]bool
	booted     bool
}

// NewProviderRegistry returns an empty provider registry.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{registered: make(map[ServiceProvider]bool)}
}

// Register adds a provider. Registering the same provider twice is a
// no-op. A provider added after boot is registered, its Definitions are
// realized, and it is booted immediately. If any of that fails, the
// Definitions it added are destroyed and removed and the provider is
// forgotten, so it may be registered again.
//
// Registering after boot must not run concurrently with lookups or Close.
func (r *ProviderRegistry) Register(provider ServiceProvider) error {
	if r.registered[provider] {
		return nil
	}
	if r.booted {
		if err := r.app.extend(provider); err != nil {
			return err
		}
	}
	r.registered[provider] = true
	r.providers = append(r.providers, provider)
	return nil
}

// registerAll calls Register on every provider added so far.
func (r *ProviderRegistry) registerAll(reg *Registry) error {
	for _, provider := range r.providers {
		if err := provider.Register(reg); err != nil {
			return fmt.Errorf("container: register provider %T: %w", provider, err)
		}
	}
	return nil
}

// boot calls Boot on every provider in registration order. Later calls
// are no-ops.
func (r *ProviderRegistry) boot(app *Container) error {
	if r.booted {
		return nil
	}
	r.booted = true
	r.app = app
	for _, provider := range r.providers {
		if err := provider.Boot(app); err != nil {
			return fmt.Errorf("container: boot provider %T: %w", provider, err)
		}
	}
	return nil
}

// Booted reports whether the providers have been booted.
func (r *ProviderRegistry) Booted() bool { return r.booted }

// Providers returns the registered providers in registration order.
func (r *ProviderRegistry) Providers() []ServiceProvider { return r.providers }

// Providers returns the container's provider registry. Providers added to
// it are registered and booted immediately.
func (c *Container) Providers() *ProviderRegistry { return c.providers }

// extend registers, builds and boots a provider on a built container. On
// failure everything the provider added is rolled back.
func (c *Container) extend(provider ServiceProvider) error {
	if c.closed.Load() {
		return beanerrors.ErrContainerClosed
	}
	mark := c.registry.snapshot()
	realized, chained := len(c.realized), len(c.interceptors)

	err := c.late(provider)
	if err == nil {
		return nil
	}

	added := c.registry.since(mark)
	for _, def := range added {
		delete(c.chained, def.name)
	}
	if derr := c.destroy(c.realized[realized:]); derr != nil {
		c.log.Warn("teardown after failed provider", zap.Error(derr))
	}
	c.realized = slices.Clip(c.realized[:realized])
	c.interceptors = slices.Clip(c.interceptors[:chained])
	c.registry.restore(mark)

	c.log.Error("late provider rolled back",
		zap.String("provider", fmt.Sprintf("%T", provider)),
		zap.Strings("definitions", names(added)),
		zap.Error(err),
	)
	return err
}

func (c *Container) late(provider ServiceProvider) error {
	c.registry.seal(false)
	err := provider.Register(c.registry)
	c.registry.seal(true)
	if err != nil {
		return fmt.Errorf("container: register provider %T: %w", provider, err)
	}
	if err := c.build(); err != nil {
		return err
	}
	if err := provider.Boot(c); err != nil {
		return fmt.Errorf("container: boot provider %T: %w", provider, err)
	}
	return nil
}
