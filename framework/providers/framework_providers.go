package providers

import (
	"fmt"

	"github.com/km-arc/go-beans/framework/config"
	"github.com/km-arc/go-beans/framework/container"
	"github.com/km-arc/go-beans/framework/inspect"
	"github.com/km-arc/go-beans/framework/metrics"
	"github.com/km-arc/go-beans/framework/routing"
)

// Bean names registered by the framework providers.
const (
	PropertiesBean = "properties"
	RouterBean     = "router"
)

// ── ConfigServiceProvider ─────────────────────────────────────────────────────

// ConfigServiceProvider binds the loaded properties into the container so
// components can inject them.
//
// Registered beans:
//   - "properties" → *config.Properties
//   - "config"     → alias of "properties"
type ConfigServiceProvider struct {
	container.BaseProvider
	Properties *config.Properties
}

func (p *ConfigServiceProvider) Register(reg *container.Registry) error {
	props := p.Properties
	if props == nil {
		props = config.New()
	}
	if err := reg.Register(container.Instance(PropertiesBean, props)); err != nil {
		return err
	}
	return reg.Alias(PropertiesBean, "config")
}

// ── RoutingServiceProvider ────────────────────────────────────────────────────

// RoutingServiceProvider registers the HTTP router.
//
// Registered beans:
//   - "router" → *routing.Router
type RoutingServiceProvider struct {
	container.BaseProvider
}

func (p *RoutingServiceProvider) Register(reg *container.Registry) error {
	return reg.Define(RouterBean, func(c *container.Container) *routing.Router {
		return routing.New(c.Logger().Named("http"))
	})
}

// ── MetricsServiceProvider ────────────────────────────────────────────────────

// MetricsServiceProvider registers the metrics interceptor and, when
// metrics.enabled is true, serves it on the router.
//
// Properties read:
//   - metrics.enabled   (default: false)
//   - metrics.path      (default: "/metrics")
//   - metrics.namespace (default: none)
type MetricsServiceProvider struct {
	metrics.Provider
}

func (p *MetricsServiceProvider) Boot(c *container.Container) error {
	props, err := container.ResolveNamed[*config.Properties](c, PropertiesBean)
	if err != nil {
		return err
	}
	if !props.GetBool("metrics.enabled", false) {
		return nil
	}

	m, err := container.ResolveNamed[*metrics.Collector](c, metrics.BeanName)
	if err != nil {
		return err
	}
	router, err := container.ResolveNamed[*routing.Router](c, RouterBean)
	if err != nil {
		return err
	}
	router.Get(props.Get("metrics.path", "/metrics"), m.Handler().ServeHTTP)
	return nil
}

// ── InspectServiceProvider ────────────────────────────────────────────────────

// InspectServiceProvider mounts the bean inspection endpoints on the
// router when inspect.enabled is true.
//
// Properties read:
//   - inspect.enabled      (default: false)
//   - inspect.prefix       (default: "/debug")
//   - inspect.cors.origins (comma-separated, default: none)
type InspectServiceProvider struct {
	container.BaseProvider
}

func (p *InspectServiceProvider) Boot(c *container.Container) error {
	props, err := container.ResolveNamed[*config.Properties](c, PropertiesBean)
	if err != nil {
		return err
	}
	if !props.GetBool("inspect.enabled", false) {
		return nil
	}

	router, err := container.ResolveNamed[*routing.Router](c, RouterBean)
	if err != nil {
		return err
	}
	origins, err := config.Typed[[]string](props, "${inspect.cors.origins:}")
	if err != nil {
		return fmt.Errorf("providers: inspect: %w", err)
	}

	router.Prefix(props.Get("inspect.prefix", "/debug"), func(r *routing.Router) {
		r.CORS(origins...)
		inspect.Routes(r, c)
	})
	c.Logger().Debug("inspection endpoints mounted")
	return nil
}
