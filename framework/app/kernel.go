package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/km-arc/go-beans/framework/config"
	"github.com/km-arc/go-beans/framework/container"
	"github.com/km-arc/go-beans/framework/meta"
	"github.com/km-arc/go-beans/framework/providers"
	"github.com/km-arc/go-beans/framework/routing"
)

// Config describes how to bootstrap an Application.
type Config struct {
	// Property sources, lowest precedence first. The process environment
	// is always read last.
	YAMLFiles []string
	EnvFiles  []string
	Defaults  map[string]string

	// Components to scan, limited to packages under Roots when set.
	Catalog *meta.Catalog
	Roots   []string

	Definitions  []*container.Definition
	Providers    []container.ServiceProvider
	Interceptors []container.Interceptor

	// Logger overrides the logger built from app.debug / APP_DEBUG.
	Logger *zap.Logger
}

// Application owns the properties, the logger and the container built
// from them.
type Application struct {
	props     *config.Properties
	container *container.Container
	log       *zap.Logger
	ownLog    bool
}

// New loads properties, registers the framework providers followed by
// cfg.Providers and builds the container.
//
//	application, err := app.New(app.Config{
//	    YAMLFiles: []string{"config/app.yaml"},
//	    EnvFiles:  []string{".env"},
//	    Catalog:   catalog,
//	})
//	if err != nil { ... }
//	defer application.Close()
func New(cfg Config) (*Application, error) {
	props, err := config.Load(config.Sources{
		Defaults:  cfg.Defaults,
		YAMLFiles: cfg.YAMLFiles,
		EnvFiles:  cfg.EnvFiles,
	}, config.WithLogger(cfg.Logger))
	if err != nil {
		return nil, err
	}

	a := &Application{props: props, log: cfg.Logger}
	if a.log == nil {
		if a.log, err = NewLogger(a.Debug()); err != nil {
			return nil, err
		}
		a.ownLog = true
	}

	// Framework core providers first, then the application's.
	ps := []container.ServiceProvider{
		&providers.ConfigServiceProvider{Properties: props},
		&providers.RoutingServiceProvider{},
		&providers.MetricsServiceProvider{},
		&providers.InspectServiceProvider{},
	}
	ps = append(ps, cfg.Providers...)

	opts := []container.Option{
		container.WithProperties(props),
		container.WithLogger(a.log),
		container.WithDefinitions(cfg.Definitions...),
		container.WithInterceptors(cfg.Interceptors...),
		container.WithProviders(ps...),
	}
	if cfg.Catalog != nil {
		opts = append(opts, container.WithCatalog(cfg.Catalog, cfg.Roots...))
	}

	a.container, err = container.New(opts...)
	if err != nil {
		a.syncLog()
		return nil, err
	}
	return a, nil
}

// NewLogger returns a development logger when debug is set, a production
// logger otherwise.
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// ── Accessors ─────────────────────────────────────────────────────────────────

// ID returns the container's unique id.
func (a *Application) ID() string                      { return a.container.ID() }
func (a *Application) Properties() *config.Properties  { return a.props }
func (a *Application) Container() *container.Container { return a.container }
func (a *Application) Logger() *zap.Logger             { return a.log }

// Debug reports app.debug, falling back to APP_DEBUG.
func (a *Application) Debug() bool {
	return a.props.GetBool("${app.debug:${APP_DEBUG:false}}", false)
}

// Router resolves the HTTP router.
func (a *Application) Router() (*routing.Router, error) {
	return container.ResolveNamed[*routing.Router](a.container, providers.RouterBean)
}

// Register adds a ServiceProvider after boot. Its Definitions are realized
// and it is booted immediately.
func (a *Application) Register(provider container.ServiceProvider) error {
	return a.container.Providers().Register(provider)
}

// ── Serve ─────────────────────────────────────────────────────────────────────

// Run serves the router on app.port (default 8000) until ctx is done.
func (a *Application) Run(ctx context.Context) error {
	addr := net.JoinHostPort(a.props.Get("app.host", ""), a.props.Get("app.port", "8000"))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return a.Serve(ctx, ln)
}

// Serve serves the router on ln until ctx is done, then shuts down
// gracefully within app.shutdown_timeout.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	router, err := a.Router()
	if err != nil {
		return err
	}
	timeout, err := config.Typed[time.Duration](a.props, "${app.shutdown_timeout:10s}")
	if err != nil {
		return err
	}

	srv := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	a.log.Info("serving",
		zap.String("name", a.props.Get("app.name", "beans")),
		zap.String("addr", ln.Addr().String()),
	)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close closes the container and flushes the logger.
func (a *Application) Close() error {
	err := a.container.Close()
	a.syncLog()
	return err
}

func (a *Application) syncLog() {
	if a.ownLog {
		// stderr cannot be synced on every platform
		_ = a.log.Sync()
	}
}
