package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/km-arc/go-beans/framework/aop"
	"github.com/km-arc/go-beans/framework/app"
	"github.com/km-arc/go-beans/framework/container"
	"github.com/km-arc/go-beans/framework/meta"
	"github.com/km-arc/go-beans/framework/providers"
	"github.com/km-arc/go-beans/framework/routing"
)

func main() {
	catalog := meta.NewCatalog().
		Add(NewEnglish, meta.Primary()).
		Add(NewTiming)

	application, err := app.New(app.Config{
		YAMLFiles: []string{"config/app.yaml"},
		EnvFiles:  []string{".env"},
		Defaults: map[string]string{
			"inspect.enabled": "true",
			"metrics.enabled": "true",
		},
		Catalog: catalog,
		Providers: []container.ServiceProvider{
			&aop.Provider{Rules: []aop.Rule{aop.Around("english", "timing")}},
			&GreetingServiceProvider{},
		},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		application.Logger().Error("server stopped", zap.Error(err))
	}
}

// ── Components ────────────────────────────────────────────────────────────────

type Greeter interface {
	Greet(name string) string
}

type English struct {
	Prefix string `value:"${greeting.prefix:Hello}"`
}

func NewEnglish() *English { return &English{} }

func (e *English) Greet(name string) string { return e.Prefix + ", " + name }

// Timing logs how long each Greet call takes.
type Timing struct {
	log *zap.Logger
}

func NewTiming(c *container.Container) *Timing {
	return &Timing{log: c.Logger().Named("timing")}
}

func (t *Timing) Wrap(target any, name string) (any, error) {
	g, ok := target.(Greeter)
	if !ok {
		return nil, fmt.Errorf("timing: %s is not a Greeter", name)
	}
	return timedGreeter{next: g, log: t.log.With(zap.String("bean", name))}, nil
}

type timedGreeter struct {
	next Greeter
	log  *zap.Logger
}

func (g timedGreeter) Greet(name string) string {
	start := time.Now()
	defer func() { g.log.Debug("greet", zap.Duration("took", time.Since(start))) }()
	return g.next.Greet(name)
}

// ── Routes ────────────────────────────────────────────────────────────────────

// GreetingServiceProvider mounts GET /greet/{name}.
type GreetingServiceProvider struct {
	container.BaseProvider
}

func (p *GreetingServiceProvider) Boot(c *container.Container) error {
	router, err := container.ResolveNamed[*routing.Router](c, providers.RouterBean)
	if err != nil {
		return err
	}
	greeter, err := container.Resolve[Greeter](c)
	if err != nil {
		return err
	}
	router.Get("/greet/{name}", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, greeter.Greet(routing.Param(r, "name")))
	})
	return nil
}
