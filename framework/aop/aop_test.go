package aop_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/km-arc/go-beans/framework/aop"
	"github.com/km-arc/go-beans/framework/container"
	beanerrors "github.com/km-arc/go-beans/framework/errors"
	"github.com/km-arc/go-beans/framework/meta"
)

// ── fixtures ──────────────────────────────────────────────────────────────────

type Greeter interface{ Greet(name string) string }

type English struct{ greeted int }

func NewEnglish() *English { return &English{} }

func (e *English) Greet(name string) string {
	e.greeted++
	return "hello " + name
}

type loud struct{ Greeter }

func (l *loud) Greet(name string) string { return strings.ToUpper(l.Greeter.Greet(name)) }

type exclaimed struct{ Greeter }

func (e *exclaimed) Greet(name string) string { return e.Greeter.Greet(name) + "!" }

type Shout struct{}

func NewShout() *Shout { return &Shout{} }

func (*Shout) Wrap(target any, name string) (any, error) {
	g, ok := target.(Greeter)
	if !ok {
		return nil, fmt.Errorf("%s is not a Greeter", name)
	}
	return &loud{Greeter: g}, nil
}

type Exclaim struct{}

func NewExclaim() *Exclaim { return &Exclaim{} }

func (*Exclaim) Wrap(target any, _ string) (any, error) {
	return &exclaimed{Greeter: target.(Greeter)}, nil
}

// Host receives its Greeter through a field.
type Host struct {
	Greeter Greeter `inject:"english"`
}

// Door receives its Greeter through its constructor.
type Door struct{ greeter Greeter }

func NewDoor(g Greeter) *Door { return &Door{greeter: g} }

func catalog() *meta.Catalog {
	return meta.NewCatalog().
		Add(NewEnglish).
		Add(NewShout).
		Add(NewExclaim).
		Add(NewDoor).
		Register(meta.TypeFor[*Host]())
}

func build(t *testing.T, p *aop.Provider, opts ...container.Option) (*container.Container, *aop.Advisor) {
	t.Helper()
	opts = append(opts, container.WithCatalog(catalog()), container.WithProviders(p))
	c, err := container.New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	advisor, err := container.ResolveNamed[*aop.Advisor](c, aop.BeanName)
	require.NoError(t, err)
	return c, advisor
}

// ── wrapping ──────────────────────────────────────────────────────────────────

func TestAdvisor_WrapsTarget(t *testing.T) {
	c, advisor := build(t, &aop.Provider{Rules: []aop.Rule{aop.Around("english", "shout")}})

	door := container.MustResolve[*Door](c)
	host := container.MustResolve[*Host](c)
	assert.Equal(t, "HELLO BOB", door.greeter.Greet("bob"))
	assert.Equal(t, "HELLO BOB", host.Greeter.Greet("bob"))

	stored, err := c.GetByName("english")
	require.NoError(t, err)
	assert.IsType(t, &loud{}, stored)

	origin, ok := advisor.Origin("english")
	require.True(t, ok)
	assert.IsType(t, &English{}, origin)
	assert.Equal(t, 2, origin.(*English).greeted)

	_, ok = advisor.Origin("door")
	assert.False(t, ok)
}

func TestAdvisor_NestsInDeclarationOrder(t *testing.T) {
	c, _ := build(t, &aop.Provider{Rules: []aop.Rule{
		aop.Around("english", "shout"),
		aop.Around("english", "exclaim"),
	}})

	g, err := container.ResolveNamed[Greeter](c, "english")
	require.NoError(t, err)
	assert.Equal(t, "HELLO BOB!", g.Greet("bob"))
}

func TestAdvisor_UnwrapOnInject(t *testing.T) {
	c, _ := build(t, &aop.Provider{
		Rules:          []aop.Rule{aop.Around("english", "shout")},
		UnwrapOnInject: true,
	})

	host := container.MustResolve[*Host](c)
	door := container.MustResolve[*Door](c)

	assert.Equal(t, "hello bob", host.Greeter.Greet("bob"), "fields get the undecorated instance")
	assert.Equal(t, "HELLO BOB", door.greeter.Greet("bob"), "constructors get the decorator")
}

// ── misconfiguration ──────────────────────────────────────────────────────────

func TestAdvisor_ConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler string
		reason  string
	}{
		{name: "undefined handler", handler: "nobody", reason: "no such bean"},
		{name: "not a handler", handler: "host", reason: "does not implement aop.Handler"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := container.New(
				container.WithCatalog(catalog()),
				container.WithProviders(&aop.Provider{Rules: []aop.Rule{aop.Around("english", tt.handler)}}),
			)
			require.ErrorIs(t, err, &beanerrors.BeanCreationError{})

			var cfg *aop.ConfigError
			require.ErrorAs(t, err, &cfg)
			assert.Equal(t, "english", cfg.Bean)
			assert.Equal(t, tt.handler, cfg.Handler)
			assert.Contains(t, cfg.Reason, tt.reason)
		})
	}
}

func TestAdvisor_HandlerFailure(t *testing.T) {
	boom := errors.New("refusing")
	failing := aop.HandlerFunc(func(any, string) (any, error) { return nil, boom })

	_, err := container.New(
		container.WithCatalog(catalog()),
		container.WithDefinitions(container.Instance("failing", failing)),
		container.WithProviders(&aop.Provider{Rules: []aop.Rule{aop.Around("english", "failing")}}),
	)
	require.ErrorIs(t, err, boom)

	var creation *beanerrors.BeanCreationError
	require.ErrorAs(t, err, &creation)
	assert.Equal(t, "english", creation.Bean)
}

func TestAdvisor_NilWrapKeepsTarget(t *testing.T) {
	keep := aop.HandlerFunc(func(any, string) (any, error) { return nil, nil })

	c, advisor := build(t,
		&aop.Provider{Rules: []aop.Rule{aop.Around("english", "keep")}},
		container.WithDefinitions(container.Instance("keep", keep)),
	)

	g, err := container.ResolveNamed[Greeter](c, "english")
	require.NoError(t, err)
	origin, ok := advisor.Origin("english")
	require.True(t, ok)
	assert.Same(t, origin, g)
}

func TestNew_WarnsAboutUndefinedTargets(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	build(t,
		&aop.Provider{Rules: []aop.Rule{aop.Around("german", "shout")}},
		container.WithLogger(zap.New(core)),
	)

	entries := logs.FilterMessage("rule targets an undefined bean").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "german", entries[0].ContextMap()["bean"])
}
