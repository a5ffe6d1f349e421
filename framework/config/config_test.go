package config_test

import (
	"net/netip"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/km-arc/go-beans/framework/config"
	beanerrors "github.com/km-arc/go-beans/framework/errors"
)

// ── helpers ──────────────────────────────────────────────────────────────────

func load(t *testing.T) *config.Properties {
	t.Helper()
	p, err := config.Load(config.Sources{
		Defaults:    map[string]string{"app.name": "default", "app.env": "local"},
		YAMLFiles:   []string{"testdata/app.yaml"},
		EnvFiles:    []string{"testdata/app.env"},
		SkipEnviron: true,
	})
	require.NoError(t, err)
	return p
}

// ── Load ─────────────────────────────────────────────────────────────────────

func TestLoad_Precedence(t *testing.T) {
	p := load(t)

	tests := []struct {
		key  string
		want string
	}{
		{"app.env", "local"},                 // default only
		{"app.name", "beans"},                // yaml over default
		{"MAIL_DRIVER", "smtp"},              // .env over yaml
		{"MAIL_PORT", "587"},                 // .env only
		{"db.pool.max", "20"},                // nested mapping
		{"db.replicas", "r1.local,r2.local"}, // sequence joined
		{"db.replicas[1]", "r2.local"},       // sequence element
		{"mail.relay", ""},                   // yaml null
		{"db.url", "postgres://localhost/beans"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok, err := p.Lookup(tt.key)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoad_EnvironOverridesFiles(t *testing.T) {
	t.Setenv("MAIL_PORT", "2525")

	p, err := config.Load(config.Sources{EnvFiles: []string{"testdata/app.env"}})
	require.NoError(t, err)
	assert.Equal(t, "2525", p.Get("MAIL_PORT", ""))
}

func TestLoad_MissingEnvFileSkipped(t *testing.T) {
	p, err := config.Load(config.Sources{
		EnvFiles:    []string{"testdata/nope.env", "testdata/empty.env"},
		SkipEnviron: true,
	})
	require.NoError(t, err)
	assert.Empty(t, p.Keys())
}

func TestLoad_MissingYAMLFails(t *testing.T) {
	_, err := config.Load(config.Sources{YAMLFiles: []string{"testdata/nope.yaml"}, SkipEnviron: true})
	assert.Error(t, err)
}

func TestLoadYAMLBytes_RootMustBeMapping(t *testing.T) {
	err := config.New().LoadYAMLBytes([]byte("- a\n- b\n"))
	assert.Error(t, err)

	assert.NoError(t, config.New().LoadYAMLBytes(nil))
}

func TestLoad_LogsSources(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	_, err := config.Load(config.Sources{
		YAMLFiles:   []string{"testdata/app.yaml"},
		SkipEnviron: true,
	}, config.WithLogger(zap.New(core)))
	require.NoError(t, err)

	entries := logs.FilterMessage("property source loaded").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "testdata/app.yaml", entries[0].ContextMap()["source"])
}

// ── Lookup ───────────────────────────────────────────────────────────────────

func TestLookup_Expressions(t *testing.T) {
	p := load(t)

	tests := []struct {
		expr   string
		want   string
		wantOK bool
	}{
		{"app.name", "beans", true},
		{"${app.name}", "beans", true},
		{"${app.name:other}", "beans", true},
		{"${nope:fallback}", "fallback", true},
		{"${nope:}", "", true},
		{"${nope:${app.name}}", "beans", true},
		{"${mail.sender}", "beans", true}, // value is itself an expression
		{"${nope}", "", false},
		{"nope", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, ok, err := p.Lookup(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLookup_InvalidExpressions(t *testing.T) {
	p := config.New().Set("loop", "${loop}")

	for _, expr := range []string{"", "${}", "${:x}", "loop"} {
		t.Run(expr, func(t *testing.T) {
			_, _, err := p.Lookup(expr)
			assert.ErrorIs(t, err, &beanerrors.InvalidExpressionError{})
		})
	}
}

func TestLookup_NestedMissingIsError(t *testing.T) {
	p := config.New().Set("a", "${b}")

	_, _, err := p.Lookup("a")
	var missing *beanerrors.MissingPropertyError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "b", missing.Key)
}

// ── Resolve ──────────────────────────────────────────────────────────────────

func TestResolve_Missing(t *testing.T) {
	_, err := config.New().Resolve("${db.url}", reflect.TypeFor[string]())

	var missing *beanerrors.MissingPropertyError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "db.url", missing.Key)
}

func TestResolve_Conversions(t *testing.T) {
	p := load(t)

	type level string

	tests := []struct {
		expr string
		typ  reflect.Type
		want any
	}{
		{"${app.port}", reflect.TypeFor[int](), 8080},
		{"${app.port}", reflect.TypeFor[uint16](), uint16(8080)},
		{"${app.port}", reflect.TypeFor[float64](), float64(8080)},
		{"${app.debug}", reflect.TypeFor[bool](), true},
		{"${app.name}", reflect.TypeFor[string](), "beans"},
		{"${app.name}", reflect.TypeFor[level](), level("beans")},
		{"${app.name}", nil, "beans"},
		{"${app.name}", reflect.TypeFor[any](), "beans"},
		{"${db.timeout}", reflect.TypeFor[time.Duration](), 5 * time.Second},
		{"${db.replicas}", reflect.TypeFor[[]string](), []string{"r1.local", "r2.local"}},
		{"${x:5}", reflect.TypeFor[int64](), int64(5)},
		{"${x:2024-01-02}", reflect.TypeFor[time.Time](), time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"${x:10.0.0.1}", reflect.TypeFor[netip.Addr](), netip.MustParseAddr("10.0.0.1")},
	}

	for _, tt := range tests {
		name := tt.expr
		if tt.typ != nil {
			name += "/" + tt.typ.String()
		}
		t.Run(name, func(t *testing.T) {
			got, err := p.Resolve(tt.expr, tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_ConversionErrors(t *testing.T) {
	p := load(t)

	tests := []struct {
		expr string
		typ  reflect.Type
	}{
		{"${app.name}", reflect.TypeFor[int]()},
		{"${app.port}", reflect.TypeFor[int8]()}, // overflow
		{"${app.name}", reflect.TypeFor[bool]()},
		{"${app.name}", reflect.TypeFor[time.Duration]()},
		{"${app.name}", reflect.TypeFor[time.Time]()},
		{"${app.name}", reflect.TypeFor[netip.Addr]()},
		{"${app.name}", reflect.TypeFor[[]int]()},
		{"${app.name}", reflect.TypeFor[map[string]string]()},
	}

	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			_, err := p.Resolve(tt.expr, tt.typ)
			assert.ErrorIs(t, err, &beanerrors.PropertyConversionError{})
		})
	}
}

// ── helpers kept from the env-only loader ───────────────────────────────────

func TestGetters(t *testing.T) {
	p := load(t)

	assert.Equal(t, "beans", p.Get("app.name", "x"))
	assert.Equal(t, "x", p.Get("nope", "x"))
	assert.Equal(t, 8080, p.GetInt("app.port", 1))
	assert.Equal(t, 1, p.GetInt("app.name", 1))
	assert.Equal(t, 1, p.GetInt("nope", 1))
	assert.True(t, p.GetBool("app.debug", false))
	assert.False(t, p.GetBool("nope", false))
	assert.True(t, p.GetBool("app.name", true))
}

func TestContainsAndKeys(t *testing.T) {
	p := config.New().SetAll(map[string]string{"b": "2", "a": "1"})

	assert.True(t, p.Contains("a"))
	assert.False(t, p.Contains("c"))
	assert.Equal(t, []string{"a", "b"}, p.Keys())
}

func TestTyped(t *testing.T) {
	p := config.New().Set("http.timeout", "45s").Set("cors.origins", "a.test, b.test")

	timeout, err := config.Typed[time.Duration](p, "${http.timeout:30s}")
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, timeout)

	origins, err := config.Typed[[]string](p, "${cors.origins}")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.test", "b.test"}, origins)

	none, err := config.Typed[[]string](p, "${cors.none:}")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = config.Typed[int](p, "${http.timeout}")
	assert.ErrorIs(t, err, &beanerrors.PropertyConversionError{})
}
