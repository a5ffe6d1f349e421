package container_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/km-arc/go-beans/framework/config"
	"github.com/km-arc/go-beans/framework/container"
	beanerrors "github.com/km-arc/go-beans/framework/errors"
	"github.com/km-arc/go-beans/framework/meta"
)

// ── fixtures ──────────────────────────────────────────────────────────────────

type Store interface{ Kind() string }

type MemoryStore struct{ entries map[string]string }
type DiskStore struct{ path string }

func (*MemoryStore) Kind() string { return "memory" }
func (*DiskStore) Kind() string   { return "disk" }

type Base struct {
	Region string `value:"${app.region:eu}"`
}

type Reporter struct {
	Base

	Primary Store         `inject:"memoryStore"`
	Backup  Store         `inject:"diskStore"`
	Missing Store         `inject:"tapeStore,optional"`
	Period  time.Duration `value:"${report.period:1m}"`
	Title   string        `value:"app.name"`
	Ignored string

	label string
}

func (r *Reporter) SetLabel(label string) { r.label = label }

func injectCatalog() *meta.Catalog {
	return meta.NewCatalog().
		Register(reflect.TypeFor[*MemoryStore]()).
		Register(reflect.TypeFor[*DiskStore]()).
		Register(reflect.TypeFor[*Reporter](), meta.Setter("SetLabel", meta.Value("${report.label:daily}")))
}

// ── fields and setters ────────────────────────────────────────────────────────

func TestInject_FieldsAndSetters(t *testing.T) {
	props := config.New().Set("app.name", "beans").Set("report.period", "90s")
	c := build(t, container.WithCatalog(injectCatalog()), container.WithProperties(props))

	r, err := container.Resolve[*Reporter](c)
	require.NoError(t, err)

	assert.Equal(t, "memory", r.Primary.Kind())
	assert.Equal(t, "disk", r.Backup.Kind())
	assert.Nil(t, r.Missing)
	assert.Equal(t, 90*time.Second, r.Period)
	assert.Equal(t, "beans", r.Title)
	assert.Empty(t, r.Ignored)
	assert.Equal(t, "eu", r.Region, "embedded struct fields are injected")
	assert.Equal(t, "daily", r.label)
}

type Lonely struct {
	Store Store `inject:"tapeStore"`
}

func TestInject_RequiredNamedMissing(t *testing.T) {
	cat := meta.NewCatalog().Register(reflect.TypeFor[*Lonely]())

	_, err := container.New(container.WithCatalog(cat))
	var unsatisfied *beanerrors.UnsatisfiedDependencyError
	require.ErrorAs(t, err, &unsatisfied)
	assert.Equal(t, "lonely", unsatisfied.Bean)
	assert.Equal(t, "tapeStore", unsatisfied.Name)
	assert.Equal(t, "Lonely.Store", unsatisfied.Member)
}

type WrongType struct {
	Store Store `inject:"ghost"`
}

func TestInject_NamedOfWrongType(t *testing.T) {
	cat := meta.NewCatalog().
		Register(reflect.TypeFor[*Ghost]()).
		Register(reflect.TypeFor[*WrongType]())

	_, err := container.New(container.WithCatalog(cat))
	assert.ErrorIs(t, err, &beanerrors.BeanNotOfRequiredTypeError{})
}

// ── invalid targets ──────────────────────────────────────────────────────────

type Hidden struct {
	store Store `inject:""`
}

type Both struct {
	Store Store `inject:"" value:"${x}"`
}

type BadSetter struct{}

func (*BadSetter) SetPair(a, b string) {}

type Ghost struct{}

func TestInject_InvalidTargets(t *testing.T) {
	tests := []struct {
		name    string
		catalog *meta.Catalog
		want    error
	}{
		{
			name:    "unexported field",
			catalog: meta.NewCatalog().Register(reflect.TypeFor[*Hidden]()),
			want:    &beanerrors.InvalidInjectionTargetError{},
		},
		{
			name:    "both tags",
			catalog: meta.NewCatalog().Register(reflect.TypeFor[*Both]()),
			want:    &beanerrors.ConflictingInjectionError{},
		},
		{
			name: "setter with two arguments",
			catalog: meta.NewCatalog().Register(reflect.TypeFor[*BadSetter](),
				meta.Setter("SetPair", meta.Value("${x:1}"))),
			want: &beanerrors.InvalidInjectionTargetError{},
		},
		{
			name: "setter not found",
			catalog: meta.NewCatalog().Register(reflect.TypeFor[*Ghost](),
				meta.Setter("SetNothing", meta.Value("${x:1}"))),
			want: &beanerrors.InvalidInjectionTargetError{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := container.New(container.WithCatalog(tt.catalog))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

type Settings struct{ Port int }

// SetPort has a value receiver, so the assignment is lost.
func (s Settings) SetPort(port int) { s.Port = port }

func TestInject_ValueReceiverSetterWarns(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	cat := meta.NewCatalog().Register(reflect.TypeFor[*Settings](), meta.Setter("SetPort", meta.Value("${port:8080}")))

	c := build(t, container.WithCatalog(cat), container.WithLogger(zap.New(core)))

	entries := logs.FilterMessage("setter has a value receiver, assignments will not persist").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "settings", entries[0].ContextMap()["bean"])

	s, err := container.Resolve[*Settings](c)
	require.NoError(t, err)
	assert.Zero(t, s.Port)
}

// ── OnPropertySet ────────────────────────────────────────────────────────────

// unwrapper hands dependents a different MemoryStore than the one stored
// in the container, and records the dependency names it was offered.
type unwrapper struct {
	container.BaseInterceptor
	offered []string
	swapped *MemoryStore
}

func (u *unwrapper) OnPropertySet(v any, name string) (any, error) {
	u.offered = append(u.offered, name)
	if _, ok := v.(*MemoryStore); ok {
		return u.swapped, nil
	}
	return v, nil
}

func TestInject_OnPropertySetSubstitutes(t *testing.T) {
	u := &unwrapper{swapped: &MemoryStore{}}
	c := build(t,
		container.WithCatalog(injectCatalog()),
		container.WithProperties(config.New().Set("app.name", "beans")),
		container.WithInterceptors(u),
	)

	r, err := container.Resolve[*Reporter](c)
	require.NoError(t, err)

	stored, err := c.GetByName("memoryStore")
	require.NoError(t, err)

	assert.Same(t, u.swapped, r.Primary)
	assert.NotSame(t, stored, r.Primary)
	assert.Equal(t, []string{"memoryStore", "diskStore"}, u.offered)
}

// ── contextual overrides ─────────────────────────────────────────────────────

type Archiver struct{ Store Store }

func NewArchiver(s Store) *Archiver { return &Archiver{Store: s} }

type contextualProvider struct{ container.BaseProvider }

func (p *contextualProvider) Register(reg *container.Registry) error {
	if err := container.Needs[Store](reg.When("archiver")).Give("diskStore"); err != nil {
		return err
	}
	return reg.Alias("diskStore", "cold")
}

func TestInject_ContextualOverride(t *testing.T) {
	cat := meta.NewCatalog().
		Register(reflect.TypeFor[*MemoryStore]()).
		Register(reflect.TypeFor[*DiskStore]()).
		Add(NewArchiver)

	_, err := container.New(container.WithCatalog(cat))
	require.ErrorIs(t, err, &beanerrors.AmbiguousDependencyError{}, "two stores and no primary")

	c := build(t, container.WithCatalog(cat), container.WithProviders(&contextualProvider{}))

	a, err := container.Resolve[*Archiver](c)
	require.NoError(t, err)
	assert.Equal(t, "disk", a.Store.Kind())

	cold, err := c.GetByName("cold")
	require.NoError(t, err)
	assert.Same(t, a.Store, cold)
}

// ── optional members without a match ─────────────────────────────────────────

type Tape interface{ Rewind() }

type CassetteTape struct{ side string }

func (*CassetteTape) Rewind() {}

type Recorder struct {
	Tape Tape `inject:",optional"`

	swapped bool
}

func NewRecorder() *Recorder { return &Recorder{Tape: &CassetteTape{side: "a"}} }

func (r *Recorder) UseTape(Tape) { r.swapped = true }

func TestInject_OptionalUnmatchedLeavesMemberAlone(t *testing.T) {
	cassette := &CassetteTape{}
	cat := meta.NewCatalog().
		Add(NewRecorder, meta.Setter("UseTape", meta.Inject("").AsOptional()))
	c := build(t, container.WithCatalog(cat))

	r, err := container.Resolve[*Recorder](c)
	require.NoError(t, err)
	require.NotNil(t, r.Tape, "constructor default survives")
	assert.IsType(t, cassette, r.Tape)
	assert.False(t, r.swapped, "optional setter is not called without a match")
}

func TestInject_OptionalMatchedIsAssigned(t *testing.T) {
	tape := &CassetteTape{side: "b"}
	cat := meta.NewCatalog().
		Add(NewRecorder, meta.Setter("UseTape", meta.Inject("").AsOptional()))
	c := build(t,
		container.WithCatalog(cat),
		container.WithDefinitions(container.Instance("tape", tape)),
	)

	r, err := container.Resolve[*Recorder](c)
	require.NoError(t, err)
	assert.Same(t, tape, r.Tape)
	assert.True(t, r.swapped)
}
