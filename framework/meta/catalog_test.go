package meta_test

import (
	"math"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-beans/framework/meta"
)

// ── fixtures ──────────────────────────────────────────────────────────────────

type Clock struct{}

type Mailer struct {
	Clock *Clock `inject:""`
	Relay string `value:"${mail.relay:localhost}"`
	Spare *Clock `inject:"backup,optional"`
	Plain string
}

func NewMailer(c *Clock, from string) *Mailer { return &Mailer{Clock: c, Relay: from} }

func (m *Mailer) SetClock(c *Clock) { m.Clock = c }

type Infra struct{}

func NewInfra() *Infra { return &Infra{} }

func (i *Infra) Clock() *Clock { return &Clock{} }

func catalog() *meta.Catalog {
	return meta.NewCatalog().
		Add(NewMailer,
			meta.Name("mailer"),
			meta.Primary(),
			meta.Order(3),
			meta.Init("Start"),
			meta.Destroy("Stop"),
			meta.Params(meta.Inject(""), meta.Value("${mail.from}")),
			meta.Setter("SetClock", meta.Inject("clock").AsOptional()),
		).
		Add(NewInfra,
			meta.Configuration(),
			meta.Factory("Clock", meta.Name("systemClock"), meta.Primary(), meta.Destroy("Close")),
		)
}

var (
	mailerType = reflect.TypeFor[*Mailer]()
	infraType  = reflect.TypeFor[*Infra]()
)

// ── Scan / TypeOf ─────────────────────────────────────────────────────────────

func TestCatalog_ScanAllSorted(t *testing.T) {
	names, err := catalog().Scan()
	require.NoError(t, err)

	pkg := reflect.TypeFor[Clock]().PkgPath()
	assert.Equal(t, []string{pkg + ".Infra", pkg + ".Mailer"}, names)
}

func TestCatalog_ScanFiltersByRoot(t *testing.T) {
	cat := catalog()
	pkg := reflect.TypeFor[Clock]().PkgPath()

	names, err := cat.Scan(pkg)
	require.NoError(t, err)
	assert.Len(t, names, 2)

	names, err = cat.Scan("example.com/elsewhere")
	require.NoError(t, err)
	assert.Empty(t, names)

	// a sibling package sharing a prefix is not below the root
	names, err = cat.Scan(pkg[:len(pkg)-1])
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestCatalog_TypeOf(t *testing.T) {
	cat := catalog()
	got, ok := cat.TypeOf(meta.QualifiedName(mailerType))
	require.True(t, ok)
	assert.Equal(t, mailerType, got)

	_, ok = cat.TypeOf("nope.Nope")
	assert.False(t, ok)
}

func TestCatalog_Constructors(t *testing.T) {
	cat := catalog()
	assert.Len(t, cat.Constructors(mailerType), 1)
	assert.Empty(t, cat.Constructors(reflect.TypeFor[*Clock]()))

	cat.Register(mailerType, meta.Constructor(func() *Mailer { return nil }))
	assert.Len(t, cat.Constructors(mailerType), 2)
}

func TestCatalog_AddPanicsOnNonFunction(t *testing.T) {
	assert.Panics(t, func() { meta.NewCatalog().Add("not a func") })
	assert.Panics(t, func() { meta.NewCatalog().Add(func() {}) })
}

// ── Tag ───────────────────────────────────────────────────────────────────────

func TestCatalog_TypeTags(t *testing.T) {
	cat := catalog()
	el := meta.TypeElement{Type: mailerType}

	p, ok := cat.Tag(el, meta.KindComponent)
	require.True(t, ok)
	assert.Equal(t, "mailer", p.Name)

	_, ok = cat.Tag(el, meta.KindPrimary)
	assert.True(t, ok)

	p, ok = cat.Tag(el, meta.KindOrder)
	require.True(t, ok)
	assert.Equal(t, 3, p.Order)

	p, ok = cat.Tag(el, meta.KindInit)
	require.True(t, ok)
	assert.Equal(t, "Start", p.Value)

	p, ok = cat.Tag(el, meta.KindDestroy)
	require.True(t, ok)
	assert.Equal(t, "Stop", p.Value)

	_, ok = cat.Tag(el, meta.KindConfiguration)
	assert.False(t, ok)

	_, ok = cat.Tag(meta.TypeElement{Type: reflect.TypeFor[*Clock]()}, meta.KindComponent)
	assert.False(t, ok, "unregistered types are not components")
}

func TestCatalog_OrderDefaultsToMax(t *testing.T) {
	p, ok := catalog().Tag(meta.TypeElement{Type: infraType}, meta.KindOrder)
	assert.False(t, ok)
	assert.Equal(t, math.MaxInt, p.Order)
}

func TestCatalog_ConstructorParamTags(t *testing.T) {
	cat := catalog()
	ctor := meta.ConstructorElement{Type: mailerType, Index: 0}

	p, ok := cat.Tag(meta.ParamElement{Of: ctor, Index: 0}, meta.KindInject)
	require.True(t, ok)
	assert.Empty(t, p.Name)
	_, ok = cat.Tag(meta.ParamElement{Of: ctor, Index: 0}, meta.KindRequired)
	assert.True(t, ok)

	p, ok = cat.Tag(meta.ParamElement{Of: ctor, Index: 1}, meta.KindValue)
	require.True(t, ok)
	assert.Equal(t, "${mail.from}", p.Value)
	_, ok = cat.Tag(meta.ParamElement{Of: ctor, Index: 1}, meta.KindInject)
	assert.False(t, ok)

	_, ok = cat.Tag(meta.ParamElement{Of: ctor, Index: 2}, meta.KindValue)
	assert.False(t, ok, "out of range parameter")
}

func TestCatalog_FactoryTags(t *testing.T) {
	cat := catalog()
	m := meta.MethodElement{Owner: infraType, Name: "Clock"}

	p, ok := cat.Tag(m, meta.KindFactory)
	require.True(t, ok)
	assert.Equal(t, "systemClock", p.Name)

	_, ok = cat.Tag(m, meta.KindPrimary)
	assert.True(t, ok)

	p, ok = cat.Tag(m, meta.KindDestroy)
	require.True(t, ok)
	assert.Equal(t, "Close", p.Value)

	_, ok = cat.Tag(meta.TypeElement{Type: infraType}, meta.KindConfiguration)
	assert.True(t, ok)

	_, ok = cat.Tag(meta.MethodElement{Owner: infraType, Name: "Other"}, meta.KindFactory)
	assert.False(t, ok)
}

func TestCatalog_SetterTags(t *testing.T) {
	cat := catalog()
	m := meta.MethodElement{Owner: mailerType, Name: "SetClock"}

	p, ok := cat.Tag(m, meta.KindNamed)
	require.True(t, ok)
	assert.Equal(t, "clock", p.Name)

	_, ok = cat.Tag(m, meta.KindRequired)
	assert.False(t, ok, "optional setter")

	_, ok = cat.Tag(m, meta.KindFactory)
	assert.False(t, ok)
}

func TestCatalog_FieldTags(t *testing.T) {
	cat := catalog()
	st := reflect.TypeFor[Mailer]()
	field := func(name string) meta.FieldElement {
		f, ok := st.FieldByName(name)
		require.True(t, ok)
		return meta.FieldElement{Owner: st, Field: f}
	}

	tests := []struct {
		field string
		kind  meta.Kind
		ok    bool
		want  meta.Payload
	}{
		{"Clock", meta.KindInject, true, meta.Payload{}},
		{"Clock", meta.KindRequired, true, meta.Payload{}},
		{"Clock", meta.KindNamed, false, meta.Payload{}},
		{"Relay", meta.KindValue, true, meta.Payload{Value: "${mail.relay:localhost}"}},
		{"Relay", meta.KindInject, false, meta.Payload{}},
		{"Spare", meta.KindNamed, true, meta.Payload{Name: "backup"}},
		{"Spare", meta.KindRequired, false, meta.Payload{}},
		{"Plain", meta.KindValue, false, meta.Payload{}},
		{"Plain", meta.KindInject, false, meta.Payload{}},
	}

	for _, tt := range tests {
		t.Run(tt.field+"/"+tt.kind.String(), func(t *testing.T) {
			got, ok := cat.Tag(field(tt.field), tt.kind)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

// ── naming ────────────────────────────────────────────────────────────────────

func TestBeanName(t *testing.T) {
	assert.Equal(t, "mailer", meta.BeanName(mailerType))
	assert.Equal(t, "clock", meta.BeanName(reflect.TypeFor[Clock]()))
	assert.Equal(t, "string", meta.BeanName(reflect.TypeFor[string]()))
	assert.Equal(t, "", meta.LowerFirst(""))
}

func TestQualifiedName(t *testing.T) {
	assert.Equal(t, reflect.TypeFor[Clock]().PkgPath()+".Clock", meta.QualifiedName(reflect.TypeFor[*Clock]()))
	assert.Equal(t, "int", meta.QualifiedName(reflect.TypeFor[int]()))
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "factory", meta.KindFactory.String())
	assert.Equal(t, "kind(99)", meta.Kind(99).String())
}

func TestCatalog_Lister(t *testing.T) {
	cat := catalog()
	var _ meta.Lister = cat

	assert.Equal(t, []string{"Clock"}, cat.Factories(infraType))
	assert.Equal(t, []string{"SetClock"}, cat.Setters(mailerType))
	assert.Empty(t, cat.Setters(infraType))
	assert.Nil(t, cat.Factories(reflect.TypeFor[*Clock]()))
}
