package meta

import (
	"fmt"
	"maps"
	"math"
	"reflect"
	"slices"
	"strings"
	"sync"
)

// ── Parameter tags ────────────────────────────────────────────────────────────

// ParamTag tags one constructor, factory or setter parameter.
// The zero value is an untagged parameter.
type ParamTag struct {
	Value    string // value expression, e.g. "${db.url}"
	Inject   bool   // inject by type, or by Name when set
	Name     string
	Optional bool
}

// Value tags a parameter with a value expression.
//
//	meta.Value("${app.port:8000}")
func Value(expr string) ParamTag { return ParamTag{Value: expr} }

// Inject tags a parameter for injection by type, or by name when name is
// not empty.
//
//	meta.Inject("")       // by type
//	meta.Inject("redis")  // by name
func Inject(name string) ParamTag { return ParamTag{Inject: true, Name: name} }

// AsOptional returns a copy of t that does not fail when nothing matches.
func (t ParamTag) AsOptional() ParamTag {
	t.Optional = true
	return t
}

func (t ParamTag) tag(kind Kind) (Payload, bool) {
	switch kind {
	case KindValue:
		return Payload{Value: t.Value}, t.Value != ""
	case KindInject, KindNamed, KindRequired:
		if !t.Inject {
			return Payload{}, false
		}
		return injectPayload(kind, t.Name, !t.Optional)
	}
	return Payload{}, false
}

// ── Options ───────────────────────────────────────────────────────────────────

// Option configures a component or factory registration.
type Option func(*spec)

type spec struct {
	name          string
	configuration bool
	primary       bool
	order         int
	hasOrder      bool
	init          string
	destroy       string
	params        []ParamTag
	ctors         []constructor
	factories     []factory
	setters       map[string]ParamTag
}

type constructor struct {
	fn     reflect.Value
	params []ParamTag
}

type factory struct {
	method string
	spec   *spec
}

// Name sets the logical bean name.
func Name(name string) Option { return func(s *spec) { s.name = name } }

// Configuration marks a component as a configuration factory.
func Configuration() Option { return func(s *spec) { s.configuration = true } }

// Primary marks the bean as the winner of ambiguous by-type lookups.
func Primary() Option { return func(s *spec) { s.primary = true } }

// Order sets the priority; lower sorts first.
func Order(n int) Option {
	return func(s *spec) {
		s.order = n
		s.hasOrder = true
	}
}

// Init names a zero-argument method called after injection.
func Init(method string) Option { return func(s *spec) { s.init = method } }

// Destroy names a zero-argument method called when the container closes.
func Destroy(method string) Option { return func(s *spec) { s.destroy = method } }

// Params tags the parameters of the constructor passed to Add, or of a
// factory method.
func Params(tags ...ParamTag) Option {
	return func(s *spec) { s.params = append(s.params, tags...) }
}

// Constructor registers an additional constructor. Registering more than
// one constructor for a type is a configuration error reported when the
// container builds its definitions.
func Constructor(fn any, params ...ParamTag) Option {
	return func(s *spec) {
		s.ctors = append(s.ctors, constructor{fn: reflect.ValueOf(fn), params: params})
	}
}

// Factory declares a factory method of a configuration component.
//
//	cat.Add(NewInfra, meta.Configuration(),
//	    meta.Factory("Database", meta.Name("db"), meta.Params(meta.Value("${db.url}"))),
//	)
func Factory(method string, opts ...Option) Option {
	return func(s *spec) {
		fs := &spec{}
		for _, opt := range opts {
			opt(fs)
		}
		s.factories = append(s.factories, factory{method: method, spec: fs})
	}
}

// Setter declares a single-argument method to be called for injection.
func Setter(method string, tag ParamTag) Option {
	return func(s *spec) {
		if s.setters == nil {
			s.setters = make(map[string]ParamTag)
		}
		s.setters[method] = tag
	}
}

// ── Catalog ───────────────────────────────────────────────────────────────────

// Catalog is a static component registry. It implements Reader, and its
// Scan method lists registered components under a set of package roots.
type Catalog struct {
	mu     sync.RWMutex
	byName map[string]reflect.Type
	specs  map[reflect.Type]*spec
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		byName: make(map[string]reflect.Type),
		specs:  make(map[reflect.Type]*spec),
	}
}

// Add registers a component built by ctor. The produced type is the
// constructor's first result. It panics if ctor is not a function with at
// least one result.
//
//	cat.Add(NewUserService, meta.Params(meta.Inject(""), meta.Value("${users.limit:100}")))
func (c *Catalog) Add(ctor any, opts ...Option) *Catalog {
	fn := reflect.ValueOf(ctor)
	if fn.Kind() != reflect.Func || fn.Type().NumOut() == 0 {
		panic(fmt.Sprintf("meta: Add expects a constructor function, got %T", ctor))
	}
	return c.register(fn.Type().Out(0), opts, &fn)
}

// Register registers a component type without a constructor. Pointer-to-
// struct types without a constructor are allocated zero-valued.
func (c *Catalog) Register(t reflect.Type, opts ...Option) *Catalog {
	return c.register(t, opts, nil)
}

func (c *Catalog) register(t reflect.Type, opts []Option, fn *reflect.Value) *Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.specs[t]
	if !ok {
		s = &spec{}
		c.specs[t] = s
		c.byName[QualifiedName(t)] = t
	}
	s.params = nil
	for _, opt := range opts {
		opt(s)
	}
	if fn != nil {
		s.ctors = append(s.ctors, constructor{fn: *fn, params: s.params})
	}
	s.params = nil
	return c
}

// Scan returns the sorted qualified names of registered components whose
// package path is one of roots or lies below one. No roots means all.
func (c *Catalog) Scan(roots ...string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.byName))
	for name, t := range c.byName {
		if underRoots(pkgPath(t), roots) {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out, nil
}

func pkgPath(t reflect.Type) string {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.PkgPath()
}

func underRoots(pkg string, roots []string) bool {
	if len(roots) == 0 {
		return true
	}
	for _, root := range roots {
		root = strings.TrimSuffix(root, "/")
		if pkg == root || strings.HasPrefix(pkg, root+"/") {
			return true
		}
	}
	return false
}

// TypeOf implements Reader.
func (c *Catalog) TypeOf(name string) (reflect.Type, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.byName[name]
	return t, ok
}

// Constructors implements Reader.
func (c *Catalog) Constructors(t reflect.Type) []reflect.Value {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.specs[t]
	if !ok {
		return nil
	}
	out := make([]reflect.Value, len(s.ctors))
	for i, ctor := range s.ctors {
		out[i] = ctor.fn
	}
	return out
}

// Factories implements Lister.
func (c *Catalog) Factories(t reflect.Type) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.specs[t]
	if !ok {
		return nil
	}
	out := make([]string, len(s.factories))
	for i, f := range s.factories {
		out[i] = f.method
	}
	return out
}

// Setters implements Lister. The result is sorted.
func (c *Catalog) Setters(t reflect.Type) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.specs[t]
	if !ok {
		return nil
	}
	return slices.Sorted(maps.Keys(s.setters))
}

// Tag implements Reader.
func (c *Catalog) Tag(el Element, kind Kind) (Payload, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch e := el.(type) {
	case TypeElement:
		s, ok := c.specs[e.Type]
		if !ok {
			return Payload{}, false
		}
		if kind == KindComponent {
			return Payload{Name: s.name}, true
		}
		return s.tag(kind)
	case MethodElement:
		s, ok := c.specs[e.Owner]
		if !ok {
			return Payload{}, false
		}
		if f := s.factory(e.Name); f != nil {
			if kind == KindFactory {
				return Payload{Name: f.name}, true
			}
			return f.tag(kind)
		}
		if tag, ok := s.setters[e.Name]; ok {
			return tag.tag(kind)
		}
	case FieldElement:
		return fieldTag(e.Field, kind)
	case ParamElement:
		if tag, ok := c.paramTag(e); ok {
			return tag.tag(kind)
		}
	}
	return Payload{}, false
}

func (c *Catalog) paramTag(e ParamElement) (ParamTag, bool) {
	var params []ParamTag
	switch of := e.Of.(type) {
	case ConstructorElement:
		s, ok := c.specs[of.Type]
		if !ok || of.Index < 0 || of.Index >= len(s.ctors) {
			return ParamTag{}, false
		}
		params = s.ctors[of.Index].params
	case MethodElement:
		s, ok := c.specs[of.Owner]
		if !ok {
			return ParamTag{}, false
		}
		if f := s.factory(of.Name); f != nil {
			params = f.params
		} else if tag, ok := s.setters[of.Name]; ok && e.Index == 0 {
			return tag, true
		}
	}
	if e.Index < 0 || e.Index >= len(params) {
		return ParamTag{}, false
	}
	return params[e.Index], true
}

func (s *spec) factory(method string) *spec {
	for _, f := range s.factories {
		if f.method == method {
			return f.spec
		}
	}
	return nil
}

func (s *spec) tag(kind Kind) (Payload, bool) {
	switch kind {
	case KindConfiguration:
		return Payload{}, s.configuration
	case KindPrimary:
		return Payload{}, s.primary
	case KindOrder:
		if !s.hasOrder {
			return Payload{Order: math.MaxInt}, false
		}
		return Payload{Order: s.order}, true
	case KindInit:
		return Payload{Value: s.init}, s.init != ""
	case KindDestroy:
		return Payload{Value: s.destroy}, s.destroy != ""
	}
	return Payload{}, false
}
