package container

import (
	"cmp"
	"maps"
	"reflect"
	"slices"
	"sync"

	beanerrors "github.com/km-arc/go-beans/framework/errors"
)

// Registry is an insertion-ordered set of Definitions keyed by name.
//
// It is populated before the container builds: from the component
// catalog, explicit definitions and service providers. After the build it
// is sealed and further additions fail with ErrRegistrySealed, except
// through providers registered after boot.
type Registry struct {
	mu     sync.RWMutex
	sealed bool

	defs  map[string]*Definition
	order []*Definition

	// alias → definition name
	aliases map[string]string

	// contextual: when[bean][type] = definition name
	contextual map[string]map[reflect.Type]string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		defs:       make(map[string]*Definition),
		aliases:    make(map[string]string),
		contextual: make(map[string]map[reflect.Type]string),
	}
}

// ── Registration ──────────────────────────────────────────────────────────────

// Register adds def. It fails with DuplicateDefinitionError when the name
// is already taken by a Definition or an alias.
func (r *Registry) Register(def *Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return beanerrors.ErrRegistrySealed
	}
	if r.taken(def.name) {
		return &beanerrors.DuplicateDefinitionError{Name: def.name}
	}
	r.defs[def.name] = def
	r.order = append(r.order, def)
	return nil
}

// Define is shorthand for Define followed by Register.
//
//	reg.Define("mailer", NewSMTPMailer, container.Params(meta.Value("${mail.host}")))
func (r *Registry) Define(name string, ctor any, opts ...DefOption) error {
	def, err := Define(name, ctor, opts...)
	if err != nil {
		return err
	}
	return r.Register(def)
}

// Alias registers an alternative name for an existing Definition.
//
//	reg.Alias("mailer", "smtp")
func (r *Registry) Alias(name, alias string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return beanerrors.ErrRegistrySealed
	}
	if name == alias {
		return &beanerrors.InvalidConfigurationError{Bean: name, Reason: "aliased to itself"}
	}
	target := r.canonical(name)
	if _, ok := r.defs[target]; !ok {
		return &beanerrors.NoSuchDefinitionError{Name: name}
	}
	if r.taken(alias) {
		return &beanerrors.DuplicateDefinitionError{Name: alias}
	}
	r.aliases[alias] = target
	return nil
}

// must hold mu
func (r *Registry) taken(name string) bool {
	_, isDef := r.defs[name]
	_, isAlias := r.aliases[name]
	return isDef || isAlias
}

// must hold mu
func (r *Registry) canonical(name string) string {
	if target, ok := r.aliases[name]; ok {
		return target
	}
	return name
}

// ── Lookup ────────────────────────────────────────────────────────────────────

// Find returns the Definition registered under name or one of its aliases,
// or nil.
func (r *Registry) Find(name string) *Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defs[r.canonical(name)]
}

// FindNamed returns the Definition named name, checking that its produced
// type is assignable to t. It returns nil, nil when the name is unknown.
func (r *Registry) FindNamed(name string, t reflect.Type) (*Definition, error) {
	def := r.Find(name)
	if def == nil {
		return nil, nil
	}
	if t != nil && !def.typ.AssignableTo(t) {
		return nil, &beanerrors.BeanNotOfRequiredTypeError{
			Bean:     name,
			Required: t.String(),
			Actual:   def.typ.String(),
		}
	}
	return def, nil
}

// FindByType returns every Definition whose produced type is assignable to
// t, ordered by priority then name. The container's own binding matches
// only *Container itself, not the interfaces it happens to satisfy.
func (r *Registry) FindByType(t reflect.Type) []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Definition
	for _, def := range r.order {
		if def.self && def.typ != t {
			continue
		}
		if def.typ.AssignableTo(t) {
			out = append(out, def)
		}
	}
	sortDefinitions(out)
	return out
}

// ResolveUnique returns the single Definition for t. Zero matches yield
// nil, nil. Several matches are narrowed to the primary one; zero or
// several primaries fail with AmbiguousDependencyError.
func (r *Registry) ResolveUnique(t reflect.Type) (*Definition, error) {
	defs := r.FindByType(t)
	switch len(defs) {
	case 0:
		return nil, nil
	case 1:
		return defs[0], nil
	}

	var primaries []*Definition
	for _, def := range defs {
		if def.primary {
			primaries = append(primaries, def)
		}
	}
	if len(primaries) == 1 {
		return primaries[0], nil
	}
	return nil, &beanerrors.AmbiguousDependencyError{
		Type:       t.String(),
		Candidates: names(defs),
		Primaries:  len(primaries),
	}
}

// Definitions returns every Definition in registration order.
func (r *Registry) Definitions() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Len returns the number of Definitions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// ── Sealing ───────────────────────────────────────────────────────────────────

func (r *Registry) seal(sealed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = sealed
}

// snapshot records the registry so a failed late provider can be undone.
type snapshot struct {
	defs       int
	aliases    map[string]string
	contextual map[string]map[reflect.Type]string
}

func (r *Registry) snapshot() snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := snapshot{
		defs:       len(r.order),
		aliases:    maps.Clone(r.aliases),
		contextual: make(map[string]map[reflect.Type]string, len(r.contextual)),
	}
	for bean, m := range r.contextual {
		s.contextual[bean] = maps.Clone(m)
	}
	return s
}

// since returns the Definitions registered after s was taken.
func (r *Registry) since(s snapshot) []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order[s.defs:])
}

func (r *Registry) restore(s snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, def := range r.order[s.defs:] {
		delete(r.defs, def.name)
	}
	r.order = r.order[:s.defs]
	r.aliases = s.aliases
	r.contextual = s.contextual
}

func (r *Registry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs = make(map[string]*Definition)
	r.order = nil
	r.aliases = make(map[string]string)
	r.contextual = make(map[string]map[reflect.Type]string)
}

// ── Contextual overrides ──────────────────────────────────────────────────────

// When starts a contextual override chain: when bean needs a dependency of
// some type, give it a specific named Definition instead of resolving by
// type.
//
//	reg.When("reportService").Needs(reflect.TypeFor[Store]()).Give("archiveStore")
func (r *Registry) When(bean string) *ContextualBuilder {
	return &ContextualBuilder{registry: r, bean: bean}
}

func (r *Registry) contextualFor(bean string, t reflect.Type) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.contextual[bean][t]
	return name, ok
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func sortDefinitions(defs []*Definition) {
	slices.SortStableFunc(defs, func(a, b *Definition) int {
		return cmp.Or(cmp.Compare(a.order, b.order), cmp.Compare(a.name, b.name))
	})
}

func names(defs []*Definition) []string {
	out := make([]string, len(defs))
	for i, def := range defs {
		out[i] = def.name
	}
	return out
}
