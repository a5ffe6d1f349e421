// Package container provides a small inversion-of-control container.
//
// # Overview
//
// Components are described declaratively, either in a meta.Catalog or as
// explicit Definitions. The container turns the descriptions into a wired
// object graph: it resolves constructor and factory arguments, injects
// tagged fields and setters, rejects circular dependencies, runs init and
// destroy hooks, and lets interceptors substitute instances.
//
// # Container Lifecycle
//
//  1. Describe: cat := meta.NewCatalog().Add(NewRepo).Add(NewService)
//  2. Build: c, err := container.New(container.WithCatalog(cat), ...)
//  3. Look up: svc, err := container.Resolve[*Service](c)
//  4. Close: c.Close()     runs destroy hooks in reverse realization order
//
// New realizes everything before it returns. Configuration components come
// first (they own factory methods other components may need), then
// interceptor components, then the rest. Within each phase Definitions are
// ordered by priority, then name, so two builds of the same graph realize
// in the same order.
//
// # Describing components
//
//	cat := meta.NewCatalog().
//	    Add(NewUserRepository, meta.Primary()).
//	    Add(NewUserService,
//	        meta.Params(meta.Inject(""), meta.Value("${users.limit:100}")),
//	        meta.Init("Start"),
//	        meta.Destroy("Stop"),
//	    ).
//	    Add(NewInfra, meta.Configuration(),
//	        meta.Factory("Database", meta.Name("db"), meta.Params(meta.Value("${db.url}"))),
//	    )
//
// Constructor parameters without a tag are injected by type and required.
// Fields use struct tags:
//
//	type Reporter struct {
//	    Store  Store         `inject:""`               // by type, required
//	    Cache  Cache         `inject:"redis,optional"` // by name, optional
//	    Period time.Duration `value:"${report.period:1h}"`
//	}
//
// # Explicit definitions
//
//	def, err := container.Define("clock", NewClock, container.Primary())
//	c, err := container.New(container.WithDefinitions(def, container.Instance("props", props)))
//
// # Resolving
//
//	// by type, narrowed to the primary candidate
//	repo, err := container.Resolve[Repository](c)
//
//	// by name
//	db, err := container.ResolveNamed[*sql.DB](c, "db")
//
//	// every candidate
//	checks, err := container.ResolveAll[HealthCheck](c)
//
// # Contextual overrides
//
//	reg.When("reportService").Needs(reflect.TypeFor[Store]()).Give("archiveStore")
//
// # Interceptors
//
//	type Timing struct{ container.BaseInterceptor }
//
//	func (t *Timing) AfterInitialization(v any, name string) (any, error) {
//	    if svc, ok := v.(Service); ok {
//	        return &timedService{Service: svc}, nil
//	    }
//	    return v, nil
//	}
//
// Dependents always receive the value returned by the last hook.
//
// # Service Providers
//
//	type AppServiceProvider struct{ container.BaseProvider }
//
//	func (p *AppServiceProvider) Register(reg *container.Registry) error {
//	    return reg.Define("mailer", NewMailer, container.DestroyMethod("Close"))
//	}
//
//	func (p *AppServiceProvider) Boot(c *container.Container) error {
//	    // safe to look anything up here
//	    return nil
//	}
//
//	c, err := container.New(container.WithProviders(&AppServiceProvider{}))
package container
