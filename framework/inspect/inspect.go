// Package inspect serves a read-only JSON view of a container's
// definitions.
//
//	GET /beans                   every definition, sorted by name
//	GET /beans?realized=false    filtered by realization state
//	GET /beans/{name}            one definition, by name or alias
//	GET /order                   names in realization order
//
// Mount the handler wherever the program serves debug endpoints:
//
//	mux.Handle("/debug/", http.StripPrefix("/debug", inspect.Handler(c)))
package inspect

import (
	"cmp"
	"fmt"
	"math"
	"net/http"
	"slices"
	"strconv"

	"go.uber.org/zap"

	"github.com/km-arc/go-beans/framework/container"
	"github.com/km-arc/go-beans/framework/routing"
)

// Bean is the JSON view of a container.Definition.
type Bean struct {
	Name          string  `json:"name"`
	Type          string  `json:"type"`
	Descriptor    string  `json:"descriptor"`
	Primary       bool    `json:"primary"`
	Order         *int    `json:"order,omitempty"`
	Configuration bool    `json:"configuration"`
	Realized      bool    `json:"realized"`
	InstanceType  string  `json:"instance_type,omitempty"`
	InitMethod    string  `json:"init_method,omitempty"`
	DestroyMethod string  `json:"destroy_method,omitempty"`
	Params        []Param `json:"params,omitempty"`
}

// Param is the JSON view of a container.Param.
type Param struct {
	Type     string `json:"type"`
	Value    string `json:"value,omitempty"`
	Name     string `json:"name,omitempty"`
	Inject   bool   `json:"inject"`
	Required bool   `json:"required"`
}

func beanOf(def *container.Definition) Bean {
	b := Bean{
		Name:          def.Name(),
		Type:          def.Type().String(),
		Descriptor:    def.Descriptor().String(),
		Primary:       def.Primary(),
		Configuration: def.Configuration(),
		Realized:      def.Realized(),
		InitMethod:    def.InitMethod(),
		DestroyMethod: def.DestroyMethod(),
	}
	if order := def.Order(); order != math.MaxInt {
		b.Order = &order
	}
	if b.Realized && def.Instance() != nil {
		b.InstanceType = fmt.Sprintf("%T", def.Instance())
	}
	for _, p := range def.Params() {
		b.Params = append(b.Params, Param{
			Type:     p.Type.String(),
			Value:    p.Value,
			Name:     p.Name,
			Inject:   p.Inject,
			Required: p.Required,
		})
	}
	return b
}

// ── Handler ───────────────────────────────────────────────────────────────────

type options struct {
	log     *zap.Logger
	origins []string
}

// Option configures the handler.
type Option func(*options)

// WithLogger sets the request logger.
func WithLogger(log *zap.Logger) Option { return func(o *options) { o.log = log } }

// WithCORS allows cross-origin reads from origins.
func WithCORS(origins ...string) Option {
	return func(o *options) { o.origins = append(o.origins, origins...) }
}

// Handler returns the inspection endpoints for c.
func Handler(c *container.Container, opts ...Option) http.Handler {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	r := routing.New(o.log)
	r.CORS(o.origins...)
	Routes(r, c)
	return r
}

// Routes registers the inspection endpoints on r.
func Routes(r *routing.Router, c *container.Container) {
	h := &handlers{c: c}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) { newResponse(w).NotFound() })
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		newResponse(w).Error(http.StatusMethodNotAllowed, "Method not allowed.")
	})
	r.Get("/order", h.order)
	r.Prefix("/beans", func(b *routing.Router) {
		b.Get("/", h.list)
		b.Get("/{name}", h.show)
	})
}

type handlers struct {
	c *container.Container
}

func (h *handlers) list(w http.ResponseWriter, r *http.Request) {
	res := newResponse(w)

	var filter *bool
	if v := r.URL.Query().Get("realized"); v != "" {
		realized, err := strconv.ParseBool(v)
		if err != nil {
			res.Error(http.StatusBadRequest, fmt.Sprintf("Invalid realized filter %q.", v))
			return
		}
		filter = &realized
	}

	defs := h.c.Definitions()
	slices.SortFunc(defs, func(a, b *container.Definition) int { return cmp.Compare(a.Name(), b.Name()) })

	beans := make([]Bean, 0, len(defs))
	for _, def := range defs {
		if filter != nil && def.Realized() != *filter {
			continue
		}
		beans = append(beans, beanOf(def))
	}
	res.Success(beans)
}

func (h *handlers) show(w http.ResponseWriter, r *http.Request) {
	res := newResponse(w)
	name := routing.Param(r, "name")

	def := h.c.FindDefinition(name)
	if def == nil {
		res.NotFound(fmt.Sprintf("No bean named %q.", name))
		return
	}
	res.Success(beanOf(def))
}

func (h *handlers) order(w http.ResponseWriter, _ *http.Request) {
	order := h.c.RealizationOrder()
	if order == nil {
		order = []string{}
	}
	newResponse(w).Success(order)
}
