// Package config is the property source behind value-expression injection.
//
// Properties are flat dotted keys ("db.host") gathered from several
// sources, later sources overriding earlier ones:
//
//  1. defaults set in code
//  2. YAML files (nested maps flattened to dotted keys)
//  3. .env files
//  4. the process environment
//
// Expressions take the forms "key", "${key}" and "${key:default}". Values
// and defaults may themselves be expressions and are resolved recursively.
//
//	props, err := config.Load(config.Sources{
//	    YAMLFiles: []string{"config/app.yaml"},
//	    EnvFiles:  []string{".env"},
//	})
//	port, err := props.Resolve("${app.port:8000}", reflect.TypeFor[int]())
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Properties holds resolved configuration keys. It is safe for concurrent use.
type Properties struct {
	mu     sync.RWMutex
	values map[string]string
	log    *zap.Logger
}

// Option configures Properties.
type Option func(*Properties)

// WithLogger sets the logger used to report loaded sources.
func WithLogger(log *zap.Logger) Option {
	return func(p *Properties) {
		if log != nil {
			p.log = log
		}
	}
}

// New returns empty Properties.
func New(opts ...Option) *Properties {
	p := &Properties{
		values: make(map[string]string),
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Sources lists where Load reads properties from.
type Sources struct {
	Defaults    map[string]string
	YAMLFiles   []string
	EnvFiles    []string // missing files are skipped
	SkipEnviron bool     // do not read the process environment
}

// Load builds Properties from src in precedence order.
// Call once at bootstrap: props, err := config.Load(config.Sources{EnvFiles: []string{".env"}})
func Load(src Sources, opts ...Option) (*Properties, error) {
	p := New(opts...)
	p.SetAll(src.Defaults)
	for _, path := range src.YAMLFiles {
		if err := p.LoadYAML(path); err != nil {
			return nil, err
		}
	}
	if err := p.LoadEnvFiles(src.EnvFiles...); err != nil {
		return nil, err
	}
	if !src.SkipEnviron {
		p.LoadEnviron()
	}
	return p, nil
}

// ── Sources ───────────────────────────────────────────────────────────────────

// Set stores a single key.
func (p *Properties) Set(key, value string) *Properties {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[key] = value
	return p
}

// SetAll stores every key of values.
func (p *Properties) SetAll(values map[string]string) *Properties {
	p.mu.Lock()
	defer p.mu.Unlock()
	maps.Copy(p.values, values)
	return p
}

// LoadYAML reads a YAML file and flattens it into dotted keys.
func (p *Properties) LoadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := p.LoadYAMLBytes(data); err != nil {
		return fmt.Errorf("config: %s: %w", path, err)
	}
	p.log.Debug("property source loaded", zap.String("source", path), zap.String("format", "yaml"))
	return nil
}

// LoadYAMLBytes flattens a YAML document into dotted keys. Scalars keep
// their literal text; sequences are stored both joined with "," under the
// parent key and element-wise under "key[i]".
func (p *Properties) LoadYAMLBytes(data []byte) error {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return err
	}
	if root.Kind == 0 {
		return nil
	}
	doc := &root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return errors.New("yaml root must be a mapping")
	}

	flat := make(map[string]string)
	flatten("", doc, flat)
	p.SetAll(flat)
	return nil
}

func flatten(prefix string, n *yaml.Node, out map[string]string) {
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			if prefix != "" {
				key = prefix + "." + key
			}
			flatten(key, n.Content[i+1], out)
		}
	case yaml.SequenceNode:
		items := make([]string, 0, len(n.Content))
		for i, item := range n.Content {
			flatten(fmt.Sprintf("%s[%d]", prefix, i), item, out)
			if item.Kind == yaml.ScalarNode {
				items = append(items, scalar(item))
			}
		}
		out[prefix] = strings.Join(items, ",")
	case yaml.AliasNode:
		if n.Alias != nil {
			flatten(prefix, n.Alias, out)
		}
	case yaml.ScalarNode:
		out[prefix] = scalar(n)
	}
}

func scalar(n *yaml.Node) string {
	if n.Tag == "!!null" {
		return ""
	}
	return n.Value
}

// LoadEnvFiles reads .env files without touching the process environment.
// Files that do not exist are skipped.
func (p *Properties) LoadEnvFiles(files ...string) error {
	for _, file := range files {
		if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
			p.log.Debug("env file not found, skipping", zap.String("source", file))
			continue
		}
		values, err := godotenv.Read(file)
		if err != nil {
			return fmt.Errorf("config: read %s: %w", file, err)
		}
		p.SetAll(values)
		p.log.Debug("property source loaded", zap.String("source", file), zap.Int("keys", len(values)))
	}
	return nil
}

// LoadEnviron copies the process environment.
func (p *Properties) LoadEnviron() {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	p.SetAll(env)
}

// ── Queries ───────────────────────────────────────────────────────────────────

// Contains reports whether key is set.
func (p *Properties) Contains(key string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.values[key]
	return ok
}

// Keys returns every key, sorted.
func (p *Properties) Keys() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Sorted(maps.Keys(p.values))
}

// Lookup resolves expr to its text. ok is false when the key is unset
// and no default is given.
func (p *Properties) Lookup(expr string) (value string, ok bool, err error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lookup(expr, 0)
}

// Resolve resolves expr and converts the result to t. A nil t or an empty
// interface type yields the raw string.
func (p *Properties) Resolve(expr string, t reflect.Type) (any, error) {
	value, ok, err := p.Lookup(expr)
	if err != nil {
		return nil, err
	}
	key := keyOf(expr)
	if !ok {
		return nil, missing(key)
	}
	return convert(key, value, t)
}

// Get returns the resolved text of key, falling back to defaultVal.
func (p *Properties) Get(key, defaultVal string) string {
	v, ok, err := p.Lookup(key)
	if err != nil || !ok {
		return defaultVal
	}
	return v
}

// GetInt returns an int property, falling back to defaultVal when unset
// or not a number.
func (p *Properties) GetInt(key string, defaultVal int) int {
	v, ok, err := p.Lookup(key)
	if err != nil || !ok || v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

// GetBool returns a bool property, falling back to defaultVal when unset
// or not a bool.
func (p *Properties) GetBool(key string, defaultVal bool) bool {
	v, ok, err := p.Lookup(key)
	if err != nil || !ok || v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

// Typed resolves expr to a T.
//
//	timeout, err := config.Typed[time.Duration](props, "${http.timeout:30s}")
func Typed[T any](p *Properties, expr string) (T, error) {
	var zero T
	v, err := p.Resolve(expr, reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}
