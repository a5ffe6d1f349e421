package config

import (
	"strings"

	beanerrors "github.com/km-arc/go-beans/framework/errors"
)

// maxDepth bounds recursive expansion so self-referencing keys fail
// instead of recursing forever.
const maxDepth = 32

type expression struct {
	key        string
	def        string
	hasDefault bool
}

// parseExpr splits "${key}" / "${key:default}". ok is false for plain keys.
func parseExpr(s string) (expr expression, ok bool, err error) {
	if !strings.HasPrefix(s, "${") || !strings.HasSuffix(s, "}") {
		return expression{}, false, nil
	}
	inner := s[2 : len(s)-1]
	key, def, hasDefault := strings.Cut(inner, ":")
	if key == "" {
		return expression{}, false, &beanerrors.InvalidExpressionError{Expression: s, Reason: "empty key"}
	}
	return expression{key: key, def: def, hasDefault: hasDefault}, true, nil
}

// keyOf returns the key an expression refers to.
func keyOf(s string) string {
	if expr, ok, err := parseExpr(s); ok && err == nil {
		return expr.key
	}
	return s
}

func missing(key string) error {
	return &beanerrors.MissingPropertyError{Key: key}
}

// lookup must be called with p.mu held for reading.
func (p *Properties) lookup(s string, depth int) (string, bool, error) {
	if depth > maxDepth {
		return "", false, &beanerrors.InvalidExpressionError{Expression: s, Reason: "expansion too deep"}
	}
	if s == "" {
		return "", false, &beanerrors.InvalidExpressionError{Expression: s, Reason: "empty key"}
	}
	expr, isExpr, err := parseExpr(s)
	if err != nil {
		return "", false, err
	}
	if !isExpr {
		v, ok := p.values[s]
		if !ok {
			return "", false, nil
		}
		return p.expand(v, depth+1)
	}
	if v, ok := p.values[expr.key]; ok {
		return p.expand(v, depth+1)
	}
	if expr.hasDefault {
		return p.expand(expr.def, depth+1)
	}
	return "", false, nil
}

// expand resolves a stored value or default that may itself be an
// expression. A nested expression that resolves to nothing is an error.
func (p *Properties) expand(v string, depth int) (string, bool, error) {
	expr, isExpr, err := parseExpr(v)
	if err != nil {
		return "", false, err
	}
	if !isExpr {
		return v, true, nil
	}
	out, ok, err := p.lookup(v, depth)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, missing(expr.key)
	}
	return out, true, nil
}
