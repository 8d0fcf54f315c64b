package resolver

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// pattern matches {{ dotted.path }} regions; whitespace inside the braces
// is trimmed before lookup.
var pattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// Resolver substitutes {{dotted.path}} references against a variables
// snapshot. The snapshot is the JSON encoding of the execution context's
// variables map; gjson descends it segment by segment, so nodes.<id> and
// nodes.<id>.field resolve through the nested "nodes" namespace.
type Resolver struct{}

// New creates a new variable resolver
func New() *Resolver {
	return &Resolver{}
}

// Resolve substitutes every {{path}} token in s. Absent paths leave the
// original token unchanged so callers can distinguish unresolved templates.
func (r *Resolver) Resolve(vars []byte, s string) string {
	return pattern.ReplaceAllStringFunc(s, func(token string) string {
		path := strings.TrimSpace(token[2 : len(token)-2])
		if path == "" {
			return token
		}

		result := gjson.GetBytes(vars, path)
		if !result.Exists() {
			return token
		}

		return stringify(result)
	})
}

// Lookup returns the typed value at a dotted path, or false when absent
func (r *Resolver) Lookup(vars []byte, path string) (interface{}, bool) {
	result := gjson.GetBytes(vars, path)
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

// ResolveConfig recursively resolves variables in a node config: string
// values are substituted, maps are resolved key by key, list elements are
// resolved when they are strings, everything else passes through.
func (r *Resolver) ResolveConfig(vars []byte, config map[string]interface{}) map[string]interface{} {
	resolved := make(map[string]interface{}, len(config))
	for key, value := range config {
		resolved[key] = r.resolveValue(vars, value)
	}
	return resolved
}

func (r *Resolver) resolveValue(vars []byte, value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		return r.Resolve(vars, v)
	case map[string]interface{}:
		return r.ResolveConfig(vars, v)
	case []interface{}:
		resolved := make([]interface{}, len(v))
		for i, item := range v {
			if s, ok := item.(string); ok {
				resolved[i] = r.Resolve(vars, s)
			} else {
				resolved[i] = item
			}
		}
		return resolved
	default:
		return value
	}
}

// stringify renders a resolved value: strings verbatim, scalars and nested
// structures in their canonical JSON text form.
func stringify(result gjson.Result) string {
	if result.Type == gjson.String {
		return result.String()
	}
	return result.Raw
}
