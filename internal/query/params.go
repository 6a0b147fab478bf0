package query

import (
	"net/url"
	"sort"
	"strings"
)

// Params is the untyped query map: values are string, []string or nested Params.
type Params map[string]any

// ParseParams expands bracket keys the way qs does: age[gte]=18 becomes
// {"age": {"gte": "18"}}. Repeated keys keep every value.
func ParseParams(values url.Values) Params {
	out := Params{}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		vals := values[key]
		if len(vals) == 0 {
			continue
		}
		path := splitKey(key)
		if len(path) == 0 {
			continue
		}

		var v any = vals[0]
		if len(vals) > 1 {
			v = append([]string(nil), vals...)
		}
		out.set(path, v)
	}

	return out
}

func splitKey(key string) []string {
	open := strings.Index(key, "[")
	if open <= 0 {
		if key == "" {
			return nil
		}
		return []string{key}
	}

	path := []string{key[:open]}
	rest := key[open:]

	for strings.HasPrefix(rest, "[") {
		end := strings.Index(rest, "]")
		if end < 0 {
			break
		}
		if seg := rest[1:end]; seg != "" {
			path = append(path, seg)
		}
		rest = rest[end+1:]
	}

	return path
}

func (p Params) set(path []string, v any) {
	if len(path) == 1 {
		if existing, ok := p[path[0]]; ok {
			p[path[0]] = merge(existing, v)
			return
		}
		p[path[0]] = v
		return
	}

	child, ok := p[path[0]].(Params)
	if !ok {
		child = Params{}
		p[path[0]] = child
	}
	child.set(path[1:], v)
}

func merge(existing, v any) any {
	var out []string
	switch e := existing.(type) {
	case string:
		out = append(out, e)
	case []string:
		out = append(out, e...)
	default:
		return v
	}

	switch n := v.(type) {
	case string:
		out = append(out, n)
	case []string:
		out = append(out, n...)
	}
	return out
}

// Get returns a scalar control value. Repeated values resolve to the last one.
func (p Params) Get(key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case []string:
		if len(v) == 0 {
			return ""
		}
		return v[len(v)-1]
	default:
		return ""
	}
}

// With returns a copy of p with key set to value.
func (p Params) With(key string, value any) Params {
	out := make(Params, len(p)+1)
	for k, v := range p {
		out[k] = v
	}
	out[key] = value
	return out
}
