package query

import (
	"sort"
	"strings"
	"time"
)

// Lookup resolves a dotted path inside a plain document.
func Lookup(doc map[string]any, path string) (any, bool) {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Compare orders two scalar values of the same family. ok is false when they cannot be compared.
func Compare(a, b any) (cmp int, ok bool) {
	if a == nil || b == nil {
		if a == nil && b == nil {
			return 0, true
		}
		return 0, false
	}

	if af, aok := number(a); aok {
		bf, bok := number(b)
		if !bok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		}
		return 1, true
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	}

	return 0, false
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func equal(a, b any) bool {
	c, ok := Compare(a, b)
	return ok && c == 0
}

// Match evaluates the condition against a document with already typed values.
func (c Condition) Match(doc map[string]any) bool {
	v, present := Lookup(doc, c.Field)
	if !present {
		v = nil
	}

	switch c.Op {
	case OpEq:
		return equal(v, c.Value)
	case OpNe:
		return !equal(v, c.Value)
	case OpIn:
		for _, candidate := range values(c.Value) {
			if equal(v, candidate) {
				return true
			}
		}
		return false
	}

	cmp, ok := Compare(v, c.Value)
	if !ok || v == nil {
		return false
	}

	switch c.Op {
	case OpGt:
		return cmp > 0
	case OpGte:
		return cmp >= 0
	case OpLt:
		return cmp < 0
	case OpLte:
		return cmp <= 0
	}
	return false
}

func values(v any) []any {
	switch vs := v.(type) {
	case []any:
		return vs
	case []string:
		out := make([]any, len(vs))
		for i, s := range vs {
			out[i] = s
		}
		return out
	}
	return []any{v}
}

// MatchAll reports whether every condition matches.
func MatchAll(conds []Condition, doc map[string]any) bool {
	for _, c := range conds {
		if !c.Match(doc) {
			return false
		}
	}
	return true
}

// Apply returns a projected copy of doc. The id survives inclusion lists.
func (p Projection) Apply(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))

	if len(p.Include) > 0 {
		if v, ok := doc[IDField]; ok {
			out[IDField] = v
		}
		for _, f := range p.Include {
			if v, ok := doc[f]; ok {
				out[f] = v
			}
		}
		return out
	}

	for k, v := range doc {
		out[k] = v
	}
	for _, f := range p.Exclude {
		delete(out, f)
	}
	return out
}

// SortDocuments orders docs in place. Missing values sort first, as in a document store.
func SortDocuments(docs []map[string]any, fields []SortField) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, f := range fields {
			a, _ := Lookup(docs[i], f.Field)
			b, _ := Lookup(docs[j], f.Field)

			cmp, ok := Compare(a, b)
			if !ok {
				switch {
				case a == nil && b != nil:
					cmp = -1
				case a != nil && b == nil:
					cmp = 1
				default:
					continue
				}
			}
			if cmp == 0 {
				continue
			}
			if f.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}
