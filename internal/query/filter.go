package query

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
)

// The rewrite is textual on purpose: a token that appears as a whole word anywhere in the
// encoded params (field names and string values included) gains the operator prefix.
var operatorToken = regexp.MustCompile(`\b(gte|gt|lte|lt|ne)\b`)

var operators = map[string]Op{
	"$gte": OpGte,
	"$gt":  OpGt,
	"$lte": OpLte,
	"$lt":  OpLt,
	"$ne":  OpNe,
}

// Filter drops the reserved control keys from params and turns the rest into conditions.
// params is not modified.
func (q Query) Filter(params Params) Query {
	stripped := make(Params, len(params))
	for k, v := range params {
		if _, reserved := reservedKeys[k]; reserved {
			continue
		}
		stripped[k] = v
	}

	out := q.clone()
	if len(stripped) == 0 {
		return out
	}

	out.conditions = append(out.conditions, rewrite(stripped)...)
	return out
}

func rewrite(params Params) []Condition {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil
	}

	raw = operatorToken.ReplaceAll(raw, []byte(`$$$1`))

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil
	}

	return conditionsFrom("", decoded)
}

func conditionsFrom(prefix string, m map[string]any) []Condition {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var conds []Condition
	for _, key := range keys {
		field := key
		if prefix != "" {
			field = prefix + "." + key
		}

		switch v := m[key].(type) {
		case string:
			conds = append(conds, Eq(field, v))
		case []any:
			conds = append(conds, Condition{Field: field, Op: OpIn, Value: toStrings(v)})
		case map[string]any:
			conds = append(conds, nestedConditions(field, v)...)
		}
	}

	return conds
}

func nestedConditions(field string, m map[string]any) []Condition {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var conds []Condition
	var plain = map[string]any{}

	for _, key := range keys {
		op, isOp := operators[key]
		if !isOp {
			if !strings.HasPrefix(key, "$") {
				plain[key] = m[key]
			}
			continue
		}

		switch v := m[key].(type) {
		case string:
			conds = append(conds, Condition{Field: field, Op: op, Value: v})
		case []any:
			if vals := toStrings(v); len(vals) > 0 {
				conds = append(conds, Condition{Field: field, Op: op, Value: vals[len(vals)-1]})
			}
		}
	}

	if len(plain) > 0 {
		conds = append(conds, conditionsFrom(field, plain)...)
	}
	return conds
}

func toStrings(vals []any) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
