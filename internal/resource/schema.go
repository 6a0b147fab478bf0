package resource

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/geocoder89/accounts/internal/query"
)

type Kind int

const (
	KindString Kind = iota
	KindBool
	KindInt
	KindTime
	// KindID values stay strings here. Each store validates the id format it owns.
	KindID
)

// Field describes one attribute of a resource.
//
// Hidden fields never leave the service. Unselected fields are left out of default reads
// but can be asked for through an explicit field list. System fields are owned by the
// factory and stores and are dropped from request bodies. Transient fields are accepted in
// bodies for hooks to inspect and are never persisted.
type Field struct {
	Name       string
	Column     string
	Kind       Kind
	Hidden     bool
	Unselected bool
	System     bool
	Unique     bool
	Transient  bool
}

type Schema struct {
	fields []Field
	byName map[string]int
}

// NewSchema prepends the id, createdAt, updatedAt and version system fields.
func NewSchema(fields ...Field) Schema {
	all := []Field{
		{Name: query.IDField, Column: "id", Kind: KindID, System: true, Unique: true},
	}
	all = append(all, fields...)
	all = append(all,
		Field{Name: query.CreatedAtField, Column: "created_at", Kind: KindTime, System: true},
		Field{Name: "updatedAt", Column: "updated_at", Kind: KindTime, System: true},
		Field{Name: query.VersionField, Column: "version", Kind: KindInt, System: true},
	)

	s := Schema{fields: all, byName: make(map[string]int, len(all))}
	for i, f := range all {
		if f.Column == "" {
			all[i].Column = f.Name
		}
		s.byName[f.Name] = i
	}
	return s
}

func (s Schema) Fields() []Field { return append([]Field(nil), s.fields...) }

func (s Schema) Field(name string) (Field, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Stored lists persisted fields in declaration order.
func (s Schema) Stored() []Field {
	out := make([]Field, 0, len(s.fields))
	for _, f := range s.fields {
		if !f.Transient {
			out = append(out, f)
		}
	}
	return out
}

// UniqueFields lists the fields that carry a unique constraint, id excluded.
func (s Schema) UniqueFields() []Field {
	var out []Field
	for _, f := range s.fields {
		if f.Unique && f.Name != query.IDField {
			out = append(out, f)
		}
	}
	return out
}

// Cast converts an inbound value to the Go type used for the field's kind.
func (s Schema) Cast(f Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	fail := &CastError{Field: f.Name, Value: v}

	switch f.Kind {
	case KindString, KindID:
		switch t := v.(type) {
		case string:
			return t, nil
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64), nil
		case int, int64:
			return fmt.Sprint(t), nil
		case bool:
			return strconv.FormatBool(t), nil
		}
	case KindBool:
		switch t := v.(type) {
		case bool:
			return t, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(t))
			if err == nil {
				return b, nil
			}
		}
	case KindInt:
		switch t := v.(type) {
		case int:
			return int64(t), nil
		case int64:
			return t, nil
		case int32:
			return int64(t), nil
		case float64:
			if t == math.Trunc(t) {
				return int64(t), nil
			}
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
			if err == nil {
				return n, nil
			}
		}
	case KindTime:
		switch t := v.(type) {
		case time.Time:
			return t.UTC(), nil
		case string:
			if ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(t)); err == nil {
				return ts.UTC(), nil
			}
			if ts, err := time.Parse("2006-01-02", strings.TrimSpace(t)); err == nil {
				return ts.UTC(), nil
			}
		case float64:
			return time.UnixMilli(int64(t)).UTC(), nil
		}
	}

	return nil, fail
}

// CastConditions types the values of a filter. Conditions on unknown fields are dropped,
// so is any condition on a hidden field.
func (s Schema) CastConditions(conds []query.Condition) ([]query.Condition, error) {
	out := make([]query.Condition, 0, len(conds))
	for _, c := range conds {
		f, ok := s.Field(c.Field)
		if !ok || f.Hidden || f.Transient {
			continue
		}

		if c.Op == query.OpIn {
			raw, ok := c.Value.([]string)
			if !ok {
				continue
			}
			vals := make([]any, 0, len(raw))
			for _, r := range raw {
				v, err := s.Cast(f, r)
				if err != nil {
					return nil, err
				}
				vals = append(vals, v)
			}
			out = append(out, query.Condition{Field: c.Field, Op: c.Op, Value: vals})
			continue
		}

		v, err := s.Cast(f, c.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, query.Condition{Field: c.Field, Op: c.Op, Value: v})
	}
	return out, nil
}

// SortableFields keeps the sort keys on known fields that can be read. Ordering by a
// hidden field would leak its values through the order of the results.
func (s Schema) SortableFields(sort []query.SortField) []query.SortField {
	out := make([]query.SortField, 0, len(sort))
	for _, sf := range sort {
		if f, ok := s.Field(sf.Field); ok && !f.Hidden && !f.Transient {
			out = append(out, sf)
		}
	}
	return out
}

// Sanitize keeps writable known fields of body and casts their values.
func (s Schema) Sanitize(body Document) (Document, error) {
	out := make(Document, len(body))
	for k, v := range body {
		f, ok := s.Field(k)
		if !ok || f.System {
			continue
		}
		cast, err := s.Cast(f, v)
		if err != nil {
			return nil, err
		}
		out[k] = cast
	}
	return out, nil
}

// Persistable drops transient fields.
func (s Schema) Persistable(doc Document) Document {
	out := doc.Clone()
	for _, f := range s.fields {
		if f.Transient {
			delete(out, f.Name)
		}
	}
	return out
}

// Project adjusts a requested projection so hidden fields never appear and unselected
// fields only appear when asked for by name.
func (s Schema) Project(p query.Projection) query.Projection {
	var include []string
	for _, name := range p.Include {
		f, ok := s.Field(name)
		if !ok || f.Hidden || f.Transient {
			continue
		}
		include = append(include, name)
	}
	if len(include) > 0 {
		return query.Projection{Include: include}
	}

	exclude := append([]string(nil), p.Exclude...)
	if len(exclude) == 0 {
		exclude = []string{query.VersionField}
	}
	for _, f := range s.fields {
		if f.Hidden || f.Unselected || f.Transient {
			exclude = appendUnique(exclude, f.Name)
		}
	}
	return query.Projection{Exclude: exclude}
}

// Public strips hidden and transient fields from a document about to leave the service.
func (s Schema) Public(doc Document) Document {
	if doc == nil {
		return nil
	}
	out := doc.Clone()
	for _, f := range s.fields {
		if f.Hidden || f.Transient {
			delete(out, f.Name)
		}
	}
	return out
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}
