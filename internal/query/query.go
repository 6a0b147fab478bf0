// Package query turns inbound query parameters into an immutable read description
// (filter, sort, projection, pagination) that every store knows how to execute.
package query

import (
	"strconv"
	"strings"
)

type Op string

const (
	OpEq  Op = "eq"
	OpNe  Op = "ne"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
	OpIn  Op = "in"
)

const (
	// VersionField is the internal versioning field hidden by the default projection.
	VersionField = "version"
	// CreatedAtField backs the default sort.
	CreatedAtField = "createdAt"
	// IDField is always part of a projection unless it is excluded explicitly.
	IDField = "id"
)

// Control keys never reach the filter. "limit" is the page size key, "size" is an alias.
var reservedKeys = map[string]struct{}{
	"page":   {},
	"limit":  {},
	"size":   {},
	"fields": {},
	"sort":   {},
}

type Condition struct {
	Field string
	Op    Op
	Value any
}

func Eq(field string, value any) Condition { return Condition{Field: field, Op: OpEq, Value: value} }
func Ne(field string, value any) Condition { return Condition{Field: field, Op: OpNe, Value: value} }

type SortField struct {
	Field string
	Desc  bool
}

// Projection holds either an include list or an exclude list. Both empty selects everything.
type Projection struct {
	Include []string
	Exclude []string
}

func (p Projection) IsZero() bool { return len(p.Include) == 0 && len(p.Exclude) == 0 }

// Query is a value: every method returns a modified copy and leaves the receiver untouched.
type Query struct {
	conditions     []Condition
	sort           []SortField
	projection     Projection
	skip           int64
	limit          int64
	includeDeleted bool
}

// New starts a query pre-seeded with base conditions.
func New(base ...Condition) Query {
	return Query{conditions: append([]Condition(nil), base...)}
}

func (q Query) clone() Query {
	out := q
	out.conditions = append([]Condition(nil), q.conditions...)
	out.sort = append([]SortField(nil), q.sort...)
	out.projection = Projection{
		Include: append([]string(nil), q.projection.Include...),
		Exclude: append([]string(nil), q.projection.Exclude...),
	}
	return out
}

func (q Query) Conditions() []Condition { return append([]Condition(nil), q.conditions...) }
func (q Query) SortFields() []SortField { return append([]SortField(nil), q.sort...) }
func (q Query) Projection() Projection  { return q.clone().projection }
func (q Query) Skip() int64             { return q.skip }

// Limit is 0 when the query is not paginated.
func (q Query) Limit() int64 { return q.limit }

func (q Query) Paginated() bool { return q.limit > 0 }

func (q Query) DeletedIncluded() bool { return q.includeDeleted }

// Where narrows the query with additional conjunctive conditions.
func (q Query) Where(conds ...Condition) Query {
	out := q.clone()
	out.conditions = append(out.conditions, conds...)
	return out
}

// WithConditions replaces the filter, typically with a typed version of the same conditions.
func (q Query) WithConditions(conds []Condition) Query {
	out := q.clone()
	out.conditions = append([]Condition(nil), conds...)
	return out
}

// WithSort replaces the ordering. An empty ordering means newest first.
func (q Query) WithSort(sort []SortField) Query {
	out := q.clone()
	out.sort = append([]SortField(nil), sort...)
	if len(out.sort) == 0 {
		out.sort = []SortField{{Field: CreatedAtField, Desc: true}}
	}
	return out
}

// WithProjection replaces the projection.
func (q Query) WithProjection(p Projection) Query {
	out := q.clone()
	out.projection = Projection{
		Include: append([]string(nil), p.Include...),
		Exclude: append([]string(nil), p.Exclude...),
	}
	return out
}

// IncludeDeleted marks the read as wanting soft-deleted records too.
func (q Query) IncludeDeleted() Query {
	out := q.clone()
	out.includeDeleted = true
	return out
}

// Sort applies a comma separated spec ("-createdAt,email"). Empty means newest first.
func (q Query) Sort(spec string) Query {
	out := q.clone()
	out.sort = nil

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" || part == "-" {
			continue
		}
		if strings.HasPrefix(part, "-") {
			out.sort = append(out.sort, SortField{Field: part[1:], Desc: true})
			continue
		}
		out.sort = append(out.sort, SortField{Field: strings.TrimPrefix(part, "+")})
	}

	if len(out.sort) == 0 {
		out.sort = []SortField{{Field: CreatedAtField, Desc: true}}
	}
	return out
}

// LimitFields projects a comma separated field list. A "-" prefix excludes a field.
// Empty hides the version field only. Inclusions win when both kinds are mixed.
func (q Query) LimitFields(spec string) Query {
	out := q.clone()
	out.projection = Projection{}

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" || part == "-" {
			continue
		}
		if strings.HasPrefix(part, "-") {
			out.projection.Exclude = append(out.projection.Exclude, part[1:])
			continue
		}
		out.projection.Include = append(out.projection.Include, part)
	}

	if len(out.projection.Include) > 0 {
		out.projection.Exclude = nil
	}
	if out.projection.IsZero() {
		out.projection.Exclude = []string{VersionField}
	}
	return out
}

// Paginate applies offset (page-1)*size and limit size. Without a usable size the
// result set is unlimited; there is no implicit page size.
func (q Query) Paginate(page, size string) Query {
	out := q.clone()
	out.skip, out.limit = 0, 0

	n, err := strconv.ParseInt(strings.TrimSpace(size), 10, 64)
	if err != nil || n <= 0 {
		return out
	}

	p, err := strconv.ParseInt(strings.TrimSpace(page), 10, 64)
	if err != nil || p < 1 {
		p = 1
	}

	out.skip = (p - 1) * n
	out.limit = n
	return out
}

// Shape runs the full pipeline: filter, sort, field projection and pagination.
func (q Query) Shape(params Params) Query {
	size := params.Get("limit")
	if size == "" {
		size = params.Get("size")
	}

	return q.Filter(params).
		Sort(params.Get("sort")).
		LimitFields(params.Get("fields")).
		Paginate(params.Get("page"), size)
}
