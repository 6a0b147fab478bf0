package mongo

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/geocoder89/accounts/internal/query"
	"github.com/geocoder89/accounts/internal/resource"
)

var operators = map[query.Op]string{
	query.OpEq:  "$eq",
	query.OpNe:  "$ne",
	query.OpGt:  "$gt",
	query.OpGte: "$gte",
	query.OpLt:  "$lt",
	query.OpLte: "$lte",
	query.OpIn:  "$in",
}

func key(field string) string {
	if field == query.IDField {
		return objectIDKey
	}
	return field
}

// filterDoc groups conditions per field so several bounds on one field survive:
// {age: {$gte: 18, $lte: 30}}.
func filterDoc(schema resource.Schema, conds []query.Condition) (bson.D, error) {
	out := bson.D{}
	index := map[string]int{}

	for _, c := range conds {
		f, ok := schema.Field(c.Field)
		if !ok || f.Transient {
			return nil, fmt.Errorf("unknown field %q", c.Field)
		}
		op, ok := operators[c.Op]
		if !ok {
			return nil, fmt.Errorf("unsupported operator %q", c.Op)
		}

		v := c.Value
		if f.Kind == resource.KindID {
			var err error
			if v, err = objectIDs(f.Name, v); err != nil {
				return nil, err
			}
		}
		if c.Op == query.OpIn {
			v = inValues(v)
		}

		k := key(c.Field)
		if i, seen := index[k]; seen {
			ops := out[i].Value.(bson.D)
			out[i].Value = append(ops, bson.E{Key: op, Value: v})
			continue
		}
		index[k] = len(out)
		out = append(out, bson.E{Key: k, Value: bson.D{{Key: op, Value: v}}})
	}
	return out, nil
}

func findOptions(q query.Query) *options.FindOptions {
	opts := options.Find()

	if sort := q.SortFields(); len(sort) > 0 {
		d := bson.D{}
		for _, sf := range sort {
			dir := 1
			if sf.Desc {
				dir = -1
			}
			d = append(d, bson.E{Key: key(sf.Field), Value: dir})
		}
		// ties resolve in insertion order
		d = append(d, bson.E{Key: objectIDKey, Value: 1})
		opts.SetSort(d)
	}

	if proj := projectionDoc(q.Projection()); len(proj) > 0 {
		opts.SetProjection(proj)
	}
	if q.Skip() > 0 {
		opts.SetSkip(q.Skip())
	}
	if q.Paginated() {
		opts.SetLimit(q.Limit())
	}
	return opts
}

func projectionDoc(p query.Projection) bson.D {
	d := bson.D{}
	if len(p.Include) > 0 {
		for _, f := range p.Include {
			d = append(d, bson.E{Key: key(f), Value: 1})
		}
		return d
	}
	for _, f := range p.Exclude {
		d = append(d, bson.E{Key: key(f), Value: 0})
	}
	return d
}

// updateDoc sets present values, unsets nil ones and bumps the version.
func updateDoc(patch resource.Document) bson.D {
	set, unset := bson.D{}, bson.D{}
	for k, v := range patch {
		if k == query.IDField || k == query.VersionField {
			continue
		}
		if v == nil {
			unset = append(unset, bson.E{Key: k, Value: ""})
			continue
		}
		set = append(set, bson.E{Key: k, Value: v})
	}

	update := bson.D{{Key: "$inc", Value: bson.D{{Key: query.VersionField, Value: int64(1)}}}}
	if len(set) > 0 {
		update = append(update, bson.E{Key: "$set", Value: set})
	}
	if len(unset) > 0 {
		update = append(update, bson.E{Key: "$unset", Value: unset})
	}
	return update
}

func toBSON(doc resource.Document) (bson.M, error) {
	m := make(bson.M, len(doc))
	for k, v := range doc {
		if k == query.IDField {
			if id := doc.ID(); id != "" {
				oid, err := primitive.ObjectIDFromHex(id)
				if err != nil {
					return nil, &resource.CastError{Field: query.IDField, Value: id}
				}
				m[objectIDKey] = oid
			}
			continue
		}
		if v == nil {
			continue
		}
		m[k] = v
	}
	return m, nil
}

func fromBSON(m bson.M) resource.Document {
	doc := make(resource.Document, len(m))
	for k, v := range m {
		if k == objectIDKey {
			if oid, ok := v.(primitive.ObjectID); ok {
				doc[query.IDField] = oid.Hex()
			} else {
				doc[query.IDField] = fmt.Sprint(v)
			}
			continue
		}
		switch t := v.(type) {
		case nil:
			continue
		case primitive.DateTime:
			doc[k] = t.Time().UTC()
		case int32:
			doc[k] = int64(t)
		case primitive.A:
			doc[k] = []any(t)
		default:
			doc[k] = v
		}
	}
	return doc
}

func objectIDs(field string, v any) (any, error) {
	parse := func(s string) (primitive.ObjectID, error) {
		oid, err := primitive.ObjectIDFromHex(s)
		if err != nil {
			return primitive.NilObjectID, &resource.CastError{Field: field, Value: s}
		}
		return oid, nil
	}

	switch t := v.(type) {
	case string:
		return parse(t)
	case []string:
		out := make([]any, 0, len(t))
		for _, s := range t {
			oid, err := parse(s)
			if err != nil {
				return nil, err
			}
			out = append(out, oid)
		}
		return out, nil
	case []any:
		out := make([]any, 0, len(t))
		for _, x := range t {
			s, ok := x.(string)
			if !ok {
				return nil, &resource.CastError{Field: field, Value: x}
			}
			oid, err := parse(s)
			if err != nil {
				return nil, err
			}
			out = append(out, oid)
		}
		return out, nil
	}
	return v, nil
}

func inValues(v any) any {
	switch t := v.(type) {
	case []any:
		return t
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	}
	return []any{v}
}

// dupKey matches the tail of `E11000 duplicate key error collection: db.users index: email_1 dup key: { email: "ada@example.com" }`.
var dupKey = regexp.MustCompile(`dup key: \{ ?([^:\s]+): (.*?) ?\}`)

func duplicateKey(err error) *resource.DuplicateKeyError {
	var messages []string

	var we mongo.WriteException
	var ce mongo.CommandError
	switch {
	case errors.As(err, &we):
		for _, e := range we.WriteErrors {
			messages = append(messages, e.Message)
		}
	case errors.As(err, &ce):
		messages = append(messages, ce.Message)
	default:
		messages = append(messages, err.Error())
	}

	var keys []resource.DuplicateKey
	for _, msg := range messages {
		if field, value, ok := parseDupKey(msg); ok {
			keys = append(keys, resource.DuplicateKey{Field: field, Value: value})
		}
	}
	if len(keys) == 0 {
		return nil
	}
	return &resource.DuplicateKeyError{Keys: keys}
}

func parseDupKey(msg string) (field, value string, ok bool) {
	m := dupKey.FindStringSubmatch(msg)
	if m == nil {
		return "", "", false
	}
	return m[1], strings.Trim(m[2], `"`), true
}
