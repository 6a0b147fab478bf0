package resource

import (
	"context"
	"errors"

	"github.com/geocoder89/accounts/internal/query"
)

// resolve replaces relation ids with the related documents. Dangling ids resolve to nil,
// or are left out of a list.
func (d *Descriptor) resolve(ctx context.Context, docs []Document) error {
	for _, rel := range d.Relations {
		if rel.Target == nil {
			continue
		}
		for _, doc := range docs {
			switch v := doc[rel.Field].(type) {
			case string:
				related, err := rel.Target.fetch(ctx, v)
				if err != nil {
					return err
				}
				if related == nil {
					doc[rel.Field] = nil
					continue
				}
				doc[rel.Field] = related
			case []string:
				related, err := rel.Target.fetchMany(ctx, v)
				if err != nil {
					return err
				}
				doc[rel.Field] = related
			case []any:
				ids := make([]string, 0, len(v))
				for _, raw := range v {
					if s, ok := raw.(string); ok {
						ids = append(ids, s)
					}
				}
				related, err := rel.Target.fetchMany(ctx, ids)
				if err != nil {
					return err
				}
				doc[rel.Field] = related
			}
		}
	}
	return nil
}

func (d *Descriptor) fetch(ctx context.Context, id string) (Document, error) {
	q := d.Visible(query.New(query.Eq(query.IDField, id))).WithProjection(d.Schema.Project(query.Projection{}))

	doc, err := d.Store.FindOne(ctx, q)
	if errors.Is(err, ErrNoDocument) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d.Schema.Public(doc), nil
}

func (d *Descriptor) fetchMany(ctx context.Context, ids []string) ([]Document, error) {
	if len(ids) == 0 {
		return []Document{}, nil
	}

	q := d.Visible(query.New(query.Condition{Field: query.IDField, Op: query.OpIn, Value: toAny(ids)})).
		WithProjection(d.Schema.Project(query.Projection{}))

	found, err := d.Store.Find(ctx, q)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]Document, len(found))
	for _, doc := range found {
		byID[doc.ID()] = doc
	}

	out := make([]Document, 0, len(ids))
	for _, id := range ids {
		if doc, ok := byID[id]; ok {
			out = append(out, d.Schema.Public(doc))
		}
	}
	return out, nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
