package resource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/geocoder89/accounts/internal/apperr"
	"github.com/geocoder89/accounts/internal/query"
)

// Request is the transport-neutral input of an operation.
type Request struct {
	// ID is the target document id for single-document operations.
	ID string
	// Params are the parsed query parameters.
	Params query.Params
	// Body is the decoded request body for Create and Update.
	Body Document
	// Base seeds the List filter.
	Base []query.Condition
	// Origin is scheme://host of the inbound request.
	Origin string
	// Actor is the id of the authenticated caller, when there is one.
	Actor string
}

// Outcome is what an operation produced. A nil Body means an empty response.
type Outcome struct {
	Status int
	Body   map[string]any
}

type Operation func(ctx context.Context, req Request) (Outcome, error)

func success(status int, payload map[string]any) Outcome {
	body := map[string]any{"status": "success"}
	for k, v := range payload {
		body[k] = v
	}
	return Outcome{Status: status, Body: body}
}

func (d *Descriptor) notFound() error {
	return apperr.NotFound(fmt.Sprintf("No %s found with that ID", d.key()))
}

func (d *Descriptor) now() time.Time { return time.Now().UTC() }

// prepare types the filter, drops unreadable sort keys and settles the projection
// before the store sees the query.
func (d *Descriptor) prepare(q query.Query) (query.Query, error) {
	conds, err := d.Schema.CastConditions(q.Conditions())
	if err != nil {
		return query.Query{}, err
	}
	return q.WithConditions(conds).
		WithSort(d.Schema.SortableFields(q.SortFields())).
		WithProjection(d.Schema.Project(q.Projection())), nil
}

// Present shapes a written document the way a default read would.
func (d *Descriptor) Present(doc Document) Document {
	return d.Schema.Public(Document(d.Schema.Project(query.Projection{}).Apply(doc)))
}

func (d *Descriptor) find(ctx context.Context, q query.Query) (Outcome, error) {
	q, err := d.prepare(q)
	if err != nil {
		return Outcome{}, err
	}

	docs, err := d.Store.Find(ctx, q)
	if err != nil {
		return Outcome{}, err
	}
	if err := d.resolve(ctx, docs); err != nil {
		return Outcome{}, err
	}

	out := make([]Document, 0, len(docs))
	for _, doc := range docs {
		out = append(out, d.Schema.Public(doc))
	}

	return success(http.StatusOK, map[string]any{
		"results": len(out),
		"data":    map[string]any{d.pluralKey(): out},
	}), nil
}

// List shapes the request params into a read against the visible documents.
func List(d *Descriptor) Operation {
	return func(ctx context.Context, req Request) (Outcome, error) {
		q := query.New(req.Base...).Shape(req.Params)
		return d.find(ctx, d.Visible(q))
	}
}

// Trash is List restricted to soft-deleted documents.
func Trash(d *Descriptor) Operation {
	return func(ctx context.Context, req Request) (Outcome, error) {
		q := query.New(req.Base...).Shape(req.Params)
		return d.find(ctx, d.Deleted(q))
	}
}

// GetOne reads a single visible document. Only the field projection is taken from params.
func GetOne(d *Descriptor) Operation {
	return func(ctx context.Context, req Request) (Outcome, error) {
		q := query.New(query.Eq(query.IDField, req.ID)).LimitFields(req.Params.Get("fields"))

		q, err := d.prepare(d.Visible(q))
		if err != nil {
			return Outcome{}, err
		}

		doc, err := d.Store.FindOne(ctx, q)
		if errors.Is(err, ErrNoDocument) {
			return Outcome{}, d.notFound()
		}
		if err != nil {
			return Outcome{}, err
		}

		if err := d.resolve(ctx, []Document{doc}); err != nil {
			return Outcome{}, err
		}

		return success(http.StatusOK, map[string]any{
			"data": map[string]any{d.key(): d.Schema.Public(doc)},
		}), nil
	}
}

// Insert runs the create pipeline without the after-create hook: sanitize, BeforeCreate,
// drop transient fields, stamp system fields, store.
func (d *Descriptor) Insert(ctx context.Context, body Document) (Document, error) {
	doc, err := d.Schema.Sanitize(body)
	if err != nil {
		return nil, err
	}

	if d.Hooks.BeforeCreate != nil {
		if err := d.Hooks.BeforeCreate(ctx, doc); err != nil {
			return nil, err
		}
	}

	doc = d.Schema.Persistable(doc)
	now := d.now()
	doc[query.CreatedAtField] = now
	doc["updatedAt"] = now
	doc[query.VersionField] = int64(0)
	if d.SoftDeleteField != "" {
		doc[d.SoftDeleteField] = false
	}

	return d.Store.Insert(ctx, doc)
}

func Create(d *Descriptor) Operation {
	return func(ctx context.Context, req Request) (Outcome, error) {
		stored, err := d.Insert(ctx, req.Body)
		if err != nil {
			return Outcome{}, err
		}

		if d.Hooks.AfterCreate != nil {
			if err := d.Hooks.AfterCreate(ctx, stored.Clone(), req); err != nil {
				return Outcome{}, err
			}
		}

		return success(http.StatusCreated, map[string]any{
			"data": map[string]any{d.key(): d.Present(stored)},
		}), nil
	}
}

func Update(d *Descriptor) Operation {
	return func(ctx context.Context, req Request) (Outcome, error) {
		patch, err := d.Schema.Sanitize(req.Body)
		if err != nil {
			return Outcome{}, err
		}

		if d.Hooks.BeforeUpdate != nil {
			if err := d.Hooks.BeforeUpdate(ctx, req.ID, patch); err != nil {
				return Outcome{}, err
			}
		}

		patch = d.Schema.Persistable(patch)
		patch["updatedAt"] = d.now()

		doc, err := d.Store.UpdateOne(ctx, d.VisibleFilter(query.Eq(query.IDField, req.ID)), patch)
		if errors.Is(err, ErrNoDocument) {
			return Outcome{}, d.notFound()
		}
		if err != nil {
			return Outcome{}, err
		}

		return success(http.StatusOK, map[string]any{
			"data": map[string]any{d.key(): d.Present(doc)},
		}), nil
	}
}

// Delete removes a visible document physically.
func Delete(d *Descriptor) Operation {
	return func(ctx context.Context, req Request) (Outcome, error) {
		_, err := d.Store.DeleteOne(ctx, d.VisibleFilter(query.Eq(query.IDField, req.ID)))
		if errors.Is(err, ErrNoDocument) {
			return Outcome{}, d.notFound()
		}
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Status: http.StatusNoContent}, nil
	}
}

// SoftDelete flips the soft-delete flag of a visible document. Without a flag it deletes.
func SoftDelete(d *Descriptor) Operation {
	if d.SoftDeleteField == "" {
		return Delete(d)
	}

	return func(ctx context.Context, req Request) (Outcome, error) {
		patch := Document{d.SoftDeleteField: true, "updatedAt": d.now()}

		_, err := d.Store.UpdateOne(ctx, d.VisibleFilter(query.Eq(query.IDField, req.ID)), patch)
		if errors.Is(err, ErrNoDocument) {
			return Outcome{}, d.notFound()
		}
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Status: http.StatusNoContent}, nil
	}
}

// Restore flips the flag back on a soft-deleted document. A document that is missing or
// not deleted gets the same answer and is left untouched.
func Restore(d *Descriptor) Operation {
	return func(ctx context.Context, req Request) (Outcome, error) {
		if d.SoftDeleteField == "" {
			return Outcome{}, apperr.NotFound(d.title() + " Not found or Already restored.")
		}

		filter := []query.Condition{
			query.Eq(query.IDField, req.ID),
			query.Eq(d.SoftDeleteField, true),
		}
		patch := Document{d.SoftDeleteField: false, "updatedAt": d.now()}

		doc, err := d.Store.UpdateOne(ctx, filter, patch)
		if errors.Is(err, ErrNoDocument) {
			return Outcome{}, apperr.NotFound(d.title() + " Not found or Already restored.")
		}
		if err != nil {
			return Outcome{}, err
		}

		return success(http.StatusOK, map[string]any{
			"data": map[string]any{d.key(): d.Present(doc)},
		}), nil
	}
}
