package resource

import (
	"context"

	"github.com/geocoder89/accounts/internal/query"
)

// Store is the document store contract every backend implements.
//
// Conditions reaching a store are already typed by the resource Schema. Find and FindOne
// honour the query's sort, projection and window; an empty projection returns every stored
// field. Writes return the document as it is after the write. UpdateOne bumps the version.
// ErrNoDocument signals that no document matched.
type Store interface {
	Find(ctx context.Context, q query.Query) ([]Document, error)
	FindOne(ctx context.Context, q query.Query) (Document, error)
	Insert(ctx context.Context, doc Document) (Document, error)
	UpdateOne(ctx context.Context, filter []query.Condition, patch Document) (Document, error)
	DeleteOne(ctx context.Context, filter []query.Condition) (Document, error)
	Ping(ctx context.Context) error
}
