package observability

import (
	"context"

	"github.com/geocoder89/accounts/internal/query"
	"github.com/geocoder89/accounts/internal/resource"
)

// InstrumentedStore times every store call under "<name>.<op>".
type InstrumentedStore struct {
	inner resource.Store
	name  string
	prom  *Prom
}

func InstrumentStore(p *Prom, name string, inner resource.Store) *InstrumentedStore {
	return &InstrumentedStore{inner: inner, name: name, prom: p}
}

func (s *InstrumentedStore) op(name string) string { return s.name + "." + name }

func (s *InstrumentedStore) Find(ctx context.Context, q query.Query) (docs []resource.Document, err error) {
	err = s.prom.ObserveDB(s.op("find"), func() error {
		docs, err = s.inner.Find(ctx, q)
		return err
	})
	return docs, err
}

func (s *InstrumentedStore) FindOne(ctx context.Context, q query.Query) (doc resource.Document, err error) {
	err = s.prom.ObserveDB(s.op("find_one"), func() error {
		doc, err = s.inner.FindOne(ctx, q)
		return err
	})
	return doc, err
}

func (s *InstrumentedStore) Insert(ctx context.Context, d resource.Document) (doc resource.Document, err error) {
	err = s.prom.ObserveDB(s.op("insert"), func() error {
		doc, err = s.inner.Insert(ctx, d)
		return err
	})
	return doc, err
}

func (s *InstrumentedStore) UpdateOne(ctx context.Context, filter []query.Condition, patch resource.Document) (doc resource.Document, err error) {
	err = s.prom.ObserveDB(s.op("update_one"), func() error {
		doc, err = s.inner.UpdateOne(ctx, filter, patch)
		return err
	})
	return doc, err
}

func (s *InstrumentedStore) DeleteOne(ctx context.Context, filter []query.Condition) (doc resource.Document, err error) {
	err = s.prom.ObserveDB(s.op("delete_one"), func() error {
		doc, err = s.inner.DeleteOne(ctx, filter)
		return err
	})
	return doc, err
}

func (s *InstrumentedStore) Ping(ctx context.Context) error {
	return s.prom.ObserveDB(s.op("ping"), func() error {
		return s.inner.Ping(ctx)
	})
}
