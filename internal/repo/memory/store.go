package memory

import (
	"context"
	"sync"

	"github.com/geocoder89/accounts/internal/query"
	"github.com/geocoder89/accounts/internal/resource"
	"github.com/google/uuid"
)

// Store keeps documents of one resource in process memory.
type Store struct {
	mu     sync.RWMutex
	schema resource.Schema
	items  map[string]resource.Document
	order  []string // insertion order, so unsorted reads are stable
}

func NewStore(schema resource.Schema) *Store {
	return &Store{
		schema: schema,
		items:  make(map[string]resource.Document),
	}
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Find(ctx context.Context, q query.Query) ([]resource.Document, error) {
	if err := s.checkIDs(q.Conditions()); err != nil {
		return nil, err
	}

	s.mu.RLock()
	matched := make([]map[string]any, 0)
	for _, id := range s.order {
		doc := s.items[id]
		if query.MatchAll(q.Conditions(), doc) {
			matched = append(matched, doc.Clone())
		}
	}
	s.mu.RUnlock()

	query.SortDocuments(matched, q.SortFields())

	if q.Skip() > 0 {
		if q.Skip() >= int64(len(matched)) {
			matched = matched[:0]
		} else {
			matched = matched[q.Skip():]
		}
	}
	if q.Paginated() && int64(len(matched)) > q.Limit() {
		matched = matched[:q.Limit()]
	}

	out := make([]resource.Document, 0, len(matched))
	for _, doc := range matched {
		out = append(out, project(q.Projection(), doc))
	}
	return out, nil
}

func (s *Store) FindOne(ctx context.Context, q query.Query) (resource.Document, error) {
	docs, err := s.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, resource.ErrNoDocument
	}
	return docs[0], nil
}

func (s *Store) Insert(ctx context.Context, doc resource.Document) (resource.Document, error) {
	d := doc.Clone()
	if d.ID() == "" {
		d["id"] = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkUnique(d, ""); err != nil {
		return nil, err
	}

	s.items[d.ID()] = d
	s.order = append(s.order, d.ID())
	return d.Clone(), nil
}

func (s *Store) UpdateOne(ctx context.Context, filter []query.Condition, patch resource.Document) (resource.Document, error) {
	if err := s.checkIDs(filter); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.first(filter)
	if !ok {
		return nil, resource.ErrNoDocument
	}

	next := s.items[id].Clone()
	for k, v := range patch {
		if k == "id" {
			continue
		}
		next[k] = v
	}
	version, _ := next[query.VersionField].(int64)
	next[query.VersionField] = version + 1

	if err := s.checkUnique(next, id); err != nil {
		return nil, err
	}

	s.items[id] = next
	return next.Clone(), nil
}

func (s *Store) DeleteOne(ctx context.Context, filter []query.Condition) (resource.Document, error) {
	if err := s.checkIDs(filter); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.first(filter)
	if !ok {
		return nil, resource.ErrNoDocument
	}

	doc := s.items[id]
	delete(s.items, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return doc, nil
}

// first must be called with the lock held.
func (s *Store) first(filter []query.Condition) (string, bool) {
	for _, id := range s.order {
		if query.MatchAll(filter, s.items[id]) {
			return id, true
		}
	}
	return "", false
}

// checkUnique must be called with the lock held. skip is the id being replaced.
func (s *Store) checkUnique(doc resource.Document, skip string) error {
	var dup []resource.DuplicateKey
	for _, f := range s.schema.UniqueFields() {
		v, ok := doc[f.Name]
		if !ok || v == nil {
			continue
		}
		for id, other := range s.items {
			if id == skip {
				continue
			}
			if query.Eq(f.Name, v).Match(other) {
				dup = append(dup, resource.DuplicateKey{Field: f.Name, Value: v})
				break
			}
		}
	}
	if len(dup) > 0 {
		return &resource.DuplicateKeyError{Keys: dup}
	}
	if _, taken := s.items[doc.ID()]; taken && doc.ID() != skip {
		return &resource.DuplicateKeyError{Keys: []resource.DuplicateKey{{Field: "id", Value: doc.ID()}}}
	}
	return nil
}

// checkIDs mirrors the uuid cast the postgres store performs.
func (s *Store) checkIDs(conds []query.Condition) error {
	for _, c := range conds {
		if c.Field != query.IDField {
			continue
		}
		for _, v := range idValues(c.Value) {
			if _, err := uuid.Parse(v); err != nil {
				return &resource.CastError{Field: "id", Value: v}
			}
		}
	}
	return nil
}

func idValues(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, x := range t {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func project(p query.Projection, doc map[string]any) resource.Document {
	if p.IsZero() {
		return resource.Document(doc)
	}
	return resource.Document(p.Apply(doc))
}
