package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/geocoder89/accounts/internal/query"
	"github.com/geocoder89/accounts/internal/resource"
)

const objectIDKey = "_id"

// Store keeps the documents of one resource in a collection. Documents are keyed by field
// name; the id lives in _id as an ObjectID.
type Store struct {
	coll   *mongo.Collection
	schema resource.Schema
}

func NewStore(coll *mongo.Collection, schema resource.Schema) *Store {
	return &Store{coll: coll, schema: schema}
}

// Connect dials the deployment and checks it answers.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// EnsureIndexes creates a sparse unique index per unique field and one backing the default sort.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: query.CreatedAtField, Value: -1}}},
	}
	for _, f := range s.schema.UniqueFields() {
		models = append(models, mongo.IndexModel{
			Keys:    bson.D{{Key: f.Name, Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		})
	}

	if _, err := s.coll.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("create %s indexes: %w", s.coll.Name(), err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.coll.Database().Client().Ping(ctx, readpref.Primary())
}

func (s *Store) Find(ctx context.Context, q query.Query) ([]resource.Document, error) {
	filter, err := filterDoc(s.schema, q.Conditions())
	if err != nil {
		return nil, err
	}

	cur, err := s.coll.Find(ctx, filter, findOptions(q))
	if err != nil {
		return nil, translate(err)
	}
	defer cur.Close(ctx)

	var raw []bson.M
	if err := cur.All(ctx, &raw); err != nil {
		return nil, translate(err)
	}

	out := make([]resource.Document, 0, len(raw))
	for _, m := range raw {
		out = append(out, fromBSON(m))
	}
	return out, nil
}

func (s *Store) FindOne(ctx context.Context, q query.Query) (resource.Document, error) {
	docs, err := s.Find(ctx, q.Paginate("1", "1"))
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, resource.ErrNoDocument
	}
	return docs[0], nil
}

func (s *Store) Insert(ctx context.Context, doc resource.Document) (resource.Document, error) {
	m, err := toBSON(doc)
	if err != nil {
		return nil, err
	}
	if _, ok := m[objectIDKey]; !ok {
		m[objectIDKey] = primitive.NewObjectID()
	}

	if _, err := s.coll.InsertOne(ctx, m); err != nil {
		return nil, translate(err)
	}
	return fromBSON(m), nil
}

func (s *Store) UpdateOne(ctx context.Context, filter []query.Condition, patch resource.Document) (resource.Document, error) {
	f, err := filterDoc(s.schema, filter)
	if err != nil {
		return nil, err
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var out bson.M
	err = s.coll.FindOneAndUpdate(ctx, f, updateDoc(patch), opts).Decode(&out)
	if err != nil {
		return nil, translate(err)
	}
	return fromBSON(out), nil
}

func (s *Store) DeleteOne(ctx context.Context, filter []query.Condition) (resource.Document, error) {
	f, err := filterDoc(s.schema, filter)
	if err != nil {
		return nil, err
	}

	var out bson.M
	if err := s.coll.FindOneAndDelete(ctx, f).Decode(&out); err != nil {
		return nil, translate(err)
	}
	return fromBSON(out), nil
}

func translate(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return resource.ErrNoDocument
	}
	if mongo.IsDuplicateKeyError(err) {
		if dup := duplicateKey(err); dup != nil {
			return dup
		}
	}
	return err
}
