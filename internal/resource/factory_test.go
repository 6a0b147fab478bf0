package resource_test

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/geocoder89/accounts/internal/apperr"
	"github.com/geocoder89/accounts/internal/query"
	"github.com/geocoder89/accounts/internal/repo/memory"
	"github.com/geocoder89/accounts/internal/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func accountSchema() resource.Schema {
	return resource.NewSchema(
		resource.Field{Name: "name"},
		resource.Field{Name: "email", Unique: true},
		resource.Field{Name: "age", Kind: resource.KindInt},
		resource.Field{Name: "secret", Hidden: true},
		resource.Field{Name: "secretConfirm", Transient: true},
		resource.Field{Name: "team"},
		resource.Field{Name: "deleted", Kind: resource.KindBool, Unselected: true, System: true},
	)
}

func newAccounts() *resource.Descriptor {
	schema := accountSchema()
	return &resource.Descriptor{
		Name:            "account",
		Schema:          schema,
		Store:           memory.NewStore(schema),
		SoftDeleteField: "deleted",
	}
}

func mustCreate(t *testing.T, d *resource.Descriptor, body resource.Document) resource.Document {
	t.Helper()

	out, err := resource.Create(d)(context.Background(), resource.Request{Body: body})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, out.Status)

	return single(t, out, d.Name)
}

func single(t *testing.T, out resource.Outcome, key string) resource.Document {
	t.Helper()

	data, ok := out.Body["data"].(map[string]any)
	require.True(t, ok, "data envelope missing: %#v", out.Body)
	doc, ok := data[key].(resource.Document)
	require.True(t, ok, "document missing under %q: %#v", key, data)
	return doc
}

func listed(t *testing.T, out resource.Outcome, key string) []resource.Document {
	t.Helper()

	data, ok := out.Body["data"].(map[string]any)
	require.True(t, ok)
	docs, ok := data[key].([]resource.Document)
	require.True(t, ok)
	assert.Equal(t, len(docs), out.Body["results"])
	return docs
}

func requireKind(t *testing.T, err error, kind apperr.Kind, msg string) {
	t.Helper()

	e, ok := apperr.As(err)
	require.True(t, ok, "expected app error, got %v", err)
	assert.Equal(t, kind, e.Kind)
	assert.Equal(t, msg, e.Message)
}

func TestCreate_StampsAndStripsPrivateFields(t *testing.T) {
	d := newAccounts()

	var seen resource.Document
	d.Hooks.BeforeCreate = func(ctx context.Context, doc resource.Document) error {
		seen = doc.Clone()
		return nil
	}

	doc := mustCreate(t, d, resource.Document{
		"name":          "ada",
		"email":         "ada@x.com",
		"secret":        "s3cret",
		"secretConfirm": "s3cret",
		"unknown":       "dropped",
		"version":       int64(99),
		"deleted":       true,
	})

	assert.Equal(t, "s3cret", seen["secretConfirm"], "hooks see transient fields")
	assert.NotContains(t, seen, "unknown")
	assert.NotContains(t, seen, "deleted", "system fields are not writable")

	assert.NotEmpty(t, doc.ID())
	assert.Equal(t, "ada", doc["name"])
	assert.NotContains(t, doc, "secret")
	assert.NotContains(t, doc, "secretConfirm")
	assert.NotContains(t, doc, "version")
	assert.NotContains(t, doc, "deleted")
	assert.Contains(t, doc, "createdAt")

	stored, err := d.Store.FindOne(context.Background(), query.New(query.Eq("id", doc.ID())))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", stored["secret"])
	assert.Equal(t, int64(0), stored["version"])
	assert.Equal(t, false, stored["deleted"])
	assert.NotContains(t, stored, "secretConfirm")
}

func TestCreate_HookErrorsPropagate(t *testing.T) {
	d := newAccounts()
	d.Hooks.BeforeCreate = func(ctx context.Context, doc resource.Document) error {
		return resource.ValidationErrors{"email": "Please provide a valid email"}
	}

	_, err := resource.Create(d)(context.Background(), resource.Request{Body: resource.Document{"email": "nope"}})

	var verrs resource.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "Please provide a valid email", verrs["email"])
}

func TestCreate_DuplicateUniqueField(t *testing.T) {
	d := newAccounts()
	mustCreate(t, d, resource.Document{"email": "a@x.com"})

	_, err := resource.Create(d)(context.Background(), resource.Request{Body: resource.Document{"email": "a@x.com"}})

	var dup *resource.DuplicateKeyError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, []resource.DuplicateKey{{Field: "email", Value: "a@x.com"}}, dup.Keys)
}

func TestCreate_AfterCreateFailureFailsRequest(t *testing.T) {
	d := newAccounts()
	boom := errors.New("mail down")
	d.Hooks.AfterCreate = func(ctx context.Context, doc resource.Document, req resource.Request) error {
		assert.Equal(t, "https://app.example", req.Origin)
		return boom
	}

	_, err := resource.Create(d)(context.Background(), resource.Request{
		Body:   resource.Document{"email": "a@x.com"},
		Origin: "https://app.example",
	})

	require.ErrorIs(t, err, boom)
}

func TestList_ShapesAndHidesDeleted(t *testing.T) {
	d := newAccounts()
	a := mustCreate(t, d, resource.Document{"name": "a", "age": float64(17)})
	mustCreate(t, d, resource.Document{"name": "b", "age": float64(30)})
	c := mustCreate(t, d, resource.Document{"name": "c", "age": float64(40)})

	_, err := resource.SoftDelete(d)(context.Background(), resource.Request{ID: c["id"].(string)})
	require.NoError(t, err)

	out, err := resource.List(d)(context.Background(), resource.Request{
		Params: query.ParseParams(url.Values{"age[gte]": {"18"}}),
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, out.Status)
	assert.Equal(t, "success", out.Body["status"])

	docs := listed(t, out, "accounts")
	require.Len(t, docs, 1)
	assert.Equal(t, "b", docs[0]["name"])

	all, err := resource.List(d)(context.Background(), resource.Request{
		Params: query.ParseParams(url.Values{"sort": {"name"}}),
	})
	require.NoError(t, err)
	docs = listed(t, all, "accounts")
	require.Len(t, docs, 2)
	assert.Equal(t, a.ID(), docs[0].ID())
}

func TestList_IgnoresSortOnHiddenFields(t *testing.T) {
	d := newAccounts()
	mustCreate(t, d, resource.Document{"name": "a", "secret": "a"})
	mustCreate(t, d, resource.Document{"name": "b", "secret": "z"})

	out, err := resource.List(d)(context.Background(), resource.Request{
		Params: query.ParseParams(url.Values{"sort": {"-secret,name"}}),
	})
	require.NoError(t, err)

	docs := listed(t, out, "accounts")
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0]["name"], "ordering falls through to name")
}

func TestList_EmptyIsNotAnError(t *testing.T) {
	d := newAccounts()

	out, err := resource.List(d)(context.Background(), resource.Request{Params: query.Params{}})
	require.NoError(t, err)
	assert.Empty(t, listed(t, out, "accounts"))
	assert.Equal(t, 0, out.Body["results"])
}

func TestList_PaginationAndBaseFilter(t *testing.T) {
	d := newAccounts()
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		team := "red"
		if name == "e" {
			team = "blue"
		}
		mustCreate(t, d, resource.Document{"name": name, "team": team})
	}

	out, err := resource.List(d)(context.Background(), resource.Request{
		Base:   []query.Condition{query.Eq("team", "red")},
		Params: query.ParseParams(url.Values{"sort": {"name"}, "page": {"2"}, "limit": {"3"}}),
	})
	require.NoError(t, err)

	docs := listed(t, out, "accounts")
	require.Len(t, docs, 1)
	assert.Equal(t, "d", docs[0]["name"])
}

func TestList_BadFilterValueIsCastError(t *testing.T) {
	d := newAccounts()

	_, err := resource.List(d)(context.Background(), resource.Request{
		Params: query.ParseParams(url.Values{"age": {"old"}}),
	})

	var cast *resource.CastError
	require.ErrorAs(t, err, &cast)
	assert.Equal(t, "age", cast.Field)
}

func TestGetOne_ProjectionAndVisibility(t *testing.T) {
	d := newAccounts()
	doc := mustCreate(t, d, resource.Document{"name": "ada", "email": "ada@x.com", "secret": "x"})
	ctx := context.Background()

	out, err := resource.GetOne(d)(ctx, resource.Request{ID: doc.ID(), Params: query.Params{"fields": "email,secret"}})
	require.NoError(t, err)
	got := single(t, out, "account")
	assert.Equal(t, resource.Document{"id": doc.ID(), "email": "ada@x.com"}, got)

	out, err = resource.GetOne(d)(ctx, resource.Request{ID: doc.ID(), Params: query.Params{"fields": "deleted"}})
	require.NoError(t, err)
	assert.Equal(t, false, single(t, out, "account")["deleted"])

	_, err = resource.SoftDelete(d)(ctx, resource.Request{ID: doc.ID()})
	require.NoError(t, err)

	_, err = resource.GetOne(d)(ctx, resource.Request{ID: doc.ID(), Params: query.Params{}})
	requireKind(t, err, apperr.KindNotFound, "No account found with that ID")

	trash, err := resource.Trash(d)(ctx, resource.Request{Params: query.Params{}})
	require.NoError(t, err)
	docs := listed(t, trash, "accounts")
	require.Len(t, docs, 1)
	assert.Equal(t, doc.ID(), docs[0].ID())
}

func TestGetOne_MalformedID(t *testing.T) {
	d := newAccounts()

	_, err := resource.GetOne(d)(context.Background(), resource.Request{ID: "not-a-uuid", Params: query.Params{}})

	var cast *resource.CastError
	require.ErrorAs(t, err, &cast)
	assert.Equal(t, "id", cast.Field)
}

func TestUpdate(t *testing.T) {
	d := newAccounts()
	doc := mustCreate(t, d, resource.Document{"name": "ada", "email": "ada@x.com"})
	ctx := context.Background()

	var patched resource.Document
	d.Hooks.BeforeUpdate = func(ctx context.Context, id string, patch resource.Document) error {
		assert.Equal(t, doc.ID(), id)
		patched = patch.Clone()
		return nil
	}

	out, err := resource.Update(d)(ctx, resource.Request{ID: doc.ID(), Body: resource.Document{"name": "grace", "id": "other"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, out.Status)
	assert.Equal(t, "grace", single(t, out, "account")["name"])
	assert.Equal(t, resource.Document{"name": "grace"}, patched)

	stored, err := d.Store.FindOne(ctx, query.New(query.Eq("id", doc.ID())))
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored["version"])

	_, err = resource.SoftDelete(d)(ctx, resource.Request{ID: doc.ID()})
	require.NoError(t, err)

	_, err = resource.Update(d)(ctx, resource.Request{ID: doc.ID(), Body: resource.Document{"name": "x"}})
	requireKind(t, err, apperr.KindNotFound, "No account found with that ID")
}

func TestDelete(t *testing.T) {
	d := newAccounts()
	doc := mustCreate(t, d, resource.Document{"name": "ada"})
	ctx := context.Background()

	out, err := resource.Delete(d)(ctx, resource.Request{ID: doc.ID()})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, out.Status)
	assert.Nil(t, out.Body)

	_, err = resource.Delete(d)(ctx, resource.Request{ID: doc.ID()})
	requireKind(t, err, apperr.KindNotFound, "No account found with that ID")

	_, err = d.Store.FindOne(ctx, query.New(query.Eq("id", doc.ID())).IncludeDeleted())
	assert.ErrorIs(t, err, resource.ErrNoDocument)
}

func TestSoftDeleteAndRestore(t *testing.T) {
	d := newAccounts()
	doc := mustCreate(t, d, resource.Document{"name": "ada"})
	ctx := context.Background()

	_, err := resource.Restore(d)(ctx, resource.Request{ID: doc.ID()})
	requireKind(t, err, apperr.KindNotFound, "Account Not found or Already restored.")

	stored, err := d.Store.FindOne(ctx, query.New(query.Eq("id", doc.ID())))
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored["version"], "failed restore must not write")

	out, err := resource.SoftDelete(d)(ctx, resource.Request{ID: doc.ID()})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, out.Status)

	_, err = resource.SoftDelete(d)(ctx, resource.Request{ID: doc.ID()})
	requireKind(t, err, apperr.KindNotFound, "No account found with that ID")

	out, err = resource.Restore(d)(ctx, resource.Request{ID: doc.ID()})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, out.Status)
	assert.Equal(t, doc.ID(), single(t, out, "account").ID())

	_, err = resource.Restore(d)(ctx, resource.Request{ID: doc.ID()})
	requireKind(t, err, apperr.KindNotFound, "Account Not found or Already restored.")

	_, err = resource.GetOne(d)(ctx, resource.Request{ID: doc.ID(), Params: query.Params{}})
	require.NoError(t, err)
}

func TestRelationsAreResolved(t *testing.T) {
	teams := &resource.Descriptor{
		Name:   "team",
		Schema: resource.NewSchema(resource.Field{Name: "label"}),
	}
	teams.Store = memory.NewStore(teams.Schema)

	red := mustCreate(t, teams, resource.Document{"label": "red"})

	d := newAccounts()
	d.Relations = []resource.Relation{{Field: "team", Target: teams}}
	doc := mustCreate(t, d, resource.Document{"name": "ada", "team": red.ID()})

	out, err := resource.GetOne(d)(context.Background(), resource.Request{ID: doc.ID(), Params: query.Params{}})
	require.NoError(t, err)

	team, ok := single(t, out, "account")["team"].(resource.Document)
	require.True(t, ok)
	assert.Equal(t, "red", team["label"])
}
