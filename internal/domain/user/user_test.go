package user

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/accounts/internal/apperr"
	"github.com/geocoder89/accounts/internal/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBody() resource.Document {
	return resource.Document{
		FieldFirstName:       "  Ada ",
		FieldLastName:        "LOVELACE",
		FieldEmail:           " Ada@X.com ",
		FieldPassword:        "secret123",
		FieldPasswordConfirm: "secret123",
		FieldRole:            " Admin",
		FieldPhone:           " +1 (555) 123-4567 ",
	}
}

func TestNormalize(t *testing.T) {
	doc := validBody()
	Normalize(doc)

	assert.Equal(t, "ada", doc[FieldFirstName])
	assert.Equal(t, "lovelace", doc[FieldLastName])
	assert.Equal(t, "ada@x.com", doc[FieldEmail])
	assert.Equal(t, "admin", doc[FieldRole])
	assert.Equal(t, "+1 (555) 123-4567", doc[FieldPhone])
	assert.Equal(t, "secret123", doc[FieldPassword], "passwords are never rewritten")

	blankPhone := resource.Document{FieldPhone: "   "}
	Normalize(blankPhone)
	assert.NotContains(t, blankPhone, FieldPhone)
}

func TestValidateCreate(t *testing.T) {
	doc := validBody()
	Normalize(doc)
	require.NoError(t, ValidateCreate(doc))

	err := ValidateCreate(resource.Document{})
	var verrs resource.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, resource.ValidationErrors{
		FieldFirstName:       "First name is required",
		FieldLastName:        "Last name is required",
		FieldEmail:           "Email is required",
		FieldPassword:        "Password is required",
		FieldPasswordConfirm: "Password confirmation is required",
		FieldRole:            "Role is required",
	}, verrs)
}

func TestValidateCreate_FieldRules(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value any
		want  string
	}{
		{"bad email", FieldEmail, "not-an-email", "Please provide a valid email"},
		{"short password", FieldPassword, "short", "Password must be at least 8 characters"},
		{"long password", FieldPassword, strings.Repeat("a", MaxPasswordLength+1), "Password must be at most 72 characters"},
		{"unknown role", FieldRole, "operator", "Role is either: super_admin, admin"},
		{"bad phone", FieldPhone, "12-34", "Please provide a valid telephone number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validBody()
			Normalize(doc)
			doc[tt.field] = tt.value
			if tt.field == FieldPassword {
				doc[FieldPasswordConfirm] = tt.value
			}

			var verrs resource.ValidationErrors
			require.ErrorAs(t, ValidateCreate(doc), &verrs)
			assert.Equal(t, tt.want, verrs[tt.field])
		})
	}

	doc := validBody()
	Normalize(doc)
	doc[FieldPasswordConfirm] = "different1"

	var verrs resource.ValidationErrors
	require.ErrorAs(t, ValidateCreate(doc), &verrs)
	assert.Equal(t, "Passwords are not the same", verrs[FieldPasswordConfirm])
}

func TestValidPhone(t *testing.T) {
	for _, ok := range []string{"5551234567", "+15551234567", "+1 555 123 4567", "(555) 123-4567", "555.123.4567"} {
		assert.True(t, ValidPhone(ok), ok)
	}
	for _, bad := range []string{"", "123", "phone", "+1234 555 123 4567 8"} {
		assert.False(t, ValidPhone(bad), bad)
	}
}

func TestValidateUpdate_OnlyChecksPresentFields(t *testing.T) {
	require.NoError(t, ValidateUpdate(resource.Document{FieldFirstName: "grace"}))

	var verrs resource.ValidationErrors
	require.ErrorAs(t, ValidateUpdate(resource.Document{FieldFirstName: "", FieldRole: "root"}), &verrs)
	assert.Equal(t, "First name is required", verrs[FieldFirstName])
	assert.Equal(t, "Role is either: super_admin, admin", verrs[FieldRole])
}

func TestSelfServiceGuards(t *testing.T) {
	tests := []struct {
		name string
		body resource.Document
		want string
	}{
		{"password", resource.Document{FieldPassword: "x"}, msgNotForPassword},
		{"confirm", resource.Document{FieldPasswordConfirm: "x"}, msgNotForPassword},
		{"role", resource.Document{FieldRole: "super_admin"}, msgNoRoleUpdate},
		{"machines", resource.Document{FieldMachines: []any{"m1"}}, msgNoMachines},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RejectSelfServiceFields(tt.body)
			e, ok := apperr.As(err)
			require.True(t, ok)
			assert.Equal(t, apperr.KindAuthz, e.Kind)
			assert.Equal(t, tt.want, e.Message)
		})
	}

	assert.NoError(t, RejectSelfServiceFields(resource.Document{FieldFirstName: "ada", FieldRole: ""}))
	assert.NoError(t, RejectPasswordUpdate(resource.Document{FieldRole: "admin"}))
}

func TestChangedPasswordAfter(t *testing.T) {
	changed := time.Unix(1_700_000_000, 500_000_000)
	u := User{PasswordChangedAt: &changed}

	assert.True(t, u.ChangedPasswordAfter(1_699_999_999))
	assert.False(t, u.ChangedPasswordAfter(1_700_000_000), "same second is not after")
	assert.False(t, User{}.ChangedPasswordAfter(0))
}

func TestFromDocument(t *testing.T) {
	now := time.Now().UTC()
	u := FromDocument(resource.Document{
		"id":                      "u1",
		FieldFirstName:            "ada",
		FieldRole:                 "admin",
		FieldPassword:             "hash",
		FieldPasswordChangedAt:    now,
		FieldPasswordResetExpires: nil,
		FieldDeleted:              true,
		"createdAt":               now,
	})

	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, RoleAdmin, u.Role)
	assert.Equal(t, "hash", u.PasswordHash)
	require.NotNil(t, u.PasswordChangedAt)
	assert.True(t, now.Equal(*u.PasswordChangedAt))
	assert.Nil(t, u.PasswordResetExpires)
	assert.True(t, u.Deleted)
	assert.Equal(t, now, u.CreatedAt)
}

type fakeHasher struct{ err error }

func (f fakeHasher) Hash(ctx context.Context, plain string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "hashed:" + plain, nil
}

type fakeWelcomer struct {
	got     User
	siteURL string
	origin  string
	err     error
}

func (f *fakeWelcomer) Welcome(ctx context.Context, u User, siteURL, origin string) error {
	f.got, f.siteURL, f.origin = u, siteURL, origin
	return f.err
}

func TestDescriptorHooks(t *testing.T) {
	w := &fakeWelcomer{}
	d := NewDescriptor(nil, fakeHasher{}, w)
	ctx := context.Background()

	assert.Equal(t, FieldDeleted, d.SoftDeleteField)

	doc := validBody()
	require.NoError(t, d.Hooks.BeforeCreate(ctx, doc))
	assert.Equal(t, "hashed:secret123", doc[FieldPassword])
	assert.Equal(t, "ada@x.com", doc[FieldEmail])

	patch := resource.Document{FieldPassword: "newsecret1"}
	err := d.Hooks.BeforeUpdate(ctx, "id", patch)
	assert.True(t, apperr.IsKind(err, apperr.KindAuthz))

	patch = resource.Document{FieldEmail: " GRACE@x.com", FieldPassword: ""}
	require.NoError(t, d.Hooks.BeforeUpdate(ctx, "id", patch))
	assert.Equal(t, resource.Document{FieldEmail: "grace@x.com"}, patch)

	req := resource.Request{Origin: "http://localhost:8080", Params: map[string]any{"url": "https://site.example"}}
	require.NoError(t, d.Hooks.AfterCreate(ctx, resource.Document{"id": "u1", FieldEmail: "a@x.com"}, req))
	assert.Equal(t, "u1", w.got.ID)
	assert.Equal(t, "https://site.example", w.siteURL)
	assert.Equal(t, "http://localhost:8080", w.origin)
}

func TestDescriptorHooks_HashFailure(t *testing.T) {
	boom := errors.New("saturated")
	d := NewDescriptor(nil, fakeHasher{err: boom}, nil)

	err := d.Hooks.BeforeCreate(context.Background(), validBody())
	require.ErrorIs(t, err, boom)

	require.NoError(t, d.Hooks.AfterCreate(context.Background(), resource.Document{}, resource.Request{}))
}
