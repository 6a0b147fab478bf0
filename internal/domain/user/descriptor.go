package user

import (
	"context"

	"github.com/geocoder89/accounts/internal/resource"
)

const (
	ResourceName = "user"
	PluralName   = "users"
)

type PasswordHasher interface {
	Hash(ctx context.Context, plain string) (string, error)
}

// Welcomer greets a newly created identity. siteURL may be empty.
type Welcomer interface {
	Welcome(ctx context.Context, u User, siteURL, origin string) error
}

// NewDescriptor wires the identity resource: schema, soft-delete flag and lifecycle hooks.
// welcome may be nil.
func NewDescriptor(store resource.Store, hasher PasswordHasher, welcome Welcomer) *resource.Descriptor {
	return &resource.Descriptor{
		Name:            ResourceName,
		Plural:          PluralName,
		Schema:          Schema(),
		Store:           store,
		SoftDeleteField: FieldDeleted,
		Hooks: resource.Hooks{
			BeforeCreate: func(ctx context.Context, doc resource.Document) error {
				Normalize(doc)
				if err := ValidateCreate(doc); err != nil {
					return err
				}

				hash, err := hasher.Hash(ctx, str(doc[FieldPassword]))
				if err != nil {
					return err
				}
				doc[FieldPassword] = hash
				return nil
			},
			BeforeUpdate: func(ctx context.Context, id string, patch resource.Document) error {
				if err := RejectPasswordUpdate(patch); err != nil {
					return err
				}
				delete(patch, FieldPassword)
				delete(patch, FieldPasswordConfirm)

				Normalize(patch)
				return ValidateUpdate(patch)
			},
			AfterCreate: func(ctx context.Context, doc resource.Document, req resource.Request) error {
				if welcome == nil {
					return nil
				}
				return welcome.Welcome(ctx, FromDocument(doc), req.Params.Get("url"), req.Origin)
			},
		},
	}
}
