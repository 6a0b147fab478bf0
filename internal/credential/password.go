package credential

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"

	"github.com/geocoder89/accounts/internal/apperr"
	"github.com/geocoder89/accounts/internal/domain/user"
	"github.com/geocoder89/accounts/internal/query"
	"github.com/geocoder89/accounts/internal/resource"
)

const (
	MsgNoSuchEmail       = "There is no user with that email address."
	MsgInvalidResetToken = "Token is invalid or has expired"
)

// HashResetToken is the one-way digest persisted for a plaintext reset token.
func HashResetToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

func newResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// ChangePassword hashes and stores a new password for an existing identity and stamps the
// change time, which invalidates every token issued before it.
func (s *Service) ChangePassword(ctx context.Context, id, password string) (resource.Document, error) {
	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return nil, err
	}

	return s.update(ctx, id, resource.Document{
		user.FieldPassword:          hash,
		user.FieldPasswordChangedAt: s.now().UTC().Add(-passwordChangeSkew),
	})
}

// RequestPasswordReset stores the digest of a fresh reset token with its expiry and
// returns the plaintext, which is never persisted.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, user.User, error) {
	doc, err := s.find(ctx, query.Eq(user.FieldEmail, email))
	if errors.Is(err, resource.ErrNoDocument) {
		return "", user.User{}, apperr.NotFound(MsgNoSuchEmail)
	}
	if err != nil {
		return "", user.User{}, err
	}

	plain, err := newResetToken()
	if err != nil {
		return "", user.User{}, apperr.Internal("could not generate reset token", err)
	}

	doc, err = s.update(ctx, doc.ID(), resource.Document{
		user.FieldPasswordResetToken:   HashResetToken(plain),
		user.FieldPasswordResetExpires: s.now().UTC().Add(s.opts.ResetTTL),
	})
	if err != nil {
		return "", user.User{}, err
	}

	return plain, user.FromDocument(doc), nil
}

// ClearPasswordReset drops the reset digest and expiry together.
func (s *Service) ClearPasswordReset(ctx context.Context, id string) error {
	_, err := s.update(ctx, id, resource.Document{
		user.FieldPasswordResetToken:   nil,
		user.FieldPasswordResetExpires: nil,
	})
	return err
}

// ConsumeResetToken sets a new password for the identity holding an unexpired reset token
// and clears the reset fields.
func (s *Service) ConsumeResetToken(ctx context.Context, plain, password, confirm string) (resource.Document, error) {
	if plain == "" {
		return nil, apperr.Validation(MsgInvalidResetToken, nil)
	}

	digest := HashResetToken(plain)
	doc, err := s.find(ctx,
		query.Eq(user.FieldPasswordResetToken, digest),
		query.Condition{Field: user.FieldPasswordResetExpires, Op: query.OpGt, Value: s.now().UTC()},
	)
	if errors.Is(err, resource.ErrNoDocument) {
		return nil, apperr.Validation(MsgInvalidResetToken, nil)
	}
	if err != nil {
		return nil, err
	}

	errs := resource.ValidationErrors{}
	user.CheckPasswordPair(password, confirm, errs)
	if err := errs.Err(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return nil, err
	}

	patch := resource.Document{
		user.FieldPassword:             hash,
		user.FieldPasswordChangedAt:    s.now().UTC().Add(-passwordChangeSkew),
		user.FieldPasswordResetToken:   nil,
		user.FieldPasswordResetExpires: nil,
		"updatedAt":                    s.now().UTC(),
	}

	// the digest stays in the filter so two concurrent resets cannot both succeed
	filter := s.users.VisibleFilter(
		query.Eq(query.IDField, doc.ID()),
		query.Eq(user.FieldPasswordResetToken, digest),
	)
	doc, err = s.users.Store.UpdateOne(ctx, filter, patch)
	if errors.Is(err, resource.ErrNoDocument) {
		return nil, apperr.Validation(MsgInvalidResetToken, nil)
	}
	return doc, err
}

// PurgeExpiredResets clears up to batch reset digests whose expiry has passed, soft-deleted
// identities included, and reports how many it cleared.
func (s *Service) PurgeExpiredResets(ctx context.Context, batch int) (int, error) {
	if batch <= 0 {
		batch = 100
	}
	now := s.now().UTC()
	expired := query.Condition{Field: user.FieldPasswordResetExpires, Op: query.OpLt, Value: now}

	docs, err := s.users.Store.Find(ctx, query.New(expired).
		WithProjection(query.Projection{Include: []string{query.IDField}}).
		Paginate("1", strconv.Itoa(batch)))
	if err != nil {
		return 0, err
	}

	cleared := 0
	for _, doc := range docs {
		// the expiry stays in the filter so a reset requested meanwhile survives
		_, err := s.users.Store.UpdateOne(ctx,
			[]query.Condition{query.Eq(query.IDField, doc.ID()), expired},
			resource.Document{
				user.FieldPasswordResetToken:   nil,
				user.FieldPasswordResetExpires: nil,
				"updatedAt":                    now,
			})
		if errors.Is(err, resource.ErrNoDocument) {
			continue
		}
		if err != nil {
			return cleared, err
		}
		cleared++
	}
	return cleared, nil
}
