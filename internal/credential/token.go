package credential

import (
	"context"
	"errors"

	"github.com/geocoder89/accounts/internal/apperr"
	"github.com/geocoder89/accounts/internal/domain/user"
	"github.com/geocoder89/accounts/internal/query"
	"github.com/geocoder89/accounts/internal/resource"
	"github.com/golang-jwt/jwt/v5"
)

const (
	MsgMissingToken    = "You are not logged in! Please log in to get access"
	MsgInvalidToken    = "Invalid token, please login again."
	MsgExpiredToken    = "Your token has expired! Please log in again."
	MsgIdentityGone    = "The user you are trying to access does not exist"
	MsgPasswordChanged = "The user you are trying to access has changed their password"
)

// IssueToken signs a session token for u.
func (s *Service) IssueToken(u user.User) (Session, error) {
	raw, err := s.tokens.Issue(u.ID)
	if err != nil {
		return Session{}, apperr.Internal("could not sign token", err)
	}
	return Session{Token: raw, User: u}, nil
}

func (s *Service) issueFor(doc resource.Document) (Session, error) {
	sess, err := s.IssueToken(user.FromDocument(doc))
	if err != nil {
		return Session{}, err
	}
	sess.Public = s.users.Present(doc)
	return sess, nil
}

// TranslateTokenError maps jwt verification failures to auth errors.
func TranslateTokenError(err error) *apperr.Error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return apperr.Auth(MsgExpiredToken)
	}
	return apperr.Auth(MsgInvalidToken)
}

// VerifyToken resolves the identity a token is bound to. It fails when the token is
// missing, invalid or expired, when the identity is gone or soft-deleted, and when the
// password changed after the token was issued.
func (s *Service) VerifyToken(ctx context.Context, raw string) (user.User, error) {
	if raw == "" {
		return user.User{}, apperr.Auth(MsgMissingToken)
	}

	claims, err := s.tokens.Verify(raw)
	if err != nil {
		return user.User{}, TranslateTokenError(err)
	}

	doc, err := s.find(ctx, query.Eq(query.IDField, claims.UserID()))
	if isMissing(err) {
		return user.User{}, apperr.Auth(MsgIdentityGone)
	}
	if err != nil {
		return user.User{}, err
	}

	u := user.FromDocument(doc)
	if u.ChangedPasswordAfter(claims.IssuedAtUnix()) {
		return user.User{}, apperr.Auth(MsgPasswordChanged)
	}
	return u, nil
}
