package credential

import (
	"context"
	"errors"
	"strings"

	"github.com/geocoder89/accounts/internal/apperr"
	"github.com/geocoder89/accounts/internal/domain/user"
	"github.com/geocoder89/accounts/internal/query"
	"github.com/geocoder89/accounts/internal/resource"
)

const (
	MsgLoginMissing       = "Validation Error: Please provide email and password"
	MsgLoginInvalidEmail  = "Invalid email"
	MsgInvalidCredentials = "Invalid credentials"
	MsgCurrentMissing     = "Validation Error: currentPassword is required."
	MsgCurrentIncorrect   = "Current password is incorrect"
	MsgResetEmailMissing  = "Validation Error: Email is required."
	MsgResetEmailInvalid  = "Validation Error: Invalid email."
	MsgResetMailFailed    = "There was an error sending the email. Please try again later!"
	MsgResetSent          = "Token sent to email!"
)

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Login checks an email and password pair and issues a session.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return Session{}, apperr.Validation(MsgLoginMissing, nil)
	}
	email = normalizeEmail(email)
	if !user.ValidEmail(email) {
		return Session{}, apperr.Validation(MsgLoginInvalidEmail, nil)
	}

	doc, err := s.find(ctx, query.Eq(user.FieldEmail, email))
	if errors.Is(err, resource.ErrNoDocument) {
		return Session{}, apperr.Auth(MsgInvalidCredentials)
	}
	if err != nil {
		return Session{}, err
	}

	ok, err := s.hasher.Compare(ctx, user.FromDocument(doc).PasswordHash, password)
	if err != nil {
		return Session{}, err
	}
	if !ok {
		return Session{}, apperr.Auth(MsgInvalidCredentials)
	}

	return s.issueFor(doc)
}

// UpdatePassword changes the password of the authenticated identity after checking the
// current one, and issues a new session since the old token is now invalid.
func (s *Service) UpdatePassword(ctx context.Context, me user.User, current, password, confirm string) (Session, error) {
	if current == "" {
		return Session{}, apperr.Validation(MsgCurrentMissing, nil)
	}

	doc, err := s.find(ctx, query.Eq(query.IDField, me.ID))
	if isMissing(err) {
		return Session{}, apperr.Auth(MsgIdentityGone)
	}
	if err != nil {
		return Session{}, err
	}

	ok, err := s.hasher.Compare(ctx, user.FromDocument(doc).PasswordHash, current)
	if err != nil {
		return Session{}, err
	}
	if !ok {
		return Session{}, apperr.Auth(MsgCurrentIncorrect)
	}

	errs := resource.ValidationErrors{}
	user.CheckPasswordPair(password, confirm, errs)
	if err := errs.Err(); err != nil {
		return Session{}, err
	}

	doc, err = s.ChangePassword(ctx, me.ID, password)
	if err != nil {
		return Session{}, err
	}

	return s.issueFor(doc)
}

// ForgotPassword starts the reset flow and mails the token. When delivery fails the
// reset fields are cleared before the failure is reported.
func (s *Service) ForgotPassword(ctx context.Context, email, siteURL, origin string) error {
	if strings.TrimSpace(email) == "" {
		return apperr.Validation(MsgResetEmailMissing, nil)
	}
	email = normalizeEmail(email)
	if !user.ValidEmail(email) {
		return apperr.Validation(MsgResetEmailInvalid, nil)
	}

	plain, u, err := s.RequestPasswordReset(ctx, email)
	if apperr.IsKind(err, apperr.KindNotFound) && s.opts.ConcealUnknownEmail {
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.mailer.SendPasswordReset(ctx, u, plain, s.opts.ResetTTL, siteURL, origin); err != nil {
		if clearErr := s.ClearPasswordReset(ctx, u.ID); clearErr != nil {
			return apperr.Internal("could not clear reset token after failed delivery", errors.Join(err, clearErr))
		}
		return apperr.Delivery(MsgResetMailFailed, err)
	}

	return nil
}

// ResetPassword consumes a reset token and logs the identity in.
func (s *Service) ResetPassword(ctx context.Context, token, password, confirm string) (Session, error) {
	doc, err := s.ConsumeResetToken(ctx, token, password, confirm)
	if err != nil {
		return Session{}, err
	}
	return s.issueFor(doc)
}
