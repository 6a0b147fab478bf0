// Package credential issues and verifies session tokens and runs the password change and
// reset flows. A password change invalidates every earlier token by timestamp comparison
// at verification time; no revocation list is kept.
package credential

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/accounts/internal/auth"
	"github.com/geocoder89/accounts/internal/domain/user"
	"github.com/geocoder89/accounts/internal/query"
	"github.com/geocoder89/accounts/internal/resource"
)

// passwordChangeSkew backdates the change timestamp so a token issued in the same request
// cycle is never older than it.
const passwordChangeSkew = time.Second

type Hasher interface {
	Hash(ctx context.Context, plain string) (string, error)
	Compare(ctx context.Context, hash, plain string) (bool, error)
}

// ResetMailer delivers a plaintext reset token out of band.
type ResetMailer interface {
	SendPasswordReset(ctx context.Context, u user.User, token string, ttl time.Duration, siteURL, origin string) error
}

type Options struct {
	ResetTTL time.Duration

	// ConcealUnknownEmail answers a reset request for an unknown email like a known one.
	ConcealUnknownEmail bool
}

type Service struct {
	users  *resource.Descriptor
	tokens *auth.Manager
	hasher Hasher
	mailer ResetMailer
	opts   Options
	now    func() time.Time
}

func NewService(users *resource.Descriptor, tokens *auth.Manager, hasher Hasher, mailer ResetMailer, opts Options) *Service {
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = 10 * time.Minute
	}
	return &Service{
		users:  users,
		tokens: tokens,
		hasher: hasher,
		mailer: mailer,
		opts:   opts,
		now:    time.Now,
	}
}

// WithClock returns a copy of s that reads time from now.
func (s *Service) WithClock(now func() time.Time) *Service {
	cp := *s
	cp.now = now
	return &cp
}

// Session is a freshly issued token and the identity it is bound to.
type Session struct {
	Token string
	User  user.User
	// Public is the identity as it may be sent to the caller.
	Public resource.Document
}

// find reads one visible identity with every stored field.
func (s *Service) find(ctx context.Context, conds ...query.Condition) (resource.Document, error) {
	return s.users.Store.FindOne(ctx, s.users.Visible(query.New(conds...)))
}

func (s *Service) update(ctx context.Context, id string, patch resource.Document) (resource.Document, error) {
	patch["updatedAt"] = s.now().UTC()
	return s.users.Store.UpdateOne(ctx, s.users.VisibleFilter(query.Eq(query.IDField, id)), patch)
}

func isMissing(err error) bool {
	var cast *resource.CastError
	return errors.Is(err, resource.ErrNoDocument) || errors.As(err, &cast)
}
