package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/geocoder89/accounts/internal/config"
	"github.com/geocoder89/accounts/internal/domain/user"
	"github.com/geocoder89/accounts/internal/query"
	"github.com/geocoder89/accounts/internal/resource"
)

// EnsureSuperAdmin creates the bootstrap super admin from configuration when no visible
// super admin exists yet. It works against any store backing the users descriptor.
func EnsureSuperAdmin(ctx context.Context, users *resource.Descriptor, cfg config.Config, log *slog.Logger) error {
	if cfg.SuperAdminEmail == "" || cfg.SuperAdminPassword == "" {
		return nil
	}

	q := users.Visible(query.New(query.Eq(user.FieldRole, string(user.RoleSuperAdmin))))
	_, err := users.Store.FindOne(ctx, q)
	if err == nil {
		return nil
	}
	if !errors.Is(err, resource.ErrNoDocument) {
		return fmt.Errorf("look up super admin: %w", err)
	}

	doc, err := users.Insert(ctx, resource.Document{
		user.FieldFirstName:       "super",
		user.FieldLastName:        "admin",
		user.FieldEmail:           cfg.SuperAdminEmail,
		user.FieldPassword:        cfg.SuperAdminPassword,
		user.FieldPasswordConfirm: cfg.SuperAdminPassword,
		user.FieldRole:            string(user.RoleSuperAdmin),
	})
	if err != nil {
		return fmt.Errorf("create super admin: %w", err)
	}

	log.Info("super admin created", "user_id", doc.ID(), "email", doc[user.FieldEmail])
	return nil
}
