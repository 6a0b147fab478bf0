package user

import (
	"time"

	"github.com/geocoder89/accounts/internal/resource"
)

type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
)

// Roles lists every valid role.
var Roles = []Role{RoleSuperAdmin, RoleAdmin}

func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// Document field names.
const (
	FieldFirstName            = "firstName"
	FieldLastName             = "lastName"
	FieldEmail                = "email"
	FieldPassword             = "password"
	FieldPasswordConfirm      = "passwordConfirm"
	FieldRole                 = "role"
	FieldPhone                = "phone"
	FieldPasswordChangedAt    = "passwordChangedAt"
	FieldPasswordResetToken   = "passwordResetToken"
	FieldPasswordResetExpires = "passwordResetExpires"
	FieldDeleted              = "deleted"
	// FieldMachines is not part of the schema. Self-service updates still refuse it.
	FieldMachines = "machines"
)

// User is the typed view of an identity document.
type User struct {
	ID                   string     `json:"id"`
	FirstName            string     `json:"firstName"`
	LastName             string     `json:"lastName"`
	Email                string     `json:"email"`
	Role                 Role       `json:"role"`
	Phone                string     `json:"phone,omitempty"`
	PasswordHash         string     `json:"-"`
	PasswordChangedAt    *time.Time `json:"passwordChangedAt"`
	PasswordResetToken   string     `json:"-"`
	PasswordResetExpires *time.Time `json:"-"`
	Deleted              bool       `json:"-"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

func (u User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// ChangedPasswordAfter reports whether the password changed after a token issued at iat
// (unix seconds). Both sides are compared at second precision.
func (u User) ChangedPasswordAfter(iat int64) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return iat < u.PasswordChangedAt.Unix()
}

// FromDocument reads a stored document; unset fields stay zero.
func FromDocument(doc resource.Document) User {
	u := User{
		ID:                   doc.ID(),
		FirstName:            str(doc[FieldFirstName]),
		LastName:             str(doc[FieldLastName]),
		Email:                str(doc[FieldEmail]),
		Role:                 Role(str(doc[FieldRole])),
		Phone:                str(doc[FieldPhone]),
		PasswordHash:         str(doc[FieldPassword]),
		PasswordResetToken:   str(doc[FieldPasswordResetToken]),
		PasswordChangedAt:    timePtr(doc[FieldPasswordChangedAt]),
		PasswordResetExpires: timePtr(doc[FieldPasswordResetExpires]),
	}
	u.Deleted, _ = doc[FieldDeleted].(bool)
	if t := timePtr(doc["createdAt"]); t != nil {
		u.CreatedAt = *t
	}
	if t := timePtr(doc["updatedAt"]); t != nil {
		u.UpdatedAt = *t
	}
	return u
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func timePtr(v any) *time.Time {
	switch t := v.(type) {
	case time.Time:
		return &t
	case *time.Time:
		return t
	}
	return nil
}
