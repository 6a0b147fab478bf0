// Package access holds the role gate applied once the caller's identity is known.
package access

import (
	"github.com/geocoder89/accounts/internal/apperr"
	"github.com/geocoder89/accounts/internal/domain/user"
)

const MsgForbidden = "You do not have permission to perform this action"

// Permits reports whether role is one of allowed.
func Permits(role user.Role, allowed ...user.Role) bool {
	for _, r := range allowed {
		if role == r {
			return true
		}
	}
	return false
}

// Check is Permits as an error: nil when allowed, an authorization error otherwise.
func Check(role user.Role, allowed ...user.Role) error {
	if Permits(role, allowed...) {
		return nil
	}
	return apperr.Authz(MsgForbidden)
}
