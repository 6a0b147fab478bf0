package user

import (
	"github.com/geocoder89/accounts/internal/apperr"
	"github.com/geocoder89/accounts/internal/resource"
)

const (
	msgNotForPassword = "This route is not for password updates. Please use  `/update-password.`"
	msgNoRoleUpdate   = "You can't update your role. Please ask the super admin."
	msgNoMachines     = "You can't update your machines. Please ask the super admin."
)

// RejectPasswordUpdate refuses a body that tries to set the password outside the
// password flows.
func RejectPasswordUpdate(body resource.Document) error {
	if truthy(body[FieldPassword]) || truthy(body[FieldPasswordConfirm]) {
		return apperr.Authz(msgNotForPassword)
	}
	return nil
}

// RejectSelfServiceFields is the guard of the self-update route: password, role and
// machine assignment cannot be changed there.
func RejectSelfServiceFields(body resource.Document) error {
	if err := RejectPasswordUpdate(body); err != nil {
		return err
	}
	if truthy(body[FieldRole]) {
		return apperr.Authz(msgNoRoleUpdate)
	}
	if truthy(body[FieldMachines]) {
		return apperr.Authz(msgNoMachines)
	}
	return nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0
	}
	return true
}
