package user

import "github.com/geocoder89/accounts/internal/resource"

// Schema is the identity resource schema. Columns name the postgres columns.
func Schema() resource.Schema {
	return resource.NewSchema(
		resource.Field{Name: FieldFirstName, Column: "first_name"},
		resource.Field{Name: FieldLastName, Column: "last_name"},
		resource.Field{Name: FieldEmail, Column: "email", Unique: true},
		resource.Field{Name: FieldPassword, Column: "password_hash", Hidden: true},
		resource.Field{Name: FieldPasswordConfirm, Transient: true},
		resource.Field{Name: FieldRole, Column: "role"},
		resource.Field{Name: FieldPhone, Column: "phone", Unique: true},
		resource.Field{Name: FieldPasswordChangedAt, Column: "password_changed_at", Kind: resource.KindTime, System: true},
		resource.Field{Name: FieldPasswordResetToken, Column: "password_reset_token", Hidden: true, System: true},
		resource.Field{Name: FieldPasswordResetExpires, Column: "password_reset_expires", Kind: resource.KindTime, Hidden: true, System: true},
		resource.Field{Name: FieldDeleted, Column: "deleted", Kind: resource.KindBool, Unselected: true, System: true},
	)
}
