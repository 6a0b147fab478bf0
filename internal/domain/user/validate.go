package user

import (
	"regexp"
	"strings"

	"github.com/geocoder89/accounts/internal/resource"
	"github.com/go-playground/validator/v10"
)

const MinPasswordLength = 8

// MaxPasswordLength is in bytes. bcrypt ignores everything past it.
const MaxPasswordLength = 72

var phonePattern = regexp.MustCompile(`^\+?(\d{1,3})?[- .(]*(\d{3})[- .)]*(\d{3})[- .]*(\d{4})$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = RegisterValidations(v)
	return v
}

// RegisterValidations adds the "phone" tag to v.
func RegisterValidations(v *validator.Validate) error {
	return v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return ValidPhone(fl.Field().String())
	})
}

func ValidPhone(s string) bool { return phonePattern.MatchString(s) }

func ValidEmail(s string) bool { return validate.Var(s, "required,email") == nil }

var messages = map[string]string{
	FieldFirstName + ".required":       "First name is required",
	FieldLastName + ".required":        "Last name is required",
	FieldEmail + ".required":           "Email is required",
	FieldEmail + ".format":             "Please provide a valid email",
	FieldPassword + ".required":        "Password is required",
	FieldPassword + ".min":             "Password must be at least 8 characters",
	FieldPassword + ".max":             "Password must be at most 72 characters",
	FieldPasswordConfirm + ".required": "Password confirmation is required",
	FieldPasswordConfirm + ".match":    "Passwords are not the same",
	FieldRole + ".required":            "Role is required",
	FieldRole + ".enum":                "Role is either: super_admin, admin",
	FieldPhone + ".format":             "Please provide a valid telephone number",
}

func msg(field, rule string) string { return messages[field+"."+rule] }

// Normalize lower-cases names, email and role and trims phone, in place. A blank phone
// is unset so the sparse unique rule does not see it.
func Normalize(doc resource.Document) {
	for _, f := range []string{FieldFirstName, FieldLastName, FieldEmail, FieldRole} {
		if s, ok := doc[f].(string); ok {
			doc[f] = strings.ToLower(strings.TrimSpace(s))
		}
	}
	if s, ok := doc[FieldPhone].(string); ok {
		if s = strings.TrimSpace(s); s == "" {
			delete(doc, FieldPhone)
		} else {
			doc[FieldPhone] = s
		}
	}
}

// ValidateCreate checks a normalized body for a new identity.
func ValidateCreate(doc resource.Document) error {
	errs := resource.ValidationErrors{}

	for _, f := range []string{FieldFirstName, FieldLastName, FieldEmail, FieldPassword, FieldPasswordConfirm, FieldRole} {
		if blank(doc[f]) {
			errs.Add(f, msg(f, "required"))
		}
	}

	checkFields(doc, errs)
	CheckPasswordPair(str(doc[FieldPassword]), str(doc[FieldPasswordConfirm]), errs)

	return errs.Err()
}

// ValidateUpdate re-runs the validators of the fields present in patch.
func ValidateUpdate(patch resource.Document) error {
	errs := resource.ValidationErrors{}

	for _, f := range []string{FieldFirstName, FieldLastName, FieldEmail, FieldRole} {
		if v, ok := patch[f]; ok && blank(v) {
			errs.Add(f, msg(f, "required"))
		}
	}

	checkFields(patch, errs)
	return errs.Err()
}

// CheckPasswordPair records password length and confirmation failures into errs.
func CheckPasswordPair(password, confirm string, errs resource.ValidationErrors) {
	if password == "" {
		errs.Add(FieldPassword, msg(FieldPassword, "required"))
	} else if len(password) < MinPasswordLength {
		errs.Add(FieldPassword, msg(FieldPassword, "min"))
	} else if len(password) > MaxPasswordLength {
		errs.Add(FieldPassword, msg(FieldPassword, "max"))
	}

	if confirm == "" {
		errs.Add(FieldPasswordConfirm, msg(FieldPasswordConfirm, "required"))
	} else if confirm != password {
		errs.Add(FieldPasswordConfirm, msg(FieldPasswordConfirm, "match"))
	}
}

func checkFields(doc resource.Document, errs resource.ValidationErrors) {
	if email, ok := doc[FieldEmail].(string); ok && email != "" && !ValidEmail(email) {
		errs.Add(FieldEmail, msg(FieldEmail, "format"))
	}
	if role, ok := doc[FieldRole].(string); ok && role != "" && !Role(role).Valid() {
		errs.Add(FieldRole, msg(FieldRole, "enum"))
	}
	if phone, ok := doc[FieldPhone].(string); ok && phone != "" && !ValidPhone(phone) {
		errs.Add(FieldPhone, msg(FieldPhone, "format"))
	}
}

func blank(v any) bool {
	s, ok := v.(string)
	return v == nil || (ok && strings.TrimSpace(s) == "")
}
