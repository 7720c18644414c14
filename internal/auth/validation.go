package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/eventflow/backend/internal/models"
)

const domainTag = "email_domain"

// EmailDomains are the required email suffixes per role, including the "@".
type EmailDomains struct {
	Student string
	Admin   string
}

// ForRole returns the suffix required for role.
func (d EmailDomains) ForRole(role models.Role) string {
	if role == models.RoleAdmin {
		return d.Admin
	}
	return d.Student
}

// Allows reports whether email carries the domain required for role.
func (d EmailDomains) Allows(role models.Role, email string) bool {
	suffix := strings.ToLower(d.ForRole(role))
	return suffix != "" && strings.HasSuffix(strings.ToLower(email), suffix)
}

// NewValidator returns a validator that also enforces the role email domain on RegisterRequest.
func NewValidator(domains EmailDomains) *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		req := sl.Current().Interface().(RegisterRequest)
		role := models.Role(req.Role)
		if !role.Valid() {
			return
		}
		if !domains.Allows(role, req.Email) {
			sl.ReportError(req.Email, "Email", "email", domainTag, domains.ForRole(role))
		}
	}, RegisterRequest{})
	return v
}

// validationMessage turns validator errors into one client-facing sentence.
func validationMessage(err error, domains EmailDomains, role models.Role) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case domainTag:
		return fmt.Sprintf("%s email must end with %s", role, domains.ForRole(role))
	case "required":
		return "please add all fields: " + strings.ToLower(fe.Field()) + " is required"
	case "email":
		return "invalid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", strings.ToLower(fe.Field()), fe.Param())
	case "oneof":
		return "role must be student or admin"
	default:
		return "invalid " + strings.ToLower(fe.Field())
	}
}
