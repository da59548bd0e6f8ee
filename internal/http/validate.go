package httpx

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Validation happens only at the boundary; services receive normalized input.
// Requests are trimmed and lowercased by their normalize methods before the
// struct tags are checked.

const (
	minPasswordLength = 8
	maxPasswordBytes  = 72

	strongPasswordMessage = "must be at least 8 characters with upper and lower case letters, a number and a symbol"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// Both rules are static; registration only fails on an empty tag.
	_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		return checkStrongPassword(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("emaildomain", func(fl validator.FieldLevel) bool {
		_, domainPart, ok := strings.Cut(fl.Field().String(), "@")
		return ok && strings.Contains(domainPart, ".")
	})
	return v
}

type validationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type validationErrors []validationError

func (v validationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Field+": "+e.Message)
	}
	return strings.Join(msgs, "; ")
}

// validateStruct checks the validate tags of s and reports failures per JSON field.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := make(validationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, validationError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email", "emaildomain":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "gt":
		return "must be a positive integer"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "strongpassword":
		return strongPasswordMessage
	default:
		return "is invalid"
	}
}

func checkStrongPassword(password string) error {
	if len(password) > maxPasswordBytes {
		return errors.New("must be at most 72 bytes")
	}
	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	if utf8.RuneCountInString(password) < minPasswordLength || !upper || !lower || !digit || !symbol {
		return errors.New(strongPasswordMessage)
	}
	return nil
}

func normalizeText(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Role is checked by the auth service so an unknown role maps to "invalid role".
type registerRequest struct {
	Name     string `json:"name" validate:"required,min=3"`
	Email    string `json:"email" validate:"required,email,emaildomain"`
	Password string `json:"password" validate:"required,strongpassword"`
	Role     string `json:"role"`
}

func (p *registerRequest) normalize() error {
	p.Name = normalizeText(p.Name)
	p.Email = normalizeText(p.Email)
	p.Password = strings.TrimSpace(p.Password)
	p.Role = normalizeText(p.Role)
	return validateStruct(p)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (p *loginRequest) normalize() error {
	p.Email = normalizeText(p.Email)
	return validateStruct(p)
}

type teamRequest struct {
	Name string `json:"name" validate:"required,min=3"`
}

func (p *teamRequest) normalize() error {
	p.Name = normalizeText(p.Name)
	return validateStruct(p)
}

func parsePositiveID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
