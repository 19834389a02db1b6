package checkout

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	validator "github.com/go-playground/validator/v10"
)

// Field names used for validation focus.
const (
	FieldEmail = "email"
	FieldPhone = "phone"
)

// ContactInfo is collected before the payment widget opens.
type ContactInfo struct {
	Email string `json:"email" validate:"required,contains=@"`
	Phone string `json:"phone" validate:"required,numeric,min=9"`
}

// ValidationError names the offending input so the caller can focus it.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func contactValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

// SanitizePhone keeps only ASCII digits.
func SanitizePhone(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Normalize trims the email and sanitizes the phone.
func (c ContactInfo) Normalize() ContactInfo {
	return ContactInfo{Email: strings.TrimSpace(c.Email), Phone: SanitizePhone(c.Phone)}
}

// Validate checks the email first, then the phone, and reports the first failure.
func (c ContactInfo) Validate() error {
	err := contactValidator().Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	failed := map[string]bool{}
	for _, fe := range fieldErrs {
		failed[fe.Field()] = true
	}
	if failed[FieldEmail] {
		return &ValidationError{Field: FieldEmail, Message: "Please enter a valid email address."}
	}
	return &ValidationError{Field: FieldPhone, Message: "Please enter a valid 10-digit mobile number."}
}
