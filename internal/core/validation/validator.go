// Package validation holds the per-operation rule sets for account requests.
//
// Every field of a request is checked and all failures are reported together.
// Within a single field the checks stop at the first failing rule.
package validation

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/learningreport/account-service/internal/core/domain"
	"github.com/learningreport/account-service/internal/core/ports"
)

const msgEmailTaken = "an account with that email address already exists"

// EmailLookup reports whether an email is already registered.
type EmailLookup interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

type createRules struct {
	Email    string `json:"email"    validate:"required,email,max=100"`
	Password string `json:"password" validate:"required,min=5,maxbytes=72"`
	Role     string `json:"role"     validate:"required,oneof=Admin User"`
}

type updateRules struct {
	Email    string `json:"email"    validate:"omitempty,email,max=100"`
	Password string `json:"password" validate:"omitempty,min=5,maxbytes=72"`
	Role     string `json:"role"     validate:"omitempty,oneof=Admin User"`
}

type loginRules struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=5"`
}

// AccountValidator implements ports.AccountValidator on top of go-playground/validator.
type AccountValidator struct {
	v      *validator.Validate
	emails EmailLookup
}

var _ ports.AccountValidator = (*AccountValidator)(nil)

// NewAccountValidator returns a validator whose create rules consult emails
// for uniqueness.
func NewAccountValidator(emails EmailLookup) *AccountValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("maxbytes", maxBytes); err != nil {
		panic(fmt.Sprintf("validation: register maxbytes: %v", err))
	}
	return &AccountValidator{v: v, emails: emails}
}

// maxBytes bounds the encoded length of a string. bcrypt rejects passwords
// longer than 72 bytes, which a character count does not catch.
func maxBytes(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) <= limit
}

// ValidateCreate checks a creation request. The uniqueness lookup only runs for
// an email that passed its format checks; a lookup failure is returned as is.
func (a *AccountValidator) ValidateCreate(ctx context.Context, in ports.CreateAccountInput) error {
	failures, err := a.check(createRules(in))
	if err != nil {
		return err
	}

	if !hasField(failures, "email") {
		exists, err := a.emails.ExistsByEmail(ctx, in.Email)
		if err != nil {
			return fmt.Errorf("check email availability: %w", err)
		}
		if exists {
			failures = append([]domain.FieldError{EmailTaken()}, failures...)
		}
	}

	return asError(failures)
}

// ValidateUpdate checks only the fields present in a partial update.
func (a *AccountValidator) ValidateUpdate(in ports.UpdateAccountInput) error {
	failures, err := a.check(updateRules(in))
	if err != nil {
		return err
	}
	return asError(failures)
}

func (a *AccountValidator) ValidateLogin(in ports.LoginInput) error {
	failures, err := a.check(loginRules(in))
	if err != nil {
		return err
	}
	return asError(failures)
}

// EmailTaken is the failure reported for a duplicate email.
func EmailTaken() domain.FieldError {
	return domain.FieldError{Field: "email", Message: msgEmailTaken}
}

func (a *AccountValidator) check(rules any) ([]domain.FieldError, error) {
	err := a.v.Struct(rules)
	if err == nil {
		return nil, nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil, err
	}

	failures := make([]domain.FieldError, 0, len(ve))
	for _, fe := range ve {
		failures = append(failures, domain.FieldError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
		})
	}
	return failures, nil
}

func asError(failures []domain.FieldError) error {
	if len(failures) == 0 {
		return nil
	}
	return &domain.ValidationError{Failures: failures}
}

func hasField(failures []domain.FieldError, field string) bool {
	for _, f := range failures {
		if f.Field == field {
			return true
		}
	}
	return false
}

// fieldMessage converts a single FieldError into a human-readable message.
func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "maxbytes":
		return fmt.Sprintf("must be at most %s bytes", fe.Param())
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(fe.Param()), ", ")
	default:
		return fmt.Sprintf("failed validation (%s)", fe.Tag())
	}
}
