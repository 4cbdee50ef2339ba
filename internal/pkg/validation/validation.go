// Package validation holds the amount/currency/owner-name checks the
// handlers call, plus a Struct helper around a go-playground/validator
// instance for struct-tagged values. The request DTOs carry no validate
// tags and no handler calls Struct.
package validation

import (
	"errors"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"ledger-api/internal/domain/ledger"
)

const (
	MaxOwnerLen = 100
	MinOwnerLen = 2
)

var validate = validator.New()

// Struct runs go-playground/validator struct-tag validation on a request
// DTO, returning the first failing field as a plain error message.
func Struct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return errors.New(fe.Field() + " failed validation: " + fe.Tag())
		}
		return err
	}
	return nil
}

// ValidateAmount checks that amount is a positive decimal string. It does
// not check the digit count; money.New rejects values over its precision.
func ValidateAmount(amount string) error {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return errors.New("amount must be a valid decimal number")
	}
	if !d.IsPositive() {
		return errors.New("amount must be greater than zero")
	}
	return nil
}

func ValidateOwnerName(owner string) error {
	owner = strings.TrimSpace(owner)

	if len(owner) < MinOwnerLen {
		return errors.New("owner name must be at least 2 characters")
	}
	if len(owner) > MaxOwnerLen {
		return errors.New("owner name cannot exceed 100 characters")
	}

	for _, r := range owner {
		if !unicode.IsLetter(r) && !unicode.IsSpace(r) && r != '.' && r != '-' && r != '\'' {
			return errors.New("owner name contains invalid characters")
		}
	}
	return nil
}

func ValidateCurrency(c string) error {
	if !ledger.Currency(strings.ToUpper(c)).Valid() {
		return errors.New("unsupported currency")
	}
	return nil
}
