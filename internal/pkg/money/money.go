// Package money implements the fixed-point decimal amounts the ledger
// moves. All monetary values are stored and compared as
// shopspring/decimal values scaled to 2 decimal places; binary floating
// point never enters the money path.
package money

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places every Money value is rounded and
// compared at.
const Scale = 2

// MaxDigits bounds the total number of significant digits a Money value
// may carry, matching the NUMERIC(18,2) column type backing it.
const MaxDigits = 18

var (
	Zero = Money{d: decimal.Zero}

	errTooManyDigits = errors.New("money: value exceeds 18 digits of precision")
)

// Money wraps decimal.Decimal and enforces scale 2 / precision 18 on every
// constructor and arithmetic operation.
type Money struct {
	d decimal.Decimal
}

// New builds a Money from a decimal string such as "100.50", rounded to
// Scale. It does not check the sign: negative and zero values are
// accepted, and positivity is checked by the callers that need it.
func New(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("money: invalid amount %q: %w", s, err)
	}
	return FromDecimal(d)
}

// FromDecimal rounds d to Scale and validates precision.
func FromDecimal(d decimal.Decimal) (Money, error) {
	rounded := d.Round(Scale)
	if numDigits(rounded) > MaxDigits {
		return Money{}, errTooManyDigits
	}
	return Money{d: rounded}, nil
}

// FromCents builds a Money from an integer minor-unit amount (e.g. cents).
func FromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -Scale)}
}

func numDigits(d decimal.Decimal) int {
	coeff := d.Coefficient()
	s := coeff.Abs().String()
	if s == "0" {
		return 1
	}
	return len(s)
}

func (m Money) Decimal() decimal.Decimal { return m.d }

func (m Money) String() string { return m.d.StringFixed(Scale) }

// Add returns m + other, validating the result's precision.
func (m Money) Add(other Money) (Money, error) {
	return FromDecimal(m.d.Add(other.d))
}

// Sub returns m - other, validating the result's precision.
func (m Money) Sub(other Money) (Money, error) {
	return FromDecimal(m.d.Sub(other.d))
}

// Cmp compares m and other the way decimal.Decimal.Cmp does: -1, 0, 1.
func (m Money) Cmp(other Money) int {
	return m.d.Cmp(other.d)
}

func (m Money) IsZero() bool { return m.d.IsZero() }

func (m Money) IsNegative() bool { return m.d.IsNegative() }

func (m Money) IsPositive() bool { return m.d.IsPositive() }

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.d.StringFixed(Scale))
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var d decimal.Decimal
	switch v := raw.(type) {
	case string:
		parsed, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("money: invalid amount %q: %w", v, err)
		}
		d = parsed
	case float64:
		d = decimal.NewFromFloat(v)
	default:
		return fmt.Errorf("money: unsupported JSON type %T", raw)
	}

	parsed, err := FromDecimal(d)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value implements driver.Valuer so a Money can be bound directly as a
// pgx query argument against a NUMERIC column.
func (m Money) Value() (driver.Value, error) {
	return m.d.StringFixed(Scale), nil
}

// Scan implements sql.Scanner so a Money can be populated directly from a
// NUMERIC column.
func (m *Money) Scan(src interface{}) error {
	var d decimal.Decimal
	switch v := src.(type) {
	case string:
		parsed, err := decimal.NewFromString(v)
		if err != nil {
			return err
		}
		d = parsed
	case []byte:
		parsed, err := decimal.NewFromString(string(v))
		if err != nil {
			return err
		}
		d = parsed
	case float64:
		d = decimal.NewFromFloat(v)
	case nil:
		*m = Zero
		return nil
	default:
		return fmt.Errorf("money: cannot scan %T", src)
	}

	parsed, err := FromDecimal(d)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
