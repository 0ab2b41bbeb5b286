package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places every amount carries.
const Scale = 2

// Amount parsing failures. Callers map these onto their own rejection kinds.
var (
	ErrAmountEmpty     = errors.New("amount is empty")
	ErrAmountSyntax    = errors.New("amount is not a decimal number")
	ErrAmountPrecision = errors.New("amount has more than two decimal places")
	ErrAmountRange     = errors.New("amount is out of range")
	ErrAmountTooLong   = errors.New("amount is too long")
)

// MaxAmountLength bounds the raw input ParseMoney accepts, after trimming.
const MaxAmountLength = 32

// plainDecimal is the accepted amount grammar: an optional sign, digits and
// an optional fraction. Exponents are not accepted.
var plainDecimal = regexp.MustCompile(`^[+-]?[0-9]+(\.[0-9]+)?$`)

var (
	maxMinor = decimal.NewFromInt(1<<62 - 1)
	minMinor = maxMinor.Neg()
)

// Money is an amount of a two-decimal currency held in minor units (cents).
// Arithmetic on Money is integer-only; decimal.Decimal is used at the
// parse and format boundaries.
type Money struct {
	Amount   int64  `json:"amount"`   // minor units
	Currency string `json:"currency"` // ISO 4217, lowercase
}

// New returns Money for an amount already expressed in minor units.
func New(minor int64, currency string) Money {
	return Money{Amount: minor, Currency: strings.ToLower(currency)}
}

// USD creates a Money value in US Dollars (cents).
func USD(cents int64) Money { return New(cents, "usd") }

// Zero returns a zero Money value in the specified currency.
func Zero(currency string) Money { return New(0, currency) }

// ParseMoney parses a plain decimal string such as "333.33" into Money.
// Surrounding whitespace is ignored; more than two significant decimal
// places is an error rather than a silent rounding. Inputs longer than
// MaxAmountLength or written with an exponent are rejected before any
// decimal arithmetic runs.
func ParseMoney(s, currency string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrAmountEmpty
	}
	if len(s) > MaxAmountLength {
		return Money{}, fmt.Errorf("%w: %q", ErrAmountTooLong, ClipAmount(s))
	}
	if !plainDecimal.MatchString(s) {
		return Money{}, fmt.Errorf("%w: %q", ErrAmountSyntax, s)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrAmountSyntax, s)
	}

	return FromDecimal(d, currency)
}

// ClipAmount shortens raw amount input to MaxAmountLength for messages and
// logs.
func ClipAmount(s string) string {
	if len(s) <= MaxAmountLength {
		return s
	}
	return s[:MaxAmountLength] + "..."
}

// FromDecimal converts an exact decimal into Money.
func FromDecimal(d decimal.Decimal, currency string) (Money, error) {
	if !d.Equal(d.Truncate(Scale)) {
		return Money{}, fmt.Errorf("%w: %s", ErrAmountPrecision, d.String())
	}

	minor := d.Shift(Scale)
	if minor.GreaterThan(maxMinor) || minor.LessThan(minMinor) {
		return Money{}, fmt.Errorf("%w: %s", ErrAmountRange, d.String())
	}

	return New(minor.IntPart(), currency), nil
}

// MustParseMoney is like ParseMoney but panics on error. Use for literals.
func MustParseMoney(s, currency string) Money {
	m, err := ParseMoney(s, currency)
	if err != nil {
		panic(fmt.Sprintf("money: must parse %q: %v", s, err))
	}
	return m
}

// Decimal returns the exact decimal value in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Amount, -Scale)
}

// Arithmetic operations

// Add adds two Money values. Panics if currencies don't match.
func (m Money) Add(other Money) Money {
	m.assertSameCurrency(other)
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}
}

// Subtract subtracts another Money value. Panics if currencies don't match.
func (m Money) Subtract(other Money) Money {
	m.assertSameCurrency(other)
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}
}

// Comparison methods

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

// IsPositive returns true if the amount is greater than zero.
func (m Money) IsPositive() bool { return m.Amount > 0 }

// IsNegative returns true if the amount is less than zero.
func (m Money) IsNegative() bool { return m.Amount < 0 }

// Equal returns true if both Money values are equal (same amount and currency).
func (m Money) Equal(other Money) bool {
	return m.Amount == other.Amount && m.Currency == other.Currency
}

// LessThan returns true if this Money is less than other. Panics if currencies don't match.
func (m Money) LessThan(other Money) bool {
	m.assertSameCurrency(other)
	return m.Amount < other.Amount
}

// GreaterThan returns true if this Money is greater than other. Panics if currencies don't match.
func (m Money) GreaterThan(other Money) bool {
	m.assertSameCurrency(other)
	return m.Amount > other.Amount
}

// Formatting methods

// FormatMajor returns the amount in major units with exactly two decimals,
// e.g. "333.33" or "-0.01".
func (m Money) FormatMajor() string {
	return m.Decimal().StringFixed(Scale)
}

// String returns a human-readable string with currency symbol.
// Examples: "$49.00", "€199.00", "CHF 10.00"
func (m Money) String() string {
	return currencySymbol(m.Currency) + m.FormatMajor()
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Display  string `json:"display"`
	}{
		Amount:   m.Amount,
		Currency: m.Currency,
		Display:  m.FormatMajor(),
	})
}

// UnmarshalJSON implements json.Unmarshaler. Only amount and currency are read.
func (m *Money) UnmarshalJSON(data []byte) error {
	var raw struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = New(raw.Amount, raw.Currency)
	return nil
}

// Helper functions

func (m Money) assertSameCurrency(other Money) {
	if m.Currency != other.Currency {
		panic(fmt.Sprintf("money: currency mismatch: %s != %s", m.Currency, other.Currency))
	}
}

func currencySymbol(currency string) string {
	switch strings.ToLower(currency) {
	case "usd":
		return "$"
	case "eur":
		return "€"
	case "gbp":
		return "£"
	case "uah":
		return "₴"
	case "cad":
		return "C$"
	case "aud":
		return "A$"
	default:
		return strings.ToUpper(currency) + " "
	}
}

// Sum calculates the sum of multiple Money values in the given currency.
// All values must share that currency.
func Sum(currency string, values ...Money) Money {
	result := Zero(currency)
	for _, v := range values {
		result = result.Add(v)
	}
	return result
}
