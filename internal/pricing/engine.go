package pricing

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money represents a monetary value stored in minor units (cents).
type Money int64

// ErrInvalidAmount is returned when a price cannot be normalised into Money.
var ErrInvalidAmount = errors.New("invalid amount")

// MaxAmount is the largest amount accepted at ingestion. Tax in basis points
// on anything up to it fits in an int64.
const MaxAmount Money = math.MaxInt64 / 10000

// FromFloat converts a decimal amount into Money, rounding half away from zero to cents.
func FromFloat(v float64) (Money, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%v: %w", v, ErrInvalidAmount)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative amount %v: %w", v, ErrInvalidAmount)
	}
	cents := math.Round(v * 100)
	if cents > float64(MaxAmount) {
		return 0, fmt.Errorf("amount %v exceeds %s: %w", v, MaxAmount, ErrInvalidAmount)
	}
	return Money(cents), nil
}

// ParseMoney parses a decimal string such as "29.99" or "30".
func ParseMoney(s string) (Money, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("empty amount: %w", ErrInvalidAmount)
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", s, ErrInvalidAmount)
	}
	return FromFloat(v)
}

// Float returns the amount as a decimal value.
func (m Money) Float() float64 {
	return float64(m) / 100
}

// String renders the amount with exactly two decimal places.
func (m Money) String() string {
	sign := ""
	v := uint64(m)
	if m < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON encodes the amount as a JSON number with two decimal places.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts either a JSON number or a numeric string.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if bytes.Equal(raw, []byte("null")) {
		*m = 0
		return nil
	}
	text := string(raw)
	if len(raw) > 0 && raw[0] == '"' {
		unquoted, err := strconv.Unquote(text)
		if err != nil {
			return fmt.Errorf("decode amount: %w", ErrInvalidAmount)
		}
		text = unquoted
	}
	parsed, err := ParseMoney(text)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Sum adds the provided amounts.
func Sum(amounts ...Money) Money {
	var total Money
	for _, a := range amounts {
		total += a
	}
	return total
}

// Rules configures the derived pricing components.
type Rules struct {
	TaxBps           int
	ShippingFee      Money
	FreeShippingOver Money
}

// DefaultRules charges 8% tax and a 9.99 flat shipping fee unless the subtotal exceeds 100.00.
var DefaultRules = Rules{
	TaxBps:           800,
	ShippingFee:      999,
	FreeShippingOver: 10000,
}

// Breakdown aggregates computed pricing components.
type Breakdown struct {
	Subtotal Money `json:"subtotal"`
	Shipping Money `json:"shipping"`
	Tax      Money `json:"tax"`
	Total    Money `json:"total"`
}

// Compute derives shipping, tax and grand total for the given subtotal.
func (r Rules) Compute(subtotal Money) Breakdown {
	if subtotal < 0 {
		subtotal = 0
	}
	shipping := r.ShippingFee
	if subtotal > r.FreeShippingOver {
		shipping = 0
	}
	// split at 10000 so subtotal*bps cannot overflow
	whole, rest := int64(subtotal)/10000, int64(subtotal)%10000
	tax := whole*int64(r.TaxBps) + (rest*int64(r.TaxBps)+5000)/10000
	return Breakdown{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      Money(tax),
		Total:    subtotal + shipping + Money(tax),
	}
}
