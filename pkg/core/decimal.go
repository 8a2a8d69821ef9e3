package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// ParseDecimal parses a decimal string. An empty string yields nil, meaning unknown.
func ParseDecimal(s string) (*apd.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return d, nil
}

// DecimalFromAny converts a decoded JSON scalar to a decimal.
// nil and empty strings yield nil; booleans, objects and arrays are rejected.
func DecimalFromAny(v any) (*apd.Decimal, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		return ParseDecimal(val)
	case json.Number:
		return ParseDecimal(val.String())
	case float64:
		return ParseDecimal(strconv.FormatFloat(val, 'f', -1, 64))
	case int:
		return apd.New(int64(val), 0), nil
	case int64:
		return apd.New(val, 0), nil
	case *apd.Decimal:
		return val, nil
	default:
		return nil, fmt.Errorf("unsupported type for decimal: %T", v)
	}
}

// AddOpt returns a+b, or nil if either operand is unknown.
func AddOpt(a, b *apd.Decimal) (*apd.Decimal, error) {
	if a == nil || b == nil {
		return nil, nil
	}
	var d apd.Decimal
	if _, err := apd.BaseContext.Add(&d, a, b); err != nil {
		return nil, fmt.Errorf("add: %w", err)
	}
	return &d, nil
}

// SubOpt returns a-b, or nil if either operand is unknown.
func SubOpt(a, b *apd.Decimal) (*apd.Decimal, error) {
	if a == nil || b == nil {
		return nil, nil
	}
	var d apd.Decimal
	if _, err := apd.BaseContext.Sub(&d, a, b); err != nil {
		return nil, fmt.Errorf("sub: %w", err)
	}
	return &d, nil
}

// MulOpt returns a*b, or nil if either operand is unknown.
func MulOpt(a, b *apd.Decimal) (*apd.Decimal, error) {
	if a == nil || b == nil {
		return nil, nil
	}
	var d apd.Decimal
	if _, err := apd.BaseContext.Mul(&d, a, b); err != nil {
		return nil, fmt.Errorf("mul: %w", err)
	}
	return &d, nil
}

// MaxOpt returns the larger operand. An unknown operand makes the result unknown.
func MaxOpt(a, b *apd.Decimal) *apd.Decimal {
	if a == nil || b == nil {
		return nil
	}
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

// MinOpt returns the smaller operand. An unknown operand makes the result unknown.
func MinOpt(a, b *apd.Decimal) *apd.Decimal {
	if a == nil || b == nil {
		return nil
	}
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// AmountToPrecision truncates an amount to the given number of decimal places.
func AmountToPrecision(amount *apd.Decimal, places int) (string, error) {
	return quantize(amount, places, apd.RoundDown)
}

// PriceToPrecision rounds a price half-up to the given number of decimal places.
func PriceToPrecision(price *apd.Decimal, places int) (string, error) {
	return quantize(price, places, apd.RoundHalfUp)
}

func quantize(x *apd.Decimal, places int, rounding apd.Rounder) (string, error) {
	if x == nil {
		return "", fmt.Errorf("value is required")
	}
	if places < 0 {
		return "", fmt.Errorf("negative precision: %d", places)
	}
	c := apd.Context{
		Precision:   100,
		MaxExponent: apd.MaxExponent,
		MinExponent: apd.MinExponent,
		Rounding:    rounding,
	}
	var d apd.Decimal
	if _, err := c.Quantize(&d, x, -int32(places)); err != nil {
		return "", fmt.Errorf("quantize: %w", err)
	}
	return d.Text('f'), nil
}
