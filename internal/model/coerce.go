package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// FlexID is an identifier that may arrive from the API as a JSON string or
// a JSON number. It always holds the canonical string form.
type FlexID string

// UnmarshalJSON accepts strings, numbers and null.
func (id *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decoding id: %w", err)
		}
		*id = FlexID(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		// Objects, arrays and booleans are not identifiers.
		*id = ""
		return nil
	}
	*id = FlexID(canonicalNumber(n))
	return nil
}

// String returns the identifier as a plain string.
func (id FlexID) String() string {
	return string(id)
}

// IsZero reports whether the identifier is absent.
func (id FlexID) IsZero() bool {
	return strings.TrimSpace(string(id)) == ""
}

func canonicalNumber(n json.Number) string {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}
	if f, err := n.Float64(); err == nil && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10)
	}
	return n.String()
}

// SameID compares two identifiers after string coercion. Absent identifiers
// never match anything, including each other.
func SameID[A, B ~string](a A, b B) bool {
	as := strings.TrimSpace(string(a))
	bs := strings.TrimSpace(string(b))
	if as == "" || bs == "" {
		return false
	}
	return as == bs
}

// Amount is a currency amount. Missing or non-numeric input decodes to zero.
type Amount struct {
	d decimal.Decimal
}

// NewAmount returns an Amount from a decimal value.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{d: d}
}

// AmountFromInt returns an Amount of whole units.
func AmountFromInt(units int64) Amount {
	return Amount{d: decimal.NewFromInt(units)}
}

// ParseAmount parses s as a decimal amount, returning zero for anything
// that is not a finite number.
func ParseAmount(s string) Amount {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	if s == "" {
		return Amount{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}
	}
	return Amount{d: d}
}

// Decimal returns the underlying decimal value.
func (a Amount) Decimal() decimal.Decimal {
	return a.d
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool {
	return a.d.IsZero()
}

// IsNegative reports whether the amount is below zero.
func (a Amount) IsNegative() bool {
	return a.d.IsNegative()
}

// LessThan reports whether a < b.
func (a Amount) LessThan(b Amount) bool {
	return a.d.LessThan(b.d)
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return Amount{d: a.d.Add(b.d)}
}

// Sub returns a - b.
func (a Amount) Sub(b Amount) Amount {
	return Amount{d: a.d.Sub(b.d)}
}

// Fixed formats the amount with two decimal places.
func (a Amount) Fixed() string {
	return a.d.StringFixed(2)
}

// Dollars formats the amount as "$12.50".
func (a Amount) Dollars() string {
	return "$" + a.Fixed()
}

// String implements fmt.Stringer.
func (a Amount) String() string {
	return a.d.String()
}

// MarshalJSON encodes the amount as a bare JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.d.String()), nil
}

// UnmarshalJSON accepts numbers, numeric strings and null. Anything else
// decodes to zero rather than failing the whole document.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = Amount{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*a = Amount{}
			return nil
		}
		*a = ParseAmount(s)
		return nil
	}
	*a = ParseAmount(string(data))
	return nil
}

// Value implements driver.Valuer.
func (a Amount) Value() (driver.Value, error) {
	return a.d.String(), nil
}

// Scan implements sql.Scanner. Like UnmarshalJSON, it stores zero for
// NULL or non-numeric values instead of failing.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = Amount{}
	case string:
		*a = ParseAmount(v)
	case []byte:
		*a = ParseAmount(string(v))
	default:
		var d decimal.Decimal
		if err := d.Scan(v); err != nil {
			d = decimal.Zero
		}
		*a = Amount{d: d}
	}
	return nil
}
