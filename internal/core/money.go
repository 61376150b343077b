// Package core holds the domain types shared by every storage backend and
// transport: tasks, projects, personal finance records, daily routines and
// the company ledger.
//
// Money is kept as integer cents everywhere it is stored or summed. Decimal
// conversion only happens at the edges (JSON, CSV-like sheet rows, user input).
package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount expressed in minor units (cents).
type Money struct {
	Cents int64
}

// maxCents keeps amounts well away from int64 overflow when summed.
const maxCents = int64(1) << 53

// ParseMoney converts a decimal string to Money.
//
// Both dot (12.34) and a single comma (12,34) are accepted as decimal
// separator; commas alongside a dot are thousands separators. A third
// decimal place is rounded half away from zero. Negative values are allowed
// here; callers that need a positive amount check IsPositive.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = normalizeSeparators(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return MoneyFromDecimal(d)
}

// normalizeSeparators reads a lone comma as the decimal point ("12,50") and
// any other comma as a thousands separator ("1,234.56", "1,000,000").
func normalizeSeparators(s string) string {
	if !strings.Contains(s, ".") && strings.Count(s, ",") == 1 {
		return strings.Replace(s, ",", ".", 1)
	}
	return strings.ReplaceAll(s, ",", "")
}

// MoneyFromDecimal rounds d to cents.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	cents := d.Round(2).Shift(2)
	if cents.Abs().GreaterThan(decimal.NewFromInt(maxCents)) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

// Cents builds Money from a raw cent count.
func Cents(c int64) Money { return Money{Cents: c} }

func (m Money) Decimal() decimal.Decimal { return decimal.New(m.Cents, -2) }

func (m Money) String() string { return m.Decimal().StringFixed(2) }

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

func (m Money) Neg() Money { return Money{Cents: -m.Cents} }

func (m Money) IsPositive() bool { return m.Cents > 0 }

// Validate reports whether m is usable as a transaction amount.
func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// MarshalJSON renders the amount as a fixed two-place decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts a JSON number or a decimal string.
func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	raw := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
	}
	parsed, err := ParseMoney(raw)
	if err != nil {
		return fmt.Errorf("amount %q: %w", raw, err)
	}
	*m = parsed
	return nil
}
