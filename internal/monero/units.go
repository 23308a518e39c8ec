package monero

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// AtomicExponent is the number of decimal places in one XMR.
const AtomicExponent = 12

// AtomicPerXMR is the number of atomic units in one XMR.
const AtomicPerXMR uint64 = 1_000_000_000_000

// Atomic is an amount of Monero in atomic units (10^-12 XMR).
type Atomic uint64

// FromXMR converts a display amount to atomic units, truncating anything
// below one atomic unit.
func FromXMR(amount decimal.Decimal) (Atomic, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("amount %s is negative", amount)
	}
	units := amount.Shift(AtomicExponent).Floor().BigInt()
	if !units.IsUint64() {
		return 0, fmt.Errorf("amount %s exceeds atomic range", amount)
	}
	return Atomic(units.Uint64()), nil
}

// ParseXMR parses a decimal XMR string such as "1.25".
func ParseXMR(s string) (Atomic, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return FromXMR(d)
}

// XMR returns the amount in display units.
func (a Atomic) XMR() decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(a)), -AtomicExponent)
}

// String renders the amount in XMR without trailing zeros.
func (a Atomic) String() string {
	return a.XMR().String()
}

// Value stores atomic amounts as decimal text so values above MaxInt64 survive
// NUMERIC columns.
func (a Atomic) Value() (driver.Value, error) {
	return strconv.FormatUint(uint64(a), 10), nil
}

// Scan reads an atomic amount from a NUMERIC, BIGINT or text column.
func (a *Atomic) Scan(src interface{}) error {
	var s string
	switch v := src.(type) {
	case nil:
		*a = 0
		return nil
	case int64:
		if v < 0 {
			return fmt.Errorf("negative atomic amount %d", v)
		}
		*a = Atomic(v)
		return nil
	case []byte:
		s = string(v)
	case string:
		s = v
	default:
		return fmt.Errorf("unsupported atomic amount type %T", src)
	}
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return fmt.Errorf("parse atomic amount %q: %w", s, err)
	}
	*a = Atomic(n)
	return nil
}

// MarshalJSON encodes the amount as a JSON integer of atomic units.
func (a Atomic) MarshalJSON() ([]byte, error) {
	return json.Marshal(uint64(a))
}

// UnmarshalJSON accepts either a JSON integer or a quoted integer.
func (a *Atomic) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*a = 0
		return nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("parse atomic amount %q: %w", s, err)
	}
	*a = Atomic(n)
	return nil
}
