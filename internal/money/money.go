// Package money holds fixed-point amounts in minor units (cents).
package money

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Amount is a monetary value in minor units. 100 == 1.00.
type Amount int64

const minorPerMajor = 100

// ErrOutOfRange reports an amount that does not fit in an int64 of minor units.
var ErrOutOfRange = errors.New("amount out of range")

// FromMajor converts a whole-unit value, e.g. FromMajor(1000) == "1000.00".
func FromMajor(major int64) Amount {
	return Amount(major * minorPerMajor)
}

// Parse reads a decimal string such as "1000", "1000.5" or "-12.34".
// More than two fractional digits are rounded half-up.
func Parse(raw string) (Amount, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, errors.New("empty amount")
	}
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if !allDigits(whole) || !allDigits(frac) {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}
	major, err := strconv.ParseInt(whole, 10, 64)
	if errors.Is(err, strconv.ErrRange) {
		return 0, fmt.Errorf("%w: %q", ErrOutOfRange, raw)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	var minor int64
	roundUp := false
	switch {
	case len(frac) == 0:
	case len(frac) == 1:
		minor = int64(frac[0]-'0') * 10
	default:
		minor = int64(frac[0]-'0')*10 + int64(frac[1]-'0')
		roundUp = len(frac) > 2 && frac[2] >= '5'
	}
	if roundUp {
		minor++
	}
	if major > (math.MaxInt64-minor)/minorPerMajor {
		return 0, fmt.Errorf("%w: %q", ErrOutOfRange, raw)
	}
	value := major*minorPerMajor + minor
	if neg {
		value = -value
	}
	return Amount(value), nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Mul multiplies by a quantity.
func (a Amount) Mul(qty int) Amount {
	return a * Amount(qty)
}

// Percent returns a share of a given in basis points (1800 == 18%), rounded
// half-up. Results beyond the int64 range saturate.
func (a Amount) Percent(basisPoints int64) Amount {
	n := new(big.Int).Mul(big.NewInt(int64(a)), big.NewInt(basisPoints))
	half := big.NewInt(5000)
	if n.Sign() < 0 {
		half.Neg(half)
	}
	n.Add(n, half).Quo(n, big.NewInt(10000))
	switch {
	case n.IsInt64():
		return Amount(n.Int64())
	case n.Sign() > 0:
		return Amount(math.MaxInt64)
	default:
		return Amount(math.MinInt64)
	}
}

// String renders the plain decimal form, e.g. "1000.00".
func (a Amount) String() string {
	v := int64(a)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/minorPerMajor, v%minorPerMajor)
}

// Format renders a display string with thousands separators, e.g. "TSh 3,000.00".
func (a Amount) Format() string {
	v := int64(a)
	neg := v < 0
	if neg {
		v = -v
	}
	s := strconv.FormatInt(v/minorPerMajor, 10)

	var b strings.Builder
	b.Grow(len(s) + len(s)/3 + 8)
	if neg {
		b.WriteString("-")
	}
	b.WriteString("TSh ")
	rem := len(s) % 3
	if rem == 0 {
		rem = 3
	}
	b.WriteString(s[:rem])
	for i := rem; i < len(s); i += 3 {
		b.WriteByte(',')
		b.WriteString(s[i : i+3])
	}
	fmt.Fprintf(&b, ".%02d", v%minorPerMajor)
	return b.String()
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts both "1000.00" and 1000.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		if strings.TrimSpace(raw) == "" {
			*a = 0
			return nil
		}
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
