package money

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Cents is a monetary amount in NZD cents.
type Cents int64

// exactPerCent is the number of Exact units in one cent: 60 minutes x 100 percent.
const exactPerCent = 6000

var ErrInvalidAmount = errors.New("invalid money amount")

func FromDollars(d float64) Cents {
	if d < 0 {
		return Cents(d*100 - 0.5)
	}
	return Cents(d*100 + 0.5)
}

// ParseCents accepts "12", "12.3", "12.34", "-4.50" and "$1,234.56".
func ParseCents(s string) (Cents, error) {
	s = strings.TrimSpace(strings.ReplaceAll(strings.TrimPrefix(strings.TrimSpace(s), "$"), ",", ""))
	if s == "" {
		return 0, ErrInvalidAmount
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("%w: %q has more than 2 decimals", ErrInvalidAmount, s)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	c := Cents(w*100 + f)
	if neg {
		c = -c
	}
	return c, nil
}

// String renders exactly two decimals with no thousands separator.
func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

func (c Cents) Dollars() float64 {
	return float64(c) / 100
}

func (c Cents) MarshalJSON() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Cents) UnmarshalJSON(b []byte) error {
	parsed, err := ParseCents(strings.Trim(string(b), `"`))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Percent applies a rate expressed in basis points (300 = 3%) and rounds once.
func Percent(c Cents, basisPoints int64) Cents {
	return Cents(divRound(int64(c)*basisPoints, 10000))
}

// Exact is an unrounded amount in 1/6000 cent. It is what a rate in cents per
// hour multiplied by minutes and a percentage produces without any division.
type Exact int64

// Wage is rate x minutes x percent/100, kept unrounded.
func Wage(rate Cents, minutes int64, percent int64) Exact {
	return Exact(int64(rate) * minutes * percent)
}

func FromCents(c Cents) Exact {
	return Exact(int64(c) * exactPerCent)
}

// Round converts to cents, half away from zero.
func (e Exact) Round() Cents {
	return Cents(divRound(int64(e), exactPerCent))
}

func divRound(n, d int64) int64 {
	if n < 0 {
		return -((-n + d/2) / d)
	}
	return (n + d/2) / d
}

// Hours formats minutes as hours rounded to two decimals.
func Hours(minutes int64) float64 {
	return float64(divRound(minutes*100, 60)) / 100
}
