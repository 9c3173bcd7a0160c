package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCents(t *testing.T) {
	cases := map[string]Cents{
		"12":        1200,
		"12.3":      1230,
		"12.34":     1234,
		"-4.50":     -450,
		"$1,234.56": 123456,
		".5":        50,
	}
	for in, want := range cases {
		got, err := ParseCents(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseCents("1.234")
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = ParseCents("")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCentsString(t *testing.T) {
	assert.Equal(t, "200.00", Cents(20000).String())
	assert.Equal(t, "0.05", Cents(5).String())
	assert.Equal(t, "-3.15", Cents(-315).String())
	assert.Equal(t, "1234567.89", Cents(123456789).String())
}

func TestWageRoundsOnce(t *testing.T) {
	// 10 minutes at $10/h is 166.67 cents. Rounding per line would give 501.
	var total Exact
	for i := 0; i < 3; i++ {
		total += Wage(1000, 10, 100)
	}
	assert.Equal(t, Cents(500), total.Round())

	// 7 minutes at $23.15/h at 20% loading.
	assert.Equal(t, Cents(54), Wage(2315, 7, 20).Round())
}

func TestPercent(t *testing.T) {
	assert.Equal(t, Cents(3000), Percent(100000, 300))
	assert.Equal(t, Cents(6816), Percent(56800, 1200))
}

func TestHours(t *testing.T) {
	assert.Equal(t, 8.5, Hours(510))
	assert.Equal(t, 0.33, Hours(20))
}
