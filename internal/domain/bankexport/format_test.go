package bankexport

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatRow(t *testing.T) {
	row := FormatRow(Payment{
		FromAccount: "12-3249-0032052-00",
		ToAccount:   "06 0123 4567890 01",
		Amount:      123456,
		Surname:     "Featherstonehaugh",
		Payee:       "Ana Featherstonehaugh",
		PeriodEnd:   time.Date(2025, 10, 28, 0, 0, 0, 0, time.UTC),
	})

	require.Len(t, row, len(Header))
	assert.Equal(t, "Pay Ended 28/10/25", row[0])
	assert.Equal(t, "2025/10/28", row[1])
	assert.Equal(t, "123249003205200", row[2])
	assert.Equal(t, "1234.56", row[3])
	assert.Equal(t, "28-Oct-2025", row[6])
	assert.Equal(t, "Featherstone", row[7])
	assert.Equal(t, "060123456789001", row[8])
	assert.Equal(t, "Ana Featherstonehaugh", row[12])
}

func TestAmountAlwaysTwoDecimals(t *testing.T) {
	for cents, want := range map[int64]string{5: "0.05", 100: "1.00", 123456789: "1234567.89"} {
		row := FormatRow(Payment{Amount: centsOf(cents)})
		assert.Equal(t, want, row[3])
	}
}

func TestReferenceStripsCommas(t *testing.T) {
	assert.Equal(t, "OBrien", Reference(" OBrien "))
	assert.Equal(t, "SmithJones", Reference("Smith,Jones"))
	assert.Equal(t, "Ngā Tahu Whā", Reference("Ngā Tahu Whānui"))
}

func TestBuildIsDeterministic(t *testing.T) {
	payments := []Payment{{FromAccount: "1", ToAccount: "2", Amount: 100, Surname: "Lee", Payee: "Sam Lee", PeriodEnd: time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC)}}
	a, hashA, err := Build(payments)
	require.NoError(t, err)
	b, hashB, err := Build(payments)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, hashA, hashB)
	assert.Len(t, hashA, 64)
	assert.True(t, strings.HasPrefix(string(a), strings.Join(Header, ",")+"\n"))
}
