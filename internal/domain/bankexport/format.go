package bankexport

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"strings"
	"unicode"
)

// Header is the ASB direct credit column layout.
var Header = []string{
	"Period", "Date", "FromAccount", "Amount", "Type", "Particulars", "Code",
	"Reference", "ToAccount", "Code2", "Particulars2", "Code3", "Payee",
}

const (
	paymentType     = "Salary/Wages"
	referenceLength = 12
)

// DigitsOnly strips everything but 0-9 from an account number.
func DigitsOnly(account string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, account)
}

// Reference is the surname cut to the 12 characters a bank statement shows.
func Reference(surname string) string {
	surname = strings.TrimSpace(strings.Map(func(r rune) rune {
		if r == ',' || unicode.IsControl(r) {
			return -1
		}
		return r
	}, surname))
	runes := []rune(surname)
	if len(runes) > referenceLength {
		runes = runes[:referenceLength]
	}
	return string(runes)
}

// FormatRow renders one payment. The amount always has exactly two decimals
// and no thousands separator.
func FormatRow(p Payment) []string {
	ended := "Pay Ended " + p.PeriodEnd.Format("02/01/06")
	medium := p.PeriodEnd.Format("02-Jan-2006")
	return []string{
		ended,
		p.PeriodEnd.Format("2006/01/02"),
		DigitsOnly(p.FromAccount),
		p.Amount.String(),
		paymentType,
		ended,
		medium,
		Reference(p.Surname),
		DigitsOnly(p.ToAccount),
		paymentType,
		"Pay Ended",
		medium,
		p.Payee,
	}
}

// Build renders the whole file and its sha256 hex digest.
func Build(payments []Payment) ([]byte, string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Header); err != nil {
		return nil, "", err
	}
	for _, p := range payments {
		if err := w.Write(FormatRow(p)); err != nil {
			return nil, "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, "", err
	}
	data := buf.Bytes()
	return data, Hash(data), nil
}

func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
