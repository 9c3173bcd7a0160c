package staff

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoutil "hrpay/internal/platform/crypto"
)

// staffRow scans the staffColumns projection from fixed values.
type staffRow struct {
	plain string
	enc   []byte
}

func (r staffRow) Scan(dest ...any) error {
	values := []any{int64(7), "Aroha", "Ngata", "aroha@example.nz", int64(2500),
		r.plain, r.enc, int64(555), "", "", "", true, false, []int32{1, 2}, true}
	if len(dest) != len(values) {
		return fmt.Errorf("scan: want %d columns, got %d", len(values), len(dest))
	}
	for i, v := range values {
		switch d := dest[i].(type) {
		case *int64:
			*d = v.(int64)
		case *string:
			*d = v.(string)
		case *[]byte:
			*d = v.([]byte)
		case *bool:
			*d = v.(bool)
		case *[]int32:
			*d = v.([]int32)
		default:
			return fmt.Errorf("scan: unexpected destination %T", d)
		}
	}
	return nil
}

type rowDB struct{ row pgx.Row }

func (db rowDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (db rowDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, fmt.Errorf("not used")
}

func (db rowDB) QueryRow(context.Context, string, ...any) pgx.Row { return db.row }

func newCrypto(t *testing.T) *cryptoutil.Service {
	t.Helper()
	svc, err := cryptoutil.New("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	return svc
}

func TestGetDecryptsBankAccount(t *testing.T) {
	crypto := newCrypto(t)
	enc, err := crypto.EncryptString("12-3011-0123456-00")
	require.NoError(t, err)

	store := NewStore(rowDB{row: staffRow{plain: "stale", enc: enc}}, crypto)
	st, err := store.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "12-3011-0123456-00", st.BankAccount)
}

func TestGetFailsOnCorruptBankAccount(t *testing.T) {
	crypto := newCrypto(t)
	enc, err := crypto.EncryptString("12-3011-0123456-00")
	require.NoError(t, err)
	enc[len(enc)-1] ^= 0xff

	store := NewStore(rowDB{row: staffRow{plain: "12-9999-9999999-00", enc: enc}}, crypto)
	st, err := store.Get(context.Background(), 7)
	require.ErrorIs(t, err, cryptoutil.ErrTampered)
	assert.Empty(t, st.BankAccount)
}

func TestGetFailsWithoutKeyForEncryptedAccount(t *testing.T) {
	enc, err := newCrypto(t).EncryptString("12-3011-0123456-00")
	require.NoError(t, err)

	unkeyed, err := cryptoutil.New("")
	require.NoError(t, err)
	_, err = NewStore(rowDB{row: staffRow{plain: "12-9999-9999999-00", enc: enc}}, unkeyed).Get(context.Background(), 7)
	assert.ErrorIs(t, err, cryptoutil.ErrNotConfigured)
}

func TestGetReadsPlainAccountWhenNothingEncrypted(t *testing.T) {
	store := NewStore(rowDB{row: staffRow{plain: "12-3011-0123456-00"}}, newCrypto(t))
	st, err := store.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "12-3011-0123456-00", st.BankAccount)
}
