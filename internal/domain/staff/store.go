package staff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"hrpay/internal/domain/deputy"
	"hrpay/internal/domain/money"
	cryptoutil "hrpay/internal/platform/crypto"
	"hrpay/internal/platform/querier"
)

type StoreAPI interface {
	Get(ctx context.Context, staffID int64) (Staff, error)
	ListActive(ctx context.Context) ([]Staff, error)
	DeputyEmployeeID(ctx context.Context, staffID int64) (int64, error)
}

type Store struct {
	DB     querier.Querier
	Crypto *cryptoutil.Service
}

func NewStore(db querier.Querier, crypto *cryptoutil.Service) *Store {
	return &Store{DB: db, Crypto: crypto}
}

const staffColumns = `
           id, first_name, COALESCE(last_name, ''), COALESCE(email, ''),
           hourly_rate_cents,
           COALESCE(bank_account, ''), bank_account_enc,
           COALESCE(deputy_employee_id, 0),
           COALESCE(xero_employee_id, ''),
           COALESCE(vend_customer_id, ''), COALESCE(vend_user_id, ''),
           kiwisaver_enrolled, student_loan,
           COALESCE(workdays, '{}'), active`

func (s *Store) scan(row pgx.Row) (Staff, error) {
	var st Staff
	var rate int64
	var bankPlain string
	var bankEnc []byte
	var workdays []int32
	if err := row.Scan(&st.ID, &st.FirstName, &st.LastName, &st.Email, &rate, &bankPlain, &bankEnc,
		&st.DeputyEmployeeID, &st.XeroEmployeeID, &st.VendCustomerID, &st.VendUserID,
		&st.KiwiSaverEnrolled, &st.StudentLoan, &workdays, &st.Active); err != nil {
		return Staff{}, err
	}
	st.HourlyRate = money.Cents(rate)
	bank, err := decryptBankAccount(s.Crypto, bankEnc, bankPlain)
	if err != nil {
		return Staff{}, fmt.Errorf("staff %d: %w", st.ID, err)
	}
	st.BankAccount = bank
	for _, d := range workdays {
		st.Workdays = append(st.Workdays, time.Weekday(d))
	}
	return st, nil
}

func (s *Store) Get(ctx context.Context, staffID int64) (Staff, error) {
	st, err := s.scan(s.DB.QueryRow(ctx, `
    SELECT`+staffColumns+`
    FROM staff
    WHERE id = $1
  `, staffID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Staff{}, ErrStaffNotFound
	}
	return st, err
}

func (s *Store) ListActive(ctx context.Context) ([]Staff, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT`+staffColumns+`
    FROM staff
    WHERE active = true
    ORDER BY id
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Staff
	for rows.Next() {
		st, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) DeputyEmployeeID(ctx context.Context, staffID int64) (int64, error) {
	var id int64
	err := s.DB.QueryRow(ctx, "SELECT COALESCE(deputy_employee_id, 0) FROM staff WHERE id = $1", staffID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrStaffNotFound
	}
	return id, err
}

// DeputyLocationID returns 0 when the outlet has no Deputy mapping.
func (s *Store) DeputyLocationID(ctx context.Context, outletID int64) (int64, error) {
	var id int64
	err := s.DB.QueryRow(ctx, "SELECT COALESCE(deputy_location_id, 0) FROM outlets WHERE id = $1", outletID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, deputy.ErrOutletNotFound
	}
	return id, err
}

func (s *Store) StaffByDeputyEmployee(ctx context.Context, employeeID int64) (int64, error) {
	var id int64
	err := s.DB.QueryRow(ctx, "SELECT id FROM staff WHERE deputy_employee_id = $1", employeeID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, deputy.ErrUnknownEmployee
	}
	return id, err
}

func (s *Store) OutletByOperationalUnit(ctx context.Context, operationalUnitID int64) (int64, error) {
	var id int64
	err := s.DB.QueryRow(ctx, `
    SELECT outlet_id FROM deputy_operational_units WHERE operational_unit_id = $1
    UNION ALL
    SELECT id FROM outlets WHERE deputy_location_id = $1
    LIMIT 1
  `, operationalUnitID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, deputy.ErrOutletNotFound
	}
	return id, err
}

func (s *Store) ListOutlets(ctx context.Context) ([]Outlet, error) {
	rows, err := s.DB.Query(ctx, "SELECT id, name, COALESCE(deputy_location_id, 0) FROM outlets ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Outlet
	for rows.Next() {
		var o Outlet
		if err := rows.Scan(&o.ID, &o.Name, &o.DeputyLocationID); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// decryptBankAccount prefers the encrypted column. A ciphertext that cannot be
// opened is an error; the plaintext column is only read when none is stored.
func decryptBankAccount(crypto *cryptoutil.Service, encrypted []byte, plain string) (string, error) {
	if len(encrypted) == 0 {
		return plain, nil
	}
	decrypted, err := crypto.DecryptString(encrypted)
	if err != nil {
		return "", fmt.Errorf("decrypt bank account: %w", err)
	}
	return decrypted, nil
}
