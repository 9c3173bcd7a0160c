package bankexport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"hrpay/internal/domain/audit"
	"hrpay/internal/domain/auth"
	"hrpay/internal/domain/money"
	"hrpay/internal/domain/notifications"
	"hrpay/internal/domain/staff"
)

type StaffLookup interface {
	Get(ctx context.Context, staffID int64) (staff.Staff, error)
}

type Service struct {
	store       StoreAPI
	tx          Transactor
	staff       StaffLookup
	audit       audit.Recorder
	notifier    notifications.Notifier
	dir         string
	fromAccount string
	now         func() time.Time
}

func NewService(store StoreAPI, tx Transactor, staff StaffLookup, dir, fromAccount string, recorder audit.Recorder, notifier notifications.Notifier) *Service {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	if notifier == nil {
		notifier = notifications.Nop{}
	}
	return &Service{
		store:       store,
		tx:          tx,
		staff:       staff,
		audit:       recorder,
		notifier:    notifier,
		dir:         dir,
		fromAccount: fromAccount,
		now:         time.Now,
	}
}

// Export writes the ASB file for every approved, unexported payslip ending on
// periodEnd and marks them exported. The file is removed again if the
// database side fails.
func (s *Service) Export(ctx context.Context, actor auth.Actor, periodEnd time.Time) (Result, error) {
	if err := actor.Require(auth.PermPayrollExport); err != nil {
		return Result{}, err
	}
	if DigitsOnly(s.fromAccount) == "" {
		return Result{}, ErrNoFromAccount
	}

	candidates, err := s.store.Candidates(ctx, periodEnd)
	if err != nil {
		return Result{}, fmt.Errorf("select payslips: %w", err)
	}

	var res Result
	var payments []Payment
	var ids []int64
	var staffIDs []int64
	var total money.Cents
	for _, c := range candidates {
		member, err := s.staff.Get(ctx, c.StaffID)
		if err != nil {
			return Result{}, fmt.Errorf("load staff %d: %w", c.StaffID, err)
		}
		if DigitsOnly(member.BankAccount) == "" {
			res.Skipped = append(res.Skipped, fmt.Sprintf("payslip %d: %s has no bank account", c.PayslipID, member.FullName()))
			continue
		}
		if c.NetPay <= 0 {
			res.Skipped = append(res.Skipped, fmt.Sprintf("payslip %d: net pay %s is not payable", c.PayslipID, c.NetPay))
			continue
		}
		payments = append(payments, Payment{
			PayslipID:   c.PayslipID,
			FromAccount: s.fromAccount,
			ToAccount:   member.BankAccount,
			Amount:      c.NetPay,
			Surname:     member.LastName,
			Payee:       member.FullName(),
			PeriodEnd:   c.PeriodEnd,
		})
		ids = append(ids, c.PayslipID)
		staffIDs = append(staffIDs, c.StaffID)
		total += c.NetPay
	}
	if len(payments) == 0 {
		return res, ErrNothingToExport
	}

	data, hash, err := Build(payments)
	if err != nil {
		return Result{}, fmt.Errorf("build bank file: %w", err)
	}

	id := uuid.NewString()
	filename := fmt.Sprintf("asb_pay_%s_%s.csv", periodEnd.Format("20060102"), id[:8])
	path, err := s.writeFile(filename, data)
	if err != nil {
		return Result{}, err
	}

	record := Export{
		ID:           id,
		Filename:     filename,
		FileHash:     hash,
		PayslipCount: len(payments),
		TotalAmount:  total,
		PeriodEnd:    periodEnd,
		CreatedBy:    actor.UserID,
		CreatedAt:    s.now().UTC(),
	}
	err = s.tx.InTx(ctx, func(tx TxAPI) error {
		if err := tx.Insert(ctx, record); err != nil {
			return fmt.Errorf("insert export: %w", err)
		}
		n, err := tx.MarkExported(ctx, id, ids)
		if err != nil {
			return fmt.Errorf("mark payslips exported: %w", err)
		}
		if n != int64(len(ids)) {
			return fmt.Errorf("%w: marked %d of %d", ErrConcurrentExport, n, len(ids))
		}
		return nil
	})
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			slog.Error("bank export cleanup failed", "path", path, "err", rmErr)
		}
		return Result{}, err
	}

	slog.Info("bank export written", "exportId", id, "payslips", len(ids), "total", total.String(), "skipped", len(res.Skipped))
	if err := s.audit.Record(ctx, actor, audit.ActionBankExportCreated, "bank_export", id, nil, record); err != nil {
		slog.Warn("bank export audit failed", "exportId", id, "err", err)
	}
	for _, staffID := range staffIDs {
		body := fmt.Sprintf("Your pay for the period ending %s has been sent to your bank.", periodEnd.Format("02/01/2006"))
		if err := s.notifier.Notify(ctx, staffID, notifications.TypePayslipExported, "Pay on its way", body); err != nil {
			slog.Warn("bank export notification failed", "staffId", staffID, "err", err)
		}
	}
	res.Export = record
	return res, nil
}

// writeFile writes to a temp file in the export directory and renames it
// into place so a partial file is never visible under the final name.
func (s *Service) writeFile(filename string, data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, ".export-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", fmt.Errorf("write bank file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", fmt.Errorf("sync bank file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", err
	}
	path := filepath.Join(s.dir, filename)
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return "", fmt.Errorf("rename bank file: %w", err)
	}
	return path, nil
}

// VerifyFileIntegrity re-hashes the stored file and compares it with the hash
// recorded at export time.
func (s *Service) VerifyFileIntegrity(ctx context.Context, actor auth.Actor, id string) (Verification, error) {
	if err := actor.Require(auth.PermPayrollExport); err != nil {
		return Verification{}, err
	}
	record, err := s.store.Get(ctx, id)
	if err != nil {
		return Verification{}, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, record.Filename))
	if err != nil {
		return Verification{}, fmt.Errorf("read bank file: %w", err)
	}
	actual := Hash(data)
	v := Verification{ExportID: id, Expected: record.FileHash, Actual: actual, Valid: actual == record.FileHash}
	if !v.Valid {
		slog.Error("bank export hash mismatch", "exportId", id, "expected", record.FileHash, "actual", actual)
	}
	return v, nil
}

// Open returns the export record and file contents after checking the hash.
func (s *Service) Open(ctx context.Context, actor auth.Actor, id string) (Export, []byte, error) {
	if err := actor.Require(auth.PermPayrollExport); err != nil {
		return Export{}, nil, err
	}
	record, err := s.store.Get(ctx, id)
	if err != nil {
		return Export{}, nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, record.Filename))
	if err != nil {
		return Export{}, nil, fmt.Errorf("read bank file: %w", err)
	}
	if Hash(data) != record.FileHash {
		return Export{}, nil, fmt.Errorf("%w: %s", ErrTampered, id)
	}
	return record, data, nil
}

func (s *Service) List(ctx context.Context, actor auth.Actor, limit, offset int) ([]Export, error) {
	if err := actor.Require(auth.PermPayrollExport); err != nil {
		return nil, err
	}
	return s.store.List(ctx, limit, offset)
}
