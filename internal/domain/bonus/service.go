package bonus

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"hrpay/internal/domain/audit"
	"hrpay/internal/domain/auth"
)

type Service struct {
	store StoreAPI
	audit audit.Recorder
}

func NewService(store StoreAPI, recorder audit.Recorder) *Service {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &Service{store: store, audit: recorder}
}

// Summary returns the unpaid bonus units for a staff member. It does not lock
// or claim anything.
func (s *Service) Summary(ctx context.Context, actor auth.Actor, staffID int64, start, end time.Time) (Summary, error) {
	if err := actor.Require(auth.PermBonusesRead); err != nil {
		return Summary{}, err
	}
	if !actor.Can(auth.PermBonusesWrite) && actor.StaffID != staffID {
		return Summary{}, fmt.Errorf("%w: staff may only view their own bonuses", auth.ErrForbidden)
	}
	return s.store.Summary(ctx, staffID, start, end, 0)
}

func (s *Service) CreateMonthly(ctx context.Context, actor auth.Actor, in MonthlyBonus) (MonthlyBonus, error) {
	if err := actor.Require(auth.PermBonusesWrite); err != nil {
		return MonthlyBonus{}, err
	}
	b, err := NewMonthly(in)
	if err != nil {
		return MonthlyBonus{}, err
	}
	b.CreatedBy = actor.UserID
	created, err := s.store.CreateMonthly(ctx, b)
	if err != nil {
		return MonthlyBonus{}, fmt.Errorf("create monthly bonus: %w", err)
	}
	s.record(ctx, actor, audit.ActionBonusCreated, created.ID, nil, created)
	return created, nil
}

func (s *Service) ApproveMonthly(ctx context.Context, actor auth.Actor, id int64) (MonthlyBonus, error) {
	return s.decide(ctx, actor, id, true)
}

func (s *Service) DeclineMonthly(ctx context.Context, actor auth.Actor, id int64) (MonthlyBonus, error) {
	return s.decide(ctx, actor, id, false)
}

func (s *Service) decide(ctx context.Context, actor auth.Actor, id int64, approve bool) (MonthlyBonus, error) {
	if err := actor.Require(auth.PermBonusesWrite); err != nil {
		return MonthlyBonus{}, err
	}
	b, err := s.store.DecideMonthly(ctx, id, approve, actor.UserID)
	if err != nil {
		return MonthlyBonus{}, err
	}
	action := audit.ActionBonusDeclined
	if approve {
		action = audit.ActionBonusApproved
	}
	s.record(ctx, actor, action, b.ID, nil, b)
	return b, nil
}

func (s *Service) ListMonthly(ctx context.Context, staffID int64, start, end time.Time) ([]MonthlyBonus, error) {
	return s.store.ListMonthly(ctx, staffID, start, end)
}

func (s *Service) record(ctx context.Context, actor auth.Actor, action string, id int64, before, after any) {
	if err := s.audit.Record(ctx, actor, action, "monthly_bonus", strconv.FormatInt(id, 10), before, after); err != nil {
		slog.Warn("audit record failed", "action", action, "bonusId", id, "err", err)
	}
}
