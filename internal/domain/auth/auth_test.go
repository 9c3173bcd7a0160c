package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("super-secret")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}

	if err := CheckPassword(hash, "super-secret"); err != nil {
		t.Fatalf("expected password to match, got %v", err)
	}

	if err := CheckPassword(hash, "wrong"); err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestGenerateAndParseToken(t *testing.T) {
	secret := "test-secret"
	claims := Claims{UserID: "u1", StaffID: 42, Role: RolePayrollAdmin}

	token, err := GenerateToken(secret, claims, time.Hour)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	parsed, err := ParseToken(secret, token)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	if parsed.Actor() != claims.Actor() {
		t.Fatalf("claims mismatch: %+v", parsed)
	}

	if _, err := ParseToken("other-secret", token); err == nil {
		t.Fatal("expected signature error")
	}
}

func TestActorRequire(t *testing.T) {
	staff := Actor{UserID: "u1", Role: RoleStaff}
	if err := staff.Require(PermPayrollApprove); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := staff.Require(PermAmendmentsWrite); err != nil {
		t.Fatalf("expected staff to create amendments, got %v", err)
	}
	if !System.Can(PermPayrollCalculate) {
		t.Fatal("expected system actor to calculate payroll")
	}
}

type fakeUsers struct {
	user  AuthUser
	err   error
	login string
}

func (f *fakeUsers) FindActiveUserByEmail(context.Context, string) (AuthUser, error) {
	return f.user, f.err
}

func (f *fakeUsers) UpdateLastLogin(_ context.Context, id string) error {
	f.login = id
	return nil
}

func TestLogin(t *testing.T) {
	hash, err := HashPassword("pw")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	users := &fakeUsers{user: AuthUser{ID: "u9", StaffID: 7, Role: RoleManager, Password: hash}}
	svc := NewService(users, "secret", time.Hour)

	token, actor, err := svc.Login(context.Background(), "a@b.nz", "pw")
	if err != nil {
		t.Fatalf("login error: %v", err)
	}
	if token == "" || actor.StaffID != 7 || users.login != "u9" {
		t.Fatalf("unexpected login result: %q %+v", token, actor)
	}

	if _, _, err := svc.Login(context.Background(), "a@b.nz", "bad"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}

	users.err = pgx.ErrNoRows
	if _, _, err := svc.Login(context.Background(), "x@b.nz", "pw"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}
