package staff

import (
	"testing"
	"time"

	"hrpay/internal/domain/auth"
)

func sampleStaffNgata() *Staff {
	return &Staff{ID: 7, FirstName: "Sam", LastName: "Ngata", BankAccount: "12-3011-0123456-00"}
}

func TestFilterFieldsPayrollAdminNgata(t *testing.T) {
	s := sampleStaffNgata()
	FilterFields(s, auth.Actor{Role: auth.RolePayrollAdmin})

	if s.BankAccount != "12-3011-0123456-00" {
		t.Fatalf("expected payroll admin to see account, got %q", s.BankAccount)
	}
}

func TestFilterFieldsSelfMasked(t *testing.T) {
	s := sampleStaffNgata()
	FilterFields(s, auth.Actor{Role: auth.RoleStaff, StaffID: 7})

	if s.BankAccount != "**-****-******6-00" {
		t.Fatalf("expected masked account, got %q", s.BankAccount)
	}
}

func TestFilterFieldsManagerHidden(t *testing.T) {
	s := sampleStaffNgata()
	FilterFields(s, auth.Actor{Role: auth.RoleManager, StaffID: 9})

	if s.BankAccount != "" {
		t.Fatalf("expected manager not to see account, got %q", s.BankAccount)
	}
}

func TestWorksOn(t *testing.T) {
	s := Staff{Workdays: []time.Weekday{time.Monday, time.Tuesday}}
	if !s.WorksOn(time.Monday) || s.WorksOn(time.Sunday) {
		t.Fatalf("unexpected workday result for %+v", s.Workdays)
	}
	if !(Staff{}).WorksOn(time.Sunday) {
		t.Fatal("expected staff without a pattern to work every day")
	}
}
