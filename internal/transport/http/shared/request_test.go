package shared

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hrpay/internal/platform/validation"
)

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var dst struct {
		StaffID int64 `json:"staffId"`
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"staffId":1,"extra":true}`))
	if DecodeJSON(rec, req, &dst) {
		t.Fatal("expected unknown field to be rejected")
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestDecodeJSONTooLarge(t *testing.T) {
	var dst map[string]any
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"note":"`+strings.Repeat("x", 100)+`"}`))
	req.Body = http.MaxBytesReader(rec, req.Body, 16)
	if DecodeJSON(rec, req, &dst) {
		t.Fatal("expected oversized body to be rejected")
	}
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

func fieldsOf(t *testing.T, v *Validator) []validation.FieldError {
	t.Helper()
	err := v.Err()
	if err == nil {
		return nil
	}
	var verr *validation.Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	return verr.Fields
}

func TestValidatorPeriod(t *testing.T) {
	v := NewValidator()
	p := v.Period("periodStart", "2025-03-03", "periodEnd", "2025-03-09")
	if err := v.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.Start.Equal(time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %v", p.Start)
	}

	v = NewValidator()
	v.Period("periodStart", "2025-03-09", "periodEnd", "2025-03-03")
	fields := fieldsOf(t, v)
	if len(fields) != 2 || fields[0].Rule != "gtefield" || fields[1].Rule != "ltefield" {
		t.Fatalf("expected both fields flagged, got %v", fields)
	}

	v = NewValidator()
	v.Period("periodStart", "", "periodEnd", "nope")
	if fields := fieldsOf(t, v); len(fields) != 2 || fields[0].Rule != "date" {
		t.Fatalf("expected two date errors, got %v", fields)
	}
}

func TestValidatorRejectRenders422(t *testing.T) {
	v := NewValidator()
	v.Struct(struct {
		StaffID int64 `json:"staffId" validate:"gt=0"`
	}{})
	rec := httptest.NewRecorder()
	if !v.Reject(rec, "req-1") {
		t.Fatal("expected reject")
	}
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"field":"staffId","rule":"gt"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestValidatorPage(t *testing.T) {
	v := NewValidator()
	page := v.Page(httptest.NewRequest(http.MethodGet, "/?limit=900&offset=20", nil), 50, 200)
	if v.Err() != nil || page.Limit != 200 || page.Offset != 20 {
		t.Fatalf("unexpected page %+v err %v", page, v.Err())
	}

	v = NewValidator()
	page = v.Page(httptest.NewRequest(http.MethodGet, "/", nil), 50, 200)
	if page.Limit != 50 || page.Offset != 0 {
		t.Fatalf("expected defaults, got %+v", page)
	}

	v = NewValidator()
	v.Page(httptest.NewRequest(http.MethodGet, "/?limit=ten&offset=-1", nil), 50, 200)
	if fields := fieldsOf(t, v); len(fields) != 2 {
		t.Fatalf("expected limit and offset flagged, got %v", fields)
	}
}
