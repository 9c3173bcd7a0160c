package xeroapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrpay/internal/domain/xero"
)

type staticToken string

func (s staticToken) AccessToken(context.Context) (string, error) { return string(s), nil }

func TestCreatePayRunSendsTenantAndParsesID(t *testing.T) {
	var body []xero.PayRun
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payroll.xro/1.0/PayRuns", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "tenant-1", r.Header.Get("Xero-tenant-id"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = io.WriteString(w, `{"PayRuns":[{"PayRunID":"run-9","PayRunStatus":"DRAFT"}]}`)
	}))
	defer srv.Close()

	c := New(srv.URL, "tenant-1", 5*time.Second, staticToken("tok"))
	id, err := c.CreatePayRun(context.Background(), xero.PayRunRequest{PayRuns: []xero.PayRun{{PayrollCalendarID: "cal", PayRunStatus: "Draft"}}})
	require.NoError(t, err)
	assert.Equal(t, "run-9", id)
	require.Len(t, body, 1)
	assert.Equal(t, "cal", body[0].PayrollCalendarID)
}

func TestPostPayRunRequiresPostedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"PayRuns":[{"PayRunID":"run-9","PayRunStatus":"DRAFT"}]}`)
	}))
	defer srv.Close()

	c := New(srv.URL, "t", 5*time.Second, staticToken("tok"))
	assert.Error(t, c.PostPayRun(context.Background(), "run-9"))
}

func TestCreateBatchPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api.xro/2.0/BatchPayments", r.URL.Path)
		_, _ = io.WriteString(w, `{"BatchPayments":[{"BatchPaymentID":"bp-1"}]}`)
	}))
	defer srv.Close()

	c := New(srv.URL, "t", 5*time.Second, staticToken("tok"))
	id, err := c.CreateBatchPayment(context.Background(), xero.BatchPayment{Account: "090"})
	require.NoError(t, err)
	assert.Equal(t, "bp-1", id)
}
