package xeroapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"hrpay/internal/domain/xero"
	"hrpay/internal/platform/httpx"
)

const (
	DefaultBaseURL = "https://api.xero.com"
	requestsPerMin = 60
)

// TokenSource supplies bearer tokens; *Auth is the production one.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

var _ xero.API = (*Client)(nil)

type Client struct {
	http *httpx.Client
}

func New(baseURL, tenantID string, timeout time.Duration, tokens TokenSource) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	hc := httpx.New("xero", strings.TrimRight(baseURL, "/"), timeout).WithRate(requestsPerMin, 5)
	hc.Authorize = func(ctx context.Context, req *http.Request) error {
		tok, err := tokens.AccessToken(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
		req.Header.Set("Xero-tenant-id", tenantID)
		return nil
	}
	return &Client{http: hc}
}

type payRunResponse struct {
	PayRuns []struct {
		PayRunID     string `json:"PayRunID"`
		PayRunStatus string `json:"PayRunStatus"`
	} `json:"PayRuns"`
}

func (c *Client) CreatePayRun(ctx context.Context, req xero.PayRunRequest) (string, error) {
	var resp payRunResponse
	if err := c.http.Do(ctx, http.MethodPost, "/payroll.xro/1.0/PayRuns", req.PayRuns, &resp); err != nil {
		return "", err
	}
	if len(resp.PayRuns) == 0 || resp.PayRuns[0].PayRunID == "" {
		return "", fmt.Errorf("xero returned no pay run id")
	}
	return resp.PayRuns[0].PayRunID, nil
}

func (c *Client) PostPayRun(ctx context.Context, payRunID string) error {
	body := []xero.PayRun{{PayRunID: payRunID, PayRunStatus: "POSTED"}}
	var resp payRunResponse
	if err := c.http.Do(ctx, http.MethodPost, "/payroll.xro/1.0/PayRuns", body, &resp); err != nil {
		return err
	}
	if len(resp.PayRuns) == 0 || !strings.EqualFold(resp.PayRuns[0].PayRunStatus, "POSTED") {
		return fmt.Errorf("xero did not post pay run %s", payRunID)
	}
	return nil
}

type batchPaymentsBody struct {
	BatchPayments []xero.BatchPayment `json:"BatchPayments"`
}

type batchPaymentsResponse struct {
	BatchPayments []struct {
		BatchPaymentID string `json:"BatchPaymentID"`
	} `json:"BatchPayments"`
}

func (c *Client) CreateBatchPayment(ctx context.Context, bp xero.BatchPayment) (string, error) {
	var resp batchPaymentsResponse
	if err := c.http.Do(ctx, http.MethodPost, "/api.xro/2.0/BatchPayments", batchPaymentsBody{BatchPayments: []xero.BatchPayment{bp}}, &resp); err != nil {
		return "", err
	}
	if len(resp.BatchPayments) == 0 || resp.BatchPayments[0].BatchPaymentID == "" {
		return "", fmt.Errorf("xero returned no batch payment id")
	}
	return resp.BatchPayments[0].BatchPaymentID, nil
}

// WithObserver reports every upstream attempt to fn.
func (c *Client) WithObserver(fn func(service string, status int, elapsed time.Duration)) *Client {
	c.http.Observe = fn
	return c
}
