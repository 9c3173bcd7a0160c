// Package vendapi talks to the Vend (Lightspeed Retail) API on behalf of the
// vend allocation service.
package vendapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hrpay/internal/domain/money"
	"hrpay/internal/domain/vend"
	"hrpay/internal/platform/cache"
	"hrpay/internal/platform/httpx"
)

var (
	ErrPaymentTypeNotFound = errors.New("vend account payment type not found")
	ErrRegisterNotFound    = errors.New("vend register not found")
)

const (
	lookupTTL    = time.Hour
	maxSalePages = 50
)

type Options struct {
	DomainPrefix    string
	AccessToken     string
	Timeout         time.Duration
	PaymentTypeName string
	RegisterName    string
	Cache           cache.Cache
}

var _ vend.API = (*Client)(nil)

type Client struct {
	http            *httpx.Client
	cache           cache.Cache
	paymentTypeName string
	registerName    string
}

func New(opts Options) *Client {
	base := fmt.Sprintf("https://%s.vendhq.com/api", opts.DomainPrefix)
	return NewWithBaseURL(base, opts)
}

// NewWithBaseURL points the client at an arbitrary host.
func NewWithBaseURL(baseURL string, opts Options) *Client {
	hc := httpx.New("vend", strings.TrimRight(baseURL, "/"), opts.Timeout).WithRate(300, 10)
	token := opts.AccessToken
	hc.Authorize = func(_ context.Context, req *http.Request) error {
		req.Header.Set("Authorization", "Bearer "+token)
		return nil
	}
	c := &Client{
		http:            hc,
		cache:           opts.Cache,
		paymentTypeName: opts.PaymentTypeName,
		registerName:    opts.RegisterName,
	}
	if c.cache == nil {
		c.cache = cache.NewMemory()
	}
	if c.paymentTypeName == "" {
		c.paymentTypeName = "Staff Account"
	}
	if c.registerName == "" {
		c.registerName = "Main Register"
	}
	return c
}

type totals struct {
	TotalPrice *float64 `json:"total_price"`
	TotalPaid  *float64 `json:"total_paid"`
	TotalToPay *float64 `json:"total_to_pay"`
}

type saleDTO struct {
	ID         string   `json:"id"`
	CustomerID string   `json:"customer_id"`
	UserID     string   `json:"user_id"`
	Status     string   `json:"status"`
	SaleDate   string   `json:"sale_date"`
	TotalPrice *float64 `json:"total_price"`
	TotalPaid  *float64 `json:"total_paid"`
	Totals     *totals  `json:"totals"`
}

type version struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

type salesPage struct {
	Data    []saleDTO `json:"data"`
	Version *version  `json:"version"`
}

func cents(v *float64) money.Cents {
	if v == nil {
		return 0
	}
	return money.FromDollars(*v)
}

func (d saleDTO) toSale() vend.Sale {
	s := vend.Sale{
		ID:         d.ID,
		CustomerID: d.CustomerID,
		UserID:     d.UserID,
		Status:     d.Status,
		TotalPrice: cents(d.TotalPrice),
		TotalPaid:  cents(d.TotalPaid),
	}
	if d.Totals != nil {
		if d.Totals.TotalPrice != nil {
			s.TotalPrice = cents(d.Totals.TotalPrice)
		}
		if d.Totals.TotalPaid != nil {
			s.TotalPaid = cents(d.Totals.TotalPaid)
		}
		if d.Totals.TotalToPay != nil {
			s.TotalToPay = cents(d.Totals.TotalToPay)
			s.HasToPay = true
		}
	}
	if t, err := parseTime(d.SaleDate); err == nil {
		s.SaleDate = t
	}
	return s
}

func parseTime(v string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", v)
}

// OpenAccountSales lists the customer's pending on-account sales.
func (c *Client) OpenAccountSales(ctx context.Context, customerID string) ([]vend.Sale, error) {
	q := url.Values{}
	q.Set("type", "sales")
	q.Set("customer_id", customerID)
	q.Set("state", "pending")
	q.Set("attributes", "onaccount")
	q.Set("page_size", "100")
	q.Set("order_by", "sale_date")
	q.Set("order_direction", "desc")

	var page salesPage
	if err := c.http.Do(ctx, http.MethodGet, "/2.0/search?"+q.Encode(), nil, &page); err != nil {
		return nil, err
	}
	out := make([]vend.Sale, 0, len(page.Data))
	for _, d := range page.Data {
		out = append(out, d.toSale())
	}
	return out, nil
}

// Sales pages through /2.0/sales for [since, before) by version cursor.
func (c *Client) Sales(ctx context.Context, since, before time.Time) ([]vend.Sale, error) {
	var out []vend.Sale
	var after int64
	for range maxSalePages {
		q := url.Values{}
		q.Set("since", since.UTC().Format(time.RFC3339))
		q.Set("before", before.UTC().Format(time.RFC3339))
		if after > 0 {
			q.Set("after", fmt.Sprint(after))
		}
		var page salesPage
		if err := c.http.Do(ctx, http.MethodGet, "/2.0/sales?"+q.Encode(), nil, &page); err != nil {
			return nil, err
		}
		for _, d := range page.Data {
			out = append(out, d.toSale())
		}
		if len(page.Data) == 0 || page.Version == nil || page.Version.Max <= after {
			return out, nil
		}
		after = page.Version.Max
	}
	slog.Warn("vend sales paging stopped early", "pages", maxSalePages, "since", since, "before", before)
	return out, nil
}

type named struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type namedList struct {
	Data []named `json:"data"`
}

// lookup resolves a named Vend entity to its ID through the cache.
func (c *Client) lookup(ctx context.Context, path, name string, notFound error) (string, error) {
	key := "vend:lookup:" + path + ":" + strings.ToLower(name)
	var id string
	if err := c.cache.GetJSON(ctx, key, &id); err == nil && id != "" {
		return id, nil
	} else if err != nil && !errors.Is(err, cache.ErrMiss) {
		slog.Warn("vend lookup cache read failed", "key", key, "err", err)
	}

	var list namedList
	if err := c.http.Do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return "", err
	}
	for _, item := range list.Data {
		if item.ID == name || strings.EqualFold(item.Name, name) {
			id = item.ID
			break
		}
	}
	if id == "" {
		return "", fmt.Errorf("%w: %s", notFound, name)
	}
	if err := c.cache.SetJSON(ctx, key, id, lookupTTL); err != nil {
		slog.Warn("vend lookup cache write failed", "key", key, "err", err)
	}
	return id, nil
}

func (c *Client) AccountPaymentTypeID(ctx context.Context) (string, error) {
	return c.lookup(ctx, "/2.0/payment_types", c.paymentTypeName, ErrPaymentTypeNotFound)
}

func (c *Client) RegisterID(ctx context.Context) (string, error) {
	return c.lookup(ctx, "/2.0/registers", c.registerName, ErrRegisterNotFound)
}

type salePayment struct {
	RegisterID            string  `json:"register_id"`
	RetailerPaymentTypeID string  `json:"retailer_payment_type_id"`
	PaymentDate           string  `json:"payment_date"`
	Amount                float64 `json:"amount"`
	Label                 string  `json:"label,omitempty"`
}

type registerSaleRequest struct {
	ID                   string        `json:"id"`
	RegisterID           string        `json:"register_id"`
	RegisterSalePayments []salePayment `json:"register_sale_payments"`
}

type registerSaleResponse struct {
	RegisterSale struct {
		ID                   string `json:"id"`
		RegisterSalePayments []struct {
			ID string `json:"id"`
		} `json:"register_sale_payments"`
	} `json:"register_sale"`
}

// RecordPayment adds one payment to an existing sale and returns the new
// payment's ID.
func (c *Client) RecordPayment(ctx context.Context, p vend.Payment) (string, error) {
	registerID, err := c.RegisterID(ctx)
	if err != nil {
		return "", err
	}
	req := registerSaleRequest{
		ID:         p.SaleID,
		RegisterID: registerID,
		RegisterSalePayments: []salePayment{{
			RegisterID:            registerID,
			RetailerPaymentTypeID: p.PaymentTypeID,
			PaymentDate:           p.PaidAt.UTC().Format("2006-01-02 15:04:05"),
			Amount:                p.Amount.Dollars(),
			Label:                 p.Label,
		}},
	}
	var resp registerSaleResponse
	if err := c.http.Do(ctx, http.MethodPost, "/register_sales", req, &resp); err != nil {
		return "", err
	}
	payments := resp.RegisterSale.RegisterSalePayments
	if len(payments) == 0 || payments[len(payments)-1].ID == "" {
		return "", fmt.Errorf("vend accepted sale %s without a payment id", p.SaleID)
	}
	return payments[len(payments)-1].ID, nil
}

// Customers searches Vend customers by email.
func (c *Client) Customers(ctx context.Context, search string) ([]Customer, error) {
	q := url.Values{}
	if search != "" {
		q.Set("email", search)
	}
	var resp struct {
		Data []Customer `json:"data"`
	}
	if err := c.http.Do(ctx, http.MethodGet, "/2.0/customers?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

type Customer struct {
	ID           string  `json:"id"`
	CustomerCode string  `json:"customer_code"`
	FirstName    string  `json:"first_name"`
	LastName     string  `json:"last_name"`
	Email        string  `json:"email"`
	Balance      float64 `json:"balance"`
}

// WithObserver reports every upstream attempt to fn.
func (c *Client) WithObserver(fn func(service string, status int, elapsed time.Duration)) *Client {
	c.http.Observe = fn
	return c
}
