// Package deputyapi implements the Deputy timesheet calls used by the
// amendment reconciler and the timesheet mirror.
package deputyapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"hrpay/internal/domain/deputy"
	"hrpay/internal/platform/httpx"
)

const (
	pageSize          = 500
	timesheetResource = "/resource/Timesheet"
)

var _ deputy.API = (*Client)(nil)

type Client struct {
	http *httpx.Client
}

// New expects baseURL to end in /api/v1.
func New(baseURL, token string, timeout time.Duration) *Client {
	hc := httpx.New("deputy", strings.TrimRight(baseURL, "/"), timeout).WithRate(120, 10)
	hc.Authorize = func(_ context.Context, req *http.Request) error {
		req.Header.Set("Authorization", "Bearer "+token)
		return nil
	}
	// Queries, updates and approvals land on the same row when repeated.
	// Only a create can leave a duplicate timesheet behind.
	hc.Replayable = func(method, path string) bool {
		return httpx.Idempotent(method) || path != timesheetResource
	}
	return &Client{http: hc}
}

type searchTerm struct {
	Field string `json:"field"`
	Type  string `json:"type"`
	Data  any    `json:"data"`
}

type queryBody struct {
	Search map[string]searchTerm `json:"search"`
	Sort   map[string]string     `json:"sort,omitempty"`
	Start  int                   `json:"start"`
	Max    int                   `json:"max"`
}

type timesheetDTO struct {
	ID              int64           `json:"Id"`
	Employee        int64           `json:"Employee"`
	StartTime       int64           `json:"StartTime"`
	EndTime         int64           `json:"EndTime"`
	Mealbreak       json.RawMessage `json:"Mealbreak"`
	OperationalUnit int64           `json:"OperationalUnit"`
	TimeApproved    bool            `json:"TimeApproved"`
	Discarded       bool            `json:"Discarded"`
}

// breakSeconds reads Deputy's Mealbreak. Rows written through the resource
// API carry seconds; rows edited in Deputy carry a timestamp whose time of
// day is the break length.
func breakSeconds(raw json.RawMessage) int64 {
	if len(raw) == 0 || string(raw) == "null" {
		return 0
	}
	var seconds int64
	if err := json.Unmarshal(raw, &seconds); err == nil {
		return max(seconds, 0)
	}
	var stamp string
	if err := json.Unmarshal(raw, &stamp); err != nil || stamp == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return 0
	}
	return int64(t.Hour()*3600 + t.Minute()*60 + t.Second())
}

func (d timesheetDTO) row() deputy.Row {
	return deputy.Row{
		ID:                d.ID,
		EmployeeID:        d.Employee,
		StartTime:         d.StartTime,
		EndTime:           d.EndTime,
		BreakSeconds:      breakSeconds(d.Mealbreak),
		OperationalUnitID: d.OperationalUnit,
		Approved:          d.TimeApproved,
	}
}

func (c *Client) query(ctx context.Context, search map[string]searchTerm) ([]deputy.Row, error) {
	var out []deputy.Row
	for start := 0; ; start += pageSize {
		body := queryBody{Search: search, Sort: map[string]string{"Id": "asc"}, Start: start, Max: pageSize}
		var page []timesheetDTO
		if err := c.http.Do(ctx, http.MethodPost, timesheetResource+"/QUERY", body, &page); err != nil {
			return nil, err
		}
		for _, ts := range page {
			if ts.Discarded {
				continue
			}
			out = append(out, ts.row())
		}
		if len(page) < pageSize {
			return out, nil
		}
	}
}

func (c *Client) TimesheetsForDay(ctx context.Context, employeeID int64, day time.Time) ([]deputy.Row, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)
	return c.query(ctx, map[string]searchTerm{
		"s1": {Field: "Employee", Type: "eq", Data: employeeID},
		"s2": {Field: "StartTime", Type: "ge", Data: start.Unix()},
		"s3": {Field: "StartTime", Type: "lt", Data: end.Unix()},
	})
}

func (c *Client) TimesheetsBetween(ctx context.Context, start, end time.Time) ([]deputy.Row, error) {
	return c.query(ctx, map[string]searchTerm{
		"s1": {Field: "StartTime", Type: "ge", Data: start.Unix()},
		"s2": {Field: "StartTime", Type: "lt", Data: end.Unix()},
	})
}

// timesheetWrite is the Timesheet resource body. Times are UNIX seconds and
// Mealbreak is the break length in seconds.
type timesheetWrite struct {
	Employee          int64  `json:"Employee"`
	StartTime         int64  `json:"StartTime"`
	EndTime           int64  `json:"EndTime"`
	Mealbreak         int64  `json:"Mealbreak"`
	OperationalUnit   int64  `json:"OperationalUnit"`
	SupervisorComment string `json:"SupervisorComment,omitempty"`
}

type idResponse struct {
	ID int64 `json:"Id"`
}

func toWrite(in deputy.TimesheetInput) timesheetWrite {
	return timesheetWrite{
		Employee:          in.EmployeeID,
		StartTime:         in.StartTime,
		EndTime:           in.EndTime,
		Mealbreak:         in.BreakSeconds,
		OperationalUnit:   in.OperationalUnitID,
		SupervisorComment: in.Comment,
	}
}

func (c *Client) CreateTimesheet(ctx context.Context, in deputy.TimesheetInput) (int64, error) {
	var resp idResponse
	if err := c.http.Do(ctx, http.MethodPost, timesheetResource, toWrite(in), &resp); err != nil {
		return 0, err
	}
	if resp.ID == 0 {
		return 0, fmt.Errorf("deputy returned no timesheet id")
	}
	return resp.ID, nil
}

func (c *Client) UpdateTimesheet(ctx context.Context, id int64, in deputy.TimesheetInput) error {
	return c.http.Do(ctx, http.MethodPost, timesheetResource+"/"+strconv.FormatInt(id, 10), toWrite(in), nil)
}

func (c *Client) ApproveTimesheet(ctx context.Context, id int64) error {
	return c.http.Do(ctx, http.MethodPost, "/supervise/timesheet/"+strconv.FormatInt(id, 10), map[string]bool{"TimeApproved": true}, nil)
}

// WithObserver reports every upstream attempt to fn.
func (c *Client) WithObserver(fn func(service string, status int, elapsed time.Duration)) *Client {
	c.http.Observe = fn
	return c
}
