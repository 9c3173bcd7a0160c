package shared

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"hrpay/internal/platform/validation"
	"hrpay/internal/transport/http/api"
)

// Validator collects request problems as validation.FieldError values so
// handler checks and domain checks render the same 422 body.
type Validator struct {
	fields []validation.FieldError
}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) Add(field, rule, message string) {
	v.fields = append(v.fields, validation.FieldError{Field: field, Rule: rule, Message: message})
}

func (v *Validator) Required(field, value, message string) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, "required", message)
	}
}

// Struct checks a decoded payload against its validate tags.
func (v *Validator) Struct(payload any) {
	err := validation.Struct(payload)
	if err == nil {
		return
	}
	var verr *validation.Error
	if errors.As(err, &verr) {
		v.fields = append(v.fields, verr.Fields...)
		return
	}
	v.Add("", "invalid", err.Error())
}

func (v *Validator) Enum(field, value string, allowed []string, message string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	for _, candidate := range allowed {
		if strings.EqualFold(value, candidate) {
			return
		}
	}
	v.Add(field, "oneof", message)
}

// Date accepts YYYY-MM-DD or RFC3339.
func (v *Validator) Date(field, raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	v.Add(field, "date", field+" must be a date in YYYY-MM-DD format")
	return time.Time{}, false
}

func (v *Validator) DateOrder(startField string, start time.Time, endField string, end time.Time) {
	if start.IsZero() || end.IsZero() || !end.Before(start) {
		return
	}
	v.Add(startField, "ltefield", startField+" must be on or before "+endField)
	v.Add(endField, "gtefield", endField+" must be on or after "+startField)
}

// Page is a limit/offset window over a list.
type Page struct {
	Limit  int
	Offset int
}

// Page reads limit and offset from the query string. Limit defaults to def
// and is capped at limitCap.
func (v *Validator) Page(r *http.Request, def, limitCap int) Page {
	page := Page{Limit: def}
	q := r.URL.Query()
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			v.Add("limit", "gt", "limit must be a positive integer")
		} else {
			page.Limit = min(n, limitCap)
		}
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			v.Add("offset", "gte", "offset must be zero or more")
		} else {
			page.Offset = n
		}
	}
	return page
}

// Err returns the collected problems, ordered by field, or nil.
func (v *Validator) Err() error {
	if len(v.fields) == 0 {
		return nil
	}
	fields := append([]validation.FieldError(nil), v.fields...)
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })
	return &validation.Error{Fields: fields}
}

// Reject writes the 422 and reports true when anything was collected.
func (v *Validator) Reject(w http.ResponseWriter, requestID string) bool {
	err := v.Err()
	if err == nil {
		return false
	}
	api.FailError(w, err, requestID)
	return true
}
