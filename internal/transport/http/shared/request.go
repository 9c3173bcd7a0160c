package shared

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"hrpay/internal/domain/auth"
	"hrpay/internal/domain/payroll"
	"hrpay/internal/transport/http/api"
	"hrpay/internal/transport/http/middleware"
)

// Actor returns the authenticated caller or writes a 401.
func Actor(w http.ResponseWriter, r *http.Request) (auth.Actor, bool) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
	}
	return actor, ok
}

// DecodeJSON reads one JSON object into dst or writes a 400.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", middleware.GetRequestID(r.Context()))
			return false
		}
		message := "invalid request payload"
		if errors.Is(err, io.EOF) {
			message = "request body is empty"
		}
		api.Fail(w, http.StatusBadRequest, "invalid_payload", message, middleware.GetRequestID(r.Context()))
		return false
	}
	return true
}

// PathID parses a positive int64 URL parameter or writes a 400.
func PathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		api.Fail(w, http.StatusBadRequest, "invalid_id", name+" must be a positive integer", middleware.GetRequestID(r.Context()))
		return 0, false
	}
	return id, true
}

// QueryInt64 returns 0 when the parameter is absent or malformed.
func QueryInt64(r *http.Request, name string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get(name)), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// Period validates a start/end pair of dates.
func (v *Validator) Period(startField, start, endField, end string) payroll.Period {
	s, okStart := v.Date(startField, start)
	e, okEnd := v.Date(endField, end)
	if okStart && okEnd {
		v.DateOrder(startField, s, endField, e)
	}
	return payroll.Period{Start: s, End: e}
}
