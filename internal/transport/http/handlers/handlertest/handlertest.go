// Package handlertest drives chi handlers in tests with an authenticated actor.
package handlertest

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"hrpay/internal/domain/auth"
	"hrpay/internal/transport/http/api"
	"hrpay/internal/transport/http/middleware"
)

var (
	PayrollAdmin = auth.Actor{UserID: "u-admin", Role: auth.RolePayrollAdmin}
	Manager      = auth.Actor{UserID: "u-manager", StaffID: 7, Role: auth.RoleManager}
	Staff        = auth.Actor{UserID: "u-staff", StaffID: 42, Role: auth.RoleStaff}
)

type Registrar interface {
	RegisterRoutes(r chi.Router)
}

// Router mounts h under an empty chi router.
func Router(h Registrar) http.Handler {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// Do sends a request as actor. A zero actor sends it anonymously. A nil body
// sends no body; anything else is JSON encoded.
func Do(t *testing.T, h http.Handler, actor auth.Actor, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if actor.UserID != "" {
		req = req.WithContext(middleware.WithActor(req.Context(), actor))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// Decode unmarshals the envelope and, when data is non-nil, its data field.
func Decode(t *testing.T, rec *httptest.ResponseRecorder, data any) api.Envelope {
	t.Helper()
	var env struct {
		api.Envelope
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env.Envelope
}
