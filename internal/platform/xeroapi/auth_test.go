package xeroapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"hrpay/internal/domain/xero"
)

type memTokens struct {
	mu    sync.Mutex
	tok   *oauth2.Token
	saves int
}

func (m *memTokens) Load(context.Context) (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tok == nil {
		return nil, xero.ErrNotConnected
	}
	cp := *m.tok
	return &cp, nil
}

func (m *memTokens) Save(_ context.Context, tok *oauth2.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tok = tok
	m.saves++
	return nil
}

func tokenServer(t *testing.T, hits *atomic.Int32, gate <-chan struct{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if gate != nil {
			<-gate
		}
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "r1", r.PostForm.Get("refresh_token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"a2","refresh_token":"r2","token_type":"Bearer","expires_in":1800}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestAuth(store TokenStore, tokenURL string) *Auth {
	a := NewAuth("id", "secret", "https://app/cb", store)
	a.config.Endpoint.TokenURL = tokenURL
	return a
}

func TestAccessTokenRefreshesInsideBuffer(t *testing.T) {
	var hits atomic.Int32
	srv := tokenServer(t, &hits, nil)
	store := &memTokens{tok: &oauth2.Token{AccessToken: "a1", RefreshToken: "r1", Expiry: time.Now().Add(2 * time.Minute)}}
	a := newTestAuth(store, srv.URL)

	tok, err := a.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a2", tok)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, "r2", store.tok.RefreshToken)

	tok, err = a.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a2", tok)
	assert.Equal(t, int32(1), hits.Load())
}

func TestAccessTokenUsesFreshStoredToken(t *testing.T) {
	var hits atomic.Int32
	srv := tokenServer(t, &hits, nil)
	store := &memTokens{tok: &oauth2.Token{AccessToken: "a1", RefreshToken: "r1", Expiry: time.Now().Add(time.Hour)}}
	a := newTestAuth(store, srv.URL)

	tok, err := a.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a1", tok)
	assert.Zero(t, hits.Load())
}

func TestConcurrentRefreshCollapses(t *testing.T) {
	var hits atomic.Int32
	gate := make(chan struct{})
	srv := tokenServer(t, &hits, gate)
	store := &memTokens{tok: &oauth2.Token{AccessToken: "a1", RefreshToken: "r1", Expiry: time.Now().Add(-time.Minute)}}
	a := newTestAuth(store, srv.URL)

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := a.AccessToken(context.Background())
			assert.NoError(t, err)
			results[i] = tok
		}()
	}
	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int32(1), hits.Load())
	for _, tok := range results {
		assert.Equal(t, "a2", tok)
	}
	assert.Equal(t, 1, store.saves)
}

func TestAccessTokenNotConnected(t *testing.T) {
	a := newTestAuth(&memTokens{}, "http://unused")
	_, err := a.AccessToken(context.Background())
	assert.ErrorIs(t, err, xero.ErrNotConnected)
}
