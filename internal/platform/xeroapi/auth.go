// Package xeroapi holds the Xero OAuth2 token lifecycle and the payroll and
// accounting API calls made with it.
package xeroapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// ExpiryBuffer is how early a token is refreshed before it expires.
const ExpiryBuffer = 5 * time.Minute

const refreshTimeout = 30 * time.Second

var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://login.xero.com/identity/connect/authorize",
	TokenURL:  "https://identity.xero.com/connect/token",
	AuthStyle: oauth2.AuthStyleInHeader,
}

var DefaultScopes = []string{
	"offline_access",
	"payroll.employees",
	"payroll.payruns",
	"payroll.payslip",
	"payroll.settings",
	"accounting.transactions",
}

// TokenStore persists the tenant's token between processes.
type TokenStore interface {
	Load(ctx context.Context) (*oauth2.Token, error)
	Save(ctx context.Context, tok *oauth2.Token) error
}

type Auth struct {
	config *oauth2.Config
	store  TokenStore
	group  singleflight.Group
	now    func() time.Time

	mu    sync.Mutex
	token *oauth2.Token
}

func NewAuth(clientID, clientSecret, redirectURL string, store TokenStore) *Auth {
	return &Auth{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       DefaultScopes,
			Endpoint:     Endpoint,
		},
		store: store,
		now:   time.Now,
	}
}

func (a *Auth) AuthCodeURL(state string) string {
	return a.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

func (a *Auth) Exchange(ctx context.Context, code string) error {
	tok, err := a.config.Exchange(ctx, code)
	if err != nil {
		return err
	}
	if err := a.store.Save(ctx, tok); err != nil {
		return fmt.Errorf("save xero token: %w", err)
	}
	a.mu.Lock()
	a.token = tok
	a.mu.Unlock()
	return nil
}

func (a *Auth) fresh(tok *oauth2.Token) bool {
	if tok == nil || tok.AccessToken == "" {
		return false
	}
	return tok.Expiry.IsZero() || a.now().Add(ExpiryBuffer).Before(tok.Expiry)
}

// AccessToken returns a token valid for at least ExpiryBuffer. Concurrent
// callers share one refresh.
func (a *Auth) AccessToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	tok := a.token
	a.mu.Unlock()
	if a.fresh(tok) {
		return tok.AccessToken, nil
	}

	v, err, _ := a.group.Do("refresh", func() (any, error) {
		// Shared by every waiter, so one caller's cancellation must not fail the rest.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return a.refresh(rctx)
	})
	if err != nil {
		return "", err
	}
	return v.(*oauth2.Token).AccessToken, nil
}

func (a *Auth) refresh(ctx context.Context) (*oauth2.Token, error) {
	// Another instance may already have refreshed.
	stored, err := a.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if a.fresh(stored) {
		a.remember(stored)
		return stored, nil
	}
	if stored.RefreshToken == "" {
		return nil, errors.New("xero token expired and no refresh token is stored")
	}

	src := a.config.TokenSource(ctx, &oauth2.Token{RefreshToken: stored.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh xero token: %w", err)
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = stored.RefreshToken
	}
	if err := a.store.Save(ctx, tok); err != nil {
		return nil, fmt.Errorf("save xero token: %w", err)
	}
	slog.Info("xero token refreshed", "expiry", tok.Expiry)
	a.remember(tok)
	return tok, nil
}

func (a *Auth) remember(tok *oauth2.Token) {
	a.mu.Lock()
	a.token = tok
	a.mu.Unlock()
}
