// Package auth resolves the shopper behind a request: browser sessions
// established through OIDC, bearer tokens for API clients, or a fixed
// development user.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	baseliboidc "github.com/aggregat4/go-baselib-services/v4/oidc"
	"github.com/coreos/go-oidc/v3/oidc"
)

const defaultSessionTTL = 7 * 24 * time.Hour

type OIDCConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// SessionKey signs and encrypts the session cookie. Empty means a random
	// key, so sessions end when the process restarts.
	SessionKey     string
	SessionTTL     time.Duration
	CookieSecure   bool
	CookieSameSite http.SameSite
	CookieDomain   string

	// FallbackURL is where the callback and logout land. Defaults to "/".
	FallbackURL string
}

func (c OIDCConfig) withDefaults() OIDCConfig {
	if c.SessionTTL <= 0 {
		c.SessionTTL = defaultSessionTTL
	}
	if c.CookieSameSite == 0 {
		c.CookieSameSite = http.SameSiteLaxMode
	}
	if c.FallbackURL == "" {
		c.FallbackURL = "/"
	}
	return c
}

func (c OIDCConfig) validate() error {
	var errs []error
	if c.IssuerURL == "" {
		errs = append(errs, errors.New("oidc issuer url is required"))
	}
	if c.ClientID == "" {
		errs = append(errs, errors.New("oidc client id is required"))
	}
	if c.RedirectURL == "" {
		errs = append(errs, errors.New("oidc redirect url is required"))
	}
	return errors.Join(errs...)
}

// SessionManager signs shoppers in through an OIDC provider and remembers
// them in an encrypted cookie.
type SessionManager struct {
	provider *baseliboidc.OidcConfiguration
	cookies  *cookieJar
	landing  string
}

func NewSessionManager(cfg OIDCConfig) (*SessionManager, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cookies, err := newCookieJar(cfg)
	if err != nil {
		return nil, err
	}
	return &SessionManager{
		provider: baseliboidc.CreateOidcConfiguration(cfg.IssuerURL, cfg.ClientID, cfg.ClientSecret, cfg.RedirectURL),
		cookies:  cookies,
		landing:  cfg.FallbackURL,
	}, nil
}

// LoginMiddleware sends browsers without a session to the provider unless
// skipper matches the request.
func (m *SessionManager) LoginMiddleware(skipper func(r *http.Request) bool) func(http.Handler) http.Handler {
	return m.provider.CreateOidcAuthenticationMiddleware(m.IsAuthenticated, skipper)
}

// CallbackHandler completes the provider redirect and stores the shopper.
func (m *SessionManager) CallbackHandler() http.Handler {
	return m.provider.CreateOidcCallbackHandler(
		baseliboidc.CreateSTDSessionBasedOidcDelegate(m.storeShopper, m.landing))
}

func (m *SessionManager) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = m.cookies.signOut(w, r)
		http.Redirect(w, r, m.landing, http.StatusFound)
	}
}

func (m *SessionManager) IsAuthenticated(r *http.Request) bool {
	_, ok := m.cookies.shopper(r)
	return ok
}

// UserID returns the shopper stored in the session cookie, if any.
func (m *SessionManager) UserID(r *http.Request) (string, bool) {
	shopper, ok := m.cookies.shopper(r)
	return shopper.ID, ok
}

// Shopper returns the full session identity.
func (m *SessionManager) Shopper(r *http.Request) (Shopper, bool) {
	return m.cookies.shopper(r)
}

func (m *SessionManager) storeShopper(w http.ResponseWriter, r *http.Request, idToken *oidc.IDToken) error {
	var claims struct {
		Email string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return fmt.Errorf("read id token claims: %w", err)
	}
	if idToken.Subject == "" {
		return errors.New("id token has no subject")
	}
	return m.cookies.signIn(w, r, Shopper{ID: idToken.Subject, Email: claims.Email})
}
