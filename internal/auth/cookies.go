package auth

import (
	"errors"
	"fmt"
	"net/http"

	baseliboidc "github.com/aggregat4/go-baselib-services/v4/oidc"
	"github.com/gorilla/sessions"
)

const (
	shopperIDValue    = "shopper_id"
	shopperEmailValue = "shopper_email"
)

// Shopper is the identity kept in a browser session.
type Shopper struct {
	ID    string
	Email string
}

// cookieJar keeps the signed-in shopper in an encrypted cookie. The cookie
// name is the one the OIDC callback flow uses for its own state.
type cookieJar struct {
	store   *sessions.CookieStore
	options sessions.Options
}

func newCookieJar(cfg OIDCConfig) (*cookieJar, error) {
	master, err := decodeSecret(cfg.SessionKey)
	if err != nil {
		return nil, fmt.Errorf("session key: %w", err)
	}
	options := sessions.Options{
		Path:     "/",
		Domain:   cfg.CookieDomain,
		MaxAge:   int(cfg.SessionTTL.Seconds()),
		Secure:   cfg.CookieSecure,
		HttpOnly: true,
		SameSite: cfg.CookieSameSite,
	}
	store := sessions.NewCookieStore(deriveKey(master, "session-auth"), deriveKey(master, "session-enc"))
	jar := &cookieJar{store: store, options: options}
	jar.store.Options = jar.freshOptions()
	jar.store.MaxAge(jar.options.MaxAge)
	return jar, nil
}

func (j *cookieJar) freshOptions() *sessions.Options {
	options := j.options
	return &options
}

func (j *cookieJar) session(r *http.Request) (*sessions.Session, error) {
	return j.store.Get(r, baseliboidc.STDSessionCookieName)
}

// shopper reads the signed-in shopper. Missing, expired or tampered cookies
// all read as signed out.
func (j *cookieJar) shopper(r *http.Request) (Shopper, bool) {
	session, err := j.session(r)
	if err != nil {
		return Shopper{}, false
	}
	id, _ := session.Values[shopperIDValue].(string)
	if id == "" {
		return Shopper{}, false
	}
	email, _ := session.Values[shopperEmailValue].(string)
	return Shopper{ID: id, Email: email}, true
}

func (j *cookieJar) signIn(w http.ResponseWriter, r *http.Request, shopper Shopper) error {
	if shopper.ID == "" {
		return errors.New("shopper id is required")
	}
	// A stale or undecodable cookie still yields a usable new session.
	session, err := j.session(r)
	if session == nil {
		return fmt.Errorf("open session: %w", err)
	}
	session.Options = j.freshOptions()
	session.Values[shopperIDValue] = shopper.ID
	session.Values[shopperEmailValue] = shopper.Email
	return session.Save(r, w)
}

func (j *cookieJar) signOut(w http.ResponseWriter, r *http.Request) error {
	session, _ := j.session(r)
	if session == nil {
		return nil
	}
	session.Options = j.freshOptions()
	session.Options.MaxAge = -1
	return session.Save(r, w)
}
