package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const userIDContextKey contextKey = "auth.user_id"

func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, _ := ctx.Value(userIDContextKey).(string)
	return userID, userID != ""
}

func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// Authenticator attaches the shopper to request contexts. Sources are tried
// in order: bearer token, session cookie, development user. Any of them may
// be nil or empty.
type Authenticator struct {
	Tokens   *TokenIssuer
	Sessions *SessionManager
	DevUser  string
}

// Identify returns the shopper for r. A request carrying an invalid bearer
// token is rejected outright rather than falling back to other sources.
func (a *Authenticator) Identify(r *http.Request) (string, bool) {
	if raw, ok := bearerToken(r); ok {
		if a.Tokens == nil {
			return "", false
		}
		userID, err := a.Tokens.Verify(raw)
		if err != nil {
			return "", false
		}
		return userID, true
	}
	if a.Sessions != nil {
		if userID, ok := a.Sessions.UserID(r); ok {
			return userID, true
		}
	}
	if a.DevUser != "" {
		return a.DevUser, true
	}
	return "", false
}

// WithUser stores the shopper, when there is one, in the request context.
func (a *Authenticator) WithUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID, ok := a.Identify(r); ok {
			r = r.WithContext(ContextWithUserID(r.Context(), userID))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireUser rejects requests without a shopper in their context. It must
// run after WithUser.
func RequireUser(unauthorized http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := UserIDFromContext(r.Context()); !ok {
				unauthorized(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
