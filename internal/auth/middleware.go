package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/fedutinova/minedash/internal/access"
	"github.com/fedutinova/minedash/internal/common"
)

type ctxKey string

const (
	ctxKeySession ctxKey = "session"
)

const CookieName = "minedash_session"

const (
	LoginPath     = "/login"
	DashboardPath = "/dashboard"
)

func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKeySession).(*Session)
	return s, ok
}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKeySession, s)
}

// SetSessionCookie writes the signed token as an HttpOnly cookie.
func SetSessionCookie(w http.ResponseWriter, token string, expires time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionMiddleware attaches the verified session to the request context.
// A missing, invalid or revoked cookie leaves the request anonymous; it is
// never rejected here.
func SessionMiddleware(secret, issuer string, revoker Revoker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(CookieName)
			if err != nil || c.Value == "" {
				next.ServeHTTP(w, r)
				return
			}
			sess, err := ParseSessionToken(secret, issuer, c.Value)
			if err != nil {
				slog.Debug("session cookie rejected", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if revoker != nil {
				revoked, err := revoker.IsSessionRevoked(r.Context(), sess.ID)
				if err != nil {
					// revocation store unreachable: treat as anonymous
					slog.Warn("session revocation lookup failed", "session_id", sess.ID, "error", err)
					next.ServeHTTP(w, r)
					return
				}
				if revoked {
					slog.Debug("session cookie rejected", "session_id", sess.ID, "error", common.ErrSessionRevoked)
					next.ServeHTTP(w, r)
					return
				}
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

// RequireSession sends anonymous requests to the login page.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); !ok {
			http.Redirect(w, r, LoginPath, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireCapability lets the request through only if the session's role is
// granted required. Anonymous requests go to the login page; denied ones go
// back to the dashboard without reaching next.
func RequireCapability(gate *access.Gate, required access.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := FromContext(r.Context())
			if !ok {
				http.Redirect(w, r, LoginPath, http.StatusSeeOther)
				return
			}
			if err := gate.Check(sess.Role, required); err != nil {
				level := slog.LevelInfo
				if errors.Is(err, common.ErrUnknownRole) {
					level = slog.LevelWarn
				}
				slog.Log(r.Context(), level, "capability denied",
					"user", sess.Username,
					"role", sess.Role,
					"capability", required.String(),
					"path", r.URL.Path,
					"reason", err)
				http.Redirect(w, r, DashboardPath, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
