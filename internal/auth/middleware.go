package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gitinspire/gitinspire-server/internal/model"
	"github.com/gitinspire/gitinspire-server/internal/repository"
)

const (
	accessCookieName  = "access_token"
	refreshCookieName = "refresh_token"

	// CSRFHeader is the request header that must echo the csrf claim of
	// the access token on every state-changing request.
	CSRFHeader = "X-CSRF-Token"
)

// contextKey is unexported so only this package can read or write the
// values it stores in a request context.
type contextKey string

const userKey contextKey = "user"

// UserFromContext retrieves the authenticated user resolved by the
// Authenticator middleware. Returns (nil, false) for anonymous requests.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil
}

// ContextWithUser stores a resolved user, the counterpart to
// UserFromContext.
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// SetSessionCookies installs the access and refresh tokens as HttpOnly
// cookies. The CSRF value travels in the response body instead, so that
// scripts can read it while the tokens stay out of reach.
func SetSessionCookies(w http.ResponseWriter, access, refresh string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookieName,
		Value:    access,
		Path:     "/",
		MaxAge:   int(AccessTokenTTL / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    refresh,
		Path:     "/",
		MaxAge:   int(RefreshTokenTTL / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookies expires both session cookies.
func ClearSessionCookies(w http.ResponseWriter, secure bool) {
	for _, name := range []string{accessCookieName, refreshCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// RefreshTokenFromRequest reads the refresh cookie, for the explicit
// token refresh endpoint.
func RefreshTokenFromRequest(r *http.Request) (string, error) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}

// Authenticator resolves the session on every request. A valid access
// cookie loads the user row into the request context; a missing or
// invalid one leaves the request anonymous and lets the route guards
// decide. State-changing requests from an authenticated session must
// echo the token's csrf claim in the X-CSRF-Token header.
//
// When a valid access token is inside the rotation window and the
// refresh cookie still verifies, a fresh access token is set on the
// response so active sessions never hit a hard expiry.
func Authenticator(tokens *TokenService, users repository.UserRepository, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(accessCookieName)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			session, err := tokens.ValidateAccess(cookie.Value)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			if stateChanging(r.Method) && r.Header.Get(CSRFHeader) != session.CSRF {
				writeMessage(w, http.StatusForbidden, "Invalid CSRF token.")
				return
			}

			user, err := users.GetUser(r.Context(), session.UserID)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			if session.ExpiringSoon(time.Now()) {
				rotate(w, r, tokens, session.UserID, secure)
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

// rotate reissues the access cookie when the refresh token still
// verifies for the same user. Failures are silent; the session simply
// expires on schedule.
func rotate(w http.ResponseWriter, r *http.Request, tokens *TokenService, userID int64, secure bool) {
	refreshCookie, err := r.Cookie(refreshCookieName)
	if err != nil {
		return
	}
	refreshID, err := tokens.ValidateRefresh(refreshCookie.Value)
	if err != nil || refreshID != userID {
		return
	}

	access, csrf, err := tokens.GenerateAccess(userID)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookieName,
		Value:    access,
		Path:     "/",
		MaxAge:   int(AccessTokenTTL / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Set(CSRFHeader, csrf)
}

func stateChanging(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// RequireAuth rejects anonymous requests.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			writeMessage(w, http.StatusUnauthorized, "User is not authenticated.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NotBanned rejects banned accounts. Anonymous requests fail the same
// way RequireAuth does.
func NotBanned(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			writeMessage(w, http.StatusUnauthorized, "User is not authenticated.")
			return
		}
		if user.Status == model.StatusBanned {
			writeMessage(w, http.StatusForbidden, "Banned user is not allowed.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin admits admins and the owner.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			writeMessage(w, http.StatusUnauthorized, "User is not authenticated.")
			return
		}
		if user.Status.Level() < model.StatusAdmin.Level() {
			writeMessage(w, http.StatusForbidden, "Admin only.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireOwner admits only the owner.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			writeMessage(w, http.StatusUnauthorized, "User is not authenticated.")
			return
		}
		if user.Status != model.StatusOwner {
			writeMessage(w, http.StatusForbidden, "Owner only.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeMessage emits the same {"error","message"} shape the handler
// package uses, so clients parse one error format everywhere. The
// guards only ever answer 401 or 403.
func writeMessage(w http.ResponseWriter, status int, msg string) {
	errType := "unauthorized"
	if status == http.StatusForbidden {
		errType = "forbidden"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":%q,"message":%q}`, errType, msg)
}
