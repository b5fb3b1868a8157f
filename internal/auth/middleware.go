package auth

import (
	"context"
	"net/http"
	"time"

	"antspend/internal/core"
)

type contextKey struct{}

var userKey contextKey

// UserFromContext returns the authenticated user set by Middleware.
func UserFromContext(ctx context.Context) (core.User, bool) {
	u, ok := ctx.Value(userKey).(core.User)
	return u, ok
}

// WithUser stores a user in the context, for handlers under the middleware
// and for tests.
func WithUser(ctx context.Context, u core.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// Middleware requires a valid session cookie and puts the user in the
// request context. Browsers get redirected to /login; HTMX requests get an
// HX-Redirect header so the client swaps the whole page.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookie)
		if err != nil {
			redirectToLogin(w, r)
			return
		}

		user, err := s.Authenticate(r.Context(), cookie.Value, time.Now())
		if err != nil {
			redirectToLogin(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/login")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
