package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/contacts-api/internal/apperror"
	"github.com/sakif/contacts-api/internal/auth"
	"github.com/sakif/contacts-api/internal/model"
)

// SessionResolver resolves a bearer token to its user.
// *service.SessionResolver implements it.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*model.SessionUser, error)
}

// contextKey is unexported so no other package can collide with it.
type contextKey struct{}

var userKey contextKey

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u *model.SessionUser) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFromContext returns the authenticated user, or nil outside an
// Authenticate-protected route.
func UserFromContext(ctx context.Context) *model.SessionUser {
	u, _ := ctx.Value(userKey).(*model.SessionUser)
	return u
}

// Authenticate resolves the bearer token, runs guards on the result and
// stores the user in the request context.
//
//   - missing, malformed or expired token → 401 with WWW-Authenticate: Bearer
//   - a guard denies                      → 403 with the guard's reason
//   - storage failure                     → 500
func Authenticate(resolver SessionResolver, logger *slog.Logger, guards ...auth.Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.BearerToken(r)
			if token == "" {
				unauthorized(w, "not authenticated")
				return
			}

			user, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				var appErr *apperror.AppError
				if errors.Is(err, apperror.ErrUnauthorized) && errors.As(err, &appErr) {
					unauthorized(w, appErr.Message)
					return
				}
				logger.Error("resolving session failed", slog.String("error", err.Error()))
				writeError(w, http.StatusInternalServerError, "internal_error", "An internal error occurred")
				return
			}

			if d := auth.Evaluate(user, guards...); !d.Allowed {
				writeError(w, http.StatusForbidden, "forbidden", d.Reason)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// Require runs additional guards on a route that is already behind
// Authenticate.
func Require(guards ...auth.Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if user == nil {
				unauthorized(w, "not authenticated")
				return
			}
			if d := auth.Evaluate(user, guards...); !d.Allowed {
				writeError(w, http.StatusForbidden, "forbidden", d.Reason)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, "unauthorized", message)
}

// writeError mirrors the handler package's error body:
// {"error": "<kind>", "message": "<text>"}.
func writeError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   kind,
		"message": message,
	})
}
