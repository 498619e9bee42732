package auth

import (
	"net/http"
	"strings"

	"github.com/sakif/contacts-api/internal/model"
)

// Decision is the outcome of a Guard: either Allow or Deny with a reason that
// is safe to show to the client.
type Decision struct {
	Allowed bool
	Reason  string
}

func Allow() Decision { return Decision{Allowed: true} }

func Deny(reason string) Decision { return Decision{Reason: reason} }

// Guard inspects an already authenticated user and decides whether the request
// may proceed. Guards are composed per route, see Evaluate.
type Guard func(u *model.SessionUser) Decision

// RequireActive denies deactivated accounts.
func RequireActive(u *model.SessionUser) Decision {
	if !u.IsActive {
		return Deny("user is inactive")
	}
	return Allow()
}

// RequireVerified denies accounts that have not confirmed their email.
func RequireVerified(u *model.SessionUser) Decision {
	if !u.IsVerified {
		return Deny("user is not verified")
	}
	return Allow()
}

// RequireRole denies users whose role is not role.
func RequireRole(role model.Role) Guard {
	return func(u *model.SessionUser) Decision {
		if u.Role != role {
			return Deny("access denied: " + string(role) + "s only")
		}
		return Allow()
	}
}

// RequireAdmin is RequireRole(model.RoleAdmin).
var RequireAdmin = RequireRole(model.RoleAdmin)

// Evaluate runs guards in order and returns the first denial, or Allow.
func Evaluate(u *model.SessionUser, guards ...Guard) Decision {
	for _, g := range guards {
		if d := g(u); !d.Allowed {
			return d
		}
	}
	return Allow()
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
// The scheme is matched case-insensitively. It returns "" when absent.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
