// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data, similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Role is the closed set of access levels a user can hold.
//
// The database stores the lower-case string. Postgres enforces it with the
// user_role enum type, SQLite with a CHECK constraint.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// ParseRole accepts either case ("ADMIN", "admin") and rejects anything else.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("model: unknown role %q", s)
	}
	return r, nil
}

// User represents a registered account.
//
// WHY POINTERS FOR Avatar AND VerificationToken?
// Both columns are nullable. A *string distinguishes "never set" (nil) from
// "set to empty", and encodes as JSON null instead of "".
//
// PasswordHash and VerificationToken carry `json:"-"` so they can never leak
// through an API response, even if a handler encodes the whole struct.
type User struct {
	ID                int64     `json:"id"          db:"id"`
	Email             string    `json:"email"       db:"email"`
	PasswordHash      string    `json:"-"           db:"hashed_password"`
	Role              Role      `json:"role"        db:"role"`
	Avatar            *string   `json:"avatar"      db:"avatar"`
	IsActive          bool      `json:"is_active"   db:"is_active"`
	IsVerified        bool      `json:"is_verified" db:"is_verified"`
	VerificationToken *string   `json:"-"           db:"verification_token"`
	CreatedAt         time.Time `json:"created_at"  db:"created_at"`
}

// Session returns the subset of the user that is safe to cache between requests.
func (u *User) Session() *SessionUser {
	return &SessionUser{
		ID:         u.ID,
		Email:      u.Email,
		IsVerified: u.IsVerified,
		IsActive:   u.IsActive,
		Avatar:     u.Avatar,
		Role:       u.Role,
	}
}

// SessionUser is the identity attached to an authenticated request.
//
// It is what the session cache stores under "user:<email>", so the JSON field
// names are part of the cache format and must stay stable.
type SessionUser struct {
	ID         int64   `json:"id"`
	Email      string  `json:"email"`
	IsVerified bool    `json:"is_verified"`
	IsActive   bool    `json:"is_active"`
	Avatar     *string `json:"avatar"`
	Role       Role    `json:"role"`
}
