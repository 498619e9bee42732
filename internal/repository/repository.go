// Package repository defines the storage contracts the service layer depends on.
//
// Two implementations live in sub-packages: sqlite (local development and
// tests) and postgres (production). Both report missing rows as
// apperror.ErrNotFound and unique violations as apperror.ErrConflict, so the
// service layer never sees a driver error type.
package repository

import (
	"context"

	"github.com/sakif/contacts-api/internal/model"
)

// UserRepository is the user directory. Every mutation is a single statement,
// so it either commits completely or not at all.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	// Create inserts user and fills in ID and CreatedAt. A duplicate email
	// yields apperror.ErrConflict.
	Create(ctx context.Context, user *model.User) error
	SetVerificationToken(ctx context.Context, id int64, token string) error
	// MarkVerified sets is_verified and clears the verification token.
	MarkVerified(ctx context.Context, id int64) error
	SetAvatar(ctx context.Context, id int64, path string) error
	SetRole(ctx context.Context, id int64, role model.Role) error
}

// ContactFilter holds the optional search terms. Empty fields are ignored;
// the rest are AND-combined case-insensitive substring matches.
type ContactFilter struct {
	FirstName string
	LastName  string
	Email     string
}

// IsEmpty reports whether no term is set.
func (f ContactFilter) IsEmpty() bool {
	return f.FirstName == "" && f.LastName == "" && f.Email == ""
}

// ContactRepository is the contact directory. Every method takes the owner's
// id and never reads or writes another owner's rows.
type ContactRepository interface {
	ListByOwner(ctx context.Context, ownerID int64) ([]model.Contact, error)
	GetByID(ctx context.Context, id, ownerID int64) (*model.Contact, error)
	Create(ctx context.Context, ownerID int64, fields model.ContactFields) (*model.Contact, error)
	// Update replaces all mutable fields. ErrNotFound when the contact does
	// not exist or belongs to someone else.
	Update(ctx context.Context, id, ownerID int64, fields model.ContactFields) (*model.Contact, error)
	Delete(ctx context.Context, id, ownerID int64) error
	Search(ctx context.Context, ownerID int64, filter ContactFilter) ([]model.Contact, error)
}

// Store bundles both directories over one database handle.
type Store interface {
	Users() UserRepository
	Contacts() ContactRepository
	Ping(ctx context.Context) error
	Close() error
}
