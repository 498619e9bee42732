package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sakif/contacts-api/internal/apperror"
	"github.com/sakif/contacts-api/internal/model"
	"github.com/sakif/contacts-api/internal/repository"
)

// compile-time check that *UserStore implements repository.UserRepository
var _ repository.UserRepository = (*UserStore)(nil)

// UserStore is the SQLite user directory.
type UserStore struct {
	conn *sql.DB
}

const userColumns = `id, email, hashed_password, role, avatar, is_active, is_verified, verification_token, created_at`

// scanUser reads one row selected with userColumns.
// row is either *sql.Row or *sql.Rows; both have Scan.
func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var (
		u      model.User
		role   string
		avatar sql.NullString
		token  sql.NullString
	)
	if err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&role,
		&avatar,
		&u.IsActive,
		&u.IsVerified,
		&token,
		&u.CreatedAt,
	); err != nil {
		return nil, err
	}
	r, err := model.ParseRole(role)
	if err != nil {
		return nil, err
	}
	u.Role = r
	u.Avatar = stringPtr(avatar)
	u.VerificationToken = stringPtr(token)
	return &u, nil
}

// GetByEmail finds a user by exact email.
// Emails are normalised to lower case by the service before they get here.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(s.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := scanUser(s.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting user %d: %w", id, err)
	}
	return u, nil
}

// Create inserts a new user.
//
// Role defaults to "user" and IsActive to true when the caller left them at
// their zero values. Two concurrent inserts of the same email are serialised
// by SQLite's write lock; the loser gets a UNIQUE violation, mapped to Conflict.
func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	if user.Role == "" {
		user.Role = model.RoleUser
	}
	user.CreatedAt = time.Now().UTC()

	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO users (email, hashed_password, role, avatar, is_active, is_verified, verification_token, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		nullString(user.Avatar),
		user.IsActive,
		user.IsVerified,
		nullString(user.VerificationToken),
		user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", "email", user.Email)
		}
		return fmt.Errorf("sqlite: inserting user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new user id: %w", err)
	}
	user.ID = id
	return nil
}

func (s *UserStore) SetVerificationToken(ctx context.Context, id int64, token string) error {
	return s.exec(ctx, id, `UPDATE users SET verification_token = ? WHERE id = ?`, token, id)
}

func (s *UserStore) MarkVerified(ctx context.Context, id int64) error {
	return s.exec(ctx, id, `UPDATE users SET is_verified = 1, verification_token = NULL WHERE id = ?`, id)
}

func (s *UserStore) SetAvatar(ctx context.Context, id int64, path string) error {
	return s.exec(ctx, id, `UPDATE users SET avatar = ? WHERE id = ?`, path, id)
}

func (s *UserStore) SetRole(ctx context.Context, id int64, role model.Role) error {
	if !role.Valid() {
		return apperror.ValidationFailed("role", fmt.Sprintf("unknown role %q", role))
	}
	return s.exec(ctx, id, `UPDATE users SET role = ? WHERE id = ?`, string(role), id)
}

// exec runs a single-row UPDATE and reports NotFound when no row matched.
func (s *UserStore) exec(ctx context.Context, id int64, query string, args ...any) error {
	res, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("user", strconv.FormatInt(id, 10))
	}
	return nil
}
