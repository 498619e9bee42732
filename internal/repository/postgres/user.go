package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/sakif/contacts-api/internal/apperror"
	"github.com/sakif/contacts-api/internal/model"
	"github.com/sakif/contacts-api/internal/repository"
)

var _ repository.UserRepository = (*UserStore)(nil)

type UserStore struct {
	conn *sql.DB
}

const userColumns = `id, email, hashed_password, role, avatar, is_active, is_verified, verification_token, created_at`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var (
		u      model.User
		role   string
		avatar sql.NullString
		token  sql.NullString
	)
	if err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &role, &avatar,
		&u.IsActive, &u.IsVerified, &token, &u.CreatedAt,
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

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(s.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("postgres: getting user by email: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := scanUser(s.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("postgres: getting user %d: %w", id, err)
	}
	return u, nil
}

// Create inserts the user and reads back the generated id and timestamp.
// Concurrent inserts of the same email race on the UNIQUE index; the loser
// gets SQLSTATE 23505, reported as Conflict.
func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	if user.Role == "" {
		user.Role = model.RoleUser
	}

	err := s.conn.QueryRowContext(ctx,
		`INSERT INTO users (email, hashed_password, role, avatar, is_active, is_verified, verification_token)
		 VALUES ($1, $2, $3::user_role, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		nullString(user.Avatar),
		user.IsActive,
		user.IsVerified,
		nullString(user.VerificationToken),
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", "email", user.Email)
		}
		return fmt.Errorf("postgres: inserting user: %w", err)
	}
	return nil
}

func (s *UserStore) SetVerificationToken(ctx context.Context, id int64, token string) error {
	return s.exec(ctx, id, `UPDATE users SET verification_token = $1 WHERE id = $2`, token, id)
}

func (s *UserStore) MarkVerified(ctx context.Context, id int64) error {
	return s.exec(ctx, id, `UPDATE users SET is_verified = TRUE, verification_token = NULL WHERE id = $1`, id)
}

func (s *UserStore) SetAvatar(ctx context.Context, id int64, path string) error {
	return s.exec(ctx, id, `UPDATE users SET avatar = $1 WHERE id = $2`, path, id)
}

func (s *UserStore) SetRole(ctx context.Context, id int64, role model.Role) error {
	if !role.Valid() {
		return apperror.ValidationFailed("role", fmt.Sprintf("unknown role %q", role))
	}
	return s.exec(ctx, id, `UPDATE users SET role = $1::user_role WHERE id = $2`, string(role), id)
}

func (s *UserStore) exec(ctx context.Context, id int64, query string, args ...any) error {
	res, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("postgres: updating user %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("user", strconv.FormatInt(id, 10))
	}
	return nil
}
