package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/contacts-api/internal/apperror"
	"github.com/sakif/contacts-api/internal/model"
	"github.com/sakif/contacts-api/internal/repository"
)

var _ repository.ContactRepository = (*ContactStore)(nil)

// ContactStore is the Postgres contact directory. Every statement is scoped
// by owner_id.
type ContactStore struct {
	conn *sql.DB
}

const contactColumns = `id, first_name, last_name, email, phone, birthday, additional_info, owner_id`

func scanContact(row interface{ Scan(...any) error }) (*model.Contact, error) {
	var (
		c        model.Contact
		birthday time.Time
		info     sql.NullString
	)
	if err := row.Scan(
		&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone,
		&birthday, &info, &c.OwnerID,
	); err != nil {
		return nil, err
	}
	c.Birthday = model.DateOf(birthday)
	c.AdditionalInfo = stringPtr(info)
	return &c, nil
}

func (s *ContactStore) query(ctx context.Context, query string, args ...any) ([]model.Contact, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing contacts: %w", err)
	}
	defer rows.Close()

	contacts := make([]model.Contact, 0)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scanning contact row: %w", err)
		}
		contacts = append(contacts, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating contacts: %w", err)
	}
	return contacts, nil
}

func (s *ContactStore) ListByOwner(ctx context.Context, ownerID int64) ([]model.Contact, error) {
	return s.query(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE owner_id = $1 ORDER BY id`, ownerID)
}

func (s *ContactStore) GetByID(ctx context.Context, id, ownerID int64) (*model.Contact, error) {
	c, err := scanContact(s.conn.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = $1 AND owner_id = $2`, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("contact", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("postgres: getting contact %d: %w", id, err)
	}
	return c, nil
}

func (s *ContactStore) Create(ctx context.Context, ownerID int64, f model.ContactFields) (*model.Contact, error) {
	c := &model.Contact{OwnerID: ownerID}
	c.Apply(f)

	err := s.conn.QueryRowContext(ctx,
		`INSERT INTO contacts (first_name, last_name, email, phone, birthday, additional_info, owner_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		f.FirstName, f.LastName, f.Email, f.Phone, f.Birthday.Time, nullString(f.AdditionalInfo), ownerID,
	).Scan(&c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperror.Conflict("contact", "email", f.Email)
		}
		return nil, fmt.Errorf("postgres: creating contact: %w", err)
	}
	return c, nil
}

func (s *ContactStore) Update(ctx context.Context, id, ownerID int64, f model.ContactFields) (*model.Contact, error) {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE contacts
		 SET first_name = $1, last_name = $2, email = $3, phone = $4, birthday = $5, additional_info = $6
		 WHERE id = $7 AND owner_id = $8`,
		f.FirstName, f.LastName, f.Email, f.Phone, f.Birthday.Time, nullString(f.AdditionalInfo),
		id, ownerID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperror.Conflict("contact", "email", f.Email)
		}
		return nil, fmt.Errorf("postgres: updating contact %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("postgres: checking rows affected: %w", err)
	}
	if n == 0 {
		return nil, apperror.NotFound("contact", strconv.FormatInt(id, 10))
	}

	c := &model.Contact{ID: id, OwnerID: ownerID}
	c.Apply(f)
	return c, nil
}

func (s *ContactStore) Delete(ctx context.Context, id, ownerID int64) error {
	res, err := s.conn.ExecContext(ctx,
		`DELETE FROM contacts WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("postgres: deleting contact %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("contact", strconv.FormatInt(id, 10))
	}
	return nil
}

func (s *ContactStore) Search(ctx context.Context, ownerID int64, f repository.ContactFilter) ([]model.Contact, error) {
	where := []string{"owner_id = $1"}
	args := []any{ownerID}

	add := func(column, term string) {
		if term == "" {
			return
		}
		args = append(args, likePattern(term))
		where = append(where, fmt.Sprintf("%s ILIKE $%d", column, len(args)))
	}
	add("first_name", f.FirstName)
	add("last_name", f.LastName)
	add("email", f.Email)

	return s.query(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE `+strings.Join(where, " AND ")+` ORDER BY id`,
		args...)
}
