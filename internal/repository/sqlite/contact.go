package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sakif/contacts-api/internal/apperror"
	"github.com/sakif/contacts-api/internal/model"
	"github.com/sakif/contacts-api/internal/repository"
)

var _ repository.ContactRepository = (*ContactStore)(nil)

// ContactStore is the SQLite contact directory.
//
// OWNER SCOPING:
// Every query carries "owner_id = ?". A contact id that exists but belongs to
// someone else is indistinguishable from one that does not exist at all.
type ContactStore struct {
	conn *sql.DB
}

const contactColumns = `id, first_name, last_name, email, phone, birthday, additional_info, owner_id`

func scanContact(row interface{ Scan(...any) error }) (*model.Contact, error) {
	var (
		c        model.Contact
		birthday string
		info     sql.NullString
	)
	if err := row.Scan(
		&c.ID,
		&c.FirstName,
		&c.LastName,
		&c.Email,
		&c.Phone,
		&birthday,
		&info,
		&c.OwnerID,
	); err != nil {
		return nil, err
	}

	d, err := model.ParseDate(birthday)
	if err != nil {
		return nil, fmt.Errorf("sqlite: contact %d: %w", c.ID, err)
	}
	c.Birthday = d
	c.AdditionalInfo = stringPtr(info)
	return &c, nil
}

func (s *ContactStore) query(ctx context.Context, query string, args ...any) ([]model.Contact, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing contacts: %w", err)
	}
	defer rows.Close()

	// Non-nil so an empty result encodes as [] rather than null.
	contacts := make([]model.Contact, 0)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning contact row: %w", err)
		}
		contacts = append(contacts, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating contacts: %w", err)
	}
	return contacts, nil
}

func (s *ContactStore) ListByOwner(ctx context.Context, ownerID int64) ([]model.Contact, error) {
	return s.query(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE owner_id = ? ORDER BY id`, ownerID)
}

func (s *ContactStore) GetByID(ctx context.Context, id, ownerID int64) (*model.Contact, error) {
	c, err := scanContact(s.conn.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = ? AND owner_id = ?`, id, ownerID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("contact", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting contact %d: %w", id, err)
	}
	return c, nil
}

func (s *ContactStore) Create(ctx context.Context, ownerID int64, f model.ContactFields) (*model.Contact, error) {
	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO contacts (first_name, last_name, email, phone, birthday, additional_info, owner_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.FirstName, f.LastName, f.Email, f.Phone, f.Birthday.String(), nullString(f.AdditionalInfo), ownerID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperror.Conflict("contact", "email", f.Email)
		}
		return nil, fmt.Errorf("sqlite: creating contact: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading new contact id: %w", err)
	}

	c := &model.Contact{ID: id, OwnerID: ownerID}
	c.Apply(f)
	return c, nil
}

func (s *ContactStore) Update(ctx context.Context, id, ownerID int64, f model.ContactFields) (*model.Contact, error) {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE contacts
		 SET first_name = ?, last_name = ?, email = ?, phone = ?, birthday = ?, additional_info = ?
		 WHERE id = ? AND owner_id = ?`,
		f.FirstName, f.LastName, f.Email, f.Phone, f.Birthday.String(), nullString(f.AdditionalInfo),
		id, ownerID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperror.Conflict("contact", "email", f.Email)
		}
		return nil, fmt.Errorf("sqlite: updating contact %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: checking rows affected: %w", err)
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
		`DELETE FROM contacts WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting contact %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("contact", strconv.FormatInt(id, 10))
	}
	return nil
}

// Search builds the WHERE clause from whichever filter fields are set.
// Values are always bound as parameters; only the fixed column names are
// concatenated into the SQL.
func (s *ContactStore) Search(ctx context.Context, ownerID int64, f repository.ContactFilter) ([]model.Contact, error) {
	where := []string{"owner_id = ?"}
	args := []any{ownerID}

	add := func(column, term string) {
		if term == "" {
			return
		}
		where = append(where, "ulower("+column+`) LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(term))
	}
	add("first_name", f.FirstName)
	add("last_name", f.LastName)
	add("email", f.Email)

	return s.query(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE `+strings.Join(where, " AND ")+` ORDER BY id`,
		args...)
}
