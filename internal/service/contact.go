// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Every ContactService method takes the owner's id from the authenticated
// session, never from the request body or URL. That is what keeps one
// user's address book invisible to everyone else.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/contacts-api/internal/apperror"
	"github.com/sakif/contacts-api/internal/model"
	"github.com/sakif/contacts-api/internal/repository"
)

// Validation constants.
const (
	MaxNameLength        = 50
	MaxPhoneLength       = 30
	MaxEmailLength       = 254
	MaxAdditionalInfoLen = 500

	DefaultBirthdayWindow = 7
	MaxBirthdayWindow     = 365
)

// ContactService handles business logic for contacts.
type ContactService struct {
	repo   repository.ContactRepository
	logger *slog.Logger
	now    func() time.Time
}

// ContactOption configures a ContactService.
type ContactOption func(*ContactService)

// WithNow replaces the clock used for "today" in UpcomingBirthdays.
func WithNow(now func() time.Time) ContactOption {
	return func(s *ContactService) { s.now = now }
}

func NewContactService(repo repository.ContactRepository, logger *slog.Logger, opts ...ContactOption) *ContactService {
	s := &ContactService{repo: repo, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ContactService) List(ctx context.Context, ownerID int64) ([]model.Contact, error) {
	contacts, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("service/contact: listing contacts: %w", err)
	}
	return contacts, nil
}

func (s *ContactService) Get(ctx context.Context, ownerID, id int64) (*model.Contact, error) {
	c, err := s.repo.GetByID(ctx, id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("service/contact: getting contact %d: %w", id, err)
	}
	return c, nil
}

func (s *ContactService) Create(ctx context.Context, ownerID int64, f model.ContactFields) (*model.Contact, error) {
	f, err := normalizeFields(f)
	if err != nil {
		return nil, err
	}

	c, err := s.repo.Create(ctx, ownerID, f)
	if err != nil {
		return nil, fmt.Errorf("service/contact: creating contact: %w", err)
	}

	s.logger.Info("contact created",
		slog.Int64("contactID", c.ID),
		slog.Int64("ownerID", ownerID),
	)
	return c, nil
}

// Update replaces every mutable field of the contact.
func (s *ContactService) Update(ctx context.Context, ownerID, id int64, f model.ContactFields) (*model.Contact, error) {
	f, err := normalizeFields(f)
	if err != nil {
		return nil, err
	}

	c, err := s.repo.Update(ctx, id, ownerID, f)
	if err != nil {
		return nil, fmt.Errorf("service/contact: updating contact %d: %w", id, err)
	}

	s.logger.Info("contact updated",
		slog.Int64("contactID", id),
		slog.Int64("ownerID", ownerID),
	)
	return c, nil
}

// Delete removes the contact. A missing or foreign id is ErrNotFound and
// changes nothing.
func (s *ContactService) Delete(ctx context.Context, ownerID, id int64) error {
	if err := s.repo.Delete(ctx, id, ownerID); err != nil {
		return fmt.Errorf("service/contact: deleting contact %d: %w", id, err)
	}

	s.logger.Info("contact deleted",
		slog.Int64("contactID", id),
		slog.Int64("ownerID", ownerID),
	)
	return nil
}

// Search matches contacts by case-insensitive substrings of first name,
// last name and email. Empty terms are ignored; an empty filter lists every
// contact. No match at all is reported as ErrNotFound.
func (s *ContactService) Search(ctx context.Context, ownerID int64, filter repository.ContactFilter) ([]model.Contact, error) {
	filter = repository.ContactFilter{
		FirstName: strings.TrimSpace(filter.FirstName),
		LastName:  strings.TrimSpace(filter.LastName),
		Email:     strings.TrimSpace(filter.Email),
	}

	var (
		contacts []model.Contact
		err      error
	)
	if filter.IsEmpty() {
		contacts, err = s.repo.ListByOwner(ctx, ownerID)
	} else {
		contacts, err = s.repo.Search(ctx, ownerID, filter)
	}
	if err != nil {
		return nil, fmt.Errorf("service/contact: searching contacts: %w", err)
	}
	if len(contacts) == 0 {
		return nil, &apperror.AppError{
			Err:     apperror.ErrNotFound,
			Message: "no contacts match the search",
		}
	}
	return contacts, nil
}

// UpcomingBirthdays lists contacts with a birthday between today and
// today+days, both inclusive. days must be within 1..365.
func (s *ContactService) UpcomingBirthdays(ctx context.Context, ownerID int64, days int) ([]model.Contact, error) {
	if days < 1 {
		return nil, apperror.ValidationFailed("days", "period must be at least 1 day")
	}
	if days > MaxBirthdayWindow {
		return nil, apperror.ValidationFailed("days",
			"period must be at most "+strconv.Itoa(MaxBirthdayWindow)+" days")
	}

	contacts, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("service/contact: listing contacts: %w", err)
	}

	start := today(s.now)
	return UpcomingBirthdays(contacts, start, start.AddDays(days)), nil
}

// normalizeFields trims the text fields and checks the ones the schema
// requires.
func normalizeFields(f model.ContactFields) (model.ContactFields, error) {
	f.FirstName = strings.TrimSpace(f.FirstName)
	f.LastName = strings.TrimSpace(f.LastName)
	f.Email = strings.ToLower(strings.TrimSpace(f.Email))
	f.Phone = strings.TrimSpace(f.Phone)

	required := []struct {
		field, value string
		max          int
	}{
		{"first_name", f.FirstName, MaxNameLength},
		{"last_name", f.LastName, MaxNameLength},
		{"email", f.Email, MaxEmailLength},
		{"phone", f.Phone, MaxPhoneLength},
	}
	for _, r := range required {
		if r.value == "" {
			return f, apperror.ValidationFailed(r.field, r.field+" is required")
		}
		if len(r.value) > r.max {
			return f, apperror.ValidationFailed(r.field,
				fmt.Sprintf("%s must be at most %d characters", r.field, r.max))
		}
	}

	if f.Birthday.IsZero() {
		return f, apperror.ValidationFailed("birthday", "birthday is required")
	}

	if f.AdditionalInfo != nil {
		info := strings.TrimSpace(*f.AdditionalInfo)
		if len(info) > MaxAdditionalInfoLen {
			return f, apperror.ValidationFailed("additional_info",
				fmt.Sprintf("additional_info must be at most %d characters", MaxAdditionalInfoLen))
		}
		if info == "" {
			f.AdditionalInfo = nil
		} else {
			f.AdditionalInfo = &info
		}
	}

	return f, nil
}
