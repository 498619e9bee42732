package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/contacts-api/internal/apperror"
	"github.com/sakif/contacts-api/internal/auth"
	"github.com/sakif/contacts-api/internal/cache"
	"github.com/sakif/contacts-api/internal/model"
	"github.com/sakif/contacts-api/internal/repository"
)

// demoPassword is the password of every seeded user.
const demoPassword = "password"

type options struct {
	Users    int
	Contacts int
	Admin    string
}

type seeder struct {
	store     repository.Store
	sessions  cache.UserCache
	passwords *auth.PasswordService
	logger    *slog.Logger
	rand      *rand.Rand
	now       func() time.Time
}

var (
	firstNames = []string{"Ann", "Ben", "Cat", "Dan", "Eve", "Finn", "Gina", "Hugo", "Iris", "Jon", "Kara", "Leo", "Maya", "Nils", "Olga", "Paul"}
	lastNames  = []string{"Lee", "Smith", "Garcia", "Novak", "Kim", "Okafor", "Rossi", "Silva", "Berg", "Khan", "Moreau", "Ivanova"}
	notes      = []string{"met at the conference", "college friend", "neighbour", "former colleague", "plays tennis on Sundays"}
)

func (s *seeder) run(ctx context.Context, opts options) error {
	if s.rand == nil {
		s.rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	if s.now == nil {
		s.now = time.Now
	}

	ids, err := s.seedUsers(ctx, opts.Users)
	if err != nil {
		return err
	}
	if err := s.seedContacts(ctx, ids, opts.Contacts); err != nil {
		return err
	}
	if opts.Admin != "" {
		return s.promote(ctx, opts.Admin)
	}
	return nil
}

// seedUsers creates n verified, active users and returns their ids.
func (s *seeder) seedUsers(ctx context.Context, n int) ([]int64, error) {
	if n <= 0 {
		return nil, nil
	}

	// One hash for all users: bcrypt is slow on purpose.
	hash, err := s.passwords.Hash(demoPassword)
	if err != nil {
		return nil, fmt.Errorf("hashing demo password: %w", err)
	}

	ids := make([]int64, 0, n)
	for range n {
		user := &model.User{
			Email:        s.email(),
			PasswordHash: hash,
			Role:         model.RoleUser,
			IsActive:     true,
			IsVerified:   true,
		}
		if err := s.store.Users().Create(ctx, user); err != nil {
			return nil, fmt.Errorf("creating demo user: %w", err)
		}
		ids = append(ids, user.ID)
		s.logger.Info("user created", slog.Int64("id", user.ID), slog.String("email", user.Email))
	}
	s.logger.Info("users seeded", slog.Int("count", n), slog.String("password", demoPassword))
	return ids, nil
}

// seedContacts spreads n random contacts over owners.
func (s *seeder) seedContacts(ctx context.Context, owners []int64, n int) error {
	if n <= 0 {
		return nil
	}
	if len(owners) == 0 {
		return errors.New("contacts need at least one new user to own them")
	}

	for range n {
		owner := owners[s.rand.IntN(len(owners))]
		if _, err := s.store.Contacts().Create(ctx, owner, s.contact()); err != nil {
			return fmt.Errorf("creating demo contact: %w", err)
		}
	}
	s.logger.Info("contacts seeded", slog.Int("count", n), slog.Int("owners", len(owners)))
	return nil
}

// promote grants the admin role and drops the user's cached session.
func (s *seeder) promote(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return fmt.Errorf("no user with email %s", email)
		}
		return err
	}

	if err := s.store.Users().SetRole(ctx, user.ID, model.RoleAdmin); err != nil {
		return fmt.Errorf("promoting %s: %w", email, err)
	}
	if err := s.sessions.Delete(ctx, email); err != nil {
		s.logger.Warn("evicting cached session failed", slog.String("email", email), slog.String("error", err.Error()))
	}
	s.logger.Info("user promoted", slog.String("email", email), slog.String("role", string(model.RoleAdmin)))
	return nil
}

func (s *seeder) email() string {
	first := strings.ToLower(firstNames[s.rand.IntN(len(firstNames))])
	return fmt.Sprintf("%s.%s@example.com", first, xid.New().String())
}

// contact returns random fields for an adult aged 18 to 80.
func (s *seeder) contact() model.ContactFields {
	first := firstNames[s.rand.IntN(len(firstNames))]
	last := lastNames[s.rand.IntN(len(lastNames))]

	today := model.DateOf(s.now())
	ageDays := 18*365 + s.rand.IntN(62*365)
	info := notes[s.rand.IntN(len(notes))]

	return model.ContactFields{
		FirstName:      first,
		LastName:       last,
		Email:          fmt.Sprintf("%s.%s.%s@example.net", strings.ToLower(first), strings.ToLower(last), xid.New().String()),
		Phone:          fmt.Sprintf("+1-555-%03d-%04d", s.rand.IntN(1000), s.rand.IntN(10000)),
		Birthday:       today.AddDays(-ageDays),
		AdditionalInfo: &info,
	}
}
