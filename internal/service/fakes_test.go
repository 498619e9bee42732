package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sakif/contacts-api/internal/apperror"
	"github.com/sakif/contacts-api/internal/model"
	"github.com/sakif/contacts-api/internal/repository"
)

// =========================================================================
// IN-MEMORY FAKES
// =========================================================================
//
// The fakes mirror the repository contracts closely enough to exercise the
// service rules: NotFound for missing rows, Conflict for duplicate emails,
// owner scoping on every contact operation. A mutex makes them safe for the
// concurrent registration test.

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[int64]*model.User
	nextID int64
	calls  map[string]int
	err    error // returned by every call when set
}

var _ repository.UserRepository = (*fakeUserRepo)(nil)

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]*model.User), calls: make(map[string]int)}
}

func (r *fakeUserRepo) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[name]
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["GetByEmail"]++
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int64) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["GetByID"]++
	if r.err != nil {
		return nil, r.err
	}
	u, ok := r.users[id]
	if !ok {
		return nil, apperror.NotFound("user", strconv.FormatInt(id, 10))
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["Create"]++
	if r.err != nil {
		return r.err
	}
	for _, u := range r.users {
		if u.Email == user.Email {
			return apperror.Conflict("user", "email", user.Email)
		}
	}
	r.nextID++
	user.ID = r.nextID
	user.CreatedAt = time.Now().UTC()
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) update(id int64, fn func(*model.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	u, ok := r.users[id]
	if !ok {
		return apperror.NotFound("user", strconv.FormatInt(id, 10))
	}
	fn(u)
	return nil
}

func (r *fakeUserRepo) SetVerificationToken(_ context.Context, id int64, token string) error {
	return r.update(id, func(u *model.User) { u.VerificationToken = &token })
}

func (r *fakeUserRepo) MarkVerified(_ context.Context, id int64) error {
	return r.update(id, func(u *model.User) {
		u.IsVerified = true
		u.VerificationToken = nil
	})
}

func (r *fakeUserRepo) SetAvatar(_ context.Context, id int64, path string) error {
	return r.update(id, func(u *model.User) { u.Avatar = &path })
}

func (r *fakeUserRepo) SetRole(_ context.Context, id int64, role model.Role) error {
	return r.update(id, func(u *model.User) { u.Role = role })
}

type fakeContactRepo struct {
	mu       sync.Mutex
	contacts map[int64]*model.Contact
	nextID   int64
	searches int
}

var _ repository.ContactRepository = (*fakeContactRepo)(nil)

func newFakeContactRepo() *fakeContactRepo {
	return &fakeContactRepo{contacts: make(map[int64]*model.Contact)}
}

func (r *fakeContactRepo) ListByOwner(_ context.Context, ownerID int64) ([]model.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Contact, 0)
	for _, c := range r.contacts {
		if c.OwnerID == ownerID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeContactRepo) GetByID(_ context.Context, id, ownerID int64) (*model.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contacts[id]
	if !ok || c.OwnerID != ownerID {
		return nil, apperror.NotFound("contact", strconv.FormatInt(id, 10))
	}
	cp := *c
	return &cp, nil
}

func (r *fakeContactRepo) emailTaken(email string, except int64) bool {
	for _, c := range r.contacts {
		if c.Email == email && c.ID != except {
			return true
		}
	}
	return false
}

func (r *fakeContactRepo) Create(_ context.Context, ownerID int64, f model.ContactFields) (*model.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.emailTaken(f.Email, 0) {
		return nil, apperror.Conflict("contact", "email", f.Email)
	}
	r.nextID++
	c := &model.Contact{ID: r.nextID, OwnerID: ownerID}
	c.Apply(f)
	r.contacts[c.ID] = c
	cp := *c
	return &cp, nil
}

func (r *fakeContactRepo) Update(_ context.Context, id, ownerID int64, f model.ContactFields) (*model.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contacts[id]
	if !ok || c.OwnerID != ownerID {
		return nil, apperror.NotFound("contact", strconv.FormatInt(id, 10))
	}
	if r.emailTaken(f.Email, id) {
		return nil, apperror.Conflict("contact", "email", f.Email)
	}
	c.Apply(f)
	cp := *c
	return &cp, nil
}

func (r *fakeContactRepo) Delete(_ context.Context, id, ownerID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contacts[id]
	if !ok || c.OwnerID != ownerID {
		return apperror.NotFound("contact", strconv.FormatInt(id, 10))
	}
	delete(r.contacts, id)
	return nil
}

func (r *fakeContactRepo) Search(ctx context.Context, ownerID int64, f repository.ContactFilter) ([]model.Contact, error) {
	r.mu.Lock()
	r.searches++
	r.mu.Unlock()
	all, _ := r.ListByOwner(ctx, ownerID)
	match := func(value, term string) bool {
		return term == "" || strings.Contains(strings.ToLower(value), strings.ToLower(term))
	}
	out := make([]model.Contact, 0)
	for _, c := range all {
		if match(c.FirstName, f.FirstName) && match(c.LastName, f.LastName) && match(c.Email, f.Email) {
			out = append(out, c)
		}
	}
	return out, nil
}

// fakeCache is a map-backed UserCache with switchable failures.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]model.SessionUser
	getErr  error
	setErr  error
	sets    int
	deleted []string
	lastTTL time.Duration
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]model.SessionUser)}
}

func (c *fakeCache) Get(_ context.Context, email string) (*model.SessionUser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	u, ok := c.entries[email]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (c *fakeCache) Set(_ context.Context, u *model.SessionUser, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[u.Email] = *u
	c.lastTTL = ttl
	return nil
}

func (c *fakeCache) Delete(_ context.Context, email string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, email)
	delete(c.entries, email)
	return nil
}

func (c *fakeCache) Close() error { return nil }

func (c *fakeCache) has(email string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[email]
	return ok
}

type sentVerification struct {
	email, token string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentVerification
	err  error
}

func (m *fakeMailer) SendVerification(_ context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentVerification{email, token})
	return nil
}

func (m *fakeMailer) last() (sentVerification, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentVerification{}, false
	}
	return m.sent[len(m.sent)-1], true
}

var errBoom = errors.New("boom")
