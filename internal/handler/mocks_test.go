package handler_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/contacts-api/internal/middleware"
	"github.com/sakif/contacts-api/internal/model"
	"github.com/sakif/contacts-api/internal/repository"
	"github.com/sakif/contacts-api/internal/service"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

var alice = &model.SessionUser{ID: 7, Email: "alice@example.com", IsActive: true, IsVerified: true, Role: model.RoleUser}

// asUser attaches a session user the way Authenticate would.
func asUser(r *http.Request, u *model.SessionUser) *http.Request {
	return r.WithContext(middleware.WithUser(r.Context(), u))
}

// MockAuth records the arguments of the last call and returns canned results.
type MockAuth struct {
	Email, Password, Token string
	Session                *model.SessionUser

	User   *model.User
	Result *service.LoginResult
	Err    error
}

func (m *MockAuth) Register(_ context.Context, email, password string) (*model.User, error) {
	m.Email, m.Password = email, password
	return m.User, m.Err
}

func (m *MockAuth) Login(_ context.Context, email, password string) (*service.LoginResult, error) {
	m.Email, m.Password = email, password
	return m.Result, m.Err
}

func (m *MockAuth) VerifyEmail(_ context.Context, token string) error {
	m.Token = token
	return m.Err
}

func (m *MockAuth) ResendVerification(_ context.Context, user *model.SessionUser) error {
	m.Session = user
	return m.Err
}

type MockProfiles struct {
	Data []byte
	User *model.User
	Err  error
}

func (m *MockProfiles) Me(_ context.Context, session *model.SessionUser) (*model.User, error) {
	return m.User, m.Err
}

func (m *MockProfiles) UpdateAvatar(_ context.Context, _ *model.SessionUser, data []byte) (*model.User, error) {
	m.Data = data
	return m.User, m.Err
}

// MockContacts captures owner, id and payload of the last call.
type MockContacts struct {
	Owner  int64
	ID     int64
	Fields model.ContactFields
	Filter repository.ContactFilter
	Days   int

	Contacts []model.Contact
	Contact  *model.Contact
	Err      error
}

func (m *MockContacts) List(_ context.Context, owner int64) ([]model.Contact, error) {
	m.Owner = owner
	return m.Contacts, m.Err
}

func (m *MockContacts) Get(_ context.Context, owner, id int64) (*model.Contact, error) {
	m.Owner, m.ID = owner, id
	return m.Contact, m.Err
}

func (m *MockContacts) Create(_ context.Context, owner int64, f model.ContactFields) (*model.Contact, error) {
	m.Owner, m.Fields = owner, f
	return m.Contact, m.Err
}

func (m *MockContacts) Update(_ context.Context, owner, id int64, f model.ContactFields) (*model.Contact, error) {
	m.Owner, m.ID, m.Fields = owner, id, f
	return m.Contact, m.Err
}

func (m *MockContacts) Delete(_ context.Context, owner, id int64) error {
	m.Owner, m.ID = owner, id
	return m.Err
}

func (m *MockContacts) Search(_ context.Context, owner int64, filter repository.ContactFilter) ([]model.Contact, error) {
	m.Owner, m.Filter = owner, filter
	return m.Contacts, m.Err
}

func (m *MockContacts) UpcomingBirthdays(_ context.Context, owner int64, days int) ([]model.Contact, error) {
	m.Owner, m.Days = owner, days
	return m.Contacts, m.Err
}

type MockPinger struct{ Err error }

func (m MockPinger) Ping(context.Context) error { return m.Err }
