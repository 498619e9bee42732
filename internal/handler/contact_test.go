package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/contacts-api/internal/apperror"
	"github.com/sakif/contacts-api/internal/handler"
	"github.com/sakif/contacts-api/internal/model"
)

// contactRouter mounts the handler the way the server does, with alice as
// the authenticated user.
func contactRouter(h *handler.ContactHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, asUser(req, alice))
		})
	})
	r.Get("/contacts/", h.HandleList)
	r.Post("/contacts/", h.HandleCreate)
	r.Get("/contacts/search/", h.HandleSearch)
	r.Get("/contacts/birthdays/", h.HandleBirthdays)
	r.Get("/contacts/{id}", h.HandleGet)
	r.Put("/contacts/{id}", h.HandleUpdate)
	r.Delete("/contacts/{id}", h.HandleDelete)
	return r
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, target, bytes.NewBufferString(body)))
	return rr
}

var ann = model.Contact{
	ID: 3, FirstName: "Ann", LastName: "Lee", Email: "ann@example.com",
	Phone: "555-0100", Birthday: model.NewDate(1990, time.January, 5), OwnerID: 7,
}

const annJSON = `{"first_name":"Ann","last_name":"Lee","email":"ann@example.com","phone":"555-0100","birthday":"1990-01-05"}`

func TestContactHandler_List(t *testing.T) {
	mock := &MockContacts{Contacts: []model.Contact{}}
	rr := serve(contactRouter(handler.NewContactHandler(mock, logger)), http.MethodGet, "/contacts/", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
	assert.Equal(t, int64(7), mock.Owner)
}

func TestContactHandler_Create(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		mock := &MockContacts{Contact: &ann}
		rr := serve(contactRouter(handler.NewContactHandler(mock, logger)), http.MethodPost, "/contacts/", annJSON)

		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, "Ann", mock.Fields.FirstName)
		assert.Equal(t, model.NewDate(1990, time.January, 5), mock.Fields.Birthday)
		assert.Nil(t, mock.Fields.AdditionalInfo)

		var got map[string]any
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
		assert.Equal(t, "1990-01-05", got["birthday"])
		assert.NotContains(t, got, "owner_id")
	})

	t.Run("bad birthday", func(t *testing.T) {
		mock := &MockContacts{}
		body := `{"first_name":"Ann","last_name":"Lee","email":"ann@example.com","phone":"1","birthday":"05/01/1990"}`
		rr := serve(contactRouter(handler.NewContactHandler(mock, logger)), http.MethodPost, "/contacts/", body)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Zero(t, mock.Owner)
	})

	t.Run("invalid email", func(t *testing.T) {
		mock := &MockContacts{}
		body := `{"first_name":"Ann","last_name":"Lee","email":"ann","phone":"1","birthday":"1990-01-05"}`
		rr := serve(contactRouter(handler.NewContactHandler(mock, logger)), http.MethodPost, "/contacts/", body)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		resp := decodeError(t, rr)
		require.Len(t, resp.Fields, 1)
		assert.Equal(t, "email", resp.Fields[0].Field)
	})

	t.Run("duplicate email", func(t *testing.T) {
		mock := &MockContacts{Err: apperror.Conflict("contact", "email", "ann@example.com")}
		rr := serve(contactRouter(handler.NewContactHandler(mock, logger)), http.MethodPost, "/contacts/", annJSON)

		assert.Equal(t, http.StatusConflict, rr.Code)
	})
}

func TestContactHandler_ByID(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		body   string
		err    error
		status int
	}{
		{"get", http.MethodGet, "/contacts/3", "", nil, http.StatusOK},
		{"get missing", http.MethodGet, "/contacts/3", "", apperror.NotFound("contact", "3"), http.StatusNotFound},
		{"get bad id", http.MethodGet, "/contacts/abc", "", nil, http.StatusBadRequest},
		{"get zero id", http.MethodGet, "/contacts/0", "", nil, http.StatusBadRequest},
		{"update", http.MethodPut, "/contacts/3", annJSON, nil, http.StatusOK},
		{"update missing", http.MethodPut, "/contacts/3", annJSON, apperror.NotFound("contact", "3"), http.StatusNotFound},
		{"delete", http.MethodDelete, "/contacts/3", "", nil, http.StatusOK},
		{"delete missing", http.MethodDelete, "/contacts/3", "", apperror.NotFound("contact", "3"), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockContacts{Contact: &ann, Err: tt.err}
			rr := serve(contactRouter(handler.NewContactHandler(mock, logger)), tt.method, tt.target, tt.body)

			assert.Equal(t, tt.status, rr.Code)
			if tt.status != http.StatusBadRequest {
				assert.Equal(t, int64(3), mock.ID)
				assert.Equal(t, int64(7), mock.Owner)
			}
		})
	}
}

func TestContactHandler_Search(t *testing.T) {
	t.Run("filter passed through", func(t *testing.T) {
		mock := &MockContacts{Contacts: []model.Contact{ann}}
		rr := serve(contactRouter(handler.NewContactHandler(mock, logger)), http.MethodGet,
			"/contacts/search/?name=an&last_name=le&email=example", "")

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "an", mock.Filter.FirstName)
		assert.Equal(t, "le", mock.Filter.LastName)
		assert.Equal(t, "example", mock.Filter.Email)
	})

	t.Run("no match", func(t *testing.T) {
		mock := &MockContacts{Err: &apperror.AppError{Err: apperror.ErrNotFound, Message: "no contacts match the search"}}
		rr := serve(contactRouter(handler.NewContactHandler(mock, logger)), http.MethodGet, "/contacts/search/?name=zz", "")

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestContactHandler_Birthdays(t *testing.T) {
	tests := []struct {
		name   string
		target string
		days   int
		status int
	}{
		{"default window", "/contacts/birthdays/", 7, http.StatusOK},
		{"explicit window", "/contacts/birthdays/?days=30", 30, http.StatusOK},
		{"not a number", "/contacts/birthdays/?days=soon", 0, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockContacts{Contacts: []model.Contact{}}
			rr := serve(contactRouter(handler.NewContactHandler(mock, logger)), http.MethodGet, tt.target, "")

			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.days, mock.Days)
		})
	}

	t.Run("out of range from service", func(t *testing.T) {
		mock := &MockContacts{Err: apperror.ValidationFailed("days", "period must be at most 365 days")}
		rr := serve(contactRouter(handler.NewContactHandler(mock, logger)), http.MethodGet, "/contacts/birthdays/?days=400", "")

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, 400, mock.Days)
	})
}
