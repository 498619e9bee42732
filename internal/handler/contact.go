package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/contacts-api/internal/apperror"
	"github.com/sakif/contacts-api/internal/middleware"
	"github.com/sakif/contacts-api/internal/model"
	"github.com/sakif/contacts-api/internal/repository"
	"github.com/sakif/contacts-api/internal/service"
)

// Contacts is the part of service.ContactService the contact endpoints use.
type Contacts interface {
	List(ctx context.Context, ownerID int64) ([]model.Contact, error)
	Get(ctx context.Context, ownerID, id int64) (*model.Contact, error)
	Create(ctx context.Context, ownerID int64, f model.ContactFields) (*model.Contact, error)
	Update(ctx context.Context, ownerID, id int64, f model.ContactFields) (*model.Contact, error)
	Delete(ctx context.Context, ownerID, id int64) error
	Search(ctx context.Context, ownerID int64, filter repository.ContactFilter) ([]model.Contact, error)
	UpcomingBirthdays(ctx context.Context, ownerID int64, days int) ([]model.Contact, error)
}

// ContactHandler serves the caller's address book. Every operation is scoped
// to the authenticated user; another owner's contact id answers 404.
type ContactHandler struct {
	contacts Contacts
	logger   *slog.Logger
}

func NewContactHandler(contacts Contacts, logger *slog.Logger) *ContactHandler {
	return &ContactHandler{contacts: contacts, logger: logger}
}

// contactRequest is the body of create and update. Update replaces every field.
type contactRequest struct {
	FirstName      string     `json:"first_name"      validate:"required,max=50"`
	LastName       string     `json:"last_name"       validate:"required,max=50"`
	Email          string     `json:"email"           validate:"required,email,max=254"`
	Phone          string     `json:"phone"           validate:"required,max=30"`
	Birthday       model.Date `json:"birthday"`
	AdditionalInfo *string    `json:"additional_info" validate:"omitempty,max=500"`
}

func (c contactRequest) fields() model.ContactFields {
	return model.ContactFields{
		FirstName:      c.FirstName,
		LastName:       c.LastName,
		Email:          c.Email,
		Phone:          c.Phone,
		Birthday:       c.Birthday,
		AdditionalInfo: c.AdditionalInfo,
	}
}

// HandleList returns all of the caller's contacts.
//
// HTTP: GET /contacts/
func (h *ContactHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	owner, ok := sessionOwner(w, r)
	if !ok {
		return
	}

	contacts, err := h.contacts.List(r.Context(), owner.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

// HandleCreate adds a contact.
//
// HTTP: POST /contacts/
// REQUEST BODY:
//
//	{"first_name":"Ann","last_name":"Lee","email":"ann@example.com",
//	 "phone":"+1 555 0100","birthday":"1990-01-05","additional_info":null}
func (h *ContactHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	owner, ok := sessionOwner(w, r)
	if !ok {
		return
	}

	var req contactRequest
	if !bindJSON(w, r, &req) {
		return
	}

	contact, err := h.contacts.Create(r.Context(), owner.ID, req.fields())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, contact)
}

// HandleGet returns one contact.
//
// HTTP: GET /contacts/{id}
func (h *ContactHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	owner, ok := sessionOwner(w, r)
	if !ok {
		return
	}
	id, ok := contactID(w, r)
	if !ok {
		return
	}

	contact, err := h.contacts.Get(r.Context(), owner.ID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

// HandleUpdate replaces a contact's fields.
//
// HTTP: PUT /contacts/{id}
func (h *ContactHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	owner, ok := sessionOwner(w, r)
	if !ok {
		return
	}
	id, ok := contactID(w, r)
	if !ok {
		return
	}

	var req contactRequest
	if !bindJSON(w, r, &req) {
		return
	}

	contact, err := h.contacts.Update(r.Context(), owner.ID, id, req.fields())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

// HandleDelete removes a contact.
//
// HTTP: DELETE /contacts/{id}
func (h *ContactHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	owner, ok := sessionOwner(w, r)
	if !ok {
		return
	}
	id, ok := contactID(w, r)
	if !ok {
		return
	}

	if err := h.contacts.Delete(r.Context(), owner.ID, id); err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("contact deleted", slog.Int64("user_id", owner.ID), slog.Int64("contact_id", id))
	writeJSON(w, http.StatusOK, DetailResponse{Detail: "Contact deleted"})
}

// HandleSearch filters contacts by name, last name and email.
//
// HTTP: GET /contacts/search/?name=jo&last_name=&email=
//
// All three parameters are optional substrings; 404 when nothing matches.
func (h *ContactHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	owner, ok := sessionOwner(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	contacts, err := h.contacts.Search(r.Context(), owner.ID, repository.ContactFilter{
		FirstName: q.Get("name"),
		LastName:  q.Get("last_name"),
		Email:     q.Get("email"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

// HandleBirthdays lists contacts with a birthday in the next ?days= days.
//
// HTTP: GET /contacts/birthdays/?days=7
func (h *ContactHandler) HandleBirthdays(w http.ResponseWriter, r *http.Request) {
	owner, ok := sessionOwner(w, r)
	if !ok {
		return
	}

	days := service.DefaultBirthdayWindow
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, apperror.ValidationFailed("days", "days must be an integer"))
			return
		}
		days = n
	}

	contacts, err := h.contacts.UpcomingBirthdays(r.Context(), owner.ID, days)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

func sessionOwner(w http.ResponseWriter, r *http.Request) (*model.SessionUser, bool) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		writeError(w, apperror.Unauthorized("not authenticated"))
		return nil, false
	}
	return user, true
}

func contactID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		writeError(w, apperror.ValidationFailed("id", "contact id must be a positive integer"))
		return 0, false
	}
	return id, true
}
