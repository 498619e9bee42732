package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/contacts-api/internal/apperror"
	"github.com/sakif/contacts-api/internal/middleware"
	"github.com/sakif/contacts-api/internal/model"
)

// MaxAvatarBytes is the largest avatar upload accepted.
const MaxAvatarBytes = 5 << 20

// Profiles is the part of service.UserService the user endpoints use.
type Profiles interface {
	Me(ctx context.Context, session *model.SessionUser) (*model.User, error)
	UpdateAvatar(ctx context.Context, session *model.SessionUser, data []byte) (*model.User, error)
}

// UserHandler serves the caller's own profile.
type UserHandler struct {
	users  Profiles
	logger *slog.Logger
}

func NewUserHandler(users Profiles, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// HandleMe returns the authenticated user.
//
// HTTP: GET /user/me
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	session := middleware.UserFromContext(r.Context())
	if session == nil {
		writeError(w, apperror.Unauthorized("not authenticated"))
		return
	}

	user, err := h.users.Me(r.Context(), session)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleUpdateAvatar replaces the caller's avatar.
//
// HTTP: PUT /user/avatar (multipart/form-data, file field "avatar")
//
// The body is capped slightly above MaxAvatarBytes to leave room for the
// multipart framing; the file itself is checked against the exact limit.
func (h *UserHandler) HandleUpdateAvatar(w http.ResponseWriter, r *http.Request) {
	session := middleware.UserFromContext(r.Context())
	if session == nil {
		writeError(w, apperror.Unauthorized("not authenticated"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxAvatarBytes+64<<10)
	file, _, err := r.FormFile("avatar")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, apperror.ValidationFailed("avatar", "avatar must be at most 5 MiB"))
			return
		}
		writeError(w, apperror.ValidationFailed("avatar", "avatar file is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxAvatarBytes+1))
	if err != nil {
		writeError(w, apperror.ValidationFailed("avatar", "could not read avatar upload"))
		return
	}
	if len(data) > MaxAvatarBytes {
		writeError(w, apperror.ValidationFailed("avatar", "avatar must be at most 5 MiB"))
		return
	}

	user, err := h.users.UpdateAvatar(r.Context(), session, data)
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("avatar updated", slog.Int64("user_id", user.ID))
	writeJSON(w, http.StatusOK, user)
}
