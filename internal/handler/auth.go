package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/contacts-api/internal/apperror"
	"github.com/sakif/contacts-api/internal/middleware"
	"github.com/sakif/contacts-api/internal/model"
	"github.com/sakif/contacts-api/internal/service"
)

// Authenticator is the part of service.AuthService the auth endpoints use.
type Authenticator interface {
	Register(ctx context.Context, email, password string) (*model.User, error)
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	VerifyEmail(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, user *model.SessionUser) error
}

// AuthHandler manages registration, login and email verification.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister         → create an account and queue the verification mail
//   - HandleLogin            → exchange form credentials for a bearer token
//   - HandleVerifyEmail      → consume the link from the verification mail
//   - HandleSendVerification → queue a fresh verification mail for the caller
type AuthHandler struct {
	auth   Authenticator
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(auth Authenticator, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

type registerRequest struct {
	Email    string `json:"email"    validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// loginForm mirrors the OAuth2 password-grant form: the email travels as "username".
type loginForm struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
}

// HandleRegister creates an unverified account.
//
// HTTP: POST /auth/register
// REQUEST BODY: {"email": "ann@example.com", "password": "secret1"}
// RESPONSE: 201 with the new user; 409 if the email is taken.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !bindJSON(w, r, &req) {
		return
	}

	user, err := h.auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("user registered", slog.Int64("user_id", user.ID))
	writeJSON(w, http.StatusCreated, user)
}

// HandleLogin issues an access token.
//
// HTTP: POST /auth/login
// REQUEST BODY (application/x-www-form-urlencoded): username=ann@example.com&password=secret1
// RESPONSE: {"access_token": "...", "token_type": "bearer", "expires_in": 1800}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := r.ParseForm(); err != nil {
		writeValidationErrors(w, []FieldError{{Field: "body", Message: "malformed form body"}})
		return
	}

	form := loginForm{
		Username: strings.TrimSpace(r.PostForm.Get("username")),
		Password: r.PostForm.Get("password"),
	}
	if !checkStruct(w, &form) {
		return
	}

	result, err := h.auth.Login(r.Context(), form.Username, form.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleVerifyEmail marks the token's owner as verified.
//
// HTTP: GET /auth/verify-email?token=...
func (h *AuthHandler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, apperror.ValidationFailed("token", "token is required"))
		return
	}

	if err := h.auth.VerifyEmail(r.Context(), token); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DetailResponse{Detail: "Email verified successfully"})
}

// HandleSendVerification queues a new verification mail for the caller.
// Registered behind Authenticate, so the session user is always present.
//
// HTTP: POST /auth/send-verification-email
func (h *AuthHandler) HandleSendVerification(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		writeError(w, apperror.Unauthorized("not authenticated"))
		return
	}

	if err := h.auth.ResendVerification(r.Context(), user); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DetailResponse{Detail: "Verification email sent"})
}
