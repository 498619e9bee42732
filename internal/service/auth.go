// AuthService is the business logic layer for accounts. It sits between
// the HTTP handlers and the repository/auth utilities:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT), PasswordService (bcrypt)
//	                   ↘ VerificationMailer (background mail queue)
//
// KEY RESPONSIBILITIES:
//   - Registration with a verification email
//   - Password login issuing a bearer token
//   - Email verification through a signed, single-purpose token

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/contacts-api/internal/apperror"
	"github.com/sakif/contacts-api/internal/auth"
	"github.com/sakif/contacts-api/internal/cache"
	"github.com/sakif/contacts-api/internal/model"
	"github.com/sakif/contacts-api/internal/repository"
)

// MinPasswordLength is the shortest password Register accepts.
const MinPasswordLength = 6

// VerificationMailer delivers verification links. *mail.Verifier
// implements it; delivery happens after the call returns.
type VerificationMailer interface {
	SendVerification(ctx context.Context, email, token string) error
}

// AuthService handles the authentication business logic.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users      repository.UserRepository  → read/write user records
//   - tokens     *auth.TokenService         → access and verification JWTs
//   - passwords  *auth.PasswordService      → bcrypt hashing
//   - mailer     VerificationMailer         → queues verification emails
//   - sessions   cache.UserCache            → evicted when a user is verified
//   - logger     *slog.Logger               → structured logging
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	mailer    VerificationMailer
	sessions  cache.UserCache
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
// Call this in server.go when wiring the dependency graph.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	mailer VerificationMailer,
	sessions cache.UserCache,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		mailer:    mailer,
		sessions:  sessions,
		logger:    logger,
	}
}

// LoginResult is what POST /auth/login returns.
type LoginResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// NormalizeEmail trims and lower-cases an address so that lookups and the
// UNIQUE index agree on what "the same email" means.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an unverified user and queues a verification email.
//
// WHAT HAPPENS ON A DUPLICATE?
// There is no "check then insert" here. Two concurrent registrations for the
// same address both reach Create, the UNIQUE index lets exactly one through
// and the other gets apperror.ErrConflict from the repository.
//
// Mail failures do not fail the registration: the user can ask for a new
// link via POST /auth/send-verification-email.
func (s *AuthService) Register(ctx context.Context, email, password string) (*model.User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}
	if len(password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	user := &model.User{
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleUser,
		IsActive:     true,
		IsVerified:   false,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user registered",
		slog.Int64("userID", user.ID),
		slog.String("email", user.Email),
	)

	if err := s.sendVerification(ctx, user.ID, user.Email); err != nil {
		s.logger.Error("failed to send verification email",
			slog.String("email", user.Email),
			slog.String("error", err.Error()),
		)
	}

	return user, nil
}

// Login checks the credentials and issues an access token.
//
// Unknown emails and wrong passwords produce the same error and take about
// the same time (BurnCompare), so the endpoint cannot be used to probe which
// addresses are registered.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	invalid := apperror.Unauthorized("incorrect email or password")

	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.passwords.BurnCompare(password)
			return nil, invalid
		}
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		s.logger.Info("failed login attempt", slog.String("email", user.Email))
		return nil, invalid
	}

	token, err := s.tokens.IssueAccess(user.Email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing access token: %w", err)
	}

	s.logger.Info("user logged in", slog.Int64("userID", user.ID))

	return &LoginResult{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(s.tokens.AccessTTL().Seconds()),
	}, nil
}

// VerifyEmail flips the verified flag for the token's subject.
//
// The token must be a valid email-verification JWT AND match the token
// stored for the user: requesting a new link invalidates older ones.
// Verifying an already verified account succeeds without changes.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	email, err := s.tokens.Verify(token, auth.PurposeEmailVerification)
	if err != nil {
		return apperror.Unauthorized("invalid or expired verification token")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.NotFound("user", email)
		}
		return fmt.Errorf("service/auth: looking up user: %w", err)
	}

	if user.IsVerified {
		return nil
	}

	if user.VerificationToken == nil || *user.VerificationToken != token {
		return apperror.Unauthorized("invalid or expired verification token")
	}

	if err := s.users.MarkVerified(ctx, user.ID); err != nil {
		return fmt.Errorf("service/auth: marking user verified: %w", err)
	}
	evictSession(ctx, s.sessions, s.logger, user.Email)

	s.logger.Info("email verified", slog.Int64("userID", user.ID))
	return nil
}

// ResendVerification issues a fresh verification token for an unverified
// user and queues the email. The new token replaces the previous one.
func (s *AuthService) ResendVerification(ctx context.Context, user *model.SessionUser) error {
	if user.IsVerified {
		return &apperror.AppError{
			Err:     apperror.ErrConflict,
			Message: "email is already verified",
			Field:   "email",
		}
	}
	if err := s.sendVerification(ctx, user.ID, user.Email); err != nil {
		return fmt.Errorf("service/auth: resending verification: %w", err)
	}
	return nil
}

// sendVerification stores a new verification token before queueing the
// mail, so the link is valid by the time it arrives.
func (s *AuthService) sendVerification(ctx context.Context, userID int64, email string) error {
	token, err := s.tokens.IssueVerification(email)
	if err != nil {
		return fmt.Errorf("issuing verification token: %w", err)
	}
	if err := s.users.SetVerificationToken(ctx, userID, token); err != nil {
		return fmt.Errorf("storing verification token: %w", err)
	}
	return s.mailer.SendVerification(ctx, email, token)
}
