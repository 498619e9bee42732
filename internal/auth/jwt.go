// Package auth provides credential hashing, bearer token signing and the
// access guards applied to authenticated requests.
//
// TOKEN FLOW:
//  1. POST /auth/login checks the password and issues an access token whose
//     subject ("sub") is the user's email.
//  2. The client sends it back on every call as "Authorization: Bearer <jwt>".
//  3. The session resolver verifies the token and looks the email up.
//
// Email verification links carry a second kind of token, signed with the same
// secret but with a different audience, so one can never be replayed as the
// other.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"jo@example.com","aud":["access"],"exp":1234567890,...}
//	- Signature: HMAC-SHA256(header+"."+payload, secret)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "contacts-api"

// Default lifetimes. The server overrides them from config.
const (
	DefaultAccessTTL       = 30 * time.Minute
	DefaultVerificationTTL = 24 * time.Hour
)

// Purpose says what a token may be used for. It is carried in the "aud" claim.
type Purpose string

const (
	PurposeAccess            Purpose = "access"
	PurposeEmailVerification Purpose = "email-verification"
)

// ErrInvalidToken is the only error Verify returns.
//
// Malformed, badly signed, expired and wrong-purpose tokens all collapse into
// it so that a caller probing the API learns nothing about which check failed.
var ErrInvalidToken = errors.New("auth: invalid or expired token")

// TokenService signs and verifies HS256 tokens with one process-wide secret.
type TokenService struct {
	secret          []byte
	accessTTL       time.Duration
	verificationTTL time.Duration
	now             func() time.Time
}

// TokenOption customises a TokenService.
type TokenOption func(*TokenService)

// WithAccessTTL sets the lifetime of login tokens.
func WithAccessTTL(d time.Duration) TokenOption {
	return func(s *TokenService) { s.accessTTL = d }
}

// WithVerificationTTL sets the lifetime of email verification tokens.
func WithVerificationTTL(d time.Duration) TokenOption {
	return func(s *TokenService) { s.verificationTTL = d }
}

// WithClock replaces time.Now. Tests use it to mint tokens in the past.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, opts ...TokenOption) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	s := &TokenService{
		secret:          []byte(secret),
		accessTTL:       DefaultAccessTTL,
		verificationTTL: DefaultVerificationTTL,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue signs a token for subject that expires ttl from now.
func (s *TokenService) Issue(subject string, purpose Purpose, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("auth: token subject must not be empty")
	}

	now := s.now()
	c := jwt.RegisteredClaims{
		Subject:   subject,
		Audience:  jwt.ClaimStrings{string(purpose)},
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// IssueAccess issues a login token with the configured access lifetime.
func (s *TokenService) IssueAccess(email string) (string, error) {
	return s.Issue(email, PurposeAccess, s.accessTTL)
}

// IssueVerification issues an email verification token.
func (s *TokenService) IssueVerification(email string) (string, error) {
	return s.Issue(email, PurposeEmailVerification, s.verificationTTL)
}

// AccessTTL is the lifetime of tokens returned by IssueAccess.
func (s *TokenService) AccessTTL() time.Duration {
	return s.accessTTL
}

// Verify checks signature, expiry, issuer and purpose and returns the subject.
//
// Passing jwt.WithValidMethods pins the algorithm to HS256, which shuts out
// "alg: none" and RS/HS confusion tricks.
func (s *TokenService) Verify(tokenStr string, purpose Purpose) (string, error) {
	if tokenStr == "" {
		return "", ErrInvalidToken
	}

	var c jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&c,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(string(purpose)),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid || c.Subject == "" {
		return "", ErrInvalidToken
	}

	return c.Subject, nil
}
