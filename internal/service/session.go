package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/contacts-api/internal/apperror"
	"github.com/sakif/contacts-api/internal/auth"
	"github.com/sakif/contacts-api/internal/cache"
	"github.com/sakif/contacts-api/internal/metrics"
	"github.com/sakif/contacts-api/internal/model"
	"github.com/sakif/contacts-api/internal/repository"
)

// SessionResolver turns a bearer token into the user it belongs to.
//
// THE RESOLUTION PATH:
//
//	token ─► TokenService.Verify ─► email ─► cache hit?  ─► SessionUser
//	                                             │ no
//	                                             ▼
//	                                     UserRepository.GetByEmail
//	                                             │
//	                                             ▼
//	                                 write-through (best effort)
//
// The cache is an optimisation only. A failed read is treated as a miss and
// a failed write is logged; neither fails the request. Only verified, active
// users are cached, so a cached entry can never let through a user the
// database would reject.
//
// Resolve does not apply any access rules itself: the middleware runs the
// route's guards on the result.
type SessionResolver struct {
	tokens   *auth.TokenService
	users    repository.UserRepository
	sessions cache.UserCache
	ttl      time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewSessionResolver(
	tokens *auth.TokenService,
	users repository.UserRepository,
	sessions cache.UserCache,
	ttl time.Duration,
	m *metrics.Metrics,
	logger *slog.Logger,
) *SessionResolver {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return &SessionResolver{
		tokens:   tokens,
		users:    users,
		sessions: sessions,
		ttl:      ttl,
		metrics:  m,
		logger:   logger,
	}
}

var errInvalidCredentials = apperror.Unauthorized("could not validate credentials")

func (r *SessionResolver) Resolve(ctx context.Context, token string) (*model.SessionUser, error) {
	email, err := r.tokens.Verify(token, auth.PurposeAccess)
	if err != nil {
		return nil, errInvalidCredentials
	}

	cached, err := r.sessions.Get(ctx, email)
	switch {
	case err != nil:
		r.metrics.CacheResult(metrics.CacheReadError)
		r.logger.Warn("session cache read failed",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
	case cached != nil:
		r.metrics.CacheResult(metrics.CacheHit)
		return cached, nil
	default:
		r.metrics.CacheResult(metrics.CacheMiss)
	}

	user, err := r.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			// Valid signature, but the account is gone.
			return nil, errInvalidCredentials
		}
		return nil, fmt.Errorf("service/session: loading user: %w", err)
	}

	session := user.Session()
	if session.IsVerified && session.IsActive {
		if err := r.sessions.Set(ctx, session, r.ttl); err != nil {
			r.metrics.CacheResult(metrics.CacheWriteError)
			r.logger.Warn("session cache write failed",
				slog.String("email", email),
				slog.String("error", err.Error()),
			)
		}
	}

	return session, nil
}

// evictSession drops the cached copy of email's session after the user
// record changed. Failures are logged; the entry then expires on its own.
func evictSession(ctx context.Context, sessions cache.UserCache, logger *slog.Logger, email string) {
	if err := sessions.Delete(ctx, email); err != nil {
		logger.Warn("session cache eviction failed",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
	}
}
