// Package cache holds short-lived copies of session users so that
// authenticated requests can skip the user directory.
//
// The cache is never authoritative. Callers treat every error as a miss.
package cache

import (
	"context"
	"time"

	"github.com/sakif/contacts-api/internal/model"
)

// DefaultTTL is how long a cached session user lives.
const DefaultTTL = time.Hour

// UserCache stores SessionUser values keyed by email.
type UserCache interface {
	// Get returns (nil, nil) on a miss.
	Get(ctx context.Context, email string) (*model.SessionUser, error)
	Set(ctx context.Context, user *model.SessionUser, ttl time.Duration) error
	Delete(ctx context.Context, email string) error
	Close() error
}

// Noop is used when no cache is configured. Every Get misses.
type Noop struct{}

var _ UserCache = Noop{}

func (Noop) Get(context.Context, string) (*model.SessionUser, error) { return nil, nil }
func (Noop) Set(context.Context, *model.SessionUser, time.Duration) error { return nil }
func (Noop) Delete(context.Context, string) error { return nil }
func (Noop) Close() error { return nil }
