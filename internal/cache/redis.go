package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/contacts-api/internal/model"
)

const keyPrefix = "user:"

var _ UserCache = (*RedisUserCache)(nil)

// RedisUserCache keeps SessionUser JSON blobs under "user:<email>".
type RedisUserCache struct {
	client redis.Cmdable
	closer func() error
}

// NewRedis connects to url ("redis://[:password@]host:6379/0") and checks
// the connection before returning.
func NewRedis(ctx context.Context, url string) (*RedisUserCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cache: parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("cache: pinging redis: %w", err)
	}

	return &RedisUserCache{client: client, closer: client.Close}, nil
}

// NewRedisWithClient wraps an existing client. The caller keeps ownership
// of the connection.
func NewRedisWithClient(client redis.Cmdable) *RedisUserCache {
	return &RedisUserCache{client: client}
}

func key(email string) string {
	return keyPrefix + email
}

func (c *RedisUserCache) Get(ctx context.Context, email string) (*model.SessionUser, error) {
	b, err := c.client.Get(ctx, key(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache: get %s: %w", email, err)
	}

	var u model.SessionUser
	if err := json.Unmarshal(b, &u); err != nil {
		return nil, fmt.Errorf("cache: decoding %s: %w", email, err)
	}
	return &u, nil
}

func (c *RedisUserCache) Set(ctx context.Context, user *model.SessionUser, ttl time.Duration) error {
	b, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("cache: encoding %s: %w", user.Email, err)
	}
	if err := c.client.Set(ctx, key(user.Email), b, ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", user.Email, err)
	}
	return nil
}

func (c *RedisUserCache) Delete(ctx context.Context, email string) error {
	if err := c.client.Del(ctx, key(email)).Err(); err != nil {
		return fmt.Errorf("cache: delete %s: %w", email, err)
	}
	return nil
}

func (c *RedisUserCache) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}
