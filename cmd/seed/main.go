// Command seed fills the database with demo users and contacts, and can
// promote an existing user to admin.
//
// Usage:
//
//	seed -users 5 -contacts 20
//	seed -users 0 -contacts 0 -admin ann@example.com
//
// It reads DATABASE_URL and REDIS_URL the same way the server does.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/sakif/contacts-api/internal/auth"
	"github.com/sakif/contacts-api/internal/cache"
	"github.com/sakif/contacts-api/internal/config"
	"github.com/sakif/contacts-api/internal/server"
)

func main() {
	var opts options
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	fs.IntVar(&opts.Users, "users", 5, "number of verified demo users to create")
	fs.IntVar(&opts.Contacts, "contacts", 20, "number of random contacts spread over the new users")
	fs.StringVar(&opts.Admin, "admin", "", "email of an existing user to promote to admin")
	fs.Parse(os.Args[1:])

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.Load(".env")
	if err != nil {
		logger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	store, err := server.OpenStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	// A promoted user's cached session still says "user"; evict it.
	var sessions cache.UserCache = cache.Noop{}
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, cached sessions are not evicted", slog.String("error", err.Error()))
		} else {
			sessions = rc
			defer rc.Close()
		}
	}

	s := &seeder{
		store:     store,
		sessions:  sessions,
		passwords: auth.NewPasswordService(),
		logger:    logger,
	}
	if err := s.run(ctx, opts); err != nil {
		logger.Error("seeding failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
