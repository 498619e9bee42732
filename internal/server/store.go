package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sakif/contacts-api/internal/repository"
	"github.com/sakif/contacts-api/internal/repository/postgres"
	sqliteRepo "github.com/sakif/contacts-api/internal/repository/sqlite"
)

// OpenStore picks the backend from the shape of dsn: a postgres:// or
// postgresql:// URL selects Postgres, anything else is a SQLite file path
// (or ":memory:").
func OpenStore(ctx context.Context, dsn string) (repository.Store, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return postgres.Open(ctx, dsn)
	}

	// sqlite creates the file but not its directory.
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	return sqliteRepo.New(dsn)
}
