package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalStore writes avatars below a directory that the HTTP server exposes
// under URLPrefix.
type LocalStore struct {
	dir    string
	prefix string
}

var _ AvatarStore = (*LocalStore)(nil)

// URLPrefix is where the server mounts the avatar directory.
const URLPrefix = "/avatars"

func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: creating avatar dir: %w", err)
	}
	return &LocalStore{dir: dir, prefix: URLPrefix}, nil
}

// Dir is the directory avatars are written to.
func (s *LocalStore) Dir() string { return s.dir }

func (s *LocalStore) Put(ctx context.Context, key, _ string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	clean := path.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("storage: invalid key %q", key)
	}

	dst := filepath.Join(s.dir, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("storage: creating %s: %w", filepath.Dir(dst), err)
	}

	// Write to a temp file first so readers never see a partial image.
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("storage: creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("storage: writing avatar: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("storage: writing avatar: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("storage: moving avatar into place: %w", err)
	}

	return s.prefix + clean, nil
}

func (s *LocalStore) Delete(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key, ok := strings.CutPrefix(p, s.prefix+"/")
	if !ok {
		return nil
	}
	clean := path.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return fmt.Errorf("storage: invalid key %q", key)
	}

	err := os.Remove(filepath.Join(s.dir, filepath.FromSlash(clean)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: removing avatar: %w", err)
	}
	return nil
}
