// Package storage persists user avatars, either on the local filesystem or
// in an S3-compatible bucket.
package storage

import (
	"context"
	"fmt"

	"github.com/rs/xid"
)

// AvatarStore saves an encoded avatar under key and returns the path or URL
// clients should use to fetch it. Delete takes such a path back and removes
// the object; paths the store did not hand out are left alone.
type AvatarStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, path string) error
}

// NewKey returns a fresh object key for userID's avatar, for example
// "42/cr4b1o8pl5og8lhsvtn0.png". Every upload gets a new key so cached
// copies of the old image never shadow the new one.
func NewKey(userID int64, ext string) string {
	return fmt.Sprintf("%d/%s%s", userID, xid.New().String(), ext)
}
