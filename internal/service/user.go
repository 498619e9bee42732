package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/contacts-api/internal/cache"
	"github.com/sakif/contacts-api/internal/model"
	"github.com/sakif/contacts-api/internal/repository"
	"github.com/sakif/contacts-api/internal/storage"
)

// UserService serves the signed-in user's own profile.
type UserService struct {
	users    repository.UserRepository
	avatars  storage.AvatarStore
	sessions cache.UserCache
	logger   *slog.Logger
}

func NewUserService(
	users repository.UserRepository,
	avatars storage.AvatarStore,
	sessions cache.UserCache,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:    users,
		avatars:  avatars,
		sessions: sessions,
		logger:   logger,
	}
}

// Me returns the full record of the session user.
func (s *UserService) Me(ctx context.Context, session *model.SessionUser) (*model.User, error) {
	user, err := s.users.GetByID(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("service/user: loading user %d: %w", session.ID, err)
	}
	return user, nil
}

// UpdateAvatar validates and normalises the uploaded image, stores it and
// points the user's avatar at it. The previous image is removed once the new
// path is saved.
//
// Only JPEG and PNG are accepted; anything else is apperror.ErrValidation.
func (s *UserService) UpdateAvatar(ctx context.Context, session *model.SessionUser, data []byte) (*model.User, error) {
	avatar, err := storage.NormalizeAvatar(data)
	if err != nil {
		return nil, err
	}

	current, err := s.users.GetByID(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("service/user: loading user %d: %w", session.ID, err)
	}

	path, err := s.avatars.Put(ctx, storage.NewKey(session.ID, avatar.Ext), avatar.ContentType, avatar.Data)
	if err != nil {
		return nil, fmt.Errorf("service/user: storing avatar: %w", err)
	}

	if err := s.users.SetAvatar(ctx, session.ID, path); err != nil {
		return nil, fmt.Errorf("service/user: saving avatar path: %w", err)
	}
	evictSession(ctx, s.sessions, s.logger, session.Email)

	if old := current.Avatar; old != nil && *old != path {
		// The new avatar is already live; a leftover object is only wasted space.
		if err := s.avatars.Delete(ctx, *old); err != nil {
			s.logger.Warn("failed to remove previous avatar",
				slog.Int64("userID", session.ID),
				slog.String("path", *old),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("avatar updated",
		slog.Int64("userID", session.ID),
		slog.String("path", path),
	)

	return s.Me(ctx, session)
}
