package profile

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fiberdash/backend/domain"
	"github.com/fiberdash/backend/pkg/password"
	"github.com/fiberdash/backend/repository"
)

type UseCase struct {
	users  repository.UserRepository
	logger *zap.Logger
}

func New(users repository.UserRepository, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		users:  users,
		logger: logger,
	}
}

func (uc *UseCase) Get(ctx context.Context, username string) (*domain.User, error) {
	return uc.users.GetByUsername(ctx, username)
}

// Update changes the mutable profile fields. Username and role are not
// touched here; a role change goes through account administration and
// requires a fresh login to take effect.
func (uc *UseCase) Update(ctx context.Context, username, email string, metadata map[string]string) (*domain.User, error) {
	user, err := uc.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if email != "" {
		user.Email = email
	}
	if metadata != nil {
		user.Metadata = metadata
	}
	user.UpdatedAt = time.Now()

	if err := uc.users.Upsert(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword verifies the current password before setting a new one.
func (uc *UseCase) ChangePassword(ctx context.Context, username, current, next string) error {
	user, err := uc.users.GetByUsername(ctx, username)
	if err != nil {
		return err
	}

	ok, err := password.Verify(current, user.PasswordHash)
	if err != nil || !ok {
		return domain.ErrUnauthorized
	}
	if len(next) < 8 {
		return domain.NewError(domain.ErrCodeInvalid, "password must be at least 8 characters")
	}

	hash, err := password.Hash(next, password.DefaultParams())
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.UpdatedAt = time.Now()

	if err := uc.users.Upsert(ctx, user); err != nil {
		return err
	}
	uc.logger.Info("password changed", zap.String("username", username))
	return nil
}
