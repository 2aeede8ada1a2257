package auth

import (
	"context"

	"go.uber.org/zap"

	"github.com/fiberdash/backend/domain"
	"github.com/fiberdash/backend/pkg/password"
	"github.com/fiberdash/backend/repository"
	"github.com/fiberdash/backend/usecase/session"
)

type UseCase struct {
	users    repository.UserRepository
	sessions *session.Manager
	logger   *zap.Logger
}

func New(users repository.UserRepository, sessions *session.Manager, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		users:    users,
		sessions: sessions,
		logger:   logger,
	}
}

// Login verifies credentials and opens a session. Bad username, bad
// password, and deactivated account all collapse into ErrUnauthorized
// so the response does not reveal which one it was.
func (uc *UseCase) Login(ctx context.Context, username, plaintext, fp string) (*domain.SessionRecord, error) {
	user, err := uc.users.GetByUsername(ctx, username)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	if !user.IsActive() {
		uc.logger.Warn("login attempt for inactive account", zap.String("username", username))
		return nil, domain.ErrUnauthorized
	}

	ok, err := password.Verify(plaintext, user.PasswordHash)
	if err != nil || !ok {
		return nil, domain.ErrUnauthorized
	}

	return uc.sessions.Create(ctx, user.Identity(), fp)
}

// Logout ends one session.
func (uc *UseCase) Logout(ctx context.Context, sessionID string) error {
	return uc.sessions.End(ctx, sessionID)
}

// Current resolves the caller's session, if any.
func (uc *UseCase) Current(ctx context.Context, hint string) (*domain.SessionRecord, error) {
	return uc.sessions.Load(ctx, hint)
}

// Refresh extends a still-valid session.
func (uc *UseCase) Refresh(ctx context.Context, sessionID string) (bool, error) {
	return uc.sessions.Refresh(ctx, sessionID, 0)
}

// Sessions lists a user's active session IDs.
func (uc *UseCase) Sessions(ctx context.Context, username string) ([]string, error) {
	return uc.sessions.ActiveSessions(ctx, username)
}

// RevokeSession ends one of the user's sessions by ID.
func (uc *UseCase) RevokeSession(ctx context.Context, sessionID string) error {
	return uc.sessions.End(ctx, sessionID)
}

// RevokeOthers signs the user out everywhere except the current session.
func (uc *UseCase) RevokeOthers(ctx context.Context, username, currentID string) (int, error) {
	return uc.sessions.EndAllForUser(ctx, username, currentID)
}
