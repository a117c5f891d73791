package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/dcmshq/dcms-server-go/internal/errors"
	"github.com/dcmshq/dcms-server-go/internal/model"
	"github.com/dcmshq/dcms-server-go/internal/util"
)

func TestAuthService_ChangePassword(t *testing.T) {
	ctx := context.Background()
	user := newActiveUser(t, "drjones", "old password", model.RoleDoctor)
	principal := model.Principal{UserID: user.ID, Role: user.Role, SessionID: uuid.New()}

	userRepoFor := func(u *model.User) *mockUserRepo {
		return &mockUserRepo{
			findByIDFunc: func(ctx context.Context, id uuid.UUID) (*model.User, error) {
				return u, nil
			},
		}
	}

	t.Run("updates hash and revokes other sessions together", func(t *testing.T) {
		var newHash string
		var keptSession uuid.UUID
		userRepo := userRepoFor(user)
		userRepo.updatePasswordHashFunc = func(ctx context.Context, id uuid.UUID, passwordHash string) error {
			assert.Equal(t, user.ID, id)
			newHash = passwordHash
			return nil
		}
		sessionRepo := &mockSessionRepo{
			revokeAllExceptFunc: func(ctx context.Context, userID, keepID uuid.UUID) (int64, error) {
				assert.Equal(t, user.ID, userID)
				keptSession = keepID
				return 2, nil
			},
		}
		svc := newTestService(userRepo, sessionRepo)

		err := svc.ChangePassword(ctx, principal, "old password", "new password 1")
		require.NoError(t, err)

		assert.True(t, util.VerifyPassword("new password 1", newHash))
		assert.False(t, util.VerifyPassword("old password", newHash))
		assert.Equal(t, principal.SessionID, keptSession)
	})

	t.Run("wrong old password reads as invalid credentials", func(t *testing.T) {
		var hashUpdated bool
		userRepo := userRepoFor(user)
		userRepo.updatePasswordHashFunc = func(ctx context.Context, id uuid.UUID, passwordHash string) error {
			hashUpdated = true
			return nil
		}
		svc := newTestService(userRepo, &mockSessionRepo{})

		err := svc.ChangePassword(ctx, principal, "not the old password", "new password 1")

		assert.Equal(t, apperrors.ErrCodeInvalidCredentials, apperrors.GetCode(err))
		assert.False(t, hashUpdated)
	})

	t.Run("rejects short new password before verifying anything", func(t *testing.T) {
		svc := newTestService(userRepoFor(user), &mockSessionRepo{})

		err := svc.ChangePassword(ctx, principal, "old password", "short")

		assert.Equal(t, apperrors.ErrCodeValidation, apperrors.GetCode(err))
	})

	t.Run("failed transaction surfaces as database error", func(t *testing.T) {
		svc := NewAuthService(
			&fakeTxRunner{beginErr: assert.AnError},
			userRepoFor(user), &mockSessionRepo{}, defaultPolicy, fastArgon,
		)

		err := svc.ChangePassword(ctx, principal, "old password", "new password 1")

		assert.Equal(t, apperrors.ErrCodeDatabase, apperrors.GetCode(err))
	})
}

func TestAuthService_ResetPassword(t *testing.T) {
	ctx := context.Background()
	target := newActiveUser(t, "reception1", "forgotten pw", model.RoleReceptionist)
	admin := model.Principal{UserID: uuid.New(), Role: model.RoleAdmin, SessionID: uuid.New()}
	manager := model.Principal{UserID: uuid.New(), Role: model.RoleManager, SessionID: uuid.New()}

	newRepos := func() (*mockUserRepo, *mockSessionRepo, *string, *uuid.UUID) {
		var storedHash string
		var revokedUser uuid.UUID
		userRepo := &mockUserRepo{
			findByUsernameFunc: func(ctx context.Context, username string) (*model.User, error) {
				if username == target.Username {
					return target, nil
				}
				return nil, nil
			},
			updatePasswordHashFunc: func(ctx context.Context, id uuid.UUID, passwordHash string) error {
				storedHash = passwordHash
				return nil
			},
		}
		sessionRepo := &mockSessionRepo{
			revokeAllFunc: func(ctx context.Context, userID uuid.UUID) (int64, error) {
				revokedUser = userID
				return 2, nil
			},
		}
		return userRepo, sessionRepo, &storedHash, &revokedUser
	}

	t.Run("generates a temp password and revokes every session", func(t *testing.T) {
		userRepo, sessionRepo, storedHash, revokedUser := newRepos()
		svc := newTestService(userRepo, sessionRepo)

		result, err := svc.ResetPassword(ctx, admin, "reception1", "")
		require.NoError(t, err)

		require.NotNil(t, result.TempPassword)
		assert.Len(t, *result.TempPassword, 20)
		assert.True(t, util.VerifyPassword(*result.TempPassword, *storedHash))
		assert.Equal(t, target.ID, *revokedUser)
		assert.Equal(t, target.Username, result.Username)
	})

	t.Run("explicit password is used and not echoed back", func(t *testing.T) {
		userRepo, sessionRepo, storedHash, _ := newRepos()
		svc := newTestService(userRepo, sessionRepo)

		result, err := svc.ResetPassword(ctx, manager, "reception1", "chosen password 9")
		require.NoError(t, err)

		assert.Nil(t, result.TempPassword)
		assert.True(t, util.VerifyPassword("chosen password 9", *storedHash))
	})

	t.Run("non-privileged roles are refused", func(t *testing.T) {
		for _, role := range []model.Role{model.RoleDoctor, model.RoleReceptionist, model.RolePatient} {
			userRepo, sessionRepo, _, _ := newRepos()
			svc := newTestService(userRepo, sessionRepo)
			caller := model.Principal{UserID: uuid.New(), Role: role, SessionID: uuid.New()}

			_, err := svc.ResetPassword(ctx, caller, "reception1", "")
			assert.Equal(t, apperrors.ErrCodeForbidden, apperrors.GetCode(err))
		}
	})

	t.Run("unknown target is not found", func(t *testing.T) {
		userRepo, sessionRepo, _, _ := newRepos()
		svc := newTestService(userRepo, sessionRepo)

		_, err := svc.ResetPassword(ctx, admin, "ghost", "")

		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})

	t.Run("username is required", func(t *testing.T) {
		svc := newTestService(&mockUserRepo{}, &mockSessionRepo{})

		_, err := svc.ResetPassword(ctx, admin, "   ", "")

		assert.Equal(t, apperrors.ErrCodeMissingRequired, apperrors.GetCode(err))
	})
}
