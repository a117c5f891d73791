package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/dcmshq/dcms-server-go/internal/audit"
	apperrors "github.com/dcmshq/dcms-server-go/internal/errors"
	"github.com/dcmshq/dcms-server-go/internal/model"
	"github.com/dcmshq/dcms-server-go/internal/util"
)

type ProvisionUserParams struct {
	Username    string
	DisplayName string
	Password    string
	Role        model.Role
}

// ProvisionUser is the admin-only account creation path. Accounts are
// never physically deleted; deprovisioning goes through SetUserActive.
func (s *AuthService) ProvisionUser(ctx context.Context, principal model.Principal, params ProvisionUserParams) (*model.User, error) {
	if !principal.Role.CanManageUsers() {
		return nil, apperrors.Forbidden("Only admin can provision users")
	}

	username := strings.TrimSpace(params.Username)
	if username == "" {
		return nil, apperrors.MissingRequired("username")
	}
	if !params.Role.IsValid() {
		return nil, apperrors.InvalidInput("role", "out of range")
	}
	if err := s.validateNewPassword(params.Password); err != nil {
		return nil, err
	}

	hash, err := util.HashPassword(params.Password, s.argon)
	if err != nil {
		return nil, apperrors.Internal("password hashing failed").WithCause(err)
	}

	user, err := s.userRepo.Create(ctx, model.CreateUserParams{
		Username:     username,
		DisplayName:  strings.TrimSpace(params.DisplayName),
		PasswordHash: hash,
		Role:         params.Role,
	})
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, apperrors.AlreadyExists("Username")
		}
		return nil, apperrors.Database(err)
	}

	audit.Log(ctx, audit.Event{
		Type:    audit.EventUserProvisioned,
		UserID:  principal.UserID.String(),
		Details: map[string]any{"newUserId": user.ID.String(), "role": user.Role.String()},
	})
	return user, nil
}

func (s *AuthService) UpdateUser(ctx context.Context, principal model.Principal, userID uuid.UUID, params model.UpdateUserParams) (*model.User, error) {
	if !principal.Role.CanManageUsers() {
		return nil, apperrors.Forbidden("Only admin can update users")
	}
	if params.Role != nil && !params.Role.IsValid() {
		return nil, apperrors.InvalidInput("role", "out of range")
	}

	user, err := s.userRepo.Update(ctx, userID, params)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if user == nil {
		return nil, apperrors.NotFound("User")
	}
	return user, nil
}

// SetUserActive enables or disables a user. Disabling revokes every
// session in the same transaction, so the account's tokens die with it.
func (s *AuthService) SetUserActive(ctx context.Context, principal model.Principal, userID uuid.UUID, active bool) (*model.User, error) {
	if !principal.Role.CanManageUsers() {
		return nil, apperrors.Forbidden("Only admin can enable or disable users")
	}

	var user *model.User
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		updated, err := s.userRepo.WithTx(tx).SetActive(ctx, userID, active)
		if err != nil {
			return err
		}
		if updated == nil {
			return apperrors.NotFound("User")
		}
		user = updated

		if !active {
			if _, err := s.sessionRepo.WithTx(tx).RevokeAll(ctx, userID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if appErr, ok := apperrors.AsAppError(err); ok {
			return nil, appErr
		}
		return nil, apperrors.Database(err)
	}

	if !active {
		audit.Log(ctx, audit.Event{
			Type:    audit.EventUserDeactivated,
			UserID:  principal.UserID.String(),
			Details: map[string]any{"targetUserId": userID.String()},
		})
	}
	return user, nil
}

func (s *AuthService) GetUser(ctx context.Context, principal model.Principal, userID uuid.UUID) (*model.User, error) {
	if !principal.Role.CanManageUsers() {
		return nil, apperrors.Forbidden("Only admin can view users")
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if user == nil {
		return nil, apperrors.NotFound("User")
	}
	return user, nil
}

func (s *AuthService) ListUsers(ctx context.Context, principal model.Principal, limit, offset int) ([]model.User, int, error) {
	if !principal.Role.CanManageUsers() {
		return nil, 0, apperrors.Forbidden("Only admin can list users")
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	users, err := s.userRepo.FindAll(ctx, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Database(err)
	}
	total, err := s.userRepo.Count(ctx)
	if err != nil {
		return nil, 0, apperrors.Database(err)
	}
	return users, total, nil
}
