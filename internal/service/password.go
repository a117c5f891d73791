package service

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/dcmshq/dcms-server-go/internal/audit"
	apperrors "github.com/dcmshq/dcms-server-go/internal/errors"
	"github.com/dcmshq/dcms-server-go/internal/model"
	"github.com/dcmshq/dcms-server-go/internal/util"
)

func (s *AuthService) validateNewPassword(password string) error {
	if len(strings.TrimSpace(password)) < s.policy.MinPasswordLength {
		return apperrors.ValidationError("new password is too short").
			WithDetails(map[string]int{"minLength": s.policy.MinPasswordLength})
	}
	return nil
}

// ChangePassword re-verifies the old password, then updates the hash
// and revokes every other live session in one transaction. A concurrent
// request on another session observes either the old password with all
// sessions intact or the new password with only the current session.
func (s *AuthService) ChangePassword(ctx context.Context, principal model.Principal, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return apperrors.ValidationError("old_password and new_password are required")
	}
	if err := s.validateNewPassword(newPassword); err != nil {
		return err
	}

	user, err := s.userRepo.FindByID(ctx, principal.UserID)
	if err != nil {
		return apperrors.Database(err)
	}
	if user == nil || !user.IsActive {
		return apperrors.SessionExpired()
	}

	// Same failure as a bad login so this endpoint is not a password
	// oracle.
	if !util.VerifyPassword(oldPassword, user.PasswordHash) {
		return apperrors.InvalidCredentials()
	}

	newHash, err := util.HashPassword(newPassword, s.argon)
	if err != nil {
		return apperrors.Internal("password hashing failed").WithCause(err)
	}

	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.userRepo.WithTx(tx).UpdatePasswordHash(ctx, user.ID, newHash); err != nil {
			return err
		}
		_, err := s.sessionRepo.WithTx(tx).RevokeAllExcept(ctx, user.ID, principal.SessionID)
		return err
	})
	if err != nil {
		return apperrors.Database(err)
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventPasswordChange,
		UserID:    user.ID.String(),
		SessionID: principal.SessionID.String(),
	})
	return nil
}

type ResetPasswordResult struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	// TempPassword is set only when the caller did not supply an
	// explicit password. It is returned once and never persisted.
	TempPassword *string `json:"tempPassword,omitempty"`
}

// ResetPassword is the administrative reset: privileged-only, updates
// the hash and revokes every session for the target (including live
// ones) in one transaction, forcing full re-authentication.
func (s *AuthService) ResetPassword(ctx context.Context, principal model.Principal, targetUsername, explicitPassword string) (*ResetPasswordResult, error) {
	if !principal.Role.CanResetPasswords() {
		return nil, apperrors.Forbidden("Only admin/manager can reset passwords")
	}

	username := strings.TrimSpace(targetUsername)
	if username == "" {
		return nil, apperrors.MissingRequired("username")
	}

	var tempPassword *string
	newPassword := strings.TrimSpace(explicitPassword)
	if newPassword == "" {
		generated, err := util.GenerateTempPassword()
		if err != nil {
			return nil, apperrors.Internal("temp password generation failed").WithCause(err)
		}
		newPassword = generated
		tempPassword = &generated
	}
	if err := s.validateNewPassword(newPassword); err != nil {
		return nil, err
	}

	newHash, err := util.HashPassword(newPassword, s.argon)
	if err != nil {
		return nil, apperrors.Internal("password hashing failed").WithCause(err)
	}

	var result ResetPasswordResult
	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		target, err := s.userRepo.WithTx(tx).FindByUsername(ctx, username)
		if err != nil {
			return err
		}
		if target == nil {
			return apperrors.NotFound("User")
		}

		if err := s.userRepo.WithTx(tx).UpdatePasswordHash(ctx, target.ID, newHash); err != nil {
			return err
		}
		if _, err := s.sessionRepo.WithTx(tx).RevokeAll(ctx, target.ID); err != nil {
			return err
		}

		result = ResetPasswordResult{
			UserID:       target.ID.String(),
			Username:     target.Username,
			TempPassword: tempPassword,
		}
		return nil
	})
	if err != nil {
		if appErr, ok := apperrors.AsAppError(err); ok {
			return nil, appErr
		}
		return nil, apperrors.Database(err)
	}

	audit.Log(ctx, audit.Event{
		Type:    audit.EventPasswordReset,
		UserID:  principal.UserID.String(),
		Details: map[string]any{"targetUserId": result.UserID},
	})
	return &result, nil
}
