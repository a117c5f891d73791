package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dcmshq/dcms-server-go/internal/audit"
	apperrors "github.com/dcmshq/dcms-server-go/internal/errors"
	"github.com/dcmshq/dcms-server-go/internal/model"
	"github.com/dcmshq/dcms-server-go/internal/util"
)

// Extend moves a session's expiry forward. The new expiry is computed
// by the store in a single statement so concurrent extends cannot lose
// updates: LEAST(GREATEST(expires_at, now()) + hours, now() + max).
// Expiry never moves backward and never grows past now() + max.
// A nil requestedHours falls back to the caller's default window:
// the patient TTL for patients, the staff TTL for everyone else.
func (s *AuthService) Extend(ctx context.Context, principal model.Principal, sessionID uuid.UUID, hours *int) (*time.Time, error) {
	requestedHours := s.defaultExtendHours(principal.Role)
	if hours != nil {
		requestedHours = *hours
	}

	if requestedHours <= 0 {
		return nil, apperrors.ValidationError("extend_hours must be positive")
	}
	if requestedHours > s.policy.MaxExtendHours {
		return nil, apperrors.ValidationError("extend_hours too large").
			WithDetails(map[string]int{"max": s.policy.MaxExtendHours})
	}

	var owner *uuid.UUID
	if !principal.Role.CanInspectAnySession() {
		owner = &principal.UserID
	}

	expiresAt, err := s.sessionRepo.Extend(ctx, sessionID, owner, requestedHours, s.policy.MaxExtendHours)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if expiresAt == nil {
		return nil, apperrors.NotFound("Session")
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventSessionExtend,
		UserID:    principal.UserID.String(),
		SessionID: sessionID.String(),
		Details:   map[string]any{"hours": requestedHours},
	})

	return expiresAt, nil
}

func (s *AuthService) defaultExtendHours(role model.Role) int {
	if role.IsPatient() {
		return int(s.policy.PatientTTL / time.Hour)
	}
	return int(s.policy.SessionTTL / time.Hour)
}

// RevokeOne terminates a single session. Current policy requires
// ownership even for privileged roles; broader revocation goes through
// the administrative reset path.
func (s *AuthService) RevokeOne(ctx context.Context, principal model.Principal, sessionID uuid.UUID) error {
	revoked, err := s.sessionRepo.Revoke(ctx, sessionID, principal.UserID)
	if err != nil {
		return apperrors.Database(err)
	}
	if !revoked {
		return apperrors.NotFound("Session")
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventSessionRevoke,
		UserID:    principal.UserID.String(),
		SessionID: sessionID.String(),
	})
	return nil
}

// Logout revokes the caller's current session.
func (s *AuthService) Logout(ctx context.Context, principal model.Principal) error {
	revoked, err := s.sessionRepo.Revoke(ctx, principal.SessionID, principal.UserID)
	if err != nil {
		return apperrors.Database(err)
	}
	if !revoked {
		return apperrors.SessionExpired()
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventLogout,
		UserID:    principal.UserID.String(),
		SessionID: principal.SessionID.String(),
	})
	return nil
}

// RevokeAllExceptCurrent is the "log out other devices" action. It is
// also run internally after a password change.
func (s *AuthService) RevokeAllExceptCurrent(ctx context.Context, principal model.Principal) (int64, error) {
	count, err := s.sessionRepo.RevokeAllExcept(ctx, principal.UserID, principal.SessionID)
	if err != nil {
		return 0, apperrors.Database(err)
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventSessionRevoke,
		UserID:    principal.UserID.String(),
		SessionID: principal.SessionID.String(),
		Details:   map[string]any{"scope": "all_except_current", "count": count},
	})
	return count, nil
}

// RevokeAllOwn terminates every live session of the caller, the
// current one included. The request that triggered it is the last one
// its token will ever authenticate.
func (s *AuthService) RevokeAllOwn(ctx context.Context, principal model.Principal) (int64, error) {
	count, err := s.sessionRepo.RevokeAll(ctx, principal.UserID)
	if err != nil {
		return 0, apperrors.Database(err)
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventSessionRevoke,
		UserID:    principal.UserID.String(),
		SessionID: principal.SessionID.String(),
		Details:   map[string]any{"scope": "all", "count": count},
	})
	return count, nil
}

func (s *AuthService) ListActive(ctx context.Context, userID uuid.UUID) ([]model.SessionView, error) {
	sessions, err := s.sessionRepo.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	views := make([]model.SessionView, 0, len(sessions))
	for i := range sessions {
		views = append(views, sessions[i].View())
	}
	return views, nil
}

// GetOne fetches a session by id. Owners see their own; roles with
// session inspection rights see any.
func (s *AuthService) GetOne(ctx context.Context, principal model.Principal, sessionID uuid.UUID) (*model.Session, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}
	if session.UserID != principal.UserID && !principal.Role.CanInspectAnySession() {
		// Hidden rather than forbidden: existence is not revealed.
		return nil, apperrors.NotFound("Session")
	}
	return session, nil
}

// Impersonate creates a session bound to the target user's identity
// under an admin's authority. The session carries a short fixed TTL and
// records both parties for audit; downstream resolution sees only the
// target.
func (s *AuthService) Impersonate(ctx context.Context, principal model.Principal, targetUserID uuid.UUID) (*LoginResult, error) {
	if !principal.Role.IsAdmin() {
		return nil, apperrors.Forbidden("Only admin can impersonate")
	}

	target, err := s.userRepo.FindByID(ctx, targetUserID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if target == nil || !target.IsActive {
		return nil, apperrors.NotFound("Target user")
	}

	token, err := util.GenerateToken()
	if err != nil {
		return nil, apperrors.Internal("token generation failed").WithCause(err)
	}

	deviceName := "Impersonated by " + principal.UserID.String()
	session, err := s.sessionRepo.Create(ctx, model.CreateSessionParams{
		UserID:             target.ID,
		TokenHash:          util.HashToken(token),
		SessionType:        model.SessionTypeStaffPortal,
		DeviceName:         &deviceName,
		ExpiresAt:          s.now().Add(s.policy.ImpersonationTTL),
		ImpersonatorUserID: &principal.UserID,
		ImpersonatedUserID: &target.ID,
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventImpersonationStart,
		UserID:    principal.UserID.String(),
		SessionID: session.ID.String(),
		Details:   map[string]any{"targetUserId": target.ID.String()},
	})

	return &LoginResult{
		Token:   token,
		Session: session.View(),
		User:    target.Profile(),
	}, nil
}
