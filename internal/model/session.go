package model

import (
	"time"

	"github.com/google/uuid"
)

type Session struct {
	ID                 uuid.UUID   `db:"session_id" json:"sessionId"`
	UserID             uuid.UUID   `db:"user_id" json:"userId"`
	TokenHash          string      `db:"token_hash" json:"-"`
	SessionType        SessionType `db:"session_type" json:"sessionType"`
	DeviceName         *string     `db:"device_name" json:"deviceName,omitempty"`
	CreatedAt          time.Time   `db:"created_at" json:"createdAt"`
	LastSeenAt         *time.Time  `db:"last_seen_at" json:"lastSeenAt,omitempty"`
	ExpiresAt          time.Time   `db:"expires_at" json:"expiresAt"`
	RevokedAt          *time.Time  `db:"revoked_at" json:"revokedAt,omitempty"`
	ImpersonatorUserID *uuid.UUID  `db:"impersonator_user_id" json:"impersonatorUserId,omitempty"`
	ImpersonatedUserID *uuid.UUID  `db:"impersonated_user_id" json:"impersonatedUserId,omitempty"`
}

// IsLive reports the session liveness predicate relative to now. The
// owning user's is_active flag is checked separately at lookup time;
// there is no stored "expired" state.
func (s *Session) IsLive(now time.Time) bool {
	return s.RevokedAt == nil && s.ExpiresAt.After(now)
}

func (s *Session) IsImpersonation() bool {
	return s.ImpersonatorUserID != nil
}

type CreateSessionParams struct {
	UserID             uuid.UUID
	TokenHash          string
	SessionType        SessionType
	DeviceName         *string
	ExpiresAt          time.Time
	ImpersonatorUserID *uuid.UUID
	ImpersonatedUserID *uuid.UUID
}

// SessionView is the client-facing session shape: everything except the
// token hash.
type SessionView struct {
	SessionID   uuid.UUID   `json:"sessionId"`
	SessionType SessionType `json:"sessionType"`
	DeviceName  *string     `json:"deviceName,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	LastSeenAt  *time.Time  `json:"lastSeenAt,omitempty"`
	ExpiresAt   time.Time   `json:"expiresAt"`
}

func (s *Session) View() SessionView {
	return SessionView{
		SessionID:   s.ID,
		SessionType: s.SessionType,
		DeviceName:  s.DeviceName,
		CreatedAt:   s.CreatedAt,
		LastSeenAt:  s.LastSeenAt,
		ExpiresAt:   s.ExpiresAt,
	}
}

// Principal is the authenticated identity attached to a request after
// token resolution. It is request-scoped and never persisted.
type Principal struct {
	UserID    uuid.UUID
	Role      Role
	SessionID uuid.UUID
}
