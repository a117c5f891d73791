package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dcmshq/dcms-server-go/internal/model"
)

type SessionRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Session, error)
	// ResolveTokenHash does the single joined lookup behind every
	// protected request: the session must be live and the owning user
	// active. Returns nil when nothing matches.
	ResolveTokenHash(ctx context.Context, tokenHash string) (*model.Principal, error)
	Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error)
	// RotateToken atomically swaps the token hash of a live session
	// owned by userID. A nil result means the session was not live or
	// not owned by the caller.
	RotateToken(ctx context.Context, id, userID uuid.UUID, newTokenHash string) (*model.Session, error)
	// Extend moves expires_at forward inside a single statement:
	// LEAST(GREATEST(expires_at, now()) + hours, now() + maxHours).
	// ownerID nil skips the ownership check (privileged callers).
	Extend(ctx context.Context, id uuid.UUID, ownerID *uuid.UUID, hours, maxHours int) (*time.Time, error)
	Touch(ctx context.Context, id uuid.UUID) error
	Revoke(ctx context.Context, id, userID uuid.UUID) (bool, error)
	RevokeAllExcept(ctx context.Context, userID, keepID uuid.UUID) (int64, error)
	RevokeAll(ctx context.Context, userID uuid.UUID) (int64, error)
	ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]model.Session, error)
	// DeleteDefunct removes rows revoked or expired before the cutoff.
	DeleteDefunct(ctx context.Context, cutoff time.Time) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) SessionRepository
}

type sessionRepo struct {
	db sqlxDB
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) WithTx(tx *sqlx.Tx) SessionRepository {
	return &sessionRepo{db: tx}
}

func (r *sessionRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM sessions WHERE session_id = $1
	`, id)
	return HandleNotFound(&session, err)
}

type principalRow struct {
	SessionID uuid.UUID  `db:"session_id"`
	UserID    uuid.UUID  `db:"user_id"`
	Role      model.Role `db:"role"`
}

func (r *sessionRepo) ResolveTokenHash(ctx context.Context, tokenHash string) (*model.Principal, error) {
	var row principalRow
	err := r.db.GetContext(ctx, &row, `
		SELECT s.session_id, s.user_id, u.role
		FROM sessions s
		JOIN users u ON u.user_id = s.user_id
		WHERE s.token_hash = $1
		  AND s.revoked_at IS NULL
		  AND s.expires_at > now()
		  AND u.is_active = true
	`, tokenHash)
	resolved, err := HandleNotFound(&row, err)
	if resolved == nil || err != nil {
		return nil, err
	}
	return &model.Principal{
		UserID:    resolved.UserID,
		Role:      resolved.Role,
		SessionID: resolved.SessionID,
	}, nil
}

func (r *sessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO sessions
			(user_id, token_hash, session_type, device_name, expires_at,
			 impersonator_user_id, impersonated_user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING *
	`, params.UserID, params.TokenHash, params.SessionType, params.DeviceName,
		params.ExpiresAt, params.ImpersonatorUserID, params.ImpersonatedUserID)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) RotateToken(ctx context.Context, id, userID uuid.UUID, newTokenHash string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		UPDATE sessions SET
			token_hash = $3,
			last_seen_at = now()
		WHERE session_id = $1
		  AND user_id = $2
		  AND revoked_at IS NULL
		  AND expires_at > now()
		RETURNING *
	`, id, userID, newTokenHash)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) Extend(ctx context.Context, id uuid.UUID, ownerID *uuid.UUID, hours, maxHours int) (*time.Time, error) {
	var expiresAt time.Time
	err := r.db.GetContext(ctx, &expiresAt, `
		UPDATE sessions SET
			expires_at = LEAST(
				GREATEST(expires_at, now()) + make_interval(hours => $3),
				now() + make_interval(hours => $4)
			)
		WHERE session_id = $1
		  AND ($2::uuid IS NULL OR user_id = $2)
		  AND revoked_at IS NULL
		RETURNING expires_at
	`, id, ownerID, hours, maxHours)
	return HandleNotFound(&expiresAt, err)
}

func (r *sessionRepo) Touch(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET last_seen_at = now()
		WHERE session_id = $1
	`, id)
	return err
}

func (r *sessionRepo) Revoke(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET revoked_at = now()
		WHERE session_id = $1
		  AND user_id = $2
		  AND revoked_at IS NULL
	`, id, userID)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *sessionRepo) RevokeAllExcept(ctx context.Context, userID, keepID uuid.UUID) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET revoked_at = now()
		WHERE user_id = $1
		  AND revoked_at IS NULL
		  AND expires_at > now()
		  AND session_id <> $2
	`, userID, keepID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *sessionRepo) RevokeAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET revoked_at = now()
		WHERE user_id = $1
		  AND revoked_at IS NULL
	`, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *sessionRepo) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]model.Session, error) {
	var sessions []model.Session
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT * FROM sessions
		WHERE user_id = $1
		  AND revoked_at IS NULL
		  AND expires_at > now()
		ORDER BY last_seen_at DESC NULLS LAST, created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepo) DeleteDefunct(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM sessions
		WHERE (revoked_at IS NOT NULL AND revoked_at < $1)
		   OR expires_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
