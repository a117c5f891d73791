package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dcmshq/dcms-server-go/internal/audit"
	"github.com/dcmshq/dcms-server-go/internal/database"
	apperrors "github.com/dcmshq/dcms-server-go/internal/errors"
	"github.com/dcmshq/dcms-server-go/internal/model"
	"github.com/dcmshq/dcms-server-go/internal/repository"
	"github.com/dcmshq/dcms-server-go/internal/util"
)

// SessionPolicy holds the TTL and password rules applied by the
// lifecycle manager. It is built once from config and passed in at
// construction; the service keeps no other mutable state.
type SessionPolicy struct {
	SessionTTL        time.Duration
	PatientTTL        time.Duration
	RememberTTL       time.Duration
	ImpersonationTTL  time.Duration
	MaxExtendHours    int
	MinPasswordLength int
}

// txRunner is the slice of database.DB the service needs; it lets the
// transactional paths run against a fake in tests.
type txRunner interface {
	WithTx(ctx context.Context, fn database.TxFunc) error
}

type AuthService struct {
	db          txRunner
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	policy      SessionPolicy
	argon       util.Argon2Params

	// now is injectable so expiry behavior is testable without sleeping.
	now func() time.Time
}

func NewAuthService(
	db txRunner,
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	policy SessionPolicy,
	argon util.Argon2Params,
) *AuthService {
	return &AuthService{
		db:          db,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		policy:      policy,
		argon:       argon,
		now:         time.Now,
	}
}

type LoginParams struct {
	Username    string
	Password    string
	SessionType model.SessionType
	DeviceName  *string
	Remember    bool
	// RequiredRole restricts a login surface to one role (the patient
	// portal requires RolePatient). Nil means any role may log in.
	RequiredRole *model.Role
}

type LoginResult struct {
	// Token is the plaintext bearer secret. It is handed to the caller
	// exactly once and never stored or logged.
	Token   string            `json:"token"`
	Session model.SessionView `json:"session"`
	User    model.Profile     `json:"user"`
}

func (s *AuthService) Login(ctx context.Context, params LoginParams) (*LoginResult, error) {
	username := strings.TrimSpace(params.Username)
	if username == "" || params.Password == "" {
		return nil, apperrors.ValidationError("username and password are required")
	}
	if !params.SessionType.IsValid() {
		return nil, apperrors.InvalidInput("session_type", "unknown value")
	}

	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if user == nil {
		// Identical failure for unknown username and wrong password.
		audit.Log(ctx, audit.Event{Type: audit.EventLoginFailure, Details: map[string]any{"reason": "unknown_user"}})
		return nil, apperrors.InvalidCredentials()
	}

	if !user.IsActive {
		// Disabled accounts reveal their status. Credential state has
		// not been confirmed at this point; documented trade-off.
		audit.Log(ctx, audit.Event{Type: audit.EventLoginFailure, UserID: user.ID.String(), Details: map[string]any{"reason": "disabled"}})
		return nil, apperrors.Forbidden("Account is disabled")
	}

	if params.RequiredRole != nil && user.Role != *params.RequiredRole {
		audit.Log(ctx, audit.Event{Type: audit.EventLoginFailure, UserID: user.ID.String(), Details: map[string]any{"reason": "role_mismatch"}})
		return nil, apperrors.Forbidden("Account type not allowed for this login")
	}

	if !util.VerifyPassword(params.Password, user.PasswordHash) {
		audit.Log(ctx, audit.Event{Type: audit.EventLoginFailure, UserID: user.ID.String(), Details: map[string]any{"reason": "bad_password"}})
		return nil, apperrors.InvalidCredentials()
	}

	token, err := util.GenerateToken()
	if err != nil {
		return nil, apperrors.Internal("token generation failed").WithCause(err)
	}

	expiresAt := s.now().Add(s.sessionTTL(params))

	session, err := s.sessionRepo.Create(ctx, model.CreateSessionParams{
		UserID:      user.ID,
		TokenHash:   util.HashToken(token),
		SessionType: params.SessionType,
		DeviceName:  params.DeviceName,
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventLoginSuccess,
		UserID:    user.ID.String(),
		SessionID: session.ID.String(),
		Details:   map[string]any{"sessionType": params.SessionType.String()},
	})

	return &LoginResult{
		Token:   token,
		Session: session.View(),
		User:    user.Profile(),
	}, nil
}

func (s *AuthService) sessionTTL(params LoginParams) time.Duration {
	switch {
	case params.SessionType == model.SessionTypePatientPortal:
		return s.policy.PatientTTL
	case params.Remember:
		return s.policy.RememberTTL
	default:
		return s.policy.SessionTTL
	}
}

type RefreshResult struct {
	Token     string    `json:"token"`
	SessionID string    `json:"sessionId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Refresh rotates the bearer token of the caller's current session. The
// swap is a single compare-and-swap update on the live row, so the old
// token is dead the moment this returns.
func (s *AuthService) Refresh(ctx context.Context, principal model.Principal) (*RefreshResult, error) {
	token, err := util.GenerateToken()
	if err != nil {
		return nil, apperrors.Internal("token generation failed").WithCause(err)
	}

	session, err := s.sessionRepo.RotateToken(ctx, principal.SessionID, principal.UserID, util.HashToken(token))
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil {
		return nil, apperrors.SessionExpired()
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventTokenRefresh,
		UserID:    principal.UserID.String(),
		SessionID: principal.SessionID.String(),
	})

	return &RefreshResult{
		Token:     token,
		SessionID: session.ID.String(),
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// Touch is the best-effort last_seen_at update fired on every resolved
// request. Failure is swallowed; it must never fail the caller.
func (s *AuthService) Touch(ctx context.Context, principal model.Principal) {
	if err := s.sessionRepo.Touch(ctx, principal.SessionID); err != nil {
		log.Debug().Err(err).Str("sessionId", principal.SessionID.String()).Msg("session touch failed")
	}
}

// Me returns the caller's profile and current session, re-checking
// liveness at read time.
func (s *AuthService) Me(ctx context.Context, principal model.Principal) (*model.Profile, *model.SessionView, error) {
	user, err := s.userRepo.FindByID(ctx, principal.UserID)
	if err != nil {
		return nil, nil, apperrors.Database(err)
	}
	if user == nil || !user.IsActive {
		return nil, nil, apperrors.SessionExpired()
	}

	session, err := s.sessionRepo.FindByID(ctx, principal.SessionID)
	if err != nil {
		return nil, nil, apperrors.Database(err)
	}
	if session == nil || session.UserID != principal.UserID || !session.IsLive(s.now()) {
		return nil, nil, apperrors.SessionExpired()
	}

	profile := user.Profile()
	view := session.View()
	return &profile, &view, nil
}
