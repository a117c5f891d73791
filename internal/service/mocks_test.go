package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dcmshq/dcms-server-go/internal/database"
	"github.com/dcmshq/dcms-server-go/internal/model"
	"github.com/dcmshq/dcms-server-go/internal/repository"
	"github.com/dcmshq/dcms-server-go/internal/util"
)

// fastArgon keeps password hashing cheap in tests.
var fastArgon = util.Argon2Params{
	Memory:      8 * 1024,
	Time:        1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

var defaultPolicy = SessionPolicy{
	SessionTTL:        24 * time.Hour,
	PatientTTL:        72 * time.Hour,
	RememberTTL:       168 * time.Hour,
	ImpersonationTTL:  2 * time.Hour,
	MaxExtendHours:    720,
	MinPasswordLength: 8,
}

// fakeTxRunner runs the transaction body directly against the mocks;
// the nil *sqlx.Tx is never dereferenced because mock WithTx ignores it.
type fakeTxRunner struct {
	beginErr error
}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn database.TxFunc) error {
	if f.beginErr != nil {
		return f.beginErr
	}
	return fn(nil)
}

type mockUserRepo struct {
	findByIDFunc           func(ctx context.Context, id uuid.UUID) (*model.User, error)
	findByUsernameFunc     func(ctx context.Context, username string) (*model.User, error)
	createFunc             func(ctx context.Context, params model.CreateUserParams) (*model.User, error)
	updateFunc             func(ctx context.Context, id uuid.UUID, params model.UpdateUserParams) (*model.User, error)
	updatePasswordHashFunc func(ctx context.Context, id uuid.UUID, passwordHash string) error
	setActiveFunc          func(ctx context.Context, id uuid.UUID, active bool) (*model.User, error)
	findAllFunc            func(ctx context.Context, limit, offset int) ([]model.User, error)
	countFunc              func(ctx context.Context) (int, error)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	if m.findByUsernameFunc != nil {
		return m.findByUsernameFunc(ctx, username)
	}
	return nil, nil
}

func (m *mockUserRepo) FindAll(ctx context.Context, limit, offset int) ([]model.User, error) {
	if m.findAllFunc != nil {
		return m.findAllFunc(ctx, limit, offset)
	}
	return nil, nil
}

func (m *mockUserRepo) Count(ctx context.Context) (int, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx)
	}
	return 0, nil
}

func (m *mockUserRepo) Create(ctx context.Context, params model.CreateUserParams) (*model.User, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, params)
	}
	return nil, nil
}

func (m *mockUserRepo) Update(ctx context.Context, id uuid.UUID, params model.UpdateUserParams) (*model.User, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, params)
	}
	return nil, nil
}

func (m *mockUserRepo) UpdatePasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error {
	if m.updatePasswordHashFunc != nil {
		return m.updatePasswordHashFunc(ctx, id, passwordHash)
	}
	return nil
}

func (m *mockUserRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) (*model.User, error) {
	if m.setActiveFunc != nil {
		return m.setActiveFunc(ctx, id, active)
	}
	return nil, nil
}

func (m *mockUserRepo) WithTx(tx *sqlx.Tx) repository.UserRepository {
	return m
}

type mockSessionRepo struct {
	findByIDFunc         func(ctx context.Context, id uuid.UUID) (*model.Session, error)
	resolveTokenHashFunc func(ctx context.Context, tokenHash string) (*model.Principal, error)
	createFunc           func(ctx context.Context, params model.CreateSessionParams) (*model.Session, error)
	rotateTokenFunc      func(ctx context.Context, id, userID uuid.UUID, newTokenHash string) (*model.Session, error)
	extendFunc           func(ctx context.Context, id uuid.UUID, ownerID *uuid.UUID, hours, maxHours int) (*time.Time, error)
	touchFunc            func(ctx context.Context, id uuid.UUID) error
	revokeFunc           func(ctx context.Context, id, userID uuid.UUID) (bool, error)
	revokeAllExceptFunc  func(ctx context.Context, userID, keepID uuid.UUID) (int64, error)
	revokeAllFunc        func(ctx context.Context, userID uuid.UUID) (int64, error)
	listActiveFunc       func(ctx context.Context, userID uuid.UUID) ([]model.Session, error)
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) ResolveTokenHash(ctx context.Context, tokenHash string) (*model.Principal, error) {
	if m.resolveTokenHashFunc != nil {
		return m.resolveTokenHashFunc(ctx, tokenHash)
	}
	return nil, nil
}

func (m *mockSessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, params)
	}
	return nil, nil
}

func (m *mockSessionRepo) RotateToken(ctx context.Context, id, userID uuid.UUID, newTokenHash string) (*model.Session, error) {
	if m.rotateTokenFunc != nil {
		return m.rotateTokenFunc(ctx, id, userID, newTokenHash)
	}
	return nil, nil
}

func (m *mockSessionRepo) Extend(ctx context.Context, id uuid.UUID, ownerID *uuid.UUID, hours, maxHours int) (*time.Time, error) {
	if m.extendFunc != nil {
		return m.extendFunc(ctx, id, ownerID, hours, maxHours)
	}
	return nil, nil
}

func (m *mockSessionRepo) Touch(ctx context.Context, id uuid.UUID) error {
	if m.touchFunc != nil {
		return m.touchFunc(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) Revoke(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	if m.revokeFunc != nil {
		return m.revokeFunc(ctx, id, userID)
	}
	return false, nil
}

func (m *mockSessionRepo) RevokeAllExcept(ctx context.Context, userID, keepID uuid.UUID) (int64, error) {
	if m.revokeAllExceptFunc != nil {
		return m.revokeAllExceptFunc(ctx, userID, keepID)
	}
	return 0, nil
}

func (m *mockSessionRepo) RevokeAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	if m.revokeAllFunc != nil {
		return m.revokeAllFunc(ctx, userID)
	}
	return 0, nil
}

func (m *mockSessionRepo) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]model.Session, error) {
	if m.listActiveFunc != nil {
		return m.listActiveFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteDefunct(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (m *mockSessionRepo) WithTx(tx *sqlx.Tx) repository.SessionRepository {
	return m
}

func intPtr(n int) *int {
	return &n
}

func newTestService(userRepo repository.UserRepository, sessionRepo repository.SessionRepository) *AuthService {
	return NewAuthService(&fakeTxRunner{}, userRepo, sessionRepo, defaultPolicy, fastArgon)
}

func sessionFromParams(params model.CreateSessionParams) *model.Session {
	return &model.Session{
		ID:                 uuid.New(),
		UserID:             params.UserID,
		TokenHash:          params.TokenHash,
		SessionType:        params.SessionType,
		DeviceName:         params.DeviceName,
		CreatedAt:          time.Now(),
		ExpiresAt:          params.ExpiresAt,
		ImpersonatorUserID: params.ImpersonatorUserID,
		ImpersonatedUserID: params.ImpersonatedUserID,
	}
}
