package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/dcmshq/dcms-server-go/internal/errors"
	"github.com/dcmshq/dcms-server-go/internal/model"
	"github.com/dcmshq/dcms-server-go/internal/repository"
	"github.com/dcmshq/dcms-server-go/internal/util"
)

type contextKey string

const PrincipalContextKey contextKey = "principal"

const touchTimeout = 5 * time.Second

// GetPrincipal returns the authenticated principal attached by
// AuthContext, or nil outside a protected route.
func GetPrincipal(ctx context.Context) *model.Principal {
	if principal, ok := ctx.Value(PrincipalContextKey).(*model.Principal); ok {
		return principal
	}
	return nil
}

// AuthContext is the resolver every protected request passes through:
// extract the bearer token, hash it, do one joined lookup for a live
// session on an active account, attach the Principal. Missing,
// malformed, expired, and revoked tokens all fail the same way.
type AuthContext struct {
	sessionRepo repository.SessionRepository
}

func NewAuthContext(sessionRepo repository.SessionRepository) *AuthContext {
	return &AuthContext{sessionRepo: sessionRepo}
}

func (m *AuthContext) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearer(r)
		if token == "" {
			writeError(w, apperrors.SessionExpired())
			return
		}

		principal, err := m.sessionRepo.ResolveTokenHash(r.Context(), util.HashToken(token))
		if err != nil {
			log.Error().Err(err).Msg("auth context: database error")
			writeError(w, apperrors.Internal("Authentication failed"))
			return
		}
		if principal == nil {
			writeError(w, apperrors.SessionExpired())
			return
		}

		// Best-effort last_seen_at update, off the request path. A
		// failed or timed-out touch never fails the request.
		go func(sessionID string, principal model.Principal) {
			ctx, cancel := context.WithTimeout(context.Background(), touchTimeout)
			defer cancel()
			if err := m.sessionRepo.Touch(ctx, principal.SessionID); err != nil {
				log.Debug().Err(err).Str("sessionId", sessionID).Msg("session touch failed")
			}
		}(principal.SessionID.String(), *principal)

		ctx := context.WithValue(r.Context(), PrincipalContextKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole wraps a protected route with a role predicate check.
// It assumes AuthContext already ran.
func RequireRole(pred func(model.Role) bool, message string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := GetPrincipal(r.Context())
			if principal == nil {
				writeError(w, apperrors.SessionExpired())
				return
			}
			if !pred(principal.Role) {
				writeError(w, apperrors.Forbidden(message))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractBearer(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}
