package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apperrors "github.com/dcmshq/dcms-server-go/internal/errors"
	"github.com/dcmshq/dcms-server-go/internal/middleware"
	"github.com/dcmshq/dcms-server-go/internal/model"
	"github.com/dcmshq/dcms-server-go/internal/service"
)

// AuthHandler exposes the credential and session lifecycle API.
type AuthHandler struct {
	authService  *service.AuthService
	authContext  func(http.Handler) http.Handler
	loginLimiter func(http.Handler) http.Handler
}

func NewAuthHandler(
	authService *service.AuthService,
	authContext func(http.Handler) http.Handler,
	loginLimiter func(http.Handler) http.Handler,
) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		authContext:  authContext,
		loginLimiter: loginLimiter,
	}
}

func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		if h.loginLimiter != nil {
			r.Use(h.loginLimiter)
		}
		r.Post("/login", h.Login)
		r.Post("/patient/login", h.PatientLogin)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.authContext)

		r.Get("/me", h.Me)
		r.Post("/logout", h.Logout)
		r.Post("/logout_all_except_current", h.LogoutAllExceptCurrent)
		r.Post("/refresh", h.Refresh)

		r.Get("/sessions", h.ListSessions)
		r.Post("/sessions/revoke_all", h.RevokeAllSessions)
		r.Get("/sessions/{id}", h.GetSession)
		r.Post("/sessions/{id}/extend", h.ExtendSession)
		r.Post("/sessions/{id}/revoke", h.RevokeSession)

		r.Post("/impersonate/{userID}", h.Impersonate)
		r.Post("/change_password", h.ChangePassword)
		r.Post("/reset_password", h.ResetPassword)
	})

	return r
}

type loginRequest struct {
	Username   string  `json:"username"`
	Password   string  `json:"password"`
	DeviceName *string `json:"deviceName"`
	Remember   bool    `json:"remember"`
}

// POST /auth/login
//
// The session type is pinned per login surface; clients never choose
// their own classification or window.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.authService.Login(r.Context(), service.LoginParams{
		Username:    req.Username,
		Password:    req.Password,
		SessionType: model.SessionTypeStaffPortal,
		DeviceName:  req.DeviceName,
		Remember:    req.Remember,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, result)
}

// POST /auth/patient/login
//
// Patient-portal surface: only accounts with the patient role may log
// in here, and the patient session window applies regardless of the
// remember flag.
func (h *AuthHandler) PatientLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, err)
		return
	}

	patientRole := model.RolePatient
	result, err := h.authService.Login(r.Context(), service.LoginParams{
		Username:     req.Username,
		Password:     req.Password,
		SessionType:  model.SessionTypePatientPortal,
		DeviceName:   req.DeviceName,
		RequiredRole: &patientRole,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, result)
}

// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, apperrors.SessionExpired())
		return
	}

	profile, session, err := h.authService.Me(r.Context(), *principal)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]any{
		"user":    profile,
		"session": session,
	})
}

// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, apperrors.SessionExpired())
		return
	}

	if err := h.authService.Logout(r.Context(), *principal); err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]bool{"loggedOut": true})
}

// POST /auth/logout_all_except_current
func (h *AuthHandler) LogoutAllExceptCurrent(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, apperrors.SessionExpired())
		return
	}

	count, err := h.authService.RevokeAllExceptCurrent(r.Context(), *principal)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]int64{"revokedCount": count})
}

// POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, apperrors.SessionExpired())
		return
	}

	result, err := h.authService.Refresh(r.Context(), *principal)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, result)
}

// GET /auth/sessions
func (h *AuthHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, apperrors.SessionExpired())
		return
	}

	views, err := h.authService.ListActive(r.Context(), principal.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]any{
		"sessions":         views,
		"currentSessionId": principal.SessionID,
	})
}

// GET /auth/sessions/{id}
func (h *AuthHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, apperrors.SessionExpired())
		return
	}

	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, apperrors.InvalidInput("id", "must be a UUID"))
		return
	}

	session, err := h.authService.GetOne(r.Context(), *principal, sessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, session)
}

type extendRequest struct {
	// Hours may be omitted; the service then extends by the caller's
	// default session window.
	Hours *int `json:"hours"`
}

// POST /auth/sessions/{id}/extend
func (h *AuthHandler) ExtendSession(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, apperrors.SessionExpired())
		return
	}

	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, apperrors.InvalidInput("id", "must be a UUID"))
		return
	}

	var req extendRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeError(w, err)
		return
	}

	expiresAt, err := h.authService.Extend(r.Context(), *principal, sessionID, req.Hours)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]any{"expiresAt": expiresAt})
}

// POST /auth/sessions/{id}/revoke
func (h *AuthHandler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, apperrors.SessionExpired())
		return
	}

	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, apperrors.InvalidInput("id", "must be a UUID"))
		return
	}

	if err := h.authService.RevokeOne(r.Context(), *principal, sessionID); err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]bool{"revoked": true})
}

// POST /auth/sessions/revoke_all
func (h *AuthHandler) RevokeAllSessions(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, apperrors.SessionExpired())
		return
	}

	count, err := h.authService.RevokeAllOwn(r.Context(), *principal)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]int64{"revokedCount": count})
}

// POST /auth/impersonate/{userID}
func (h *AuthHandler) Impersonate(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, apperrors.SessionExpired())
		return
	}

	targetID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, apperrors.InvalidInput("userID", "must be a UUID"))
		return
	}

	result, err := h.authService.Impersonate(r.Context(), *principal, targetID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, result)
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// POST /auth/change_password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, apperrors.SessionExpired())
		return
	}

	var req changePasswordRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, err)
		return
	}

	if err := h.authService.ChangePassword(r.Context(), *principal, req.OldPassword, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]bool{"changed": true})
}

type resetPasswordRequest struct {
	Username    string `json:"username"`
	NewPassword string `json:"newPassword"`
}

// POST /auth/reset_password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, apperrors.SessionExpired())
		return
	}

	var req resetPasswordRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.authService.ResetPassword(r.Context(), *principal, req.Username, req.NewPassword)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, result)
}
