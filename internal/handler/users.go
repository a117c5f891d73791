package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apperrors "github.com/dcmshq/dcms-server-go/internal/errors"
	"github.com/dcmshq/dcms-server-go/internal/middleware"
	"github.com/dcmshq/dcms-server-go/internal/model"
	"github.com/dcmshq/dcms-server-go/internal/service"
)

// UserHandler is the administrative account surface. Every route sits
// behind the resolver; the service re-checks the admin capability.
type UserHandler struct {
	authService *service.AuthService
	authContext func(http.Handler) http.Handler
}

func NewUserHandler(authService *service.AuthService, authContext func(http.Handler) http.Handler) *UserHandler {
	return &UserHandler{
		authService: authService,
		authContext: authContext,
	}
}

func (h *UserHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(h.authContext)
	r.Use(middleware.RequireRole(model.Role.CanManageUsers, "Admin access required"))

	r.Post("/", h.ProvisionUser)
	r.Get("/", h.ListUsers)
	r.Get("/{id}", h.GetUser)
	r.Patch("/{id}", h.UpdateUser)
	r.Post("/{id}/activate", h.ActivateUser)
	r.Post("/{id}/deactivate", h.DeactivateUser)

	return r
}

type provisionUserRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
	Role        int16  `json:"role"`
}

// POST /users
func (h *UserHandler) ProvisionUser(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, apperrors.SessionExpired())
		return
	}

	var req provisionUserRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.authService.ProvisionUser(r.Context(), *principal, service.ProvisionUserParams{
		Username:    req.Username,
		DisplayName: req.DisplayName,
		Password:    req.Password,
		Role:        model.Role(req.Role),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusCreated, user)
}

// GET /users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, apperrors.SessionExpired())
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	users, total, err := h.authService.ListUsers(r.Context(), *principal, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  users,
		"total": total,
	})
}

// GET /users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, apperrors.SessionExpired())
		return
	}

	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, apperrors.InvalidInput("id", "must be a UUID"))
		return
	}

	user, err := h.authService.GetUser(r.Context(), *principal, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, user)
}

type updateUserRequest struct {
	DisplayName *string `json:"displayName"`
	Role        *int16  `json:"role"`
}

// PATCH /users/{id}
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, apperrors.SessionExpired())
		return
	}

	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, apperrors.InvalidInput("id", "must be a UUID"))
		return
	}

	var req updateUserRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, err)
		return
	}

	params := model.UpdateUserParams{DisplayName: req.DisplayName}
	if req.Role != nil {
		role := model.Role(*req.Role)
		params.Role = &role
	}

	user, err := h.authService.UpdateUser(r.Context(), *principal, userID, params)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, user)
}

// POST /users/{id}/activate
func (h *UserHandler) ActivateUser(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

// POST /users/{id}/deactivate
func (h *UserHandler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *UserHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		writeError(w, apperrors.SessionExpired())
		return
	}

	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, apperrors.InvalidInput("id", "must be a UUID"))
		return
	}

	user, err := h.authService.SetUserActive(r.Context(), *principal, userID, active)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, user)
}
