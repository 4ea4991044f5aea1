package api

import (
	"log/slog"
	"net/http"

	"github.com/mygeslike/api/internal/api/shared"
	"github.com/mygeslike/api/internal/domain"
	"github.com/mygeslike/api/internal/platform/logger"
	"github.com/mygeslike/api/internal/service"
	"github.com/mygeslike/api/internal/service/auth"
)

// AuthHandler handles registration, login and account requests.
type AuthHandler struct {
	auth   auth.Service
	users  service.UserService
	logger *slog.Logger
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
func NewAuthHandler(authService auth.Service, users service.UserService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   authService,
		users:  users,
		logger: logger.With(slog.String("component", "auth_handler")),
	}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decode(w, r, &req) {
		return
	}

	user, pair, err := h.auth.Register(r.Context(), auth.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      domain.Role(req.Role),
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create user")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, AuthResponse{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}

	user, pair, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to authenticate user")
		return
	}

	logger.FromContextOrDefault(r.Context(), h.logger).Debug("user logged in",
		slog.String("user_id", user.ID.String()))
	shared.RespondWithJSON(w, r, http.StatusOK, AuthResponse{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// RefreshToken handles POST /api/auth/refresh.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if !decode(w, r, &req) {
		return
	}

	pair, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to refresh token")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, AuthResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOf(w, r)
	if !ok {
		return
	}
	user, err := h.auth.Me(r.Context(), p.UserID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, user)
}

// UpdateUser handles PUT /api/users/{id}. Users may only change themselves.
func (h *AuthHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOf(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req UpdateUserRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := h.users.UpdateUser(r.Context(), p.UserID, id, service.UpdateUserInput{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update user")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, user)
}

// DeleteUser handles DELETE /api/users/{id}.
func (h *AuthHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOf(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.users.DeleteUser(r.Context(), p.UserID, id); err != nil {
		HandleAPIError(w, r, err, "Failed to delete user")
		return
	}
	shared.RespondNoContent(w)
}
