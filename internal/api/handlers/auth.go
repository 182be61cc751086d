package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kinship-labs/kinship/internal/api/middleware"
	"github.com/kinship-labs/kinship/internal/auth"
	"github.com/kinship-labs/kinship/internal/store"
)

// AuthHandler handles registration and login.
type AuthHandler struct {
	store       store.Store
	authService *auth.Service
	logger      *slog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(st store.Store, authSvc *auth.Service, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		store:       st,
		authService: authSvc,
		logger:      logger,
	}
}

// RegisterRequest is the request body for user registration.
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse carries an issued access token.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
	UserID    string `json:"user_id"`
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.store.Users().Create(r.Context(), req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			WriteConflict(w, "email already registered")
			return
		}
		h.logger.Error("failed to create user", "error", err)
		WriteInternalError(w, "failed to create user")
		return
	}

	token, err := h.authService.GenerateToken(user.ID, user.Email)
	if err != nil {
		h.logger.Error("failed to generate token", "error", err)
		WriteInternalError(w, "failed to generate token")
		return
	}

	WriteJSON(w, http.StatusCreated, &TokenResponse{
		Token:     token,
		ExpiresIn: int64(h.authService.TokenExpiry().Seconds()),
		UserID:    user.ID,
	})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.store.Users().Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		WriteUnauthorized(w, "invalid credentials")
		return
	}

	token, err := h.authService.GenerateToken(user.ID, user.Email)
	if err != nil {
		h.logger.Error("failed to generate token", "error", err)
		WriteInternalError(w, "failed to generate token")
		return
	}

	WriteJSON(w, http.StatusOK, &TokenResponse{
		Token:     token,
		ExpiresIn: int64(h.authService.TokenExpiry().Seconds()),
		UserID:    user.ID,
	})
}

// Me handles GET /v1/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		WriteUnauthorized(w, "authentication required")
		return
	}

	user, err := h.store.Users().GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteNotFound(w, "user not found")
			return
		}
		h.logger.Error("failed to load user", "error", err)
		WriteInternalError(w, "failed to load user")
		return
	}

	WriteJSON(w, http.StatusOK, user)
}
