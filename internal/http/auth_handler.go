package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_shop/internal/domain"
)

type AuthService interface {
	Register(ctx context.Context, reg domain.Registration) (*domain.User, error)
	Login(ctx context.Context, username, password string) (*domain.User, error)
	Get(ctx context.Context, userID int64) (*domain.User, error)
	UsernameAvailable(ctx context.Context, username string) (bool, error)
	EmailAvailable(ctx context.Context, email string) (bool, error)
}

type AuthHandler struct {
	auth     AuthService
	sessions *Sessions
	timeout  time.Duration
}

func NewAuthHandler(auth AuthService, sessions *Sessions, timeout time.Duration) *AuthHandler {
	return &AuthHandler{
		auth:     auth,
		sessions: sessions,
		timeout:  timeout,
	}
}

// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req domain.Registration
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.auth.Register(ctx, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondOK(w, "registration successful", userFromDomain(u))
}

// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req LoginRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, CodeValidation, "username and password are required")
		return
	}

	u, err := h.auth.Login(ctx, req.Username, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if err := h.sessions.Login(w, r, u.ID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	slog.InfoContext(ctx, "user logged in", "user_id", u.ID)
	respondOK(w, "login successful", userFromDomain(u))
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(w, r); err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, "logged out", nil)
}

// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, CodeUnauthorized, "please log in first")
		return
	}

	u, err := h.auth.Get(ctx, userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, "", userFromDomain(u))
}

// GET /api/auth/check-username?username=
func (h *AuthHandler) CheckUsername(w http.ResponseWriter, r *http.Request) {
	h.checkAvailable(w, r, "username", h.auth.UsernameAvailable)
}

// GET /api/auth/check-email?email=
func (h *AuthHandler) CheckEmail(w http.ResponseWriter, r *http.Request) {
	h.checkAvailable(w, r, "email", h.auth.EmailAvailable)
}

func (h *AuthHandler) checkAvailable(w http.ResponseWriter, r *http.Request, param string, available func(context.Context, string) (bool, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	value := strings.TrimSpace(r.URL.Query().Get(param))
	if value == "" {
		respondError(w, http.StatusBadRequest, CodeValidation, param+" is required")
		return
	}

	ok, err := available(ctx, value)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondOK(w, "", map[string]bool{"available": ok})
}
