package handlers

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"dashboard/internal/models"
	"dashboard/internal/service"
	"dashboard/pkg/utils"
)

// AuthHandler обрабатывает запросы аутентификации
type AuthHandler struct {
	authService service.AuthServiceInterface
	logger      *utils.Logger
}

// NewAuthHandler создает новый AuthHandler
func NewAuthHandler(authService service.AuthServiceInterface, logger *utils.Logger) *AuthHandler {
	if logger == nil {
		logger = utils.L()
	}
	return &AuthHandler{
		authService: authService,
		logger:      logger.WithComponent("auth_handler"),
	}
}

// Login обрабатывает POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.authService.Login(req.Email, req.Password, remoteIP(r))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTooManyAttempts):
			respondWithErrorCode(w, http.StatusTooManyRequests, "too many login attempts, try again later", "rate_limited")
		case errors.Is(err, service.ErrInvalidLogin):
			// Одинаковый ответ для неизвестного email и неверного пароля
			respondWithError(w, http.StatusUnauthorized, "invalid email or password")
		default:
			h.logger.Error("login failed", utils.Err(err))
			respondWithError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, resp)
}

// remoteIP извлекает IP клиента для rate limiting
func remoteIP(r *http.Request) string {
	// За reverse proxy реальный адрес приходит в X-Forwarded-For
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
