package handler

import (
	"net/http"
	"strings"

	"go-office-trash/internal/middleware"
	"go-office-trash/internal/model"
	"go-office-trash/internal/service"
	"go-office-trash/pkg/apierror"
)

type AuthHandler struct {
	service *service.AuthService
}

func NewAuthHandler(service *service.AuthService) *AuthHandler {
	return &AuthHandler{service: service}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload model.LoginRequest
	if err := decodeJSON(r, &payload, false); err != nil {
		writeError(w, err)
		return
	}

	tokens, err := h.service.Login(r.Context(), payload.Username, payload.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, tokens, nil)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken, err := readRefreshToken(r)
	if err != nil {
		writeError(w, err)
		return
	}

	tokens, err := h.service.Refresh(r.Context(), refreshToken)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, tokens, nil)
}

// Logout revokes the refresh token. Access tokens stay valid until they
// expire.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	refreshToken, err := readRefreshToken(r)
	if err != nil {
		writeError(w, err)
		return
	}

	h.service.Logout(refreshToken)
	writeSuccess(w, http.StatusOK, map[string]any{"logged_out": true}, nil)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, apierror.New("UNAUTHORIZED", "authentication required", "", http.StatusUnauthorized))
		return
	}

	user, err := h.service.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user, nil)
}

func readRefreshToken(r *http.Request) (string, error) {
	var payload model.RefreshRequest
	if err := decodeJSON(r, &payload, false); err != nil {
		return "", err
	}

	token := strings.TrimSpace(payload.RefreshToken)
	if token == "" {
		return "", apierror.BadRequest("refresh_token is required", "refresh_token")
	}
	return token, nil
}
