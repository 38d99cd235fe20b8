package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"

	"github.com/vasapolrittideah/chatdesk/services/chat-service/internal/model"
	"github.com/vasapolrittideah/chatdesk/services/chat-service/internal/payload"
	"github.com/vasapolrittideah/chatdesk/services/chat-service/internal/usecase"
	"github.com/vasapolrittideah/chatdesk/shared/utilities"
	"github.com/vasapolrittideah/chatdesk/shared/validation"
)

// RefreshCookieName is the cookie carrying the refresh token.
const RefreshCookieName = "refreshToken"

// CookieConfig controls how the refresh cookie is written.
type CookieConfig struct {
	Secure   bool
	SameSite http.SameSite
}

// NewCookieConfig returns strict, secure cookies in production and lax ones elsewhere.
func NewCookieConfig(production bool) CookieConfig {
	if production {
		return CookieConfig{Secure: true, SameSite: http.SameSiteStrictMode}
	}

	return CookieConfig{Secure: false, SameSite: http.SameSiteLaxMode}
}

// AuthHandler serves the /auth endpoints.
type AuthHandler struct {
	authUsecase usecase.AuthUsecase
	validator   *validation.Validator
	cookie      CookieConfig
}

func NewAuthHandler(
	authUsecase usecase.AuthUsecase,
	validator *validation.Validator,
	cookie CookieConfig,
) *AuthHandler {
	return &AuthHandler{
		authUsecase: authUsecase,
		validator:   validator,
		cookie:      cookie,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req payload.RegisterRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	session, err := h.authUsecase.Register(r.Context(), usecase.RegisterParams{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: utilities.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrValidation):
			utilities.WriteError(w, http.StatusBadRequest, "Missing required fields")
		case errors.Is(err, usecase.ErrEmailTaken):
			utilities.WriteError(w, http.StatusConflict, "Email already in use")
		case errors.Is(err, usecase.ErrUserNotFound):
			utilities.WriteError(w, http.StatusNotFound, "User not found")
		default:
			internalError(w, r, err, "failed to register user")
		}
		return
	}

	h.setRefreshCookie(w, session.RefreshToken, session.RefreshExpiresIn)
	utilities.WriteJSON(w, http.StatusCreated, authResponse(session))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req payload.LoginRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	session, err := h.authUsecase.Login(r.Context(), usecase.LoginParams{
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: utilities.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrValidation):
			utilities.WriteError(w, http.StatusBadRequest, "Missing required fields")
		case errors.Is(err, usecase.ErrInvalidCredentials):
			utilities.WriteError(w, http.StatusUnauthorized, "Invalid credentials")
		case errors.Is(err, usecase.ErrUserNotFound):
			utilities.WriteError(w, http.StatusNotFound, "User not found")
		default:
			internalError(w, r, err, "failed to log in user")
		}
		return
	}

	h.setRefreshCookie(w, session.RefreshToken, session.RefreshExpiresIn)
	utilities.WriteJSON(w, http.StatusOK, authResponse(session))
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	access, err := h.authUsecase.Refresh(r.Context(), refreshTokenFromCookie(r))
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrMissingToken):
			utilities.WriteError(w, http.StatusBadRequest, "Refresh token required")
		case errors.Is(err, usecase.ErrInvalidOrExpiredToken):
			utilities.WriteError(w, http.StatusUnauthorized, "Invalid or expired refresh token")
		case errors.Is(err, usecase.ErrTokenRevoked):
			utilities.WriteError(w, http.StatusUnauthorized, "Refresh token revoked")
		case errors.Is(err, usecase.ErrUserNotFound):
			utilities.WriteError(w, http.StatusNotFound, "User not found")
		default:
			internalError(w, r, err, "failed to refresh access token")
		}
		return
	}

	utilities.WriteJSON(w, http.StatusOK, payload.RefreshResponse{
		AccessToken: access.AccessToken,
		DeviceID:    access.DeviceID,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req payload.LogoutRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		utilities.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	accessToken := req.AccessToken
	if accessToken == "" {
		accessToken, _ = utilities.BearerToken(r)
	}

	err := h.authUsecase.Logout(r.Context(), accessToken, refreshTokenFromCookie(r))
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrMissingToken):
			utilities.WriteError(w, http.StatusBadRequest, "Refresh and Access tokens required")
		case errors.Is(err, usecase.ErrInvalidRefreshToken):
			utilities.WriteError(w, http.StatusUnauthorized, "Invalid refresh token")
		case errors.Is(err, usecase.ErrUserNotFound):
			utilities.WriteError(w, http.StatusNotFound, "User not found")
		default:
			internalError(w, r, err, "failed to log out user")
		}
		return
	}

	h.clearRefreshCookie(w)
	utilities.WriteJSON(w, http.StatusOK, payload.MessageResponse{Message: "Logged out successfully"})
}

func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: h.cookie.SameSite,
	})
}

func (h *AuthHandler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: h.cookie.SameSite,
	})
}

func refreshTokenFromCookie(r *http.Request) string {
	c, err := r.Cookie(RefreshCookieName)
	if err != nil {
		return ""
	}

	return c.Value
}

func authResponse(s *usecase.AuthSession) payload.AuthResponse {
	return payload.AuthResponse{
		User:        userResponse(s.User),
		AccessToken: s.AccessToken,
		DeviceID:    s.DeviceID,
	}
}

func userResponse(u *model.User) payload.User {
	return payload.User{
		ID:        u.ID.Hex(),
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
	}
}

func internalError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	hlog.FromRequest(r).Error().Err(err).Msg(msg)
	utilities.WriteError(w, http.StatusInternalServerError, "Internal server error")
}
