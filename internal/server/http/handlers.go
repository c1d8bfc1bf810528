package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/campusgate/internal/common"
	"github.com/dmitrijs2005/campusgate/internal/netx"
	"github.com/dmitrijs2005/campusgate/internal/server/services"
)

type messageResponse struct {
	Message string `json:"message"`
}

type tokenPairResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	Message      string `json:"message"`
}

type infoResponse struct {
	ExpiryDate       time.Time `json:"expiryDate"`
	SecondsRemaining int64     `json:"secondsRemaining"`
	IssuedAt         time.Time `json:"issuedAt"`
	TokenID          string    `json:"tokenId"`
}

type validateResponse struct {
	Valid            bool       `json:"valid"`
	ExpiryDate       *time.Time `json:"expiryDate,omitempty"`
	SecondsRemaining *int64     `json:"secondsRemaining,omitempty"`
	Message          string     `json:"message"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	pair, err := s.tokens.Login(r.Context(), req.Username, req.Password, requestMeta(r))
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) || errors.Is(err, common.ErrUserDisabled) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		s.logger.Error(r.Context(), "login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	s.setRefreshCookie(w, pair)
	writeJSON(w, http.StatusOK, tokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		Message:      "Login successful",
	})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	id, _, raw, ok := identity(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if err := s.tokens.Logout(r.Context(), raw, id.ID(), requestMeta(r)); err != nil {
		s.logger.Error(r.Context(), "logout failed", "user_id", id.ID(), "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to log out")
		return
	}
	s.clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out successfully"})
}

func (s *Server) info(w http.ResponseWriter, r *http.Request) {
	_, tok, _, ok := identity(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, infoResponse{
		ExpiryDate:       tok.ExpiresAt,
		SecondsRemaining: tok.SecondsRemaining(s.tokens.Now()),
		IssuedAt:         tok.IssuedAt,
		TokenID:          tok.ID,
	})
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow(netx.ClientIP(r)) {
		writeError(w, http.StatusTooManyRequests, "Too many refresh attempts, slow down")
		return
	}

	presented := refreshTokenFrom(r)
	if presented == "" {
		writeError(w, http.StatusBadRequest, "Refresh token is required")
		return
	}

	pair, err := s.tokens.Refresh(r.Context(), presented, requestMeta(r))
	switch {
	case err == nil:
	case errors.Is(err, common.ErrSecurityRiskDetected):
		s.clearRefreshCookie(w)
		writeError(w, http.StatusUnauthorized, "Security risk detected. Please log in again.")
		return
	case errors.Is(err, common.ErrInvalidRefreshToken),
		errors.Is(err, common.ErrUserNotFound),
		errors.Is(err, common.ErrUserDisabled):
		writeError(w, http.StatusUnauthorized, "Invalid or expired refresh token")
		return
	default:
		s.logger.Error(r.Context(), "refresh failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	s.setRefreshCookie(w, pair)
	writeJSON(w, http.StatusOK, tokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		Message:      "Token refreshed successfully",
	})
}

func (s *Server) revoke(w http.ResponseWriter, r *http.Request) {
	id, _, raw, ok := identity(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if err := s.tokens.Revoke(r.Context(), raw, id.ID(), requestMeta(r)); err != nil {
		s.logger.Error(r.Context(), "revoke failed", "user_id", id.ID(), "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to revoke token")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Token revoked successfully"})
}

func (s *Server) validate(w http.ResponseWriter, r *http.Request) {
	raw := common.BearerToken(r.Header.Get(common.AuthorizationHeaderName))
	if raw == "" {
		writeError(w, http.StatusUnauthorized, "No token provided")
		return
	}

	v, err := s.tokens.Validate(r.Context(), raw)
	if err != nil {
		s.logger.Error(r.Context(), "validate failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	resp := validateResponse{Valid: v.Valid, Message: v.Message}
	if v.Valid {
		exp, left := v.ExpiresAt, v.SecondsRemaining
		resp.ExpiryDate, resp.SecondsRemaining = &exp, &left
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- helpers below ---

func requestMeta(r *http.Request) services.RequestMeta {
	return services.RequestMeta{
		UserAgent:   r.UserAgent(),
		IPAddress:   netx.ClientIP(r),
		Fingerprint: r.Header.Get(common.DeviceFingerprintHeaderName),
	}
}

// refreshTokenFrom prefers the cookie over the Refresh-Token header.
func refreshTokenFrom(r *http.Request) string {
	if c, err := r.Cookie(common.RefreshTokenCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return common.BearerToken(r.Header.Get(common.RefreshTokenHeaderName))
}

func (s *Server) setRefreshCookie(w http.ResponseWriter, pair *services.TokenPair) {
	maxAge := int(time.Until(pair.RefreshExpiresAt) / time.Second)
	if maxAge < 1 {
		maxAge = 1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     common.RefreshTokenCookieName,
		Value:    pair.RefreshToken,
		Path:     "/token",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Server) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     common.RefreshTokenCookieName,
		Value:    "",
		Path:     "/token",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}
