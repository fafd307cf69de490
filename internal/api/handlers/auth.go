package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"meterboard/internal/core"
	"meterboard/internal/types"
)

// refreshTokenCookie is the cookie carrying the long-lived refresh token.
// The token never appears in response bodies.
const refreshTokenCookie = "meterboard_refresh_token"

// refreshTokenMaxAge caps the refresh cookie lifetime (30 days).
const refreshTokenMaxAge = 30 * 24 * 60 * 60

// CredentialIssuer exchanges authentication material for fresh credentials
// against the control plane.
type CredentialIssuer interface {
	GetAuthCredentials(ctx context.Context, code string) (*types.Credentials, error)
	RefreshCredentials(ctx context.Context, refreshToken string) (*types.Credentials, error)
}

// CredentialsResponse is the credential payload returned to clients. The
// refresh token is delivered only via the HttpOnly cookie.
type CredentialsResponse struct {
	IDToken     string `json:"id_token"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in,omitempty"`
}

// AuthHandler serves the credential exchange, refresh, userinfo, and
// logout endpoints.
type AuthHandler struct {
	issuer        CredentialIssuer
	secureCookies bool
	logger        *slog.Logger
}

// NewAuthHandler creates an AuthHandler with the provided dependencies.
func NewAuthHandler(issuer CredentialIssuer, secureCookies bool, l *slog.Logger) *AuthHandler {
	if l == nil {
		l = slog.Default()
	}
	return &AuthHandler{
		issuer:        issuer,
		secureCookies: secureCookies,
		logger:        l,
	}
}

// RegisterRoutes mounts the auth endpoints. The credentials and refresh
// endpoints are public; userinfo and logout require authentication.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/credentials", h.GetCredentials)
	r.Get("/refresh", h.Refresh)
	r.Get("/userinfo", h.GetUserInfo)
	r.Post("/logout", h.Logout)
}

// GetCredentials handles GET /v1/credentials?code=.
//
// Exchanges a temporary auth code for credentials, stores the refresh token
// in an HttpOnly cookie, and returns the short-lived tokens.
func (h *AuthHandler) GetCredentials(w http.ResponseWriter, r *http.Request) {
	code, err := requiredQueryParam(r, "code")
	if err != nil {
		core.Error(w, r, err)
		return
	}

	creds, err := h.issuer.GetAuthCredentials(r.Context(), code)
	if err != nil {
		h.logger.WarnContext(r.Context(), "credential exchange failed", "error", err)
		core.Error(w, r, err)
		return
	}

	h.setRefreshCookie(w, creds.RefreshToken)
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: credentialsResponse(creds)})
}

// Refresh handles GET /v1/refresh.
//
// Reads the refresh-token cookie and exchanges it for fresh credentials,
// rotating the cookie with the new refresh token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshTokenCookie)
	if err != nil || cookie.Value == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthRefreshTokenMissing,
			"refresh token cookie is required",
			err,
		))
		return
	}

	creds, err := h.issuer.RefreshCredentials(r.Context(), cookie.Value)
	if err != nil {
		h.logger.WarnContext(r.Context(), "credential refresh failed", "error", err)
		core.Error(w, r, err)
		return
	}

	h.setRefreshCookie(w, creds.RefreshToken)
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: credentialsResponse(creds)})
}

// GetUserInfo handles GET /v1/userinfo by echoing the identity the auth
// middleware resolved for this request.
func (h *AuthHandler) GetUserInfo(w http.ResponseWriter, r *http.Request) {
	user, ok := types.GetUserInfo(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenMissing,
			"Authentication required",
			nil,
		))
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: user})
}

// Logout handles POST /v1/logout by expiring the refresh cookie. Token
// revocation on the control plane is out of scope; the short-lived tokens
// simply age out.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]string{"message": "logged out"}})
}

func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, token string) {
	if token == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     refreshTokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   refreshTokenMaxAge,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func credentialsResponse(creds *types.Credentials) CredentialsResponse {
	return CredentialsResponse{
		IDToken:     creds.IDToken,
		AccessToken: creds.AccessToken,
		ExpiresIn:   creds.ExpiresIn,
	}
}
