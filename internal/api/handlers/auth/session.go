package auth

import (
	"encoding/json"
	"log"
	"net/http"

	"Threadline/internal/api/handlers"
	"Threadline/internal/api/middleware"
	"Threadline/internal/config"
	"Threadline/internal/core/oauth"
)

// SessionHandler serves the session lifecycle: refresh, logout, and session
// introspection. The refresh JWS rides in a signed HttpOnly cookie; access
// tokens are short-lived and returned in the response body only.
type SessionHandler struct {
	authService *oauth.AuthService
	cfg         *config.Config
}

// NewSessionHandler creates the session lifecycle handler
func NewSessionHandler(authService *oauth.AuthService, cfg *config.Config) *SessionHandler {
	return &SessionHandler{authService: authService, cfg: cfg}
}

// HandleRefresh mints a new access token from the refresh cookie
// POST /auth/refresh
func (h *SessionHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.refreshClaims(r)
	if !ok {
		handlers.WriteError(w, http.StatusUnauthorized, "AuthenticationRequired", "Invalid or expired refresh token")
		return
	}

	session, err := h.authService.GetSession(r.Context(), claims.SessionID)
	if err != nil {
		log.Printf("Failed to load session for refresh: %v", err)
		handlers.WriteError(w, http.StatusBadGateway, "ServiceUnavailable", "Service temporarily unavailable")
		return
	}
	if session == nil || session.DID != claims.DID {
		handlers.WriteError(w, http.StatusUnauthorized, "AuthenticationRequired", "Session expired")
		return
	}

	accessToken, err := h.authService.IssueAccessToken(r.Context(), session.ID)
	if err != nil {
		log.Printf("Failed to issue access token: %v", err)
		handlers.WriteError(w, http.StatusBadGateway, "ServiceUnavailable", "Service temporarily unavailable")
		return
	}

	writeJSON(w, map[string]interface{}{
		"accessToken": accessToken,
		"did":         session.DID,
		"handle":      session.Handle,
	})
}

// HandleLogout deletes the session and expires the refresh cookie
// POST /auth/logout
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if claims, ok := h.refreshClaims(r); ok {
		if err := h.authService.DeleteSession(r.Context(), claims.SessionID); err != nil {
			// Cookie still gets cleared; the session row ages out on TTL
			log.Printf("Failed to delete session on logout: %v", err)
		}
	}

	cookie, _ := GetCookieStore().Get(r, RefreshCookieName)
	cookie.Options.MaxAge = -1
	if err := cookie.Save(r, w); err != nil {
		log.Printf("Failed to expire refresh cookie: %v", err)
	}

	writeJSON(w, map[string]interface{}{"success": true})
}

// HandleGetSession returns the authenticated session
// GET /auth/session (requires auth)
func (h *SessionHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r)
	if session == nil {
		handlers.WriteError(w, http.StatusUnauthorized, "AuthenticationRequired", "Authentication required")
		return
	}

	writeJSON(w, map[string]interface{}{
		"did":       session.DID,
		"handle":    session.Handle,
		"scopes":    session.Scopes,
		"expiresAt": session.ExpiresAt,
	})
}

// HandleSealToken issues an encrypted mobile session token referencing the
// current session
// POST /auth/seal (requires auth)
func (h *SessionHandler) HandleSealToken(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r)
	if session == nil {
		handlers.WriteError(w, http.StatusUnauthorized, "AuthenticationRequired", "Authentication required")
		return
	}

	sealed, err := oauth.SealSession(h.sealKey(), session.DID, session.ID, h.cfg.SessionTTL)
	if err != nil {
		log.Printf("Failed to seal session token: %v", err)
		handlers.WriteError(w, http.StatusInternalServerError, "InternalError", "Failed to seal session token")
		return
	}

	writeJSON(w, map[string]interface{}{"sealedToken": sealed})
}

// HandleExchangeSealed exchanges a sealed mobile token for an access token
// POST /auth/exchange
// Request body: { "sealedToken": "..." }
func (h *SessionHandler) HandleExchangeSealed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SealedToken string `json:"sealedToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SealedToken == "" {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "sealedToken is required")
		return
	}

	sealed, err := oauth.UnsealSession(h.sealKey(), req.SealedToken)
	if err != nil {
		handlers.WriteError(w, http.StatusUnauthorized, "AuthenticationRequired", "Invalid sealed token")
		return
	}

	session, err := h.authService.GetSession(r.Context(), sealed.SessionID)
	if err != nil {
		log.Printf("Failed to load session for sealed exchange: %v", err)
		handlers.WriteError(w, http.StatusBadGateway, "ServiceUnavailable", "Service temporarily unavailable")
		return
	}
	if session == nil || session.DID != sealed.DID {
		handlers.WriteError(w, http.StatusUnauthorized, "AuthenticationRequired", "Session expired")
		return
	}

	accessToken, err := h.authService.IssueAccessToken(r.Context(), session.ID)
	if err != nil {
		log.Printf("Failed to issue access token: %v", err)
		handlers.WriteError(w, http.StatusBadGateway, "ServiceUnavailable", "Service temporarily unavailable")
		return
	}

	writeJSON(w, map[string]interface{}{
		"accessToken": accessToken,
		"did":         session.DID,
	})
}

// refreshClaims extracts and verifies the refresh JWS from the cookie.
func (h *SessionHandler) refreshClaims(r *http.Request) (*oauth.RefreshClaims, bool) {
	cookie, err := GetCookieStore().Get(r, RefreshCookieName)
	if err != nil {
		return nil, false
	}
	raw, _ := cookie.Values[refreshValueKey].(string)
	if raw == "" {
		return nil, false
	}
	claims, err := oauth.ParseRefreshToken([]byte(h.cfg.SessionSecret), raw)
	if err != nil {
		return nil, false
	}
	return claims, true
}

// SetRefreshCookie writes the refresh JWS into the signed cookie. Called by
// the OAuth callback once a session is established.
func SetRefreshCookie(w http.ResponseWriter, r *http.Request, cfg *config.Config, sessionID, did string) error {
	token, err := oauth.IssueRefreshToken([]byte(cfg.SessionSecret), sessionID, did, cfg.SessionTTL)
	if err != nil {
		return err
	}
	cookie, _ := GetCookieStore().Get(r, RefreshCookieName)
	cookie.Values[refreshValueKey] = token
	return cookie.Save(r, w)
}

// sealKey derives the 32-byte AES key from the session secret.
func (h *SessionHandler) sealKey() []byte {
	return []byte(h.cfg.SessionSecret)[:32]
}

func writeJSON(w http.ResponseWriter, payload map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
