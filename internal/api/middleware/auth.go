package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"Threadline/internal/config"
	"Threadline/internal/core/oauth"
	"Threadline/internal/core/users"
)

// Context keys for storing user information
type contextKey string

const (
	UserDIDKey contextKey = "user_did"
	SessionKey contextKey = "session"
)

// AuthMiddleware enforces bearer-token authentication for protected routes.
// Tokens are opaque and resolved against the KV session store; role checks
// go through the user service.
type AuthMiddleware struct {
	authService *oauth.AuthService
	userService users.UserService
	cfg         *config.Config
}

// NewAuthMiddleware creates the auth middleware
func NewAuthMiddleware(authService *oauth.AuthService, userService users.UserService, cfg *config.Config) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		userService: userService,
		cfg:         cfg,
	}
}

// RequireAuth ensures the request carries a valid bearer token.
// A KV transport failure is a 502, not a 401: the token may be fine and the
// client should retry, not re-authenticate.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeAuthError(w, http.StatusUnauthorized, "AuthenticationRequired", "Authentication required")
			return
		}

		session, err := m.authService.ValidateAccessToken(r.Context(), token)
		if err != nil {
			log.Printf("[AUTH_FAILURE] type=store_error ip=%s method=%s path=%s error=%v",
				r.RemoteAddr, r.Method, r.URL.Path, err)
			writeAuthError(w, http.StatusBadGateway, "ServiceUnavailable", "Service temporarily unavailable")
			return
		}
		if session == nil {
			log.Printf("[AUTH_FAILURE] type=invalid_token ip=%s method=%s path=%s",
				r.RemoteAddr, r.Method, r.URL.Path)
			writeAuthError(w, http.StatusUnauthorized, "AuthenticationRequired", "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), UserDIDKey, session.DID)
		ctx = context.WithValue(ctx, SessionKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuth loads the session when a valid token is present but never
// rejects the request. Store failures degrade to anonymous.
func (m *AuthMiddleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		session, err := m.authService.ValidateAccessToken(r.Context(), token)
		if err != nil || session == nil {
			if err != nil {
				log.Printf("Optional auth degraded to anonymous: %v", err)
			}
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), UserDIDKey, session.DID)
		ctx = context.WithValue(ctx, SessionKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireModerator layers a moderator-or-admin role check on RequireAuth.
func (m *AuthMiddleware) RequireModerator(next http.Handler) http.Handler {
	return m.RequireAuth(m.requireRole(next, "Moderator", func(u *users.User) bool {
		return u.IsModerator()
	}))
}

// RequireAdmin layers an admin role check on RequireAuth.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return m.RequireAuth(m.requireRole(next, "Admin", func(u *users.User) bool {
		return u.Role == users.RoleAdmin
	}))
}

func (m *AuthMiddleware) requireRole(next http.Handler, label string, allowed func(*users.User) bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		did := GetUserDID(r)
		user, err := m.userService.GetUserByDID(r.Context(), did)
		if err != nil {
			log.Printf("[AUTH_FAILURE] type=role_lookup ip=%s path=%s did=%s error=%v",
				r.RemoteAddr, r.URL.Path, did, err)
			writeAuthError(w, http.StatusForbidden, "Forbidden", label+" access required")
			return
		}
		if !allowed(user) {
			writeAuthError(w, http.StatusForbidden, "Forbidden", label+" access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireOperator gates platform-operator routes. Outside global community
// mode the routes don't exist, so the response is a plain 404 rather than
// a 403 that would reveal them.
func (m *AuthMiddleware) RequireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.cfg.IsGlobalMode() {
			http.NotFound(w, r)
			return
		}
		m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !m.cfg.IsOperator(GetUserDID(r)) {
				writeAuthError(w, http.StatusForbidden, "Forbidden", "Operator access required")
				return
			}
			next.ServeHTTP(w, r)
		})).ServeHTTP(w, r)
	})
}

// bearerToken extracts the token from the Authorization header, or "".
func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
}

// GetUserDID extracts the user's DID from the request context
// Returns empty string if not authenticated
func GetUserDID(r *http.Request) string {
	did, _ := r.Context().Value(UserDIDKey).(string)
	return did
}

// GetAuthenticatedDID extracts the authenticated user's DID from the context
// This is used by service layers for defense-in-depth validation
// Returns empty string if not authenticated
func GetAuthenticatedDID(ctx context.Context) string {
	did, _ := ctx.Value(UserDIDKey).(string)
	return did
}

// GetSession extracts the session from the request context
// Returns nil if not authenticated
func GetSession(r *http.Request) *oauth.Session {
	session, _ := r.Context().Value(SessionKey).(*oauth.Session)
	return session
}

// SetTestUserDID sets the user DID in the context for testing purposes
// This function should ONLY be used in tests to mock authenticated users
func SetTestUserDID(ctx context.Context, userDID string) context.Context {
	return context.WithValue(ctx, UserDIDKey, userDID)
}

// writeAuthError writes a JSON error response for authentication failures
func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	response := `{"error":"` + code + `","message":"` + message + `"}`
	if _, err := w.Write([]byte(response)); err != nil {
		log.Printf("Failed to write auth error response: %v", err)
	}
}
