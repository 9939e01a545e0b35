package auth

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/sessions"
)

const (
	// RefreshCookieName is the signed cookie carrying the refresh JWS.
	RefreshCookieName = "threadline_refresh"

	// refreshValueKey is the key inside the cookie session map.
	refreshValueKey = "refresh_token"

	// MinCookieSecretLength guards against weak signing keys.
	MinCookieSecretLength = 32
)

var (
	// Global singleton cookie store
	cookieStoreInstance *sessions.CookieStore
	cookieStoreOnce     sync.Once
	cookieStoreErr      error
)

// InitCookieStore initializes the global cookie store singleton
// Must be called once at application startup before any handlers are created
func InitCookieStore(secret string, maxAge int) error {
	cookieStoreOnce.Do(func() {
		if len(secret) < MinCookieSecretLength {
			cookieStoreErr = fmt.Errorf("SESSION_SECRET must be at least %d bytes for security", MinCookieSecretLength)
			return
		}
		store := sessions.NewCookieStore([]byte(secret))
		store.Options = &sessions.Options{
			Path:     "/",
			MaxAge:   maxAge,
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteLaxMode,
		}
		cookieStoreInstance = store
	})
	return cookieStoreErr
}

// GetCookieStore returns the global cookie store singleton
// Panics if InitCookieStore has not been called successfully
func GetCookieStore() *sessions.CookieStore {
	if cookieStoreInstance == nil {
		panic("cookie store not initialized - call InitCookieStore first")
	}
	return cookieStoreInstance
}
