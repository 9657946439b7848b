package session

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/rs/zerolog/log"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// IDKey is the context key for the browser session ID
	IDKey ContextKey = "session_id"

	cookieName = "shoe-studio"
	idValueKey = "sid"
)

// Manager issues and reads the session cookie
type Manager struct {
	store *sessions.CookieStore
}

// NewManager creates a cookie-backed session manager. An empty secret gets a
// random key, so sessions do not survive a restart.
func NewManager(secret string, secure bool, maxAgeSeconds int) *Manager {
	key := []byte(secret)
	if secret == "" {
		log.Warn().Msg("SESSION_SECRET not set, using a random key for this process")
		key = securecookie.GenerateRandomKey(32)
	}
	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAgeSeconds,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Manager{store: store}
}

// Middleware makes sure every request carries a session ID and adds it to the context.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := m.store.Get(r, cookieName)
		if err != nil {
			// Cookie from an older key; Get still returns a fresh session.
			log.Debug().Err(err).Msg("Discarding unreadable session cookie")
		}

		id, _ := sess.Values[idValueKey].(string)
		if _, perr := uuid.Parse(id); perr != nil {
			id = uuid.NewString()
			sess.Values[idValueKey] = id
			if err := sess.Save(r, w); err != nil {
				log.Error().Err(err).Msg("Failed to save session cookie")
			}
		}

		ctx := context.WithValue(r.Context(), IDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetID retrieves the session ID from context
func GetID(ctx context.Context) (string, error) {
	id, ok := ctx.Value(IDKey).(string)
	if !ok || id == "" {
		return "", fmt.Errorf("session id not found in context")
	}
	return id, nil
}

// WithID returns a copy of ctx carrying id. Used by tests and non-HTTP callers.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, IDKey, id)
}
