// Package auth keeps the operator's backend credential in a signed session
// cookie and hands it to outbound clients as an oauth2.TokenSource.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const (
	sessionIDKey = "session_id"
	tokenKey     = "token"
	expiryKey    = "token_expiry"
)

var (
	ErrNoCredential      = errors.New("no backend credential in session")
	ErrCredentialExpired = errors.New("backend credential has expired")
)

// Credential is the bearer token an operator session carries.
type Credential struct {
	SessionID string
	Token     string
	Expiry    time.Time // zero means no expiry
}

// Expired reports whether the credential's expiry has passed.
func (c Credential) Expired(now time.Time) bool {
	return !c.Expiry.IsZero() && !now.Before(c.Expiry)
}

type ctxKey string

const credentialKey ctxKey = "credential"

// SessionManager wraps a gorilla cookie store.
type SessionManager struct {
	store *sessions.CookieStore
	name  string
	log   *zap.Logger
	now   func() time.Time
}

// NewSessionManager creates the cookie store. An empty sessionKey gets a
// random per-process key, which invalidates sessions on restart.
//
// In production (secure=true), cookies are Secure + SameSite=None.
// In local dev over http://localhost, use secure=false so cookies are accepted.
func NewSessionManager(sessionKey, name, domain string, maxAge time.Duration, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	key := []byte(sessionKey)
	switch {
	case len(key) == 0:
		key = securecookie.GenerateRandomKey(32)
		if key == nil {
			return nil, errors.New("generate session key")
		}
		logger.Warn("session key is empty; using a random key, sessions will not survive a restart")
	case len(key) < 32:
		logger.Warn("session key is short; 32+ chars recommended", zap.Int("length", len(key)))
	}

	store := sessions.NewCookieStore(key)
	opts := &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   secure,
		HttpOnly: true,
	}
	if secure {
		opts.SameSite = http.SameSiteNoneMode
	} else {
		opts.SameSite = http.SameSiteLaxMode
	}
	store.Options = opts

	logger.Info("session store initialized",
		zap.String("name", name),
		zap.Bool("secure", secure),
		zap.String("domain", domain))

	return &SessionManager{store: store, name: name, log: logger, now: time.Now}, nil
}

// SignIn stores token in a fresh session and returns the new session ID.
func (sm *SessionManager) SignIn(w http.ResponseWriter, r *http.Request, token string, expiry time.Time) (string, error) {
	if token == "" {
		return "", ErrNoCredential
	}
	sess, _ := sm.store.Get(r, sm.name)
	id := uuid.NewString()
	sess.Values[sessionIDKey] = id
	sess.Values[tokenKey] = token
	if expiry.IsZero() {
		delete(sess.Values, expiryKey)
	} else {
		sess.Values[expiryKey] = expiry.Unix()
	}
	if err := sess.Save(r, w); err != nil {
		return "", err
	}
	return id, nil
}

// SignOut expires the session cookie.
func (sm *SessionManager) SignOut(w http.ResponseWriter, r *http.Request) error {
	sess, _ := sm.store.Get(r, sm.name)
	sess.Values = map[interface{}]interface{}{}
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// Credential reads the request's session credential.
func (sm *SessionManager) Credential(r *http.Request) (Credential, error) {
	sess, err := sm.store.Get(r, sm.name)
	if err != nil && sess == nil {
		return Credential{}, ErrNoCredential
	}
	c := Credential{
		SessionID: getString(sess, sessionIDKey),
		Token:     getString(sess, tokenKey),
	}
	if c.SessionID == "" || c.Token == "" {
		return Credential{}, ErrNoCredential
	}
	if ts, ok := sess.Values[expiryKey].(int64); ok {
		c.Expiry = time.Unix(ts, 0)
	}
	if c.Expired(sm.now()) {
		return c, ErrCredentialExpired
	}
	return c, nil
}

// RequireCredential rejects requests without a valid session credential
// with a JSON 401, and puts the credential in the request context otherwise.
func (sm *SessionManager) RequireCredential(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := sm.Credential(r)
		if err != nil {
			sm.log.Debug("request without usable credential",
				zap.String("path", r.URL.Path), zap.Error(err))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		next.ServeHTTP(w, WithCredential(r, c))
	})
}

// WithCredential returns r carrying c in its context.
func WithCredential(r *http.Request, c Credential) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), credentialKey, c))
}

// FromContext returns the credential set by RequireCredential.
func FromContext(ctx context.Context) (Credential, bool) {
	c, ok := ctx.Value(credentialKey).(Credential)
	return c, ok
}

// getString safely extracts a string from a session value.
func getString(s *sessions.Session, key string) string {
	if v, ok := s.Values[key].(string); ok {
		return v
	}
	return ""
}
