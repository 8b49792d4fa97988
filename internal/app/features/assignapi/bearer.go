package assignapi

import (
	"crypto/sha256"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// TokenVerifier checks API bearer tokens against a bcrypt hash. Tokens that
// verified once are remembered by digest so bcrypt runs once per token.
type TokenVerifier struct {
	hash []byte
	log  *zap.Logger

	// OnReject, when set, is called for every rejected request.
	OnReject func(r *http.Request)

	mu       sync.RWMutex
	verified map[[sha256.Size]byte]struct{}
}

// NewTokenVerifier builds a verifier for bcryptHash. An empty hash accepts
// any non-empty bearer token, which is only meant for local development.
func NewTokenVerifier(bcryptHash string, logger *zap.Logger) *TokenVerifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bcryptHash == "" {
		logger.Warn("api_token_hash is empty; any bearer token is accepted")
	}
	return &TokenVerifier{
		hash:     []byte(bcryptHash),
		log:      logger,
		verified: make(map[[sha256.Size]byte]struct{}),
	}
}

// Verify reports whether token is accepted.
func (v *TokenVerifier) Verify(token string) bool {
	if token == "" {
		return false
	}
	if len(v.hash) == 0 {
		return true
	}

	sum := sha256.Sum256([]byte(token))
	v.mu.RLock()
	_, ok := v.verified[sum]
	v.mu.RUnlock()
	if ok {
		return true
	}

	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(token)); err != nil {
		return false
	}
	v.mu.Lock()
	v.verified[sum] = struct{}{}
	v.mu.Unlock()
	return true
}

// Require rejects requests without an accepted "Authorization: Bearer" token.
func (v *TokenVerifier) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if !v.Verify(token) {
			v.log.Debug("api request rejected", zap.String("path", r.URL.Path), zap.Bool("has_token", token != ""))
			if v.OnReject != nil {
				v.OnReject(r)
			}
			w.Header().Set("WWW-Authenticate", `Bearer realm="assignhub"`)
			writeEnvelope(w, http.StatusUnauthorized, envelope{Message: "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
