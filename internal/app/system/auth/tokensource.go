package auth

import (
	"sync"

	"golang.org/x/oauth2"
)

// TokenHolder is an oauth2.TokenSource over the most recent credential seen
// for one session. Token fails when no credential is set or it has expired,
// so outbound calls never go out unauthenticated.
type TokenHolder struct {
	mu  sync.RWMutex
	tok *oauth2.Token
}

var _ oauth2.TokenSource = (*TokenHolder)(nil)

// Set replaces the held credential.
func (h *TokenHolder) Set(c Credential) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.Token == "" {
		h.tok = nil
		return
	}
	h.tok = &oauth2.Token{AccessToken: c.Token, TokenType: "Bearer", Expiry: c.Expiry}
}

// Token implements oauth2.TokenSource.
func (h *TokenHolder) Token() (*oauth2.Token, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.tok == nil {
		return nil, ErrNoCredential
	}
	if !h.tok.Valid() {
		return nil, ErrCredentialExpired
	}
	t := *h.tok
	return &t, nil
}
