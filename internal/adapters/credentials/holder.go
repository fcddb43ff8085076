package credentials

import (
	"fmt"
	"sync"
	"time"

	"github.com/Amund211/coursesync/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// FromToken builds credentials from a token handed over by the authentication provider.
// JWTs contribute their subject and expiry. The signature is not checked; the platform API does that.
// Any other token is kept as an opaque bearer token without expiry.
func FromToken(token string) (domain.Credentials, error) {
	if token == "" {
		return domain.Credentials{}, fmt.Errorf("%w: empty token", domain.ErrInvalidParams)
	}

	creds := domain.Credentials{Token: token}

	claims := &jwt.RegisteredClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(token, claims)
	if err != nil {
		return creds, nil
	}

	creds.UserID = claims.Subject
	if claims.ExpiresAt != nil {
		creds.ExpiresAt = claims.ExpiresAt.Time
	}
	return creds, nil
}

// Holder keeps the credentials of the logged in user
type Holder struct {
	nowFunc func() time.Time

	mu    sync.RWMutex
	creds *domain.Credentials
}

func NewHolder(nowFunc func() time.Time) *Holder {
	return &Holder{nowFunc: nowFunc}
}

func (h *Holder) Set(creds domain.Credentials) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.creds = &creds
}

func (h *Holder) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.creds = nil
}

// Credentials returns the current credentials, or ErrUnauthenticated when logged out or expired
func (h *Holder) Credentials() (domain.Credentials, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.creds == nil {
		return domain.Credentials{}, fmt.Errorf("%w: not logged in", domain.ErrUnauthenticated)
	}
	if h.creds.Expired(h.nowFunc()) {
		return domain.Credentials{}, fmt.Errorf("%w: credentials expired at %s", domain.ErrUnauthenticated, h.creds.ExpiresAt.Format(time.RFC3339))
	}
	return *h.creds, nil
}

func (h *Holder) Token() (string, error) {
	creds, err := h.Credentials()
	if err != nil {
		return "", err
	}
	return creds.Token, nil
}
