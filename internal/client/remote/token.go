package remote

import (
	"sync"
	"time"

	"github.com/dmitrijs2005/smartyedu/internal/auth"
)

// TokenSource hands out device tokens, re-signing shortly before expiry.
type TokenSource struct {
	mu       sync.Mutex
	deviceID string
	secret   []byte
	ttl      time.Duration
	now      func() time.Time

	token   string
	expires time.Time
}

func NewTokenSource(deviceID string, secret []byte, ttl time.Duration) *TokenSource {
	return &TokenSource{deviceID: deviceID, secret: secret, ttl: ttl, now: time.Now}
}

// Token returns a valid token for the device.
func (s *TokenSource) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.token != "" && now.Add(s.ttl/10).Before(s.expires) {
		return s.token, nil
	}
	tok, err := auth.GenerateToken(s.deviceID, s.secret, s.ttl)
	if err != nil {
		return "", err
	}
	s.token, s.expires = tok, now.Add(s.ttl)
	return tok, nil
}

// Invalidate drops the cached token so the next call signs a new one.
func (s *TokenSource) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}
