package api

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"finreport/internal/core"
)

// Session carries one user's backend credentials. It is passed explicitly
// to every client call and is safe for concurrent use.
type Session struct {
	mu          sync.RWMutex
	token       string
	expiresAt   time.Time
	tokenUserID int64
	user        core.User

	// serializes refresh-token calls
	refreshMu sync.Mutex
}

// NewSession returns a session holding token, which may be empty.
func NewSession(token string) *Session {
	s := &Session{}
	s.SetToken(token)
	return s
}

// VerifySession checks the HMAC signature and expiry of token against secret
// and returns a session for it. Tokens signed with any other method are
// rejected. Expired tokens also match jwt.ErrTokenExpired.
func VerifySession(token string, secret []byte, now time.Time) (*Session, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: no signing secret configured", ErrInvalidToken)
	}
	_, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return NewSession(token), nil
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// SetToken stores token and reads its expiry and user from the claims
// without checking the signature. Tokens from callers must go through
// VerifySession first.
func (s *Session) SetToken(token string) {
	exp, uid := tokenClaims(token)
	s.mu.Lock()
	s.token = token
	s.expiresAt = exp
	s.tokenUserID = uid
	s.mu.Unlock()
}

func (s *Session) User() core.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *Session) SetUser(u core.User) {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
}

// UserID is the logged-in user's ID, falling back to the user ID claim of
// the token when no user was stored. Zero means unknown.
func (s *Session) UserID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user.ID != 0 {
		return s.user.ID
	}
	return s.tokenUserID
}

// ExpiresAt is zero when the token carries no readable exp claim.
func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

// Authenticated reports whether the session holds a token.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// Expired reports whether the token's exp claim is before now. Tokens
// without an exp claim never expire client-side.
func (s *Session) Expired(now time.Time) bool {
	exp := s.ExpiresAt()
	return !exp.IsZero() && now.After(exp)
}

// Clear drops the token and user.
func (s *Session) Clear() {
	s.mu.Lock()
	s.token = ""
	s.expiresAt = time.Time{}
	s.tokenUserID = 0
	s.user = core.User{}
	s.mu.Unlock()
}

// tokenClaims reads exp and a numeric user ID claim without verifying the
// signature.
func tokenClaims(token string) (time.Time, int64) {
	if token == "" {
		return time.Time{}, 0
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, 0
	}

	var exp time.Time
	if nd, err := claims.GetExpirationTime(); err == nil && nd != nil {
		exp = nd.Time
	}

	for _, k := range []string{"userId", "user_id", "uid", "id", "sub"} {
		if id := claimInt(claims[k]); id > 0 {
			return exp, id
		}
	}
	return exp, 0
}

func claimInt(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	}
	return 0
}
