package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
)

// Claims carried by a session bearer token. StandardClaims.Id is the
// session id tracked by the Registry.
type Claims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	jwt.StandardClaims
}

// Tokens issues and checks HS256 session tokens.
type Tokens struct {
	secret   []byte
	ttl      time.Duration
	registry *Registry
	now      func() time.Time
}

func NewTokens(secret string, ttl time.Duration, registry *Registry) *Tokens {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, registry: registry, now: time.Now}
}

func (t *Tokens) Registry() *Registry { return t.registry }

// Issue signs a token for u and records its session.
func (t *Tokens) Issue(u User) (string, *Claims, error) {
	now := t.now()
	claims := &Claims{
		UserID: u.ID,
		Email:  u.Email,
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.NewString(),
			Subject:   u.ID,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(t.ttl).Unix(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign session token: %w", err)
	}
	t.registry.Add(claims.Id, u.ID, time.Unix(claims.ExpiresAt, 0))
	return signed, claims, nil
}

// Authenticate verifies the signature and expiry and that the session is live.
func (t *Tokens) Authenticate(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !t.registry.Active(claims.Id) {
		return nil, ErrSessionRevoked
	}
	return claims, nil
}

// Revoke ends the session behind raw.
func (t *Tokens) Revoke(raw string) error {
	claims, err := t.Authenticate(raw)
	if err != nil {
		if errors.Is(err, ErrSessionRevoked) {
			return nil
		}
		return err
	}
	t.registry.Revoke(claims.Id)
	return nil
}

type registryEntry struct {
	userID    string
	expiresAt time.Time
}

// Registry tracks live session ids.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]registryEntry
	now      func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]registryEntry), now: time.Now}
}

func (r *Registry) Add(sessionID, userID string, expiresAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionID] = registryEntry{userID: userID, expiresAt: expiresAt}
}

func (r *Registry) Active(sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sessionID]
	return ok && !r.now().After(e.expiresAt)
}

func (r *Registry) Revoke(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

// RevokeUser ends every session of userID.
func (r *Registry) RevokeUser(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.sessions {
		if e.userID == userID {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}

func (r *Registry) CleanExpired() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	n := 0
	for id, e := range r.sessions {
		if now.After(e.expiresAt) {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
