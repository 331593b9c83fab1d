package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Purpose distinguishes one-shot mail tokens.
type Purpose string

const (
	PurposeVerify Purpose = "verify"
	PurposeReset  Purpose = "reset"
)

type bookEntry struct {
	purpose   Purpose
	userID    string
	expiresAt time.Time
}

// TokenBook holds single-use verification and reset tokens.
type TokenBook struct {
	mu      sync.Mutex
	entries map[string]bookEntry
	now     func() time.Time
}

func NewTokenBook() *TokenBook {
	return &TokenBook{entries: make(map[string]bookEntry), now: time.Now}
}

// Issue returns a fresh random token for userID valid for ttl.
func (b *TokenBook) Issue(p Purpose, userID string, ttl time.Duration) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	token := uuid.NewString()
	b.entries[token] = bookEntry{purpose: p, userID: userID, expiresAt: b.now().Add(ttl)}
	return token
}

// Consume redeems a token once. A token of another purpose is left alone.
func (b *TokenBook) Consume(p Purpose, token string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[token]
	if !ok || e.purpose != p {
		return "", ErrInvalidToken
	}
	delete(b.entries, token)
	if b.now().After(e.expiresAt) {
		return "", ErrInvalidToken
	}
	return e.userID, nil
}

func (b *TokenBook) CleanExpired() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	n := 0
	for token, e := range b.entries {
		if now.After(e.expiresAt) {
			delete(b.entries, token)
			n++
		}
	}
	return n
}
