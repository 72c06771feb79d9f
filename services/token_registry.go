package services

import (
	"sync"
	"time"
)

type tokenEntry struct {
	token     string
	updatedAt time.Time
}

// TokenRegistry maps users to their current push token.
type TokenRegistry struct {
	mu     sync.RWMutex
	tokens map[string]tokenEntry
	owners map[string]string
}

func NewTokenRegistry() *TokenRegistry {
	return &TokenRegistry{
		tokens: make(map[string]tokenEntry),
		owners: make(map[string]string),
	}
}

// Register replaces any previous token for userID.
func (r *TokenRegistry) Register(userID, token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.tokens[userID]; ok {
		delete(r.owners, old.token)
	}
	r.tokens[userID] = tokenEntry{token: token, updatedAt: time.Now()}
	r.owners[token] = userID
}

func (r *TokenRegistry) Unregister(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.tokens[userID]; ok {
		delete(r.owners, old.token)
		delete(r.tokens, userID)
	}
}

func (r *TokenRegistry) TokenFor(userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.tokens[userID]
	return entry.token, ok
}

func (r *TokenRegistry) OwnerOf(token string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.owners[token]
	return userID, ok
}
