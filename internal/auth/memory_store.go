package auth

import (
	"sync"
	"time"
)

// MemorySessionStore keeps sessions in process memory. It backs local
// development and tests.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]SessionRecord
}

// NewMemorySessionStore initialises an empty in-memory store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]SessionRecord)}
}

// Save stores or updates the session.
func (s *MemorySessionStore) Save(tokenHash, userID string, expiresAt, absoluteExpiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[tokenHash] = SessionRecord{
		TokenHash:         tokenHash,
		UserID:            userID,
		ExpiresAt:         expiresAt,
		AbsoluteExpiresAt: absoluteExpiresAt,
	}
	return nil
}

// Get fetches the session for the provided token hash.
func (s *MemorySessionStore) Get(tokenHash string) (SessionRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.sessions[tokenHash]
	return record, ok, nil
}

// Delete removes the session.
func (s *MemorySessionStore) Delete(tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, tokenHash)
	return nil
}

// PurgeExpired drops every session past its expiry.
func (s *MemorySessionStore) PurgeExpired(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for hash, record := range s.sessions {
		expiry := record.AbsoluteExpiresAt
		if expiry.IsZero() || record.ExpiresAt.Before(expiry) {
			expiry = record.ExpiresAt
		}
		if now.After(expiry) {
			delete(s.sessions, hash)
		}
	}
	return nil
}
