package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type binding struct {
	threadID  string
	expiresAt time.Time
}

// MemoryStore keeps bindings in process memory. Bindings are lost on restart.
type MemoryStore struct {
	ttl      time.Duration
	mu       sync.RWMutex
	bindings map[string]binding
	cleanup  *Cleanup
	now      func() time.Time
}

// NewMemoryStore creates a store and starts its expiry sweeper
func NewMemoryStore(ttl time.Duration, logger zerolog.Logger) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s := &MemoryStore{
		ttl:      ttl,
		bindings: make(map[string]binding),
		now:      time.Now,
	}
	s.cleanup = NewCleanup(s, 0, logger)
	s.cleanup.Start()

	return s
}

// Get returns the thread bound to sessionID
func (s *MemoryStore) Get(ctx context.Context, sessionID string) (string, bool, error) {
	if err := ValidateID(sessionID); err != nil {
		return "", false, err
	}

	s.mu.RLock()
	b, ok := s.bindings[sessionID]
	s.mu.RUnlock()

	if !ok || !s.now().Before(b.expiresAt) {
		return "", false, nil
	}
	return b.threadID, true, nil
}

// Set binds sessionID to threadID, replacing any previous binding
func (s *MemoryStore) Set(ctx context.Context, sessionID, threadID string) error {
	if err := ValidateID(sessionID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.bindings[sessionID] = binding{
		threadID:  threadID,
		expiresAt: s.now().Add(s.ttl),
	}
	return nil
}

// Len returns the number of stored bindings, expired ones included
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bindings)
}

// Close stops the sweeper
func (s *MemoryStore) Close() error {
	s.cleanup.Stop()
	return nil
}

// prune deletes expired bindings and reports how many were removed
func (s *MemoryStore) prune() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, b := range s.bindings {
		if !now.Before(b.expiresAt) {
			delete(s.bindings, id)
			deleted++
		}
	}
	return deleted
}
