package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/guardline-ai/guardline/pkg/detect"
)

// ============================================================================
// IN-MEMORY SESSION STORE
// ============================================================================
// Thread-safe in-memory session storage with TTL-based cleanup.
// Suitable for single-node deployments; RedisStore covers distributed ones.

// MemoryStore implements Store with in-memory storage.
type MemoryStore struct {
	sessions map[string]*State
	mu       sync.RWMutex

	maxAge     time.Duration // Session TTL (default: 1 hour)
	cleanupTTL time.Duration // Cleanup interval (default: 5 minutes)

	stopCleanup chan struct{}
	cleanupOnce sync.Once
}

// MemoryStoreOption is a functional option for configuring MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithMaxAge sets the maximum idle age for sessions before cleanup.
func WithMaxAge(d time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.maxAge = d
	}
}

// WithCleanupInterval sets how often the cleanup routine runs.
func WithCleanupInterval(d time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.cleanupTTL = d
	}
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		sessions:    make(map[string]*State),
		maxAge:      1 * time.Hour,
		cleanupTTL:  5 * time.Minute,
		stopCleanup: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	go s.cleanupLoop()

	return s
}

// Get retrieves a session by id. Returns nil, nil if not found or expired.
func (s *MemoryStore) Get(_ context.Context, conversationID string) (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[conversationID]
	if !ok {
		return nil, nil
	}

	// Stale sessions are treated as not found; actual removal happens in
	// cleanupLoop.
	if time.Since(session.LastTurnAt) > s.maxAge {
		return nil, nil
	}

	// Callers get a private copy. The stored state must never be mutated
	// outside this store's lock.
	return session.clone(), nil
}

// Save creates or updates a session.
func (s *MemoryStore) Save(_ context.Context, state *State) error {
	if state == nil {
		return fmt.Errorf("conversation: state is nil")
	}
	if state.ConversationID == "" {
		return fmt.Errorf("conversation: conversation id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if state.CreatedAt.IsZero() {
		state.CreatedAt = time.Now()
	}
	if state.LastTurnAt.IsZero() {
		state.LastTurnAt = time.Now()
	}
	if state.MaxHistory == 0 {
		state.MaxHistory = DefaultHistoryWindow
	}

	// Store a copy so later writes through the caller's pointer cannot
	// reach sessions read concurrently by Get, Stats, or cleanup.
	s.sessions[state.ConversationID] = state.clone()
	return nil
}

// Delete removes a session.
func (s *MemoryStore) Delete(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, conversationID)
	return nil
}

// Close stops the cleanup goroutine.
func (s *MemoryStore) Close() error {
	s.cleanupOnce.Do(func() {
		close(s.stopCleanup)
	})
	return nil
}

func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, session := range s.sessions {
		if now.Sub(session.LastTurnAt) > s.maxAge {
			delete(s.sessions, id)
		}
	}
}

// Stats returns current store statistics.
func (s *MemoryStore) Stats() StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := StoreStats{
		SessionCount: len(s.sessions),
	}
	for _, session := range s.sessions {
		stats.TotalTurns += session.TurnCount
		if session.HighestLevel == detect.LevelCrisis {
			stats.CrisisSessions++
		}
	}
	return stats
}

// StoreStats contains session store statistics.
type StoreStats struct {
	SessionCount   int `json:"session_count"`
	TotalTurns     int `json:"total_turns"`
	CrisisSessions int `json:"crisis_sessions"`
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
