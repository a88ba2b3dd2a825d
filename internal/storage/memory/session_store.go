package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/SuzukiTakamasa/solana-trading-bot/internal/domain"
	"github.com/SuzukiTakamasa/solana-trading-bot/internal/storage"
)

// SessionStore is an in-memory implementation of storage.SessionStore.
// The position snapshot is held alongside the ledger and both are mutated
// under one lock, mirroring the transactional commit of the Postgres store.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.TradingSession
	order    []string // insertion order, session IDs
	position domain.Position
}

// NewSessionStore creates a new in-memory session store with a flat position.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*domain.TradingSession),
		position: domain.FlatPosition(),
	}
}

// Compile-time interface check.
var _ storage.SessionStore = (*SessionStore)(nil)

// Commit atomically appends a session and installs the resulting position.
func (s *SessionStore) Commit(_ context.Context, sess *domain.TradingSession, after domain.Position) error {
	if sess == nil || sess.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sess.ID]; exists {
		return storage.ErrDuplicateKey
	}
	if s.position.LastSessionID != sess.PrevSessionID {
		return storage.ErrPositionConflict
	}

	copy := *sess
	s.sessions[sess.ID] = &copy
	s.order = append(s.order, sess.ID)
	s.position = after
	return nil
}

// GetAll retrieves every session ordered by timestamp ASC.
func (s *SessionStore) GetAll(_ context.Context) ([]*domain.TradingSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]*domain.TradingSession, 0, len(s.order))
	for _, id := range s.order {
		copy := *s.sessions[id]
		sessions = append(sessions, &copy)
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].Timestamp.Before(sessions[j].Timestamp)
	})
	return sessions, nil
}

// GetRecent retrieves up to limit sessions, newest first.
func (s *SessionStore) GetRecent(ctx context.Context, limit int) ([]*domain.TradingSession, error) {
	sessions, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	// Reverse to newest-first
	for i, j := 0, len(sessions)-1; i < j; i, j = i+1, j-1 {
		sessions[i], sessions[j] = sessions[j], sessions[i]
	}
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

// GetLatest retrieves the most recent session.
func (s *SessionStore) GetLatest(ctx context.Context) (*domain.TradingSession, error) {
	recent, err := s.GetRecent(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(recent) == 0 {
		return nil, storage.ErrNotFound
	}
	return recent[0], nil
}

// CurrentPosition reconstructs the position by replaying the ledger. The
// cached snapshot is deliberately ignored.
func (s *SessionStore) CurrentPosition(ctx context.Context) (domain.Position, error) {
	sessions, err := s.GetAll(ctx)
	if err != nil {
		return domain.Position{}, err
	}
	return domain.ReplaySessions(sessions).Position, nil
}

// DeleteOlderThan removes sessions recorded before cutoff, always keeping
// the most recent successful session.
func (s *SessionStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keep := s.position.LastSessionID

	var deleted int64
	remaining := s.order[:0]
	for _, id := range s.order {
		sess := s.sessions[id]
		if sess.Timestamp.Before(cutoff) && id != keep {
			delete(s.sessions, id)
			deleted++
			continue
		}
		remaining = append(remaining, id)
	}
	s.order = remaining
	return deleted, nil
}
