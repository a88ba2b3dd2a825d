package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/SuzukiTakamasa/solana-trading-bot/internal/domain"
	"github.com/SuzukiTakamasa/solana-trading-bot/internal/storage"
)

// PriceStore is an in-memory implementation of storage.PriceStore.
type PriceStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PricePoint // keyed by (timestamp, source)
}

// NewPriceStore creates a new in-memory price store.
func NewPriceStore() *PriceStore {
	return &PriceStore{
		data: make(map[string]*domain.PricePoint),
	}
}

// Compile-time interface check.
var _ storage.PriceStore = (*PriceStore)(nil)

// Append adds a price point. Re-appending the same (timestamp, source) is a
// no-op.
func (s *PriceStore) Append(_ context.Context, p *domain.PricePoint) error {
	if p == nil || p.Source == "" || p.Timestamp.IsZero() {
		return storage.ErrInvalidInput
	}
	if err := domain.ValidatePrice(p.Price); err != nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := p.Key()
	if _, exists := s.data[key]; exists {
		return nil
	}

	copy := *p
	s.data[key] = &copy
	return nil
}

// GetSince retrieves points observed at or after since, ordered ASC.
func (s *PriceStore) GetSince(_ context.Context, since time.Time) ([]*domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var points []*domain.PricePoint
	for _, p := range s.data {
		if !p.Timestamp.Before(since) {
			copy := *p
			points = append(points, &copy)
		}
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points, nil
}

// Latest retrieves the most recent point.
func (s *PriceStore) Latest(_ context.Context) (*domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.PricePoint
	for _, p := range s.data {
		if latest == nil || p.Timestamp.After(latest.Timestamp) {
			latest = p
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}

	copy := *latest
	return &copy, nil
}

// DeleteOlderThan removes points observed before cutoff.
func (s *PriceStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for key, p := range s.data {
		if p.Timestamp.Before(cutoff) {
			delete(s.data, key)
			deleted++
		}
	}
	return deleted, nil
}
