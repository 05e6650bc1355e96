package market

import (
	"sync"
	"time"
)

// PriceStore is the shared "latest price" cell written by the feed and read
// by the trading loop. A price older than maxAge is reported as absent, never
// as stale data.
type PriceStore struct {
	mu     sync.RWMutex
	price  float64
	at     time.Time
	maxAge time.Duration
}

// NewPriceStore returns an empty store. maxAge <= 0 disables the staleness
// check (any price ever set remains visible).
func NewPriceStore(maxAge time.Duration) *PriceStore {
	return &PriceStore{maxAge: maxAge}
}

func (s *PriceStore) Set(price float64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.price = price
	s.at = at
}

// Get returns the latest price, or ok=false when no price has been received
// yet or the last update is older than maxAge.
func (s *PriceStore) Get() (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.at.IsZero() {
		return 0, false
	}
	if s.maxAge > 0 && time.Since(s.at) > s.maxAge {
		return 0, false
	}
	return s.price, true
}

// Clear drops the stored price, e.g. after a symbol change or reconnect.
func (s *PriceStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.price = 0
	s.at = time.Time{}
}
