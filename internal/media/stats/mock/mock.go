// Package mock provides a mock watch-history service for testing.
package mock

import (
	"context"
	"sync"

	"github.com/curatarr/curatarr/internal/media/stats"
)

var _ stats.Statser = (*Statser)(nil)

// Statser is a mock implementation of stats.Statser.
type Statser struct {
	mu sync.RWMutex

	items map[string]*stats.ItemStats

	// Error simulation
	ItemStatsError error
}

// New creates a new mock watch-history service.
func New() *Statser {
	return &Statser{
		items: make(map[string]*stats.ItemStats),
	}
}

// SetItemStats sets the statistics returned for a title.
func (s *Statser) SetItemStats(titleKey string, itemStats *stats.ItemStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[titleKey] = itemStats
}

// ItemStats returns the configured statistics, or nil if unknown.
func (s *Statser) ItemStats(_ context.Context, titleKey string) (*stats.ItemStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ItemStatsError != nil {
		return nil, s.ItemStatsError
	}
	return s.items[titleKey], nil
}
