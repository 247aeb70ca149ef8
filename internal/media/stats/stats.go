// Package stats defines the watch-history collaborator contract.
package stats

import (
	"context"
	"time"
)

// ItemStats holds per-title playback statistics from the watch-history service.
type ItemStats struct {
	TitleKey     string
	PlayCount    int32
	LastPlayedAt *time.Time
	TotalRuntime int64 // accumulated playback seconds
}

// Statser provides playback statistics keyed by the library's title identifier.
type Statser interface {
	// ItemStats returns the playback statistics for a title.
	// A nil result with a nil error means the service has no record for it.
	ItemStats(ctx context.Context, titleKey string) (*ItemStats, error)
}
