// Package arr defines the download-manager collaborator contract, implemented
// per media type family (Radarr for movies, Sonarr for series).
package arr

import (
	"context"
)

// Item is one title as reported by the download manager.
type Item struct {
	ArrID          int32
	Title          string
	TmdbID         int32
	TvdbID         int32
	Monitored      bool
	OnDisk         bool
	SizeOnDisk     int64
	QualityProfile string
	// Ended and Seasons are only set by the series download manager.
	Ended   bool
	Seasons int32
}

// Arrer is the download-manager collaborator for one media type family.
type Arrer interface {
	// Items returns all titles managed by the download manager.
	Items(ctx context.Context) ([]Item, error)
	// DeleteFiles removes a title from the download manager, deleting the
	// backing files on disk. It reports whether the files were actually
	// deleted.
	DeleteFiles(ctx context.Context, arrID int32) (bool, error)
}
