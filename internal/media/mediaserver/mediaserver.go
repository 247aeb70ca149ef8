// Package mediaserver defines the library server collaborator contract.
package mediaserver

import (
	"context"
	"time"

	"github.com/curatarr/curatarr/internal/media"
)

// LibraryItem is one title as reported by the library server.
type LibraryItem struct {
	TitleKey     string
	MediaType    media.MediaType
	Title        string
	Year         int32
	PlayCount    int32
	LastPlayedAt *time.Time
	AddedAt      *time.Time
	FileSize     int64
	PosterURL    string
	TmdbID       int32
	TvdbID       int32
}

// Client is the library server collaborator. It provides the candidate title
// universe for a scan and removes titles from the library on deletion.
type Client interface {
	// ListItems returns all titles of the given media type.
	ListItems(ctx context.Context, mediaType media.MediaType) ([]LibraryItem, error)
	// RemoveItem removes a title from the library. It does not touch files
	// on disk, that is the download manager's job.
	RemoveItem(ctx context.Context, titleKey string) error
}
