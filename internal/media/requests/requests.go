// Package requests defines the request-tracking collaborator contract.
package requests

import (
	"context"
	"time"

	"github.com/curatarr/curatarr/internal/media"
)

// Request is the active-request status of a title in the request tracker,
// keyed by its external catalog id (TMDB for movies, TVDB for series).
type Request struct {
	CatalogID   int32
	RequestedBy string
	RequestedAt *time.Time
}

// Requester provides per-title active-request status. Titles with an active
// request are protected from deletion.
type Requester interface {
	// ActiveRequests returns all active requests for the given media type,
	// keyed by external catalog id.
	ActiveRequests(ctx context.Context, mediaType media.MediaType) (map[int32]Request, error)
}
