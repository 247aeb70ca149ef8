// Package mock provides a mock request tracker for testing.
package mock

import (
	"context"
	"sync"

	"github.com/curatarr/curatarr/internal/media"
	"github.com/curatarr/curatarr/internal/media/requests"
)

var _ requests.Requester = (*Requester)(nil)

// Requester is a mock implementation of requests.Requester.
type Requester struct {
	mu sync.RWMutex

	active map[media.MediaType]map[int32]requests.Request

	// Error simulation
	ActiveRequestsError error
}

// New creates a new mock request tracker.
func New() *Requester {
	return &Requester{
		active: make(map[media.MediaType]map[int32]requests.Request),
	}
}

// SetActiveRequest registers an active request for a catalog id.
func (r *Requester) SetActiveRequest(mediaType media.MediaType, req requests.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active[mediaType] == nil {
		r.active[mediaType] = make(map[int32]requests.Request)
	}
	r.active[mediaType][req.CatalogID] = req
}

// ActiveRequests returns the configured active requests.
func (r *Requester) ActiveRequests(_ context.Context, mediaType media.MediaType) (map[int32]requests.Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.ActiveRequestsError != nil {
		return nil, r.ActiveRequestsError
	}
	out := make(map[int32]requests.Request, len(r.active[mediaType]))
	for id, req := range r.active[mediaType] {
		out[id] = req
	}
	return out, nil
}
