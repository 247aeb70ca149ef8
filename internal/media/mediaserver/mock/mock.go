// Package mock provides a mock library server for testing.
package mock

import (
	"context"
	"sync"

	"github.com/curatarr/curatarr/internal/media"
	"github.com/curatarr/curatarr/internal/media/mediaserver"
)

var _ mediaserver.Client = (*Client)(nil)

// Client is a mock implementation of mediaserver.Client.
type Client struct {
	mu sync.RWMutex

	items   map[media.MediaType][]mediaserver.LibraryItem
	removed []string

	// Error simulation
	ListItemsError  error
	RemoveItemError error
}

// New creates a new mock library server.
func New() *Client {
	return &Client{
		items: make(map[media.MediaType][]mediaserver.LibraryItem),
	}
}

// SetItems sets the titles returned for a media type.
func (c *Client) SetItems(mediaType media.MediaType, items []mediaserver.LibraryItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[mediaType] = items
}

// Removed returns the title keys removed so far.
func (c *Client) Removed() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	removed := make([]string, len(c.removed))
	copy(removed, c.removed)
	return removed
}

// ListItems returns the configured titles.
func (c *Client) ListItems(_ context.Context, mediaType media.MediaType) ([]mediaserver.LibraryItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.ListItemsError != nil {
		return nil, c.ListItemsError
	}
	return c.items[mediaType], nil
}

// RemoveItem records the removal.
func (c *Client) RemoveItem(_ context.Context, titleKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.RemoveItemError != nil {
		return c.RemoveItemError
	}
	c.removed = append(c.removed, titleKey)

	for mediaType, items := range c.items {
		kept := items[:0]
		for _, item := range items {
			if item.TitleKey != titleKey {
				kept = append(kept, item)
			}
		}
		c.items[mediaType] = kept
	}
	return nil
}
