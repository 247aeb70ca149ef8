// Package mock provides a mock download manager for testing.
package mock

import (
	"context"
	"sync"

	"github.com/curatarr/curatarr/internal/media/arr"
)

var _ arr.Arrer = (*Arrer)(nil)

// Arrer is a mock implementation of arr.Arrer.
type Arrer struct {
	mu sync.RWMutex

	items   []arr.Item
	deleted []int32

	// Error simulation
	ItemsError       error
	DeleteFilesError error
	// FilesDeleted is the result reported by DeleteFiles when it succeeds.
	FilesDeleted bool
}

// New creates a new mock download manager.
func New() *Arrer {
	return &Arrer{FilesDeleted: true}
}

// SetItems sets the titles returned by Items.
func (a *Arrer) SetItems(items []arr.Item) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.items = items
}

// Deleted returns the arr ids deleted so far.
func (a *Arrer) Deleted() []int32 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	deleted := make([]int32, len(a.deleted))
	copy(deleted, a.deleted)
	return deleted
}

// Items returns the configured titles.
func (a *Arrer) Items(_ context.Context) ([]arr.Item, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.ItemsError != nil {
		return nil, a.ItemsError
	}
	return a.items, nil
}

// DeleteFiles records the deletion.
func (a *Arrer) DeleteFiles(_ context.Context, arrID int32) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.DeleteFilesError != nil {
		return false, a.DeleteFilesError
	}
	a.deleted = append(a.deleted, arrID)
	return a.FilesDeleted, nil
}
