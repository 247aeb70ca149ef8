// Package database provides the sqlite-backed persistence layer.
package database

import (
	"fmt"
	"path"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

var _ DB = (*Client)(nil) // Ensure Client implements DB

// Client wraps the gorm.DB instance.
type Client struct {
	db *gorm.DB
}

// New creates a new database connection and performs migrations. The dbpath
// argument is the directory holding the database file.
func New(dbpath string) (*Client, error) {
	return open(path.Join(dbpath, "curatarr.db"))
}

// NewInMemory creates an in-memory database, used by tests.
func NewInMemory() (*Client, error) {
	return open("file::memory:?cache=shared")
}

func open(dsn string) (*Client, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if err := db.AutoMigrate(
		&Rule{},
		&Scan{},
		&Candidate{},
		&DeletionLog{},
		&Job{},
		&FeedbackMark{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Client{db: db}, nil
}

// Close closes the underlying database connection.
func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	return sqlDB.Close()
}
