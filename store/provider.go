package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/matsuo0603/ShareFileBC/config"
	"github.com/matsuo0603/ShareFileBC/model"
)

// Op describes a mutation applied to a record collection.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Event is emitted on the Watch stream after each committed mutation.
type Event struct {
	Collection string // "shared" or "received"
	Op         Op
	Key        string // record id for shared, folder id for received
}

// Store is typed access to the two local record collections. SharedRecords
// are keyed by record id; ReceivedRecords are keyed by remote folder id, so
// at most one record exists per remote folder.
type Store interface {
	InsertShared(rec model.SharedRecord) (model.SharedRecord, error)
	ListShared() ([]model.SharedRecord, error)
	DeleteShared(id string) error

	UpsertReceived(rec model.ReceivedRecord) (model.ReceivedRecord, error)
	FindReceived(folderID string) (*model.ReceivedRecord, error)
	ListReceived() ([]model.ReceivedRecord, error)
	TouchReceived(folderID, lastAccessAt string) error
	DeleteReceivedByFolder(folderID string) error

	// Counts returns the number of records per collection
	Counts() (shared int64, received int64, err error)
	// Watch streams change events until ctx is cancelled
	Watch(ctx context.Context) <-chan Event
	Close() error
}

var (
	ErrRecordNotFound error = errors.New("record not found")
	ErrBucketNotFound error = errors.New("bucket not found")
)

// CreateStore creates a record store based on configuration
func CreateStore(cfg *config.StoreConfig) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store configuration: %w", err)
	}

	switch cfg.StoreType {
	case config.StoreTypeBbolt:
		return NewBboltStore(cfg.Bbolt)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.StoreType)
	}
}
